package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"mcpchat/model"
)

// Turn is the assembled outcome of one streamed model turn.
type Turn struct {
	Message      model.Message
	ToolCalls    []model.ToolCall
	FinishReason string
}

// partialCall is a tool call whose fragments are still arriving.
type partialCall struct {
	id   string
	typ  string
	name string
	args strings.Builder
}

// turnBuilder merges stream events into a Turn. It is fed strictly in
// arrival order by a single goroutine.
type turnBuilder struct {
	content      strings.Builder
	calls        map[int]*partialCall
	finishReason string
}

func newTurnBuilder() *turnBuilder {
	return &turnBuilder{calls: make(map[int]*partialCall)}
}

// add merges one event and returns the content fragment it carried, if any.
func (b *turnBuilder) add(event model.StreamEvent) string {
	switch ev := event.(type) {
	case model.ContentDelta:
		b.content.WriteString(ev.Text)
		return ev.Text
	case model.ToolCallDelta:
		pc := b.calls[ev.Index]
		if pc == nil {
			pc = &partialCall{}
			b.calls[ev.Index] = pc
		}
		if ev.ID != "" {
			pc.id = ev.ID
		}
		if ev.Type != "" {
			pc.typ = ev.Type
		}
		if ev.Name != "" {
			pc.name = ev.Name
		}
		pc.args.WriteString(ev.Arguments)
		b.finishReason = model.FinishToolCalls
	case model.FinishEvent:
		if b.finishReason != model.FinishToolCalls && ev.Reason != "" {
			b.finishReason = ev.Reason
		}
	}
	return ""
}

// finish materializes the turn. Calls missing an id or a name are dropped,
// and ToolCalls stays nil when no complete call remains.
func (b *turnBuilder) finish() Turn {
	indexes := make([]int, 0, len(b.calls))
	for idx := range b.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var calls []model.ToolCall
	for _, idx := range indexes {
		pc := b.calls[idx]
		if pc.id == "" || pc.name == "" {
			continue
		}
		typ := pc.typ
		if typ == "" {
			typ = "function"
		}
		calls = append(calls, model.ToolCall{
			ID:        pc.id,
			Type:      typ,
			Name:      pc.name,
			Arguments: pc.args.String(),
		})
	}

	reason := b.finishReason
	if reason == "" {
		reason = model.FinishStop
	}

	return Turn{
		Message: model.Message{
			Role:      model.RoleAssistant,
			Content:   b.content.String(),
			ToolCalls: calls,
			Timestamp: time.Now(),
		},
		ToolCalls:    calls,
		FinishReason: reason,
	}
}

// Accumulator streams single model turns and reassembles them.
type Accumulator struct {
	provider model.Provider
	logger   *zap.Logger
}

// NewAccumulator creates an accumulator over provider.
func NewAccumulator(provider model.Provider, logger *zap.Logger) *Accumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{provider: provider, logger: logger}
}

// Stream opens one model turn. Every content fragment is handed to
// onContent before the next stream event is consumed. A provider failure
// before the first event is reported as model.ErrUpstreamUnavailable; an
// onContent error aborts the stream and is returned unchanged.
func (a *Accumulator) Stream(ctx context.Context, messages []model.Message, tools []model.ToolDescriptor, onContent func(string) error) (Turn, error) {
	b := newTurnBuilder()
	started := false
	var callbackErr error

	err := a.provider.StreamTurn(ctx, messages, tools, func(event model.StreamEvent) error {
		started = true
		if text := b.add(event); text != "" && onContent != nil {
			if err := onContent(text); err != nil {
				callbackErr = err
				return err
			}
		}
		return nil
	})

	switch {
	case callbackErr != nil:
		return Turn{}, callbackErr
	case err != nil && ctx.Err() != nil:
		return Turn{}, ctx.Err()
	case err != nil && !started:
		a.logger.Warn("model stream failed to open",
			zap.String("provider", a.provider.Name()),
			zap.Error(err))
		return Turn{}, fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, err)
	case err != nil:
		return Turn{}, fmt.Errorf("model stream interrupted: %w", err)
	}

	turn := b.finish()
	a.logger.Debug("model turn complete",
		zap.String("finish_reason", turn.FinishReason),
		zap.Int("content_len", len(turn.Message.Content)),
		zap.Int("tool_calls", len(turn.ToolCalls)))
	return turn, nil
}

// IsUpstreamUnavailable reports whether err means the model could not be reached.
func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, model.ErrUpstreamUnavailable)
}
