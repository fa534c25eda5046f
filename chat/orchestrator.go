// Package chat runs the tool-calling conversation loop between a streaming
// model and the tools of connected MCP servers.
package chat

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"mcpchat/chart"
	"mcpchat/model"
)

// DefaultMaxIterations bounds the request/execute cycle of one call.
const DefaultMaxIterations = 10

// IterationCapMessage is reported when the model keeps requesting tools.
const IterationCapMessage = "Maximum tool iterations reached. Stopping to prevent an infinite loop."

// Options configures an Orchestrator.
type Options struct {
	MaxIterations     int
	ToolTimeout       time.Duration
	ValidateArguments bool
	SystemPrompt      string          // prepended when the history has no system message
	Detector          *chart.Detector // defaults to chart.Default()
	Logger            *zap.Logger
}

// Orchestrator drives conversations. One Orchestrator serves any number of
// concurrent Run calls; each call owns its own history.
type Orchestrator struct {
	accumulator   *Accumulator
	executor      *Executor
	detector      *chart.Detector
	maxIterations int
	systemPrompt  string
	logger        *zap.Logger
}

// NewOrchestrator wires the accumulator, executor and chart detector.
func NewOrchestrator(provider model.Provider, caller model.ToolCaller, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	detector := opts.Detector
	if detector == nil {
		detector = chart.Default()
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	return &Orchestrator{
		accumulator: NewAccumulator(provider, logger.Named("accumulator")),
		executor: NewExecutor(caller,
			WithTimeout(opts.ToolTimeout),
			WithSchemaValidation(opts.ValidateArguments),
			WithLogger(logger.Named("executor"))),
		detector:      detector,
		maxIterations: maxIterations,
		systemPrompt:  opts.SystemPrompt,
		logger:        logger,
	}
}

// Run starts one orchestration call and returns its event stream. The
// stream always ends with a done event (unless ctx is cancelled first) and
// is then closed. history is not modified; the final history travels on the
// done event.
func (o *Orchestrator) Run(ctx context.Context, history []model.Message, tools []model.ToolDescriptor) <-chan model.Event {
	out := make(chan model.Event)
	r := &run{
		o:        o,
		ctx:      ctx,
		out:      out,
		tools:    tools,
		messages: o.prepare(history),
	}
	r.query = model.LastUserContent(r.messages)

	go func() {
		defer close(out)
		r.loop()
	}()
	return out
}

func (o *Orchestrator) prepare(history []model.Message) []model.Message {
	messages := slices.Clone(history)
	if o.systemPrompt != "" && !model.HasSystemMessage(messages) {
		messages = append([]model.Message{model.NewMessage(model.RoleSystem, o.systemPrompt)}, messages...)
	}
	return messages
}

// state is a position in the orchestration state machine.
type state int

const (
	stateRequesting state = iota
	stateToolCallsPending
	stateExecutingTools
	stateFinal
	stateCapExceeded
	stateFailed
	stateDone
)

func (s state) String() string {
	switch s {
	case stateRequesting:
		return "requesting"
	case stateToolCallsPending:
		return "tool_calls_pending"
	case stateExecutingTools:
		return "executing_tools"
	case stateFinal:
		return "final"
	case stateCapExceeded:
		return "cap_exceeded"
	case stateFailed:
		return "failed"
	default:
		return "done"
	}
}

// run is the state of one orchestration call. It is owned by a single
// goroutine and needs no locking.
type run struct {
	o     *Orchestrator
	ctx   context.Context
	out   chan<- model.Event
	tools []model.ToolDescriptor
	query string

	messages  []model.Message
	iteration int
	turn      Turn
	err       error
}

func (r *run) loop() {
	st := stateRequesting
	for st != stateDone {
		next := r.step(st)
		r.o.logger.Debug("state transition",
			zap.Int("iteration", r.iteration),
			zap.Stringer("from", st),
			zap.Stringer("to", next))
		st = next
	}
	r.emit(model.Event{Type: model.EventDone, Messages: r.messages})
}

func (r *run) step(st state) state {
	switch st {
	case stateRequesting:
		return r.request()
	case stateToolCallsPending:
		r.messages = append(r.messages, r.turn.Message)
		return stateExecutingTools
	case stateExecutingTools:
		return r.executeTools()
	case stateFinal:
		r.messages = append(r.messages, r.turn.Message)
		return stateDone
	case stateCapExceeded:
		r.o.logger.Warn("iteration cap reached",
			zap.Int("max_iterations", r.o.maxIterations),
			zap.Error(model.ErrIterationCapExceeded))
		r.emit(model.Event{Type: model.EventError, Error: IterationCapMessage})
		return stateDone
	case stateFailed:
		r.o.logger.Error("orchestration failed", zap.Int("iteration", r.iteration), zap.Error(r.err))
		r.emit(model.Event{Type: model.EventError, Error: r.err.Error()})
		return stateDone
	}
	return stateDone
}

// request streams one model turn, forwarding content as it arrives.
func (r *run) request() state {
	if r.ctx.Err() != nil {
		return stateDone
	}
	if r.iteration >= r.o.maxIterations {
		return stateCapExceeded
	}
	r.iteration++

	turn, err := r.o.accumulator.Stream(r.ctx, r.messages, r.tools, func(text string) error {
		if !r.emit(model.Event{Type: model.EventContent, Content: text}) {
			return r.ctx.Err()
		}
		return nil
	})
	if err != nil {
		if r.ctx.Err() != nil {
			return stateDone
		}
		r.err = err
		return stateFailed
	}

	r.turn = turn
	if turn.FinishReason == model.FinishToolCalls && len(turn.ToolCalls) > 0 {
		return stateToolCallsPending
	}
	return stateFinal
}

// executeTools runs the pending calls in the order the model produced them.
func (r *run) executeTools() state {
	for _, call := range r.turn.ToolCalls {
		if r.ctx.Err() != nil {
			return stateDone
		}

		if !r.emit(model.Event{
			Type:       model.EventToolExecutionStart,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Arguments:  call.Arguments,
		}) {
			return stateDone
		}

		result, err := r.o.executor.Execute(r.ctx, call, r.tools)
		if err != nil && !model.IsToolLevel(err) {
			// Cancelled while waiting; the result is discarded.
			return stateDone
		}

		var charts []model.ChartDescriptor
		if !result.IsError {
			charts = r.o.detector.Detect(result, call.ID, call.Name, r.query)
			for i := range charts {
				if !r.emit(model.Event{
					Type:       model.EventChartData,
					ToolCallID: call.ID,
					ToolName:   call.Name,
					Chart:      &charts[i],
				}) {
					return stateDone
				}
			}
		}

		text := FormatResult(result)
		r.messages = append(r.messages, model.Message{
			Role:       model.RoleTool,
			Content:    text,
			ToolCallID: call.ID,
			Timestamp:  time.Now(),
			Charts:     charts,
		})

		if !r.emit(model.Event{
			Type:       model.EventToolExecutionResult,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Result:     text,
			IsError:    result.IsError,
		}) {
			return stateDone
		}
	}
	return stateRequesting
}

// emit delivers an event unless the caller has gone away.
func (r *run) emit(ev model.Event) bool {
	select {
	case r.out <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}
