package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"mcpchat/model"
)

// defaultAnthropicMaxTokens is sent when no limit is configured; the
// Messages API requires one.
const defaultAnthropicMaxTokens = 4096

// AnthropicProvider implements model.Provider using Anthropic's official API.
type AnthropicProvider struct {
	client      *anthropic.Client
	model       anthropic.Model
	baseURL     string
	temperature *float64
	maxTokens   int64
	logger      *zap.Logger
}

var _ model.Provider = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// Defaults: base URL "https://api.anthropic.com", model
// "claude-sonnet-4-5-20250929". Returns an error if the API key is missing.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if cfg.Model != "" {
		anthropicModel = anthropic.Model(cfg.Model)
	}

	maxTokens := int64(defaultAnthropicMaxTokens)
	if cfg.MaxTokens > 0 {
		maxTokens = int64(cfg.MaxTokens)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
	)

	return &AnthropicProvider{
		client:      &client,
		model:       anthropicModel,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		logger:      cfg.logger(),
	}, nil
}

// Name implements model.Provider.
func (p *AnthropicProvider) Name() string {
	return string(ProviderTypeAnthropic)
}

// Model returns the model used for requests.
func (p *AnthropicProvider) Model() string {
	return string(p.model)
}

// StreamTurn implements model.Provider with streaming support.
//
// Content blocks are addressed by their block index, which doubles as the
// tool-call index: a tool_use block start carries the ID and name, and its
// input_json deltas carry argument fragments.
func (p *AnthropicProvider) StreamTurn(ctx context.Context, messages []model.Message, tools []model.ToolDescriptor, callback model.StreamCallback) error {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: p.maxTokens,
	}
	if len(systemPrompt) > 0 {
		params.System = systemPrompt
	}
	if len(tools) > 0 {
		params.Tools = ConvertToolsToAnthropicFormat(tools)
	}
	if p.temperature != nil {
		params.Temperature = anthropic.Float(*p.temperature)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		for _, event := range anthropicEvents(stream.Current()) {
			if err := callback(event); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("Anthropic streaming error: %w", err)
	}
	return nil
}

func anthropicEvents(event anthropic.MessageStreamEventUnion) []model.StreamEvent {
	switch ev := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		if ev.ContentBlock.Type == "tool_use" {
			return []model.StreamEvent{model.ToolCallDelta{
				Index: int(ev.Index),
				ID:    ev.ContentBlock.ID,
				Type:  "function",
				Name:  ev.ContentBlock.Name,
			}}
		}
	case anthropic.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if delta.Text != "" {
				return []model.StreamEvent{model.ContentDelta{Text: delta.Text}}
			}
		case anthropic.InputJSONDelta:
			return []model.StreamEvent{model.ToolCallDelta{
				Index:     int(ev.Index),
				Arguments: delta.PartialJSON,
			}}
		}
	case anthropic.MessageDeltaEvent:
		if ev.Delta.StopReason != "" {
			return []model.StreamEvent{model.FinishEvent{Reason: mapStopReason(string(ev.Delta.StopReason))}}
		}
	}
	return nil
}

// mapStopReason maps Anthropic stop reasons onto the OpenAI-style finish
// reasons used throughout mcpchat.
func mapStopReason(reason string) string {
	switch reason {
	case "tool_use":
		return model.FinishToolCalls
	case "max_tokens":
		return model.FinishLength
	default:
		return model.FinishStop
	}
}

// Ping implements Pinger by making a minimal request, since Anthropic has no
// health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
