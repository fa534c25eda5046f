package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"mcpchat/model"
	"mcpchat/ollama"
)

// OllamaProvider wraps ollama.Client to implement model.Provider.
//
// Ollama delivers each tool call whole rather than as fragments, so every
// call is forwarded as a single complete ToolCallDelta with a generated ID.
type OllamaProvider struct {
	client  *ollama.Client
	options map[string]any
	logger  *zap.Logger
}

var _ model.Provider = (*OllamaProvider)(nil)

// NewOllamaProvider creates a new Ollama provider instance.
//
// Defaults: base URL "http://localhost:11434", model "llama3.1:latest".
// Returns an error if the base URL is invalid.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	client, err := ollama.NewClient(cfg.BaseURL, cfg.Model, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	options := map[string]any{}
	if cfg.Temperature != nil {
		options["temperature"] = *cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		options["num_predict"] = cfg.MaxTokens
	}

	return &OllamaProvider{
		client:  client,
		options: options,
		logger:  cfg.logger(),
	}, nil
}

// Name implements model.Provider.
func (p *OllamaProvider) Name() string {
	return string(ProviderTypeOllama)
}

// Model returns the model used for requests.
func (p *OllamaProvider) Model() string {
	return p.client.Model()
}

// StreamTurn implements model.Provider.
func (p *OllamaProvider) StreamTurn(ctx context.Context, messages []model.Message, tools []model.ToolDescriptor, callback model.StreamCallback) error {
	var ollamaTools []api.Tool
	if len(tools) > 0 {
		if !p.client.SupportsToolCalling() {
			p.logger.Warn("model is not known to support tool calling",
				zap.String("model", p.client.Model()))
		}
		ollamaTools = ConvertToolsToOllama(tools)
	}

	translate := newOllamaTranslator()
	err := p.client.ChatWithTools(ctx, ConvertToOllamaMessages(messages), ollamaTools, p.options, func(resp api.ChatResponse) error {
		for _, event := range translate(resp) {
			if err := callback(event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ollama streaming error: %w", err)
	}
	return nil
}

// newOllamaTranslator returns a stateful function converting each Ollama
// response into stream events. Tool call indices keep increasing across
// responses of the same turn.
func newOllamaTranslator() func(api.ChatResponse) []model.StreamEvent {
	index := 0
	return func(resp api.ChatResponse) []model.StreamEvent {
		var events []model.StreamEvent
		if resp.Message.Content != "" {
			events = append(events, model.ContentDelta{Text: resp.Message.Content})
		}
		for _, tc := range resp.Message.ToolCalls {
			args, err := json.Marshal(tc.Function.Arguments)
			if err != nil || string(args) == "null" {
				args = []byte("{}")
			}
			events = append(events, model.ToolCallDelta{
				Index:     index,
				ID:        "call_" + uuid.NewString(),
				Type:      "function",
				Name:      tc.Function.Name,
				Arguments: string(args),
			})
			index++
		}
		if resp.Done {
			reason := resp.DoneReason
			if index > 0 {
				reason = model.FinishToolCalls
			}
			if reason == "" {
				reason = model.FinishStop
			}
			events = append(events, model.FinishEvent{Reason: reason})
		}
		return events
	}
}

// Ping implements Pinger.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
