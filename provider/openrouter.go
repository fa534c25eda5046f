package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3/option"

	"mcpchat/model"
)

// OpenRouterProvider connects to OpenRouter's OpenAI-compatible API.
type OpenRouterProvider struct {
	*OpenAIProvider
}

var _ model.Provider = (*OpenRouterProvider)(nil)

// NewOpenRouterProvider creates a new OpenRouter provider instance.
//
// Defaults: base URL "https://openrouter.ai/api/v1",
// model "meta-llama/llama-3.2-90b-instruct".
func NewOpenRouterProvider(cfg Config) (*OpenRouterProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "meta-llama/llama-3.2-90b-instruct"
	}

	inner := newOpenAICompatible(string(ProviderTypeOpenRouter), cfg,
		option.WithHeader("HTTP-Referer", "https://github.com/mcpchat/mcpchat"),
		option.WithHeader("X-Title", "mcpchat"),
	)
	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}

// toolNameMapping converts tool names from dotted notation to underscore notation.
// OpenRouter requires tool names matching ^[a-zA-Z0-9_-]{1,64}$ (no dots allowed).
// Example: "server-filesystem.read_file" → "server-filesystem__read_file".
// The returned map reverses only the names that were rewritten.
func toolNameMapping(tools []model.ToolDescriptor) ([]model.ToolDescriptor, map[string]string) {
	converted := make([]model.ToolDescriptor, len(tools))
	reverse := make(map[string]string)
	for i, tool := range tools {
		converted[i] = tool
		if strings.Contains(tool.Name, ".") {
			converted[i].Name = strings.ReplaceAll(tool.Name, ".", "__")
			reverse[converted[i].Name] = tool.Name
		}
	}
	return converted, reverse
}

// StreamTurn implements model.Provider, renaming dotted tool names on the way
// out and back.
func (p *OpenRouterProvider) StreamTurn(ctx context.Context, messages []model.Message, tools []model.ToolDescriptor, callback model.StreamCallback) error {
	converted, reverse := toolNameMapping(tools)
	if len(reverse) == 0 {
		return p.OpenAIProvider.StreamTurn(ctx, messages, tools, callback)
	}

	forward := make(map[string]string, len(reverse))
	for short, original := range reverse {
		forward[original] = short
	}

	renamed := make([]model.Message, len(messages))
	for i, msg := range messages {
		renamed[i] = msg
		if len(msg.ToolCalls) == 0 {
			continue
		}
		calls := make([]model.ToolCall, len(msg.ToolCalls))
		for j, call := range msg.ToolCalls {
			calls[j] = call
			if short, ok := forward[call.Name]; ok {
				calls[j].Name = short
			}
		}
		renamed[i].ToolCalls = calls
	}

	return p.OpenAIProvider.StreamTurn(ctx, renamed, converted, func(event model.StreamEvent) error {
		if delta, ok := event.(model.ToolCallDelta); ok {
			if original, found := reverse[delta.Name]; found {
				delta.Name = original
			}
			event = delta
		}
		return callback(event)
	})
}

// stripProviderPrefix removes vendor prefixes from OpenRouter model names.
// "meta-llama/llama-3.2-90b-instruct" → "llama-3.2-90b-instruct"
func stripProviderPrefix(modelName string) string {
	if idx := strings.Index(modelName, "/"); idx != -1 {
		return modelName[idx+1:]
	}
	return modelName
}

// DisplayName returns the model name without its vendor prefix.
func (p *OpenRouterProvider) DisplayName() string {
	return stripProviderPrefix(p.model)
}
