package model

import (
	"context"
	"encoding/json"
)

// Provider abstracts streaming LLM implementations (OpenAI, OpenRouter,
// Ollama, Anthropic) behind the provider-agnostic types of this package.
//
// It is defined here, not in the provider package, so that the chat package
// can depend on it without importing any SDK.
type Provider interface {
	// Name returns the provider identifier ("openai", "ollama", ...).
	Name() string

	// StreamTurn opens one streaming model turn and delivers its events to
	// callback in arrival order. A callback error aborts the stream and is
	// returned.
	StreamTurn(ctx context.Context, messages []Message, tools []ToolDescriptor, callback StreamCallback) error
}

// StreamCallback is called for each event of a streamed turn.
type StreamCallback func(event StreamEvent) error

// ToolCaller dispatches a tool invocation to the provider that hosts it and
// returns the provider's raw result document.
type ToolCaller interface {
	CallTool(ctx context.Context, providerID, toolName string, args map[string]any) (json.RawMessage, error)
}
