// Package provider adapts streaming LLM APIs to model.Provider.
//
// mcpchat supports several LLM backends (OpenAI, OpenRouter, Ollama,
// Anthropic) through the common model.Provider interface. Every adapter
// translates its SDK's stream into the provider-agnostic model.StreamEvent
// values (content fragments, positional tool-call fragments and a finish
// reason) so the chat package can stay SDK-free.
//
// # Type Conversions
//
// Each adapter owns the conversion of model.Message history and
// model.ToolDescriptor lists into its SDK's request types. Tool schemas are
// converted in tools.go.
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama3.1",
//	})
//	if err != nil {
//	    // handle error
//	}
//	err = p.StreamTurn(ctx, messages, tools, callback)
package provider

import (
	"context"

	"go.uber.org/zap"
)

// Note: The Provider interface and StreamCallback are defined in the model package
// (model/provider.go) to avoid import cycles. This package implements model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type        ProviderType
	BaseURL     string
	Model       string
	APIKey      string // For OpenAI/OpenRouter/Anthropic (unused for Ollama)
	Temperature *float64
	MaxTokens   int
	Logger      *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger.Named(string(c.Type))
}

// Pinger is implemented by providers that can check reachability cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}
