package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"mcpchat/model"
)

// OpenAIProvider implements model.Provider using OpenAI's official Go SDK.
// It also backs OpenRouter, whose API is OpenAI-compatible.
type OpenAIProvider struct {
	client      openai.Client
	name        string
	model       string
	baseURL     string
	temperature *float64
	maxTokens   int
	logger      *zap.Logger
}

var _ model.Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI provider instance.
//
// Defaults: base URL "https://api.openai.com/v1", model "gpt-4o-mini".
// Returns an error if the API key is missing.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini" // Default to affordable model
	}
	return newOpenAICompatible(string(ProviderTypeOpenAI), cfg), nil
}

func newOpenAICompatible(name string, cfg Config, opts ...option.RequestOption) *OpenAIProvider {
	opts = append([]option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
	}, opts...)

	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		name:        name,
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.logger(),
	}
}

// Name implements model.Provider.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the model used for requests.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// StreamTurn implements model.Provider with streaming support.
func (p *OpenAIProvider) StreamTurn(ctx context.Context, messages []model.Message, tools []model.ToolDescriptor, callback model.StreamCallback) error {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages),
		Model:    openai.ChatModel(p.model),
	}
	if len(tools) > 0 {
		params.Tools = ConvertToolsToOpenAIFormat(tools)
	}
	if p.temperature != nil {
		params.Temperature = openai.Float(*p.temperature)
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(p.maxTokens))
	}

	p.logger.Debug("opening stream",
		zap.String("model", p.model),
		zap.Int("messages", len(messages)),
		zap.Int("tools", len(tools)))

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		for _, event := range chunkEvents(stream.Current()) {
			if err := callback(event); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("%s streaming error: %w", p.name, err)
	}
	return nil
}

// chunkEvents translates one streamed chunk. Only the first choice is used.
func chunkEvents(chunk openai.ChatCompletionChunk) []model.StreamEvent {
	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	var events []model.StreamEvent
	if choice.Delta.Content != "" {
		events = append(events, model.ContentDelta{Text: choice.Delta.Content})
	}
	for _, tc := range choice.Delta.ToolCalls {
		events = append(events, model.ToolCallDelta{
			Index:     int(tc.Index),
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if choice.FinishReason != "" {
		events = append(events, model.FinishEvent{Reason: string(choice.FinishReason)})
	}
	return events
}

// Ping implements Pinger by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}
