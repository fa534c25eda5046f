package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"mcpchat/model"
)

// MockProvider implements model.Provider for testing. By default it replays
// Turns in order, one per StreamTurn call, repeating the last turn once the
// script is exhausted.
type MockProvider struct {
	// Configurable behaviour; overrides Turns when set.
	StreamTurnFunc func(ctx context.Context, messages []model.Message, tools []model.ToolDescriptor, callback model.StreamCallback) error

	// Turns is the scripted sequence of stream events per call.
	Turns [][]model.StreamEvent

	mu       sync.Mutex
	calls    int
	messages [][]model.Message
}

// NewMockProvider creates a provider replaying the given turns.
func NewMockProvider(turns ...[]model.StreamEvent) *MockProvider {
	return &MockProvider{Turns: turns}
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) StreamTurn(ctx context.Context, messages []model.Message, tools []model.ToolDescriptor, callback model.StreamCallback) error {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.messages = append(m.messages, append([]model.Message(nil), messages...))
	m.mu.Unlock()

	if m.StreamTurnFunc != nil {
		return m.StreamTurnFunc(ctx, messages, tools, callback)
	}
	if len(m.Turns) == 0 {
		return nil
	}
	if idx >= len(m.Turns) {
		idx = len(m.Turns) - 1
	}
	for _, ev := range m.Turns[idx] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := callback(ev); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns how many turns were opened.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Messages returns the history passed to the n-th turn.
func (m *MockProvider) Messages(n int) []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n >= len(m.messages) {
		return nil
	}
	return m.messages[n]
}

// MockToolCaller implements model.ToolCaller for testing.
type MockToolCaller struct {
	// CallToolFunc overrides Results when set.
	CallToolFunc func(ctx context.Context, providerID, toolName string, args map[string]any) (json.RawMessage, error)

	// Results maps a tool name to the raw result document it returns.
	Results map[string]string

	mu    sync.Mutex
	calls []ToolInvocation
}

// ToolInvocation records one CallTool call.
type ToolInvocation struct {
	ProviderID string
	ToolName   string
	Args       map[string]any
}

func (m *MockToolCaller) CallTool(ctx context.Context, providerID, toolName string, args map[string]any) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ToolInvocation{ProviderID: providerID, ToolName: toolName, Args: args})
	m.mu.Unlock()

	if m.CallToolFunc != nil {
		return m.CallToolFunc(ctx, providerID, toolName, args)
	}
	raw, ok := m.Results[toolName]
	if !ok {
		return nil, fmt.Errorf("no scripted result for %s", toolName)
	}
	return json.RawMessage(raw), nil
}

// Invocations returns the recorded calls in order.
func (m *MockToolCaller) Invocations() []ToolInvocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ToolInvocation(nil), m.calls...)
}
