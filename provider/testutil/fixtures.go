package testutil

import (
	"encoding/json"
	"time"

	"mcpchat/model"
)

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{
		{
			Role:      model.RoleUser,
			Content:   content,
			Timestamp: time.Now(),
		},
	}
}

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: "Hello, how are you?", Timestamp: time.Now()},
		{Role: model.RoleAssistant, Content: "I'm doing well, thank you!", Timestamp: time.Now()},
		{Role: model.RoleUser, Content: "Can you help me with a task?", Timestamp: time.Now()},
	}
}

// TestTools returns sample tool descriptors for testing
func TestTools() []model.ToolDescriptor {
	return []model.ToolDescriptor{
		{
			Name:        "get_weather",
			Description: "Get the current weather for a location",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}},"required":["location"]}`),
			ProviderID:  "weather",
		},
		{
			Name:        "get_steps",
			Description: "Daily step counts",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"days":{"type":"integer"}}}`),
			ProviderID:  "garmin",
		},
	}
}

// TextTurn scripts a content-only answer split into fragments.
func TextTurn(fragments ...string) []model.StreamEvent {
	events := make([]model.StreamEvent, 0, len(fragments)+1)
	for _, f := range fragments {
		events = append(events, model.ContentDelta{Text: f})
	}
	return append(events, model.FinishEvent{Reason: model.FinishStop})
}

// ToolTurn scripts a turn requesting one tool call.
func ToolTurn(id, name, arguments string) []model.StreamEvent {
	return []model.StreamEvent{
		model.ToolCallDelta{Index: 0, ID: id, Type: "function", Name: name},
		model.ToolCallDelta{Index: 0, Arguments: arguments},
		model.FinishEvent{Reason: model.FinishToolCalls},
	}
}

// TextResult builds an MCP result document with a single text item.
func TextResult(text string) string {
	b, _ := json.Marshal(map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	})
	return string(b)
}
