package provider

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"mcpchat/model"
)

func toolRoundTrip() []model.Message {
	return []model.Message{
		{Role: model.RoleSystem, Content: "You are helpful."},
		{Role: model.RoleUser, Content: "Weather in Paris and Rome?", Timestamp: time.Now()},
		{Role: model.RoleAssistant, Content: "", ToolCalls: []model.ToolCall{
			{ID: "call_1", Type: "function", Name: "get_weather", Arguments: `{"location":"Paris"}`},
			{ID: "call_2", Type: "function", Name: "get_weather", Arguments: `{"location":"Rome"}`},
		}},
		{Role: model.RoleTool, Content: "18C", ToolCallID: "call_1"},
		{Role: model.RoleTool, Content: "24C", ToolCallID: "call_2"},
		{Role: model.RoleAssistant, Content: "Paris is 18C, Rome is 24C."},
	}
}

func TestConvertToOllamaMessages(t *testing.T) {
	tests := []struct {
		name  string
		input []model.Message
		check func(t *testing.T, got []map[string]any)
	}{
		{
			name:  "empty slice",
			input: []model.Message{},
			check: func(t *testing.T, got []map[string]any) {
				if len(got) != 0 {
					t.Errorf("len = %d", len(got))
				}
			},
		},
		{
			name:  "tool round trip",
			input: toolRoundTrip(),
			check: func(t *testing.T, got []map[string]any) {
				if len(got) != 6 {
					t.Fatalf("len = %d, want 6", len(got))
				}
				if got[3]["role"] != "tool" || got[3]["content"] != "18C" {
					t.Errorf("tool message = %v", got[3])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToOllamaMessages(tt.input)
			raw, err := json.Marshal(result)
			if err != nil {
				t.Fatal(err)
			}
			var decoded []map[string]any
			if err := json.Unmarshal(raw, &decoded); err != nil {
				t.Fatal(err)
			}
			tt.check(t, decoded)
		})
	}

	result := ConvertToOllamaMessages(toolRoundTrip())
	calls := result[2].ToolCalls
	if len(calls) != 2 {
		t.Fatalf("assistant tool calls = %d, want 2", len(calls))
	}
	if calls[1].Function.Name != "get_weather" || calls[1].Function.Arguments["location"] != "Rome" {
		t.Errorf("second call = %+v", calls[1].Function)
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	raw, err := json.Marshal(ConvertToOpenAIMessages(toolRoundTrip()))
	if err != nil {
		t.Fatal(err)
	}
	msgs := gjson.ParseBytes(raw).Array()
	if len(msgs) != 6 {
		t.Fatalf("len = %d, want 6", len(msgs))
	}

	roles := []string{"system", "user", "assistant", "tool", "tool", "assistant"}
	for i, want := range roles {
		if got := msgs[i].Get("role").String(); got != want {
			t.Errorf("message %d role = %q, want %q", i, got, want)
		}
	}

	calls := msgs[2].Get("tool_calls").Array()
	if len(calls) != 2 {
		t.Fatalf("tool_calls = %d, want 2", len(calls))
	}
	if calls[0].Get("id").String() != "call_1" ||
		calls[0].Get("function.name").String() != "get_weather" ||
		calls[0].Get("function.arguments").String() != `{"location":"Paris"}` {
		t.Errorf("first call = %s", calls[0].Raw)
	}
	if msgs[4].Get("tool_call_id").String() != "call_2" {
		t.Errorf("tool message = %s", msgs[4].Raw)
	}
}

func TestConvertToAnthropicMessages(t *testing.T) {
	msgs, system := convertToAnthropicMessages(toolRoundTrip())

	if len(system) != 1 || system[0].Text != "You are helpful." {
		t.Errorf("system blocks = %+v", system)
	}

	// user, assistant(tool_use x2), user(tool_result x2), assistant
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(msgs))
	}

	raw, err := json.Marshal(msgs)
	if err != nil {
		t.Fatal(err)
	}
	parsed := gjson.ParseBytes(raw).Array()

	if parsed[1].Get("role").String() != "assistant" || len(parsed[1].Get("content").Array()) != 2 {
		t.Errorf("assistant tool use message = %s", parsed[1].Raw)
	}
	if parsed[1].Get("content.0.type").String() != "tool_use" || parsed[1].Get("content.0.input.location").String() != "Paris" {
		t.Errorf("tool_use block = %s", parsed[1].Get("content.0").Raw)
	}

	results := parsed[2].Get("content").Array()
	if parsed[2].Get("role").String() != "user" || len(results) != 2 {
		t.Fatalf("tool results message = %s", parsed[2].Raw)
	}
	if results[0].Get("type").String() != "tool_result" || results[1].Get("tool_use_id").String() != "call_2" {
		t.Errorf("tool_result blocks = %s", parsed[2].Get("content").Raw)
	}
}

func TestConvertToAnthropicMessagesSkipsEmpty(t *testing.T) {
	msgs, _ := convertToAnthropicMessages([]model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: ""},
		{Role: model.RoleUser, Content: ""},
	})
	if len(msgs) != 1 {
		t.Errorf("messages = %d, want 1", len(msgs))
	}
}

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"object", `{"a":1,"b":"x"}`, 2},
		{"empty string", "", 0},
		{"null", "null", 0},
		{"invalid", "{", 0},
		{"array", "[1]", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToolArguments(tt.in)
			if got == nil {
				t.Fatal("ParseToolArguments returned nil map")
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}
