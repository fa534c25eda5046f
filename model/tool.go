package model

import "encoding/json"

// Content item types.
const (
	ContentText  = "text"
	ContentOther = "other"
)

// ToolDescriptor describes a tool offered by a provider. The set passed to an
// orchestration call is read-only for the duration of that call.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	ProviderID  string          `json:"providerId"`
}

// ContentItem is either a text item or an opaque structured item.
type ContentItem struct {
	Type string          `json:"type"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TextItem builds a text content item.
func TextItem(text string) ContentItem {
	return ContentItem{Type: ContentText, Text: text}
}

// ToolResult is the normalized outcome of one tool execution. Content is never
// empty once it leaves the executor.
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError"`
}

// ErrorResult builds a single-item error result.
func ErrorResult(text string) ToolResult {
	return ToolResult{Content: []ContentItem{TextItem(text)}, IsError: true}
}

// FindTool looks a tool up by name.
func FindTool(tools []ToolDescriptor, name string) (ToolDescriptor, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDescriptor{}, false
}
