package model

// Orchestration event types, forwarded to clients verbatim.
const (
	EventContent             = "content"
	EventToolExecutionStart  = "tool_execution_start"
	EventToolExecutionResult = "tool_execution_result"
	EventChartData           = "chart_data"
	EventDone                = "done"
	EventError               = "error"
)

// Event is one record of the ordered stream produced by an orchestration call.
type Event struct {
	Type       string           `json:"type"`
	Content    string           `json:"content,omitempty"`
	ToolCallID string           `json:"toolCallId,omitempty"`
	ToolName   string           `json:"toolName,omitempty"`
	Arguments  string           `json:"arguments,omitempty"`
	Result     string           `json:"result,omitempty"`
	IsError    bool             `json:"isError,omitempty"`
	Chart      *ChartDescriptor `json:"chart,omitempty"`
	Error      string           `json:"error,omitempty"`
	Messages   []Message        `json:"messages,omitempty"` // final history, set on done
}
