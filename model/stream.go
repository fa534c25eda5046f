package model

// Finish reasons reported at the end of a model turn.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// StreamEvent is one event of a streamed model turn. The set of
// implementations is closed: ContentDelta, ToolCallDelta and FinishEvent.
type StreamEvent interface {
	streamEvent()
}

// ContentDelta carries a fragment of assistant text.
type ContentDelta struct {
	Text string
}

// ToolCallDelta carries a fragment of a tool call keyed by its position in
// the turn. Empty fields mean "not present in this fragment".
type ToolCallDelta struct {
	Index     int
	ID        string
	Type      string
	Name      string
	Arguments string
}

// FinishEvent carries the provider-reported finish reason.
type FinishEvent struct {
	Reason string
}

func (ContentDelta) streamEvent()  {}
func (ToolCallDelta) streamEvent() {}
func (FinishEvent) streamEvent()   {}
