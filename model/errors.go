package model

import (
	"errors"
	"strings"
)

// Error taxonomy for an orchestration call. Tool-level errors are recovered
// into conversation content; the others end the call.
var (
	ErrUpstreamUnavailable  = errors.New("model provider unavailable")
	ErrUnknownTool          = errors.New("unknown tool")
	ErrInvalidArguments     = errors.New("invalid tool arguments")
	ErrToolExecutionTimeout = errors.New("tool execution timed out")
	ErrMalformedToolResult  = errors.New("malformed tool result")
	ErrIterationCapExceeded = errors.New("iteration cap exceeded")
)

// ToolError is a failure raised inside a single tool execution.
type ToolError struct {
	Kind     error // one of the tool-level sentinels above, nil for provider failures
	ToolName string
	Message  string
	Err      error
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.ToolName)
	b.WriteString(": ")
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	default:
		b.WriteString("execution failed")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause to errors.Is.
func (e *ToolError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsToolLevel reports whether err should be turned into a tool-role message
// instead of aborting the call.
func IsToolLevel(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}
