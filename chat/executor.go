package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"mcpchat/model"
)

// DefaultToolTimeout bounds a single tool execution.
const DefaultToolTimeout = 30 * time.Second

// recognizedContentTypes are the MCP content item tags a result may carry.
var recognizedContentTypes = map[string]bool{
	"text":          true,
	"image":         true,
	"audio":         true,
	"resource":      true,
	"resource_link": true,
}

// Executor runs one tool call against the provider that hosts it. It holds
// no per-call state and may be shared by concurrent conversations.
type Executor struct {
	caller   model.ToolCaller
	timeout  time.Duration
	validate bool
	logger   *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTimeout overrides DefaultToolTimeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithSchemaValidation validates arguments against the tool's input schema
// before dispatch.
func WithSchemaValidation(enabled bool) ExecutorOption {
	return func(e *Executor) { e.validate = enabled }
}

// WithLogger sets the executor logger.
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor dispatching through caller.
func NewExecutor(caller model.ToolCaller, opts ...ExecutorOption) *Executor {
	e := &Executor{
		caller:  caller,
		timeout: DefaultToolTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the per-call time bound.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute resolves, dispatches and normalizes one tool call.
//
// The returned result is always usable as conversation content. When the
// call failed at the tool level the result is error-flagged and the error is
// a *model.ToolError. Any other error (caller cancellation) means the result
// must be discarded.
func (e *Executor) Execute(ctx context.Context, call model.ToolCall, knownTools []model.ToolDescriptor) (model.ToolResult, error) {
	tool, ok := model.FindTool(knownTools, call.Name)
	if !ok {
		return e.fail(&model.ToolError{
			Kind:     model.ErrUnknownTool,
			ToolName: call.Name,
			Message:  unknownToolMessage(call.Name, knownTools),
		})
	}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return e.fail(&model.ToolError{
			Kind:     model.ErrInvalidArguments,
			ToolName: call.Name,
			Message:  "invalid arguments",
			Err:      err,
		})
	}

	if e.validate {
		if err := e.validateArguments(tool, args); err != nil {
			return e.fail(&model.ToolError{
				Kind:     model.ErrInvalidArguments,
				ToolName: call.Name,
				Message:  "arguments do not match input schema",
				Err:      err,
			})
		}
	}

	e.logger.Debug("executing tool",
		zap.String("tool", tool.Name),
		zap.String("provider", tool.ProviderID),
		zap.String("call_id", call.ID))

	raw, err := e.dispatch(ctx, tool, args)
	if err != nil {
		var te *model.ToolError
		if errors.As(err, &te) {
			return e.fail(te)
		}
		return model.ToolResult{}, err
	}

	return e.normalize(tool.Name, raw)
}

type dispatchResult struct {
	raw json.RawMessage
	err error
}

// dispatch races the provider call against the timeout. The provider call
// runs on a context detached from caller cancellation so an in-flight call
// can finish; its deadline is kept finite so an abandoned call still ends.
func (e *Executor) dispatch(ctx context.Context, tool model.ToolDescriptor, args map[string]any) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*e.timeout)
	done := make(chan dispatchResult, 1)
	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("tool call panicked",
					zap.String("tool", tool.Name),
					zap.Any("panic", r),
					zap.Stack("stack"))
				done <- dispatchResult{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		raw, err := e.caller.CallTool(callCtx, tool.ProviderID, tool.Name, args)
		done <- dispatchResult{raw: raw, err: err}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, &model.ToolError{ToolName: tool.Name, Message: "execution failed", Err: res.err}
		}
		return res.raw, nil
	case <-timer.C:
		return nil, &model.ToolError{
			Kind:     model.ErrToolExecutionTimeout,
			ToolName: tool.Name,
			Message:  fmt.Sprintf("timed out after %s", e.timeout),
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// normalize validates the shape of a provider result document.
func (e *Executor) normalize(toolName string, raw json.RawMessage) (model.ToolResult, error) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return e.fail(&model.ToolError{
			Kind:     model.ErrMalformedToolResult,
			ToolName: toolName,
			Message:  "tool returned a result that is not a JSON object",
		})
	}

	doc := gjson.ParseBytes(raw)
	isError := doc.Get("isError").Bool()
	content := doc.Get("content")
	switch {
	case !content.Exists():
		return e.fail(&model.ToolError{
			Kind:     model.ErrMalformedToolResult,
			ToolName: toolName,
			Message:  "tool result has no content field",
		})
	case !content.IsArray():
		return e.fail(&model.ToolError{
			Kind:     model.ErrMalformedToolResult,
			ToolName: toolName,
			Message:  "tool result content is not a list",
		})
	}

	entries := content.Array()
	if len(entries) == 0 {
		text := "Tool returned no content."
		if isError {
			text = "Tool reported an error without details."
		}
		return model.ToolResult{Content: []model.ContentItem{model.TextItem(text)}, IsError: isError}, nil
	}

	items := make([]model.ContentItem, 0, len(entries))
	for _, entry := range entries {
		typ := entry.Get("type").String()
		if !entry.IsObject() || !recognizedContentTypes[typ] {
			continue
		}
		if typ == model.ContentText {
			items = append(items, model.TextItem(entry.Get("text").String()))
			continue
		}
		items = append(items, model.ContentItem{Type: model.ContentOther, Data: json.RawMessage(entry.Raw)})
	}

	if len(items) == 0 {
		return e.fail(&model.ToolError{
			Kind:     model.ErrMalformedToolResult,
			ToolName: toolName,
			Message:  fmt.Sprintf("all %d content items were invalid", len(entries)),
		})
	}
	if dropped := len(entries) - len(items); dropped > 0 {
		e.logger.Warn("dropped untyped tool content items",
			zap.String("tool", toolName),
			zap.Int("dropped", dropped))
	}

	return model.ToolResult{Content: items, IsError: isError}, nil
}

// fail logs a tool-level failure and pairs it with its conversation form.
func (e *Executor) fail(te *model.ToolError) (model.ToolResult, error) {
	e.logger.Warn("tool execution failed",
		zap.String("tool", te.ToolName),
		zap.Error(te))
	return ToolErrorResult(te), te
}

// ToolErrorResult renders a tool-level failure as an error-flagged result the
// model can read and react to.
func ToolErrorResult(err error) model.ToolResult {
	return model.ErrorResult("Error executing " + err.Error())
}

// parseArguments decodes the model-produced argument text. An empty string
// means no arguments.
func parseArguments(text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(text), &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func (e *Executor) validateArguments(tool model.ToolDescriptor, args map[string]any) error {
	if len(tool.InputSchema) == 0 {
		return nil
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", bytes.NewReader(tool.InputSchema)); err != nil {
		e.logger.Warn("skipping argument validation", zap.String("tool", tool.Name), zap.Error(err))
		return nil
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		e.logger.Warn("skipping argument validation", zap.String("tool", tool.Name), zap.Error(err))
		return nil
	}
	return schema.Validate(map[string]any(args))
}

func unknownToolMessage(name string, tools []model.ToolDescriptor) string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}

	msg := "no such tool is available"
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return msg
	}

	var suggestions []string
	for i, m := range matches {
		if i == 3 {
			break
		}
		suggestions = append(suggestions, m.Str)
	}
	return msg + " (did you mean: " + strings.Join(suggestions, ", ") + "?)"
}
