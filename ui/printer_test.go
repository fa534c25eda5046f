package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"mcpchat/model"
)

func TestPrinterStreamsContent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, 80, false)

	events := make(chan model.Event, 8)
	events <- model.Event{Type: model.EventContent, Content: "Let me "}
	events <- model.Event{Type: model.EventContent, Content: "check."}
	events <- model.Event{Type: model.EventToolExecutionStart, ToolName: "get_steps", Arguments: "{\n  \"days\": 7\n}"}
	events <- model.Event{Type: model.EventChartData, Chart: &model.ChartDescriptor{
		Title: "Steps Over Time", Kind: model.ChartArea, YKeys: []string{"steps"},
		Rows: []map[string]any{{"date": "2024-01-01", "steps": 1}, {"date": "2024-01-02", "steps": 2}},
	}}
	events <- model.Event{Type: model.EventToolExecutionResult, ToolName: "get_steps", Result: "[...]\nmore"}
	events <- model.Event{Type: model.EventContent, Content: "Done."}
	events <- model.Event{Type: model.EventDone, Messages: []model.Message{{Role: model.RoleUser}}}
	close(events)

	history, err := p.Stream(events)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history = %v", history)
	}

	out := buf.String()
	for _, want := range []string{
		"Let me check.\n",
		"get_steps",
		`({ "days": 7 })`,
		"Steps Over Time",
		"area, 2 points, steps",
		"[...] …",
		"Done.\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinterMarkdownBuffersContent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, 80, true)

	_ = p.Handle(model.Event{Type: model.EventContent, Content: "See [the docs](https://example.com/docs) "})
	if buf.Len() != 0 {
		t.Fatalf("content printed before the turn ended: %q", buf.String())
	}
	_ = p.Handle(model.Event{Type: model.EventContent, Content: "for details."})
	if err := p.Handle(model.Event{Type: model.EventDone}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "https://example.com/docs") || strings.Contains(out, "[the docs]") {
		t.Errorf("link not flattened:\n%s", out)
	}
	if !strings.Contains(out, "details") {
		t.Errorf("missing content:\n%s", out)
	}
}

func TestPrinterErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, 80, false)
	_ = p.Handle(model.Event{Type: model.EventToolExecutionResult, IsError: true, Result: "Tool 'x' not found"})
	_ = p.Handle(model.Event{Type: model.EventError, Error: "upstream unavailable"})

	out := buf.String()
	if !strings.Contains(out, "✗") || !strings.Contains(out, "not found") {
		t.Errorf("tool error not shown:\n%s", out)
	}
	if !strings.Contains(out, "upstream unavailable") {
		t.Errorf("error not shown:\n%s", out)
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("broken pipe")
}

func TestPrinterStopsOnWriteError(t *testing.T) {
	w := &failingWriter{}
	p := NewPrinter(w, 80, false)

	events := make(chan model.Event, 3)
	events <- model.Event{Type: model.EventContent, Content: "a"}
	events <- model.Event{Type: model.EventContent, Content: "b"}
	events <- model.Event{Type: model.EventDone}
	close(events)

	if _, err := p.Stream(events); err == nil {
		t.Fatal("expected write error")
	}
	if w.n != 1 {
		t.Errorf("writes after failure: %d", w.n)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer string", 8, "a longe…"},
		{"日本語テキスト", 7, "日本語…"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("# Weather\n\nIt is **sunny** in Paris.", 60)
	if !strings.Contains(out, "Weather") || !strings.Contains(out, "sunny") {
		t.Errorf("rendered = %q", out)
	}
	if strings.HasSuffix(out, "\n") {
		t.Error("trailing newline not trimmed")
	}
}
