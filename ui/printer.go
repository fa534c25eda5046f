package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"mcpchat/model"
)

const maxArgumentWidth = 60

// Printer writes an orchestration event stream to a terminal. Content is
// written as it arrives unless Markdown is set, in which case each run of
// content is buffered and rendered once the model moves on to tools or
// finishes.
type Printer struct {
	w        io.Writer
	width    int
	markdown bool

	pending   strings.Builder
	inContent bool
	err       error
}

// NewPrinter creates a printer for a terminal of the given width.
func NewPrinter(w io.Writer, width int, markdown bool) *Printer {
	if width <= 0 {
		width = 80
	}
	return &Printer{w: w, width: width, markdown: markdown}
}

// Handle prints one event. The first write error is returned and sticks.
func (p *Printer) Handle(ev model.Event) error {
	if p.err != nil {
		return p.err
	}

	switch ev.Type {
	case model.EventContent:
		p.content(ev.Content)
	case model.EventToolExecutionStart:
		p.endContent()
		p.printf("%s %s%s\n",
			ToolStyle.Render("⚙"),
			ToolStyle.Render(ev.ToolName),
			DimStyle.Render("("+Truncate(compact(ev.Arguments), maxArgumentWidth)+")"))
	case model.EventChartData:
		if ev.Chart != nil {
			p.printf("  %s %s %s\n",
				ChartStyle.Render("▤"),
				ChartStyle.Render(ev.Chart.Title),
				DimStyle.Render(fmt.Sprintf("[%s, %d points, %s]", ev.Chart.Kind, len(ev.Chart.Rows), strings.Join(ev.Chart.YKeys, ", "))))
		}
	case model.EventToolExecutionResult:
		if ev.IsError {
			p.printf("  %s %s\n", ErrorStyle.Render("✗"), DimStyle.Render(Truncate(firstLine(ev.Result), p.width-4)))
		} else {
			p.printf("  %s %s\n", SuccessStyle.Render("✓"), DimStyle.Render(Truncate(firstLine(ev.Result), p.width-4)))
		}
	case model.EventError:
		p.endContent()
		p.printf("%s %s\n", ErrorStyle.Render("error:"), ev.Error)
	case model.EventDone:
		p.endContent()
	}
	return p.err
}

// Stream prints every event until the channel closes and returns the final
// history carried by the done event.
func (p *Printer) Stream(events <-chan model.Event) ([]model.Message, error) {
	var history []model.Message
	for ev := range events {
		if ev.Type == model.EventDone {
			history = ev.Messages
		}
		if err := p.Handle(ev); err != nil {
			for range events {
			}
			return history, err
		}
	}
	return history, nil
}

func (p *Printer) content(text string) {
	if p.markdown {
		p.pending.WriteString(text)
		return
	}
	if !p.inContent {
		p.inContent = true
		p.printf("%s ", AssistantStyle.Render("Assistant:"))
	}
	p.printf("%s", text)
}

func (p *Printer) endContent() {
	if p.markdown {
		text := strings.TrimSpace(p.pending.String())
		p.pending.Reset()
		if text != "" {
			p.printf("%s\n%s\n", AssistantStyle.Render("Assistant:"), RenderMarkdown(text, p.width))
		}
		return
	}
	if p.inContent {
		p.inContent = false
		p.printf("\n")
	}
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// Truncate shortens s to at most width terminal cells, marking the cut
// with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// PadRight pads s with spaces to width terminal cells.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
