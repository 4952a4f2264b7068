// Package output renders CLI results: styled when stdout is a terminal,
// plain when piped.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Muted violet palette.
const (
	colorAccent = "135" // headings, scores
	colorGray   = "245" // secondary text
	colorRed    = "196"
	colorYellow = "220"
)

// Styles holds the render styles for one writer.
type Styles struct {
	Title   lipgloss.Style
	Score   lipgloss.Style
	Dim     lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

func colorStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
	}
}

func plainStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle(),
		Score:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
	}
}

// Writer renders formatted output to one destination.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a writer, enabling color only when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	useColor := false
	if f, ok := out.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if os.Getenv("NO_COLOR") != "" {
		useColor = false
	}
	return NewWithColor(out, useColor)
}

// NewWithColor creates a writer with an explicit color choice.
func NewWithColor(out io.Writer, useColor bool) *Writer {
	styles := plainStyles()
	if useColor {
		styles = colorStyles()
	}
	return &Writer{out: out, styles: styles}
}

// Printf writes plain formatted text. Write errors on console output are
// intentionally ignored.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format, args...)
}

// Heading writes an emphasized line.
func (w *Writer) Heading(text string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Title.Render(text))
}

// Result renders one search hit: rank, title, score, then a snippet.
func (w *Writer) Result(rank int, title string, score float64, snippet string) {
	if title == "" {
		title = "(untitled)"
	}
	_, _ = fmt.Fprintf(w.out, "%2d. %s  %s\n",
		rank,
		w.styles.Title.Render(title),
		w.styles.Score.Render(fmt.Sprintf("(%.3f)", score)))
	if snippet != "" {
		for _, line := range strings.Split(strings.TrimSpace(snippet), "\n") {
			_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Dim.Render(line))
		}
	}
}

// Field renders an aligned "label: value" row for stats output.
func (w *Writer) Field(label, value string) {
	_, _ = fmt.Fprintf(w.out, "  %-18s %s\n", w.styles.Dim.Render(label), value)
}

// Error writes an error line.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Error.Render("error: "+msg))
}

// Warning writes a warning line.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Warning.Render("warning: "+msg))
}

// Timing writes a dim elapsed-time footer.
func (w *Writer) Timing(d time.Duration) {
	_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(fmt.Sprintf("took %s", d.Round(time.Millisecond))))
}
