package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the lipgloss styles of one renderer. Colours are dropped
// automatically when the renderer's output is not a terminal.
type styles struct {
	title    lipgloss.Style
	code     lipgloss.Style
	location lipgloss.Style
	gutter   lipgloss.Style
	marker   lipgloss.Style
	label    lipgloss.Style
	muted    lipgloss.Style
	link     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		code:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		location: r.NewStyle().Foreground(lipgloss.Color("36")),
		gutter:   r.NewStyle().Foreground(lipgloss.Color("240")),
		marker:   r.NewStyle().Foreground(lipgloss.Color("9")),
		label:    r.NewStyle().Foreground(lipgloss.Color("36")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("245")),
		link:     r.NewStyle().Underline(true).Foreground(lipgloss.Color("33")),
	}
}

// Format renders the error for a terminal on stderr.
func (e *AtomError) Format() string {
	return e.Render(lipgloss.NewRenderer(os.Stderr))
}

// Render renders the error with the styles of r.
func (e *AtomError) Render(r *lipgloss.Renderer) string {
	st := newStyles(r)
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(st.title.Render("ERROR"))
		b.WriteString(" ")
		b.WriteString(st.code.Render(e.Code + ":"))
		b.WriteString(" ")
	} else {
		b.WriteString(st.title.Render("ERROR:"))
		b.WriteString(" ")
	}
	b.WriteString(e.Message)
	b.WriteString("\n\n")

	if e.Location != nil {
		b.WriteString("  " + st.location.Render(e.Location.String()) + "\n\n")
		if len(e.Context) > 0 {
			e.renderContext(&b, st)
		}
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  " + st.label.Render("Hint:") + " " + e.Suggestion + "\n\n")
	}

	if e.Example != "" {
		b.WriteString("  " + st.label.Render("Example:") + "\n")
		for _, line := range strings.Split(e.Example, "\n") {
			b.WriteString("    " + line + "\n")
		}
		b.WriteString("\n")
	}

	if e.DocURL != "" {
		b.WriteString("  " + st.muted.Render("Learn more:") + " " + st.link.Render(e.DocURL) + "\n")
	}

	return b.String()
}

// renderContext writes the source lines around the location, marking the
// failing line and column.
func (e *AtomError) renderContext(b *strings.Builder, st styles) {
	bar := st.gutter.Render(" │ ")
	start := e.Location.Line - len(e.Context)/2
	for i, line := range e.Context {
		num := start + i
		if num != e.Location.Line {
			fmt.Fprintf(b, "    %4d%s%s\n", num, bar, line)
			continue
		}
		fmt.Fprintf(b, "  %s%4d%s%s\n", st.marker.Render("→ "), num, bar, line)
		if e.Location.Column > 0 {
			fmt.Fprintf(b, "       %s%s%s\n", st.gutter.Render("│ "),
				strings.Repeat(" ", e.Location.Column-1), st.marker.Render("^"))
		}
	}
	b.WriteString("\n")
}

// jsonError is the machine-readable form of an AtomError.
type jsonError struct {
	Code       string        `json:"code,omitempty"`
	Category   Category      `json:"category"`
	Message    string        `json:"message"`
	Detail     string        `json:"detail,omitempty"`
	Cause      string        `json:"cause,omitempty"`
	Location   *jsonLocation `json:"location,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	DocURL     string        `json:"docUrl,omitempty"`
}

type jsonLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// FormatJSON returns the error as a single-line JSON object.
func (e *AtomError) FormatJSON() string {
	out := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
		DocURL:     e.DocURL,
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	if e.Location != nil {
		out.Location = &jsonLocation{File: e.Location.File, Line: e.Location.Line, Column: e.Location.Column}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Message)
	}
	return string(data)
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// Fprint writes err to w, formatted for a terminal when w is one. Errors
// without a registered code are printed with a plain ERROR prefix.
func Fprint(w io.Writer, err error) {
	if err == nil {
		return
	}
	r := lipgloss.NewRenderer(w)
	if ae := FromError(err, ""); ae.Code != "" || ae.Wrapped == nil {
		fmt.Fprint(w, ae.Render(r))
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", newStyles(r).title.Render("ERROR:"), err.Error())
}

// FprintJSON writes err to w as one JSON line. Errors without a registered
// code are reported in the CLI category.
func FprintJSON(w io.Writer, err error) {
	if err == nil {
		return
	}
	ae := FromError(err, "")
	if ae.Code == "" && ae.Wrapped != nil {
		ae = Newf(CategoryCLI, "%s", err.Error())
	}
	fmt.Fprintln(w, ae.FormatJSON())
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}
