package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter prints a plain-text summary of a review for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints null fields and empty modules too.
	showEmpty bool

	// verbose lists every finding instead of counts only.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write prints the summary.
func (w *SimpleWriter) Write(r *Review) (int, error) {
	var sb strings.Builder
	rule := strings.Repeat("-", 60)

	fmt.Fprintf(&sb, "%s\n", rule)
	fmt.Fprintf(&sb, "Document:  %s (%s)\n", r.SourceFile, r.DocID)
	fmt.Fprintf(&sb, "Pages:     %d", r.Pages.Len())
	if d := len(r.Pages.DegradedPages()); d > 0 {
		fmt.Fprintf(&sb, " (%d degraded)", d)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s\n", rule)

	sb.WriteString("Common information\n")
	for _, f := range r.Common.Fields() {
		if f.IsNull() {
			if w.showEmpty {
				fmt.Fprintf(&sb, "  %-20s not found\n", f.Name.Label())
			}
			continue
		}
		fmt.Fprintf(&sb, "  %-20s %s %s\n", f.Name.Label(), f.Value.Display(), f.Citation.Marker())
	}

	sb.WriteString("Analyses\n")
	for _, m := range r.Analyses.Modules() {
		n := r.Analyses.Count(m)
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(&sb, "  %-20s %d finding(s)\n", m.Title(), n)
		if !w.verbose {
			continue
		}
		for _, f := range r.Analyses.Findings(m) {
			fmt.Fprintf(&sb, "    * %s: %s %s\n", f.Label, truncate(f.Detail, 60), f.Citation.Marker())
		}
	}
	fmt.Fprintf(&sb, "%s\n", rule)

	return w.output.Write([]byte(sb.String()))
}

// truncate shortens s to at most maxRunes runes with an ellipsis.
func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(r[:maxRunes])
	}
	return string(r[:maxRunes-3]) + "..."
}
