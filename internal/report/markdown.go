package report

import (
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/irreview/internal/model"
)

// DefaultImagePrefix is the path from outputs/ back to the output root.
const DefaultImagePrefix = "../"

// emptyNotes are the statements written for modules without findings.
var emptyNotes = map[model.ModuleName]string{
	model.ModuleKPISummary:     "No KPI figures found.",
	model.ModuleSegmentHeading: "No headings found.",
	model.ModuleRisk:           "No risk statements found.",
}

// NotFoundMarker is written in place of the value of a null field.
const NotFoundMarker = "_not found_"

// MarkdownWriter renders the review document. The output depends only on
// the review content, so rendering the same review twice yields the same
// bytes.
type MarkdownWriter struct {
	baseWriter

	imagePrefix string
	chart       bool
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithImagePrefix sets the prefix joined with "images/pNNN.png" to form
// image links.
func WithImagePrefix(prefix string) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.imagePrefix = prefix
	}
}

// WithFindingChart adds a mermaid pie chart of findings per module.
func WithFindingChart(enabled bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.chart = enabled
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter:  newBaseWriter(output),
		imagePrefix: DefaultImagePrefix,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders the review.
func (w *MarkdownWriter) Write(r *Review) (int, error) {
	md := markdown.NewMarkdown(w.output)
	embedded := map[int]bool{}

	w.writeHeader(md, r)
	w.writeDegraded(md, r)
	w.writeCommon(md, r, embedded)
	if w.chart {
		w.writeChart(md, r)
	}
	for _, m := range r.Analyses.Modules() {
		w.writeModule(md, m, r.Analyses.Findings(m), embedded)
	}

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *Review) {
	title := r.SourceFile
	if !r.Document.IsEmpty() && r.Document.Title != "" {
		title = r.Document.Title
	}
	md.H1("IR Review: " + escape(title))
	md.PlainText("")

	rows := [][]string{
		{"Source file", markdown.Code(r.SourceFile)},
		{"Document ID", markdown.Code(r.DocID)},
		{"Pages", strconv.Itoa(r.Pages.Len())},
	}
	if !r.Document.IsEmpty() {
		for _, kv := range [][2]string{
			{"PDF title", r.Document.Title},
			{"Author", r.Document.Author},
			{"Producer", r.Document.Producer},
		} {
			if kv[1] != "" {
				rows = append(rows, []string{kv[0], escape(kv[1])})
			}
		}
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
}

func (w *MarkdownWriter) writeDegraded(md *markdown.Markdown, r *Review) {
	degraded := r.Pages.DegradedPages()
	if len(degraded) == 0 {
		return
	}
	parts := make([]string, 0, len(degraded))
	for _, p := range degraded {
		var what []string
		if p.Method == model.MethodNone {
			what = append(what, "text")
		}
		if p.ImageDegraded {
			what = append(what, "image")
		}
		parts = append(parts, fmt.Sprintf("page %d (%s)", p.Index, strings.Join(what, ", ")))
	}
	md.Warningf("%d page(s) could not be fully extracted: %s. Findings on these pages may be missing.",
		len(degraded), strings.Join(parts, "; "))
	md.PlainText("")
}

func (w *MarkdownWriter) writeCommon(md *markdown.Markdown, r *Review, embedded map[int]bool) {
	md.H2("Common Information")
	md.PlainText("")
	for _, f := range r.Common.Fields() {
		label := markdown.Bold(f.Name.Label())
		if f.IsNull() {
			md.PlainTextf("- %s: %s", label, NotFoundMarker)
			continue
		}
		md.PlainTextf("- %s: %s %s", label, escape(f.Value.Display()), f.Citation.Marker())
		w.embedImages(md, *f.Citation, embedded)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeModule(md *markdown.Markdown, m model.ModuleName, findings []model.Finding, embedded map[int]bool) {
	md.H2(m.Title())
	md.PlainText("")
	if len(findings) == 0 {
		note, ok := emptyNotes[m]
		if !ok {
			note = "No findings."
		}
		md.PlainText(note)
		md.PlainText("")
		return
	}
	for _, f := range findings {
		md.PlainTextf("- %s: %s %s", markdown.Bold(escape(f.Label)), escape(f.Detail), f.Citation.Marker())
		w.embedImages(md, f.Citation, embedded)
	}
	md.PlainText("")
}

// embedImages writes, right below the citing line, the image of every cited
// page that has not been shown yet.
func (w *MarkdownWriter) embedImages(md *markdown.Markdown, c model.Citation, embedded map[int]bool) {
	for _, p := range c.PageIndices {
		if embedded[p] {
			continue
		}
		embedded[p] = true
		md.PlainText("  " + markdown.Image(fmt.Sprintf("p. %d", p), w.ImageLink(p)))
	}
}

// ImageLink returns the link used for the image of a page.
func (w *MarkdownWriter) ImageLink(page int) string {
	if w.imagePrefix == "" {
		return model.ImageRef(page)
	}
	return path.Join(w.imagePrefix, model.ImageRef(page))
}

func (w *MarkdownWriter) writeChart(md *markdown.Markdown, r *Review) {
	total := 0
	for _, m := range r.Analyses.Modules() {
		total += r.Analyses.Count(m)
	}
	if total == 0 {
		return
	}
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Findings per module"),
		piechart.WithShowData(true),
	)
	for _, m := range r.Analyses.Modules() {
		if n := r.Analyses.Count(m); n > 0 {
			chart.LabelAndIntValue(m.Title(), uint64(n))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"|", `\|`,
)

// escape neutralizes Markdown syntax in extracted text.
func escape(s string) string {
	return markdownEscaper.Replace(strings.ReplaceAll(s, "\n", " "))
}
