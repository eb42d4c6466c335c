package report

import (
	"bytes"
	"encoding/json"
	"io"
)

// JSONWriter writes values as JSON. The structured artifacts under
// extracted/ are written with it.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the common fields and analysis results of a review as one
// JSON object.
func (w *JSONWriter) Write(r *Review) (int, error) {
	return w.WriteValue(struct {
		SourceFile string      `json:"source_file"`
		DocID      string      `json:"doc_id"`
		PageCount  int         `json:"page_count"`
		Common     interface{} `json:"common"`
		Analyses   interface{} `json:"analyses"`
	}{
		SourceFile: r.SourceFile,
		DocID:      r.DocID,
		PageCount:  r.Pages.Len(),
		Common:     r.Common,
		Analyses:   r.Analyses,
	})
}

// WriteValue marshals v and writes it followed by a newline. HTML
// characters are not escaped, so Japanese text and "<" stay readable.
func (w *JSONWriter) WriteValue(v interface{}) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.indent {
		enc.SetIndent(w.indentPrefix, w.indentString)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
