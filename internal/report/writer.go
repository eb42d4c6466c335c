package report

import (
	"io"

	"github.com/nao1215/irreview/internal/model"
)

// Review is the content rendered by writers: the page store plus the
// results resolved from it.
type Review struct {
	// SourceFile is the base name of the input PDF.
	SourceFile string

	// DocID identifies the document by content hash.
	DocID string

	Pages    *model.PageStore
	Document *model.DocumentInfo
	Common   *model.CommonInfo
	Analyses *model.AnalysisResult
}

// NewReview collects the renderable parts of a run.
func NewReview(run *model.Run) *Review {
	return &Review{
		SourceFile: run.Meta.SourceFile,
		DocID:      run.Meta.DocID,
		Pages:      run.Pages,
		Document:   run.Document,
		Common:     run.Common,
		Analyses:   run.Analyses,
	}
}

// Writer renders a review to its configured destination.
// It returns the number of bytes written.
type Writer interface {
	Write(r *Review) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
