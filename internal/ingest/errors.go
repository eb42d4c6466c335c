package ingest

import "errors"

var (
	// ErrCorruptPDF is returned when the input cannot be read as a PDF.
	// It aborts the run.
	ErrCorruptPDF = errors.New("input is not a readable PDF")

	// ErrNoPages is returned for a PDF with zero pages.
	ErrNoPages = errors.New("PDF has no pages")

	// ErrOutputNotWritable is returned when the output layout cannot be
	// created or written. It aborts the run.
	ErrOutputNotWritable = errors.New("output directory is not writable")

	// ErrNoTextLayer is returned by text extractors for a page without a
	// usable text layer.
	ErrNoTextLayer = errors.New("page has no text layer")
)
