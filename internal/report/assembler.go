package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/irreview/internal/model"
)

var (
	// ErrIncompleteRun is returned when the run lacks pages or results.
	ErrIncompleteRun = errors.New("run has no pages or analysis results")

	// ErrOutputNotWritable is returned when an artifact cannot be written.
	ErrOutputNotWritable = errors.New("output directory is not writable")
)

// Assembler writes the structured artifacts and the review of a run.
type Assembler struct {
	logger     *slog.Logger
	validator  *SchemaValidator
	checker    *CitationChecker
	exportXLSX bool
	chart      bool
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithAssemblerLogger sets the logger.
func WithAssemblerLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithXLSX enables the workbook export.
func WithXLSX(enabled bool) AssemblerOption {
	return func(a *Assembler) {
		a.exportXLSX = enabled
	}
}

// WithChart adds the findings chart to the review.
func WithChart(enabled bool) AssemblerOption {
	return func(a *Assembler) {
		a.chart = enabled
	}
}

// NewAssembler creates an Assembler. It fails only if the embedded schemas
// do not compile.
func NewAssembler(opts ...AssemblerOption) (*Assembler, error) {
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, err
	}
	a := &Assembler{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		validator: validator,
		checker:   NewCitationChecker(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Output lists the files written by Assemble.
type Output struct {
	CommonJSON   string
	AnalysesJSON string
	Review       string
	XLSX         string
	Citations    *CitationReport
}

// Assemble writes extracted/common.json, extracted/analyses.json and
// outputs/review.md (plus outputs/review.xlsx when enabled).
// Invariant, schema and citation problems are recorded in the run log and
// do not stop assembly. Failing to write a file does.
func (a *Assembler) Assemble(ctx context.Context, run *model.Run) (*Output, error) {
	if run.Pages == nil || run.Common == nil || run.Analyses == nil {
		return nil, ErrIncompleteRun
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, err := range []error{run.Common.Validate(run.Pages), run.Analyses.Validate(run.Pages)} {
		if err != nil {
			a.problem(run, err.Error())
		}
	}

	layout := run.Layout
	out := &Output{
		CommonJSON:   layout.CommonJSON(),
		AnalysesJSON: layout.AnalysesJSON(),
		Review:       layout.ReviewMarkdown(),
	}

	if err := a.writeJSON(run, out.CommonJSON, SchemaCommon, run.Common); err != nil {
		return nil, err
	}
	if err := a.writeJSON(run, out.AnalysesJSON, SchemaAnalyses, run.Analyses); err != nil {
		return nil, err
	}

	review := NewReview(run)
	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf, WithFindingChart(a.chart)).Write(review); err != nil {
		return nil, fmt.Errorf("failed to render review: %w", err)
	}
	out.Citations = a.checker.Check(buf.Bytes(), run.Pages)
	for _, p := range out.Citations.Problems {
		a.problem(run, p)
	}
	if err := os.WriteFile(out.Review, buf.Bytes(), 0o600); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputNotWritable, err)
	}
	a.logger.Info("review written", "path", out.Review, "cited_pages", len(out.Citations.Cited))

	if a.exportXLSX {
		out.XLSX = layout.ReviewXLSX()
		if err := WriteXLSX(out.XLSX, review); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOutputNotWritable, err)
		}
	}
	return out, nil
}

func (a *Assembler) writeJSON(run *model.Run, path, schema string, v interface{}) error {
	var buf bytes.Buffer
	if _, err := NewJSONWriter(&buf, WithPrettyPrint()).WriteValue(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := a.validator.Validate(schema, buf.Bytes()); err != nil {
		a.problem(run, err.Error())
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputNotWritable, err)
	}
	return nil
}

func (a *Assembler) problem(run *model.Run, msg string) {
	a.logger.Warn("validation problem", "problem", msg)
	run.RecordValidation(msg)
}
