package model

import (
	"path/filepath"
	"time"
)

// DocumentInfo holds entries of the PDF Info dictionary.
// Any entry may be empty.
type DocumentInfo struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
}

// IsEmpty reports whether no Info entry was found.
func (d *DocumentInfo) IsEmpty() bool {
	return d == nil || *d == DocumentInfo{}
}

// Degradation stages.
const (
	StageText  = "text"
	StageImage = "image"
)

// DegradedPage records a per-page extraction failure.
type DegradedPage struct {
	Index  int    `json:"index"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// FieldStatus is the per-field entry of the run log.
type FieldStatus struct {
	Null bool `json:"null"`
}

// ModuleStatus is the per-module entry of the run log.
type ModuleStatus struct {
	Count int `json:"count"`
}

// Enhanced mode outcomes.
const (
	EnhancedOK     = "ok"
	EnhancedFailed = "failed"
)

// EnhancedStatus records what happened in the enrichment step.
type EnhancedStatus struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// RunMetadata is the content of logs/run.json.
type RunMetadata struct {
	RunID            string                  `json:"run_id"`
	DocID            string                  `json:"doc_id"`
	SourceFile       string                  `json:"source_file"`
	StartedAt        time.Time               `json:"started_at"`
	FinishedAt       time.Time               `json:"finished_at"`
	PageCount        int                     `json:"page_count"`
	Fields           map[string]FieldStatus  `json:"fields"`
	Modules          map[string]ModuleStatus `json:"modules"`
	DegradedPages    []DegradedPage          `json:"degraded_pages"`
	Steps            []string                `json:"steps"`
	ValidationErrors []string                `json:"validation_errors,omitempty"`
	Document         *DocumentInfo           `json:"document,omitempty"`
	Enhanced         *EnhancedStatus         `json:"enhanced,omitempty"`
	Error            string                  `json:"error,omitempty"`
}

// Layout resolves the fixed output directory structure under Root.
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Root: dir}
}

// Dirs returns every directory the layout needs, root first.
func (l Layout) Dirs() []string {
	return []string{l.Root, l.ImagesDir(), l.ExtractedDir(), l.OutputsDir(), l.LogsDir()}
}

// SourcePDF is the copy of the input document.
func (l Layout) SourcePDF() string { return filepath.Join(l.Root, "source.pdf") }

// ImagesDir holds one rendered image per page.
func (l Layout) ImagesDir() string { return filepath.Join(l.Root, ImagesDir) }

// ExtractedDir holds the structured JSON artifacts.
func (l Layout) ExtractedDir() string { return filepath.Join(l.Root, "extracted") }

// OutputsDir holds the human-readable outputs.
func (l Layout) OutputsDir() string { return filepath.Join(l.Root, "outputs") }

// LogsDir holds the run log and the cost ledger.
func (l Layout) LogsDir() string { return filepath.Join(l.Root, "logs") }

// PagesJSONL is the page store, one JSON object per line.
func (l Layout) PagesJSONL() string { return filepath.Join(l.ExtractedDir(), "pages.jsonl") }

// CommonJSON is the extracted common information.
func (l Layout) CommonJSON() string { return filepath.Join(l.ExtractedDir(), "common.json") }

// AnalysesJSON is the output of the analysis modules.
func (l Layout) AnalysesJSON() string { return filepath.Join(l.ExtractedDir(), "analyses.json") }

// ReviewMarkdown is the citation-linked review.
func (l Layout) ReviewMarkdown() string { return filepath.Join(l.OutputsDir(), "review.md") }

// ReviewXLSX is the optional workbook export of the review.
func (l Layout) ReviewXLSX() string { return filepath.Join(l.OutputsDir(), "review.xlsx") }

// ArticleMD is the enhanced-mode article.
func (l Layout) ArticleMD() string { return filepath.Join(l.OutputsDir(), "article.md") }

// RunJSON is the run log.
func (l Layout) RunJSON() string { return filepath.Join(l.LogsDir(), "run.json") }

// CostJSON is the enhanced-mode token ledger.
func (l Layout) CostJSON() string { return filepath.Join(l.LogsDir(), "cost.json") }

// ImagePath returns the filesystem path of a page image.
func (l Layout) ImagePath(index int) string {
	return filepath.Join(l.Root, filepath.FromSlash(ImageRef(index)))
}

// Run is the state passed through the pipeline steps for one document.
// Each step fills in its own part; later steps only read what earlier
// steps produced.
type Run struct {
	// SourcePath is the input PDF as given on the command line.
	SourcePath string

	// Layout is the output directory structure.
	Layout Layout

	// Pages is set by ingestion.
	Pages *PageStore

	// Document is the PDF Info dictionary, if any.
	Document *DocumentInfo

	// Common and Analyses are set by the analysis step.
	Common   *CommonInfo
	Analyses *AnalysisResult

	// Meta accumulates the run log.
	Meta *RunMetadata
}

// NewRun prepares the state for converting source into outDir.
func NewRun(runID, source, outDir string, started time.Time) *Run {
	return &Run{
		SourcePath: source,
		Layout:     NewLayout(outDir),
		Meta: &RunMetadata{
			RunID:         runID,
			SourceFile:    filepath.Base(source),
			StartedAt:     started,
			Fields:        map[string]FieldStatus{},
			Modules:       map[string]ModuleStatus{},
			DegradedPages: []DegradedPage{},
			Steps:         []string{},
		},
	}
}

// RecordDegraded appends a degraded-page entry to the run log.
func (r *Run) RecordDegraded(index int, stage, reason string) {
	r.Meta.DegradedPages = append(r.Meta.DegradedPages, DegradedPage{Index: index, Stage: stage, Reason: reason})
}

// RecordValidation appends a validation problem to the run log.
func (r *Run) RecordValidation(msg string) {
	r.Meta.ValidationErrors = append(r.Meta.ValidationErrors, msg)
}

// Summarize copies page count, field null flags and module counts into the
// run log.
func (r *Run) Summarize() {
	r.Meta.PageCount = r.Pages.Len()
	r.Meta.Document = r.Document
	for _, f := range r.Common.Fields() {
		r.Meta.Fields[string(f.Name)] = FieldStatus{Null: f.IsNull()}
	}
	for _, m := range r.Analyses.Modules() {
		r.Meta.Modules[string(m)] = ModuleStatus{Count: r.Analyses.Count(m)}
	}
}
