package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/irreview/internal/analysis"
	"github.com/nao1215/irreview/internal/config"
	"github.com/nao1215/irreview/internal/database"
	"github.com/nao1215/irreview/internal/enrich"
	"github.com/nao1215/irreview/internal/extract"
	"github.com/nao1215/irreview/internal/ingest"
	"github.com/nao1215/irreview/internal/model"
	"github.com/nao1215/irreview/internal/report"
)

// Step names, as recorded in logs/run.json.
const (
	StepIngest   = "ingest"
	StepAnalyze  = "analyze"
	StepAssemble = "assemble"
	StepEnrich   = "enrich"
	StepHistory  = "history"
	StepFinalize = "finalize"
)

// IngestStep opens the source PDF and builds the page store.
type IngestStep struct {
	ingester *ingest.Ingester
}

// NewIngestStep creates an ingestion step.
func NewIngestStep(ingester *ingest.Ingester) *IngestStep {
	return &IngestStep{ingester: ingester}
}

// Name returns the step name.
func (s *IngestStep) Name() string { return StepIngest }

// Do executes the ingestion step. Its errors are fatal.
func (s *IngestStep) Do(ctx context.Context, run *model.Run) error {
	return s.ingester.Ingest(ctx, run)
}

// AnalyzeStep runs the field extractor and the analysis modules in
// parallel over the page store.
type AnalyzeStep struct {
	coordinator *analysis.Coordinator
}

// NewAnalyzeStep creates an analysis step.
func NewAnalyzeStep(coordinator *analysis.Coordinator) *AnalyzeStep {
	return &AnalyzeStep{coordinator: coordinator}
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string { return StepAnalyze }

// Do executes the analysis step and copies the results into the run log.
func (s *AnalyzeStep) Do(ctx context.Context, run *model.Run) error {
	if run.Pages == nil {
		return fmt.Errorf("analyze: %w", report.ErrIncompleteRun)
	}
	common, analyses, err := s.coordinator.Run(ctx, run.Pages)
	if err != nil {
		return err
	}
	run.Common = common
	run.Analyses = analyses
	run.Summarize()
	return nil
}

// AssembleStep writes the structured artifacts and the review.
type AssembleStep struct {
	assembler *report.Assembler

	// Output is set after a successful run.
	Output *report.Output
}

// NewAssembleStep creates an assembly step.
func NewAssembleStep(assembler *report.Assembler) *AssembleStep {
	return &AssembleStep{assembler: assembler}
}

// Name returns the step name.
func (s *AssembleStep) Name() string { return StepAssemble }

// Do executes the assembly step.
func (s *AssembleStep) Do(ctx context.Context, run *model.Run) error {
	out, err := s.assembler.Assemble(ctx, run)
	if err != nil {
		return err
	}
	s.Output = out
	return nil
}

// EnrichStep writes the generated article. It never fails the run.
type EnrichStep struct {
	cfg      *config.Config
	provider enrich.Provider
	logger   *slog.Logger
}

// EnrichStepOption configures an EnrichStep.
type EnrichStepOption func(*EnrichStep)

// WithEnrichProvider replaces the provider selected from the config.
func WithEnrichProvider(p enrich.Provider) EnrichStepOption {
	return func(s *EnrichStep) {
		s.provider = p
	}
}

// WithEnrichLogger sets a custom logger for the enrich step.
func WithEnrichLogger(logger *slog.Logger) EnrichStepOption {
	return func(s *EnrichStep) {
		s.logger = logger
	}
}

// NewEnrichStep creates an enrichment step using the provider named in cfg.
func NewEnrichStep(cfg *config.Config, opts ...EnrichStepOption) *EnrichStep {
	s := &EnrichStep{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *EnrichStep) Name() string { return StepEnrich }

// Do executes the enrichment step and records its outcome in the run log.
func (s *EnrichStep) Do(ctx context.Context, run *model.Run) error {
	provider := s.provider
	if provider == nil {
		p, err := enrich.NewProvider(s.cfg, s.logger)
		if err != nil {
			s.logger.Warn("enhanced mode unavailable", "provider", s.cfg.Provider, "error", err)
			run.Meta.Enhanced = &model.EnhancedStatus{
				Provider: s.cfg.Provider,
				Status:   model.EnhancedFailed,
				Error:    err.Error(),
			}
			return nil
		}
		provider = p
	}
	run.Meta.Enhanced = enrich.New(provider, enrich.WithLogger(s.logger)).Enrich(ctx, run)
	return nil
}

// HistoryStep records the run in the history database. It never fails
// the run.
type HistoryStep struct {
	dbDir  string
	logger *slog.Logger
	now    func() time.Time
}

// NewHistoryStep creates a history step storing runs in dbDir.
func NewHistoryStep(dbDir string, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{dbDir: dbDir, logger: logger, now: time.Now}
}

// Name returns the step name.
func (s *HistoryStep) Name() string { return StepHistory }

// Do executes the history step.
func (s *HistoryStep) Do(ctx context.Context, run *model.Run) error {
	if run.Pages == nil || run.Common == nil {
		s.logger.Warn("run not saved to history", "reason", "no results")
		return nil
	}
	rec := database.NewRunRecord(run)
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = s.now()
	}

	db, err := database.Open(s.dbDir, database.DefaultOptions())
	if err != nil {
		s.logger.Warn("run not saved to history", "error", err)
		return nil
	}
	defer db.Close()

	if _, err := db.SaveRun(ctx, rec); err != nil {
		s.logger.Warn("run not saved to history", "error", err)
		return nil
	}
	s.logger.Debug("run saved to history", "db", db.Path(), "doc_id", rec.DocID)
	return nil
}

// FinalizeStep writes logs/run.json.
type FinalizeStep struct {
	now func() time.Time
}

// NewFinalizeStep creates a finalize step.
func NewFinalizeStep() *FinalizeStep {
	return &FinalizeStep{now: time.Now}
}

// Name returns the step name.
func (s *FinalizeStep) Name() string { return StepFinalize }

// Do stamps the finish time and writes the run log.
func (s *FinalizeStep) Do(_ context.Context, run *model.Run) error {
	run.Meta.FinishedAt = s.now()
	run.Meta.Steps = append(run.Meta.Steps, StepFinalize)
	if run.Document != nil {
		run.Meta.Document = run.Document
	}

	if err := os.MkdirAll(run.Layout.LogsDir(), 0o750); err != nil {
		return fmt.Errorf("%w: %w", report.ErrOutputNotWritable, err)
	}
	var buf bytes.Buffer
	if _, err := report.NewJSONWriter(&buf, report.WithPrettyPrint()).WriteValue(run.Meta); err != nil {
		return fmt.Errorf("failed to encode run log: %w", err)
	}
	if err := os.WriteFile(run.Layout.RunJSON(), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("%w: %w", report.ErrOutputNotWritable, err)
	}
	return nil
}

// DefaultPipelineConfig holds the collaborators of the default pipeline
// that are not described by config.Config.
type DefaultPipelineConfig struct {
	// Logger is passed to every component.
	Logger *slog.Logger

	// IngestOptions are applied after the options derived from the config.
	IngestOptions []ingest.Option

	// Provider replaces the enrichment provider selected from the config.
	Provider enrich.Provider
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineLogger sets the logger passed to every component.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// WithPipelineIngestOptions adds ingestion options, for example a stub
// rasterizer.
func WithPipelineIngestOptions(opts ...ingest.Option) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.IngestOptions = append(c.IngestOptions, opts...)
	}
}

// WithPipelineProvider sets the enrichment provider.
func WithPipelineProvider(p enrich.Provider) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Provider = p
	}
}

// Steps gives access to the steps of a default pipeline whose results
// callers may want to read.
type Steps struct {
	Assemble *AssembleStep
}

// DefaultPipeline creates the standard conversion pipeline for cfg:
// ingest, analyze, assemble, then enrich when cfg.Enhanced is set and
// history when cfg.SaveHistory is set. Finalize always runs last.
func DefaultPipeline(cfg *config.Config, pipelineOpts []Option, configOpts ...DefaultPipelineOption) (*Pipeline, *Steps, error) {
	pc := &DefaultPipelineConfig{Logger: slog.Default()}
	for _, opt := range configOpts {
		opt(pc)
	}
	logger := pc.Logger

	ingestOpts := []ingest.Option{
		ingest.WithLogger(logger),
		ingest.WithWorkers(cfg.Workers),
		ingest.WithDPI(cfg.DPI),
	}
	if cfg.EnableOCR {
		ingestOpts = append(ingestOpts, ingest.WithTextExtractor(&ingest.OCRFallback{
			Primary:  ingest.NativeText{},
			Runner:   ingest.ExecRunner{},
			Logger:   logger,
			Language: cfg.OCRLanguage,
			DPI:      cfg.DPI,
		}))
	}
	ingestOpts = append(ingestOpts, pc.IngestOptions...)

	coordinator := analysis.NewCoordinator(extract.New(extract.WithLogger(logger)), analysis.WithLogger(logger))
	coordinator.Register(analysis.NewKPISummarizer(cfg.ExtraKPILabels...))
	coordinator.Register(analysis.NewHeadingFrequency(cfg.HeadingTopN))
	coordinator.Register(analysis.NewRiskExtractor(cfg.ExtraRiskTerms...))

	assembler, err := report.NewAssembler(
		report.WithAssemblerLogger(logger),
		report.WithXLSX(cfg.ExportXLSX),
		report.WithChart(cfg.Chart),
	)
	if err != nil {
		return nil, nil, err
	}

	p := New(append([]Option{WithLogger(logger)}, pipelineOpts...)...)
	steps := &Steps{Assemble: NewAssembleStep(assembler)}
	p.AddSteps(
		NewIngestStep(ingest.New(ingestOpts...)),
		NewAnalyzeStep(coordinator),
		steps.Assemble,
	)
	if cfg.Enhanced {
		enrichOpts := []EnrichStepOption{WithEnrichLogger(logger)}
		if pc.Provider != nil {
			enrichOpts = append(enrichOpts, WithEnrichProvider(pc.Provider))
		}
		p.AddStep(NewEnrichStep(cfg, enrichOpts...))
	}
	if cfg.SaveHistory {
		p.AddStep(NewHistoryStep(cfg.DBDir, logger))
	}
	p.AddFinalStep(NewFinalizeStep())

	return p, steps, nil
}
