package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/irreview/internal/model"
)

// Analyzer is one analysis module. Analyze must be deterministic for a
// given store and must not modify it.
type Analyzer interface {
	// Name returns the module the findings belong to.
	Name() model.ModuleName

	// Analyze returns the findings of the module, in output order.
	Analyze(ctx context.Context, store *model.PageStore) []model.Finding
}

// FieldExtractor resolves the common fields. *extract.Extractor
// implements it.
type FieldExtractor interface {
	Extract(store *model.PageStore) *model.CommonInfo
}

// Coordinator runs the field extractor and every registered analyzer
// concurrently over the same page store.
type Coordinator struct {
	logger    *slog.Logger
	extractor FieldExtractor
	analyzers []Analyzer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used to report recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a Coordinator for the given extractor.
func NewCoordinator(extractor FieldExtractor, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		extractor: extractor,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds an analyzer. Registration order does not affect output
// order, which follows model.ModuleOrder.
func (c *Coordinator) Register(a Analyzer) {
	c.analyzers = append(c.analyzers, a)
}

// Run fans out the extractor and the analyzers and joins their results.
// Each task writes only its own slot, so no locking is needed. A task that
// panics yields an empty (or all-null) result for its slot; Run itself
// returns an error only when ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, store *model.PageStore) (*model.CommonInfo, *model.AnalysisResult, error) {
	var common *model.CommonInfo
	slots := make([][]model.Finding, len(c.analyzers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		common = c.extractSafely(store)
		return nil
	})
	for i, a := range c.analyzers {
		g.Go(func() error {
			slots[i] = c.analyzeSafely(gctx, a, store)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	result := model.NewAnalysisResult()
	for i, a := range c.analyzers {
		result.Set(a.Name(), slots[i])
	}
	return common, result, nil
}

// Run is a convenience for running extractor and analyzers without a logger.
func Run(ctx context.Context, store *model.PageStore, extractor FieldExtractor, analyzers ...Analyzer) (*model.CommonInfo, *model.AnalysisResult, error) {
	c := NewCoordinator(extractor)
	for _, a := range analyzers {
		c.Register(a)
	}
	return c.Run(ctx, store)
}

func (c *Coordinator) extractSafely(store *model.PageStore) (common *model.CommonInfo) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("field extractor panicked", "panic", fmt.Sprint(rec))
			fields := make([]model.Field, 0, len(model.FieldOrder))
			for _, name := range model.FieldOrder {
				fields = append(fields, model.NotFound(name))
			}
			common = model.NewCommonInfo(fields...)
		}
	}()
	return c.extractor.Extract(store)
}

func (c *Coordinator) analyzeSafely(ctx context.Context, a Analyzer, store *model.PageStore) (findings []model.Finding) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("analysis module panicked", "module", a.Name(), "panic", fmt.Sprint(rec))
			findings = []model.Finding{}
		}
	}()
	findings = a.Analyze(ctx, store)
	c.logger.Debug("analysis module finished", "module", a.Name(), "findings", len(findings))
	return findings
}
