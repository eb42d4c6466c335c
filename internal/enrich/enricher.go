package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/irreview/internal/model"
)

// defaultConcurrency is the number of sections generated at once.
const defaultConcurrency = 3

// Enricher writes the generated article of a run.
type Enricher struct {
	provider    Provider
	logger      *slog.Logger
	concurrency int
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		e.logger = logger
	}
}

// WithConcurrency sets how many sections are requested in parallel.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New creates an Enricher that uses provider.
func New(provider Provider, opts ...Option) *Enricher {
	e := &Enricher{
		provider:    provider,
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate asks the provider for every section. A failed section is kept
// in the article with its error. The cost ledger records every successful
// call.
func (e *Enricher) Generate(ctx context.Context, run *model.Run, ledger *CostLedger) *Article {
	profile := NewProfile(run.Common, run.Analyses, run.Pages)
	sections := Sections()
	article := &Article{
		Profile:  profile,
		Provider: e.provider.Name(),
		Model:    e.provider.Model(),
		Sections: make([]SectionResult, len(sections)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, s := range sections {
		g.Go(func() error {
			pages := RelevantPages(run.Pages, s.Topics, MaxSectionImages)
			res := SectionResult{Section: s, Pages: pages}
			c, err := e.provider.Complete(gctx, buildRequest(s, profile, run.Pages, pages))
			if err != nil {
				e.logger.Warn("section generation failed", "section", s.Key, "error", err)
				res.Err = err
			} else {
				res.Text = c.Text
				ledger.Record(s.Key, c.Model, c.Usage)
				e.logger.Debug("section generated", "section", s.Key, "tokens", c.Usage.TotalTokens)
			}
			article.Sections[i] = res
			// Sections fail independently.
			return nil
		})
	}
	_ = g.Wait()
	return article
}

// Enrich generates outputs/article.md and logs/cost.json for a completed
// run. It never returns an error: the outcome, including failures, is
// reported in the returned status.
func (e *Enricher) Enrich(ctx context.Context, run *model.Run) *model.EnhancedStatus {
	status := &model.EnhancedStatus{
		Provider: e.provider.Name(),
		Model:    e.provider.Model(),
		Status:   model.EnhancedOK,
	}
	fail := func(err error) *model.EnhancedStatus {
		e.logger.Warn("enhanced mode failed", "provider", status.Provider, "error", err)
		status.Status = model.EnhancedFailed
		status.Error = err.Error()
		return status
	}

	if run.Pages == nil || run.Common == nil || run.Analyses == nil {
		return fail(errors.New("run has no analysis results"))
	}

	ledger := NewCostLedger(e.provider)
	article := e.Generate(ctx, run, ledger)

	var buf bytes.Buffer
	if err := article.WriteMarkdown(&buf); err != nil {
		return fail(fmt.Errorf("failed to render article: %w", err))
	}
	if err := os.WriteFile(run.Layout.ArticleMD(), buf.Bytes(), 0o600); err != nil {
		return fail(fmt.Errorf("failed to write article: %w", err))
	}
	if err := ledger.WriteFile(run.Layout.CostJSON()); err != nil {
		return fail(fmt.Errorf("failed to write cost report: %w", err))
	}

	if article.Succeeded() == 0 {
		var errs []error
		for _, s := range article.Sections {
			errs = append(errs, s.Err)
		}
		return fail(errors.Join(errs...))
	}
	e.logger.Info("article written", "path", run.Layout.ArticleMD(),
		"sections", article.Succeeded(), "total_tokens", ledger.Totals.TotalTokens)
	return status
}
