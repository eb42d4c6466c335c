package extract

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/irreview/internal/model"
)

// Extractor resolves the common fields of a document.
type Extractor struct {
	logger *slog.Logger
	fields []fieldRules
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor with the built-in rules.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		fields: defaultRules(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns every common field, in model.FieldOrder. It never fails:
// a field with no match, or whose rules fail, is NotFound.
//
// Pages are scanned in order and, within a page, rules in priority order.
// The first match wins, so an early page beats a better rule on a later
// page. The citation is the page of the match.
func (e *Extractor) Extract(store *model.PageStore) *model.CommonInfo {
	pages := store.Pages()
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = Normalize(p.RawText)
	}

	fields := make([]model.Field, 0, len(e.fields))
	for _, fr := range e.fields {
		fields = append(fields, e.resolve(fr, pages, texts))
	}
	return model.NewCommonInfo(fields...)
}

func (e *Extractor) resolve(fr fieldRules, pages []model.Page, texts []string) (field model.Field) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("field extraction panicked", "field", fr.field, "panic", fmt.Sprint(rec))
			field = model.NotFound(fr.field)
		}
	}()

	for i, p := range pages {
		if texts[i] == "" {
			continue
		}
		for _, r := range fr.rules {
			if !r.applies(p.Index) {
				continue
			}
			if v, ok := r.match(texts[i]); ok {
				e.logger.Debug("field resolved", "field", fr.field, "rule", r.name, "page", p.Index)
				return model.Found(fr.field, v, model.PageCitation(p.Index))
			}
		}
	}
	return model.NotFound(fr.field)
}
