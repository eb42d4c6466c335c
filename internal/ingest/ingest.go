package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/irreview/internal/model"
)

// Ingester turns a source PDF into the page store and the ingestion part
// of the output layout (source.pdf, images/, extracted/pages.jsonl).
type Ingester struct {
	logger     *slog.Logger
	open       Opener
	text       TextExtractor
	rasterizer Rasterizer
	workers    int
	dpi        int
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Ingester) {
		in.logger = logger
	}
}

// WithOpener replaces OpenDocument.
func WithOpener(open Opener) Option {
	return func(in *Ingester) {
		in.open = open
	}
}

// WithTextExtractor sets the page text extractor.
func WithTextExtractor(t TextExtractor) Option {
	return func(in *Ingester) {
		in.text = t
	}
}

// WithRasterizer sets the page renderer.
func WithRasterizer(r Rasterizer) Option {
	return func(in *Ingester) {
		in.rasterizer = r
	}
}

// WithWorkers bounds the number of pages rendered concurrently.
func WithWorkers(n int) Option {
	return func(in *Ingester) {
		if n > 0 {
			in.workers = n
		}
	}
}

// WithDPI sets the rendering resolution.
func WithDPI(dpi int) Option {
	return func(in *Ingester) {
		if dpi > 0 {
			in.dpi = dpi
		}
	}
}

// New creates an Ingester that reads the text layer and renders with
// pdftoppm unless options say otherwise.
func New(opts ...Option) *Ingester {
	in := &Ingester{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		open:    OpenDocument,
		text:    NativeText{},
		workers: runtime.NumCPU(),
		dpi:     200,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.rasterizer == nil {
		in.rasterizer = &Pdftoppm{Runner: ExecRunner{}, Logger: in.logger}
	}
	return in
}

// Ingest populates run.Pages and run.Document.
// It fails only when the output layout cannot be created or the source is
// not a readable PDF. A page whose text or image cannot be produced is
// kept, marked degraded and recorded in the run log.
func (in *Ingester) Ingest(ctx context.Context, run *model.Run) error {
	for _, dir := range run.Layout.Dirs() {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%w: %w", ErrOutputNotWritable, err)
		}
	}

	doc, err := in.open(run.SourcePath)
	if err != nil {
		return err
	}
	in.logger.Info("opened document", "pages", doc.NumPages, "doc_id", doc.DocID())

	if err := os.WriteFile(run.Layout.SourcePDF(), doc.Data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputNotWritable, err)
	}

	pages := make([]model.Page, doc.NumPages)
	for i := range pages {
		pages[i] = model.Page{Index: i + 1, ImageRef: model.ImageRef(i + 1)}
	}

	if err := in.extractText(ctx, doc, pages, run); err != nil {
		return err
	}
	if err := in.render(ctx, doc, pages, run); err != nil {
		return err
	}

	store, err := model.NewPageStore(pages)
	if err != nil {
		return err
	}
	if err := WritePagesJSONL(run.Layout.PagesJSONL(), store); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputNotWritable, err)
	}

	run.Pages = store
	run.Document = doc.Info()
	run.Meta.DocID = doc.DocID()
	return nil
}

// extractText fills RawText and Method for every page, in page order.
func (in *Ingester) extractText(ctx context.Context, doc *Document, pages []model.Page, run *model.Run) error {
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx := pages[i].Index
		text, method, err := in.text.ExtractText(ctx, doc, idx)
		if err != nil {
			in.logger.Warn("page text unavailable", "page", idx, "error", err)
			pages[i].RawText = ""
			pages[i].Method = model.MethodNone
			run.RecordDegraded(idx, model.StageText, err.Error())
			continue
		}
		pages[i].RawText = text
		pages[i].Method = method
	}
	return nil
}

// render rasterizes all pages concurrently. A failed page gets a
// placeholder image; failing to write even the placeholder means the
// output directory is unusable.
func (in *Ingester) render(ctx context.Context, doc *Document, pages []model.Page, run *model.Run) error {
	failed := make([]error, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)
	for i := range pages {
		g.Go(func() error {
			idx := pages[i].Index
			dst := run.Layout.ImagePath(idx)
			if err := in.rasterizer.Rasterize(gctx, doc, idx, in.dpi, dst); err != nil {
				failed[i] = err
				if perr := WritePlaceholder(dst); perr != nil {
					return fmt.Errorf("%w: %w", ErrOutputNotWritable, perr)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, err := range failed {
		if err == nil {
			continue
		}
		in.logger.Warn("page image unavailable", "page", pages[i].Index, "error", err)
		pages[i].ImageDegraded = true
		run.RecordDegraded(pages[i].Index, model.StageImage, err.Error())
	}
	return nil
}

// WritePagesJSONL writes one JSON object per page, in index order.
func WritePagesJSONL(path string, store *model.PageStore) error {
	f, err := os.Create(path) //nolint:gosec // path is inside the output layout
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, p := range store.Pages() {
		if err := enc.Encode(p); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadPagesJSONL loads a page store written by WritePagesJSONL.
func ReadPagesJSONL(path string) (*model.PageStore, error) {
	f, err := os.Open(path) //nolint:gosec // path is inside the output layout
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []model.Page
	dec := json.NewDecoder(f)
	for {
		var p model.Page
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		p.ImageRef = model.ImageRef(p.Index)
		pages = append(pages, p)
	}
	return model.NewPageStore(pages)
}
