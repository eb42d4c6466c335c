package ingest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Rasterizer renders one page to a PNG file at dst.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc *Document, index, dpi int, dst string) error
}

// Pdftoppm renders pages with poppler's pdftoppm.
type Pdftoppm struct {
	Runner Runner
	Logger *slog.Logger
}

// Rasterize implements Rasterizer.
func (p *Pdftoppm) Rasterize(ctx context.Context, doc *Document, index, dpi int, dst string) error {
	tmp, err := os.MkdirTemp("", "irreview-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	prefix := filepath.Join(tmp, "page")
	page := strconv.Itoa(index)
	_, stderr, err := p.Runner.Run(ctx, p.Logger, "pdftoppm",
		"-png",
		"-f", page,
		"-l", page,
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		doc.Path,
		prefix,
	)
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, truncate(string(stderr), 512))
	}

	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return os.WriteFile(dst, data, 0o600)
}

// Placeholder dimensions: an A4 page at 1/10 scale.
const (
	placeholderWidth  = 210
	placeholderHeight = 297
)

// WritePlaceholder writes a light grey page with a crossed-out frame to dst.
// It stands in for a page that could not be rendered so that every page
// index keeps an image.
func WritePlaceholder(dst string) error {
	img := image.NewGray(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	bg := color.Gray{Y: 0xEE}
	fg := color.Gray{Y: 0x99}
	for y := range placeholderHeight {
		for x := range placeholderWidth {
			img.SetGray(x, y, bg)
		}
	}
	for x := range placeholderWidth {
		img.SetGray(x, 0, fg)
		img.SetGray(x, placeholderHeight-1, fg)
	}
	for y := range placeholderHeight {
		img.SetGray(0, y, fg)
		img.SetGray(placeholderWidth-1, y, fg)
		x := y * (placeholderWidth - 1) / (placeholderHeight - 1)
		img.SetGray(x, y, fg)
		img.SetGray(placeholderWidth-1-x, y, fg)
	}

	f, err := os.Create(dst) //nolint:gosec // dst is inside the output layout
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
