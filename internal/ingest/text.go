package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nao1215/irreview/internal/model"
)

// TextExtractor obtains the raw text of one page.
// It returns the method that produced the text. An error means the page
// has no usable text and will be recorded as degraded.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc *Document, index int) (string, model.ExtractionMethod, error)
}

// NativeText reads the PDF text layer.
type NativeText struct{}

// ExtractText returns the text layer of a page, one line per text row,
// top to bottom.
func (NativeText) ExtractText(_ context.Context, doc *Document, index int) (text string, method model.ExtractionMethod, err error) {
	if doc.reader == nil {
		return "", model.MethodNone, ErrNoTextLayer
	}
	defer func() {
		if rec := recover(); rec != nil {
			text, method, err = "", model.MethodNone, fmt.Errorf("text layer panic: %v", rec)
		}
	}()

	page := doc.reader.Page(index)
	if page.V.IsNull() {
		return "", model.MethodNone, fmt.Errorf("page %d: %w", index, ErrNoTextLayer)
	}

	rows, rowErr := page.GetTextByRow()
	if rowErr == nil && len(rows) > 0 {
		text = joinRows(rows)
	} else {
		text, err = page.GetPlainText(nil)
		if err != nil {
			return "", model.MethodNone, fmt.Errorf("page %d: %w", index, err)
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", model.MethodNone, fmt.Errorf("page %d: %w", index, ErrNoTextLayer)
	}
	return text, model.MethodNative, nil
}

// joinRows orders rows top to bottom (PDF y grows upward) and the pieces
// of each row left to right.
func joinRows(rows pdf.Rows) string {
	sorted := make(pdf.Rows, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position > sorted[j].Position })

	lines := make([]string, 0, len(sorted))
	for _, row := range sorted {
		pieces := make([]pdf.Text, len(row.Content))
		copy(pieces, row.Content)
		sort.SliceStable(pieces, func(i, j int) bool { return pieces[i].X < pieces[j].X })

		var b strings.Builder
		for _, p := range pieces {
			b.WriteString(p.S)
		}
		if line := strings.TrimRight(b.String(), " \t"); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// OCRFallback tries Primary first and, when it yields no text, renders the
// page with pdftoppm and runs tesseract on it.
type OCRFallback struct {
	Primary  TextExtractor
	Runner   Runner
	Logger   *slog.Logger
	Language string
	DPI      int
}

// ExtractText implements TextExtractor.
func (o *OCRFallback) ExtractText(ctx context.Context, doc *Document, index int) (string, model.ExtractionMethod, error) {
	text, method, err := o.Primary.ExtractText(ctx, doc, index)
	if err == nil {
		return text, method, nil
	}

	ocrText, ocrErr := o.ocr(ctx, doc, index)
	if ocrErr != nil {
		return "", model.MethodNone, errors.Join(err, ocrErr)
	}
	return ocrText, model.MethodOCR, nil
}

func (o *OCRFallback) ocr(ctx context.Context, doc *Document, index int) (string, error) {
	tmp, err := os.MkdirTemp("", "irreview-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	prefix := filepath.Join(tmp, "page")
	page := strconv.Itoa(index)
	if _, stderr, err := o.Runner.Run(ctx, o.Logger, "pdftoppm",
		"-png", "-f", page, "-l", page, "-r", strconv.Itoa(o.DPI), "-singlefile",
		doc.Path, prefix,
	); err != nil {
		return "", fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(stderr), 512))
	}

	stdout, stderr, err := o.Runner.Run(ctx, o.Logger, "tesseract", prefix+".png", "stdout", "-l", o.Language)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(string(stderr), 512))
	}
	text := strings.TrimSpace(string(stdout))
	if text == "" {
		return "", fmt.Errorf("page %d: %w", index, ErrNoTextLayer)
	}
	return text, nil
}
