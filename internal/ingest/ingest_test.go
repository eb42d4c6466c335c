package ingest

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/irreview/internal/model"
)

type stubText struct {
	pages map[int]string
}

func (s stubText) ExtractText(_ context.Context, _ *Document, index int) (string, model.ExtractionMethod, error) {
	text, ok := s.pages[index]
	if !ok || text == "" {
		return "", model.MethodNone, ErrNoTextLayer
	}
	return text, model.MethodNative, nil
}

type stubRasterizer struct {
	mu    sync.Mutex
	fail  map[int]bool
	calls []int
}

func (s *stubRasterizer) Rasterize(_ context.Context, _ *Document, index, _ int, dst string) error {
	s.mu.Lock()
	s.calls = append(s.calls, index)
	s.mu.Unlock()
	if s.fail[index] {
		return errors.New("render failed")
	}
	return os.WriteFile(dst, []byte("png"), 0o600)
}

func stubOpener(n int) Opener {
	return func(path string) (*Document, error) {
		data := []byte("%PDF-1.7\n/Title (Quarterly Results)\n%%EOF")
		return &Document{Path: path, Data: data, NumPages: n, SHA256: "0123456789abcdef0123"}, nil
	}
}

func newTestRun(t *testing.T) *model.Run {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out")
	return model.NewRun("run-1", "/tmp/input.pdf", out, time.Date(2025, 5, 14, 9, 0, 0, 0, time.UTC))
}

func TestIngest(t *testing.T) {
	t.Parallel()

	t.Run("all pages present with one degraded text page", func(t *testing.T) {
		t.Parallel()

		run := newTestRun(t)
		rast := &stubRasterizer{}
		in := New(
			WithOpener(stubOpener(3)),
			WithTextExtractor(stubText{pages: map[int]string{1: "株式会社テスト", 3: "売上高 1,000"}}),
			WithRasterizer(rast),
			WithWorkers(2),
		)
		if err := in.Ingest(context.Background(), run); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		if run.Pages.Len() != 3 {
			t.Fatalf("Pages.Len() = %d, want 3", run.Pages.Len())
		}
		p2, _ := run.Pages.Page(2)
		if p2.Method != model.MethodNone || p2.RawText != "" {
			t.Errorf("page 2 = %+v, want method none and empty text", p2)
		}
		p3, _ := run.Pages.Page(3)
		if p3.Method != model.MethodNative || p3.RawText != "売上高 1,000" {
			t.Errorf("page 3 = %+v", p3)
		}
		if run.Meta.DocID != "0123456789ab" {
			t.Errorf("DocID = %q", run.Meta.DocID)
		}
		if run.Document.Title != "Quarterly Results" {
			t.Errorf("Document.Title = %q", run.Document.Title)
		}
		if len(run.Meta.DegradedPages) != 1 || run.Meta.DegradedPages[0].Index != 2 {
			t.Errorf("DegradedPages = %+v", run.Meta.DegradedPages)
		}
		if len(rast.calls) != 3 {
			t.Errorf("rasterizer called %d times, want 3", len(rast.calls))
		}
		for i := 1; i <= 3; i++ {
			if _, err := os.Stat(run.Layout.ImagePath(i)); err != nil {
				t.Errorf("image for page %d missing: %v", i, err)
			}
		}
		if _, err := os.Stat(run.Layout.SourcePDF()); err != nil {
			t.Errorf("source.pdf missing: %v", err)
		}
	})

	t.Run("render failure writes placeholder", func(t *testing.T) {
		t.Parallel()

		run := newTestRun(t)
		in := New(
			WithOpener(stubOpener(2)),
			WithTextExtractor(stubText{pages: map[int]string{1: "a", 2: "b"}}),
			WithRasterizer(&stubRasterizer{fail: map[int]bool{2: true}}),
		)
		if err := in.Ingest(context.Background(), run); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		p2, _ := run.Pages.Page(2)
		if !p2.ImageDegraded {
			t.Error("page 2 should be image-degraded")
		}
		f, err := os.Open(run.Layout.ImagePath(2))
		if err != nil {
			t.Fatalf("placeholder missing: %v", err)
		}
		defer f.Close()
		if _, err := png.Decode(f); err != nil {
			t.Errorf("placeholder is not a PNG: %v", err)
		}
		if got := run.Meta.DegradedPages; len(got) != 1 || got[0].Stage != model.StageImage {
			t.Errorf("DegradedPages = %+v", got)
		}
	})

	t.Run("open error is returned", func(t *testing.T) {
		t.Parallel()

		run := newTestRun(t)
		in := New(WithOpener(func(string) (*Document, error) { return nil, ErrCorruptPDF }))
		err := in.Ingest(context.Background(), run)
		if !errors.Is(err, ErrCorruptPDF) {
			t.Errorf("Ingest() error = %v, want ErrCorruptPDF", err)
		}
	})

	t.Run("unwritable output", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		run := model.NewRun("run-1", "in.pdf", filepath.Join(blocker, "out"), time.Now())
		in := New(WithOpener(stubOpener(1)), WithRasterizer(&stubRasterizer{}))
		err := in.Ingest(context.Background(), run)
		if !errors.Is(err, ErrOutputNotWritable) {
			t.Errorf("Ingest() error = %v, want ErrOutputNotWritable", err)
		}
	})
}

func TestOpenDocumentRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := OpenDocument(path)
	if !errors.Is(err, ErrCorruptPDF) {
		t.Errorf("OpenDocument() error = %v, want ErrCorruptPDF", err)
	}
}

func TestPagesJSONLRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := model.NewPageStore([]model.Page{
		{Index: 1, RawText: "一行目\n二行目", Method: model.MethodNative},
		{Index: 2, Method: model.MethodNone},
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "pages.jsonl")
	if err := WritePagesJSONL(path, store); err != nil {
		t.Fatalf("WritePagesJSONL() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	want := `{"index":2,"raw_text":"","text_extraction_method":"none"}`
	if lines[1] != want {
		t.Errorf("line 2 = %s, want %s", lines[1], want)
	}

	got, err := ReadPagesJSONL(path)
	if err != nil {
		t.Fatalf("ReadPagesJSONL() error = %v", err)
	}
	p1, _ := got.Page(1)
	if p1.RawText != "一行目\n二行目" || p1.ImageRef != "images/p001.png" {
		t.Errorf("page 1 = %+v", p1)
	}
}

type recordingRunner struct {
	calls  [][]string
	stdout map[string]string
	fail   map[string]bool
}

func (r *recordingRunner) Run(_ context.Context, _ *slog.Logger, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.fail[name] {
		return nil, []byte("boom"), errors.New("exit status 1")
	}
	if name == "pdftoppm" {
		prefix := args[len(args)-1]
		if err := os.WriteFile(prefix+".png", []byte("png"), 0o600); err != nil {
			return nil, nil, err
		}
	}
	return []byte(r.stdout[name]), nil, nil
}

func TestOCRFallback(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	doc := &Document{Path: "in.pdf", NumPages: 2}

	t.Run("native text wins", func(t *testing.T) {
		t.Parallel()
		runner := &recordingRunner{}
		o := &OCRFallback{Primary: stubText{pages: map[int]string{1: "native"}}, Runner: runner, Logger: logger, Language: "jpn", DPI: 200}
		text, method, err := o.ExtractText(context.Background(), doc, 1)
		if err != nil || text != "native" || method != model.MethodNative {
			t.Errorf("got (%q, %q, %v)", text, method, err)
		}
		if len(runner.calls) != 0 {
			t.Errorf("runner called %d times, want 0", len(runner.calls))
		}
	})

	t.Run("ocr used when text layer empty", func(t *testing.T) {
		t.Parallel()
		runner := &recordingRunner{stdout: map[string]string{"tesseract": "  売上高 500 \n"}}
		o := &OCRFallback{Primary: stubText{}, Runner: runner, Logger: logger, Language: "jpn+eng", DPI: 150}
		text, method, err := o.ExtractText(context.Background(), doc, 2)
		if err != nil {
			t.Fatalf("ExtractText() error = %v", err)
		}
		if text != "売上高 500" || method != model.MethodOCR {
			t.Errorf("got (%q, %q)", text, method)
		}
		if len(runner.calls) != 2 || runner.calls[0][0] != "pdftoppm" || runner.calls[1][0] != "tesseract" {
			t.Errorf("calls = %v", runner.calls)
		}
	})

	t.Run("ocr failure keeps both errors", func(t *testing.T) {
		t.Parallel()
		runner := &recordingRunner{fail: map[string]bool{"tesseract": true}}
		o := &OCRFallback{Primary: stubText{}, Runner: runner, Logger: logger, Language: "eng", DPI: 150}
		_, method, err := o.ExtractText(context.Background(), doc, 1)
		if method != model.MethodNone || !errors.Is(err, ErrNoTextLayer) {
			t.Errorf("got (%q, %v)", method, err)
		}
	})
}

func TestRawInfo(t *testing.T) {
	t.Parallel()

	data := []byte(`<< /Title (FY2025 Q1 Summary\r\nDraft) /Producer (Acme PDF) >>` +
		`<xmp:CreatorTool>Writer</xmp:CreatorTool>`)
	got := rawInfo(data)
	if got["title"] != "FY2025 Q1 Summary\r\nDraft" {
		t.Errorf("title = %q", got["title"])
	}
	if got["producer"] != "Acme PDF" {
		t.Errorf("producer = %q", got["producer"])
	}
	if got["xmp_tool"] != "Writer" {
		t.Errorf("xmp_tool = %q", got["xmp_tool"])
	}
}
