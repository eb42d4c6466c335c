package model

import (
	"path/filepath"
	"testing"
)

func TestLayout(t *testing.T) {
	t.Parallel()

	root := filepath.Join("out", "q1")
	l := NewLayout(root)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"source pdf", l.SourcePDF(), filepath.Join(root, "source.pdf")},
		{"image", l.ImagePath(7), filepath.Join(root, "images", "p007.png")},
		{"pages", l.PagesJSONL(), filepath.Join(root, "extracted", "pages.jsonl")},
		{"common", l.CommonJSON(), filepath.Join(root, "extracted", "common.json")},
		{"analyses", l.AnalysesJSON(), filepath.Join(root, "extracted", "analyses.json")},
		{"review", l.ReviewMarkdown(), filepath.Join(root, "outputs", "review.md")},
		{"workbook", l.ReviewXLSX(), filepath.Join(root, "outputs", "review.xlsx")},
		{"article", l.ArticleMD(), filepath.Join(root, "outputs", "article.md")},
		{"run log", l.RunJSON(), filepath.Join(root, "logs", "run.json")},
		{"cost", l.CostJSON(), filepath.Join(root, "logs", "cost.json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	t.Run("dirs start at the root", func(t *testing.T) {
		t.Parallel()

		dirs := l.Dirs()
		want := []string{root, l.ImagesDir(), l.ExtractedDir(), l.OutputsDir(), l.LogsDir()}
		if len(dirs) != len(want) {
			t.Fatalf("Dirs() = %v, want %v", dirs, want)
		}
		for i := range want {
			if dirs[i] != want[i] {
				t.Errorf("dir %d = %q, want %q", i, dirs[i], want[i])
			}
		}
	})
}
