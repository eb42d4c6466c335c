package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/irreview/internal/config"
	"github.com/nao1215/irreview/internal/database"
)

// seedHistory converts the same document twice, the second time with
// revenue present, and once a second document. It returns the DB dir.
func seedHistory(t *testing.T) string {
	t.Helper()

	dbDir := t.TempDir()
	convert := func(sha string, pages stubText) {
		cfg := config.NewConfig()
		cfg.InputPath = "/in/q1.pdf"
		cfg.OutputDir = filepath.Join(t.TempDir(), "out")
		cfg.DBDir = dbDir
		cfg.Workers = 1
		if err := runConvert(context.Background(), cfg, discardLogger(), &bytes.Buffer{}, stubIngest(sha, pages)); err != nil {
			t.Fatal(err)
		}
	}
	convert("111111111111aaaa", stubText{1: "会社名: Acme Corp\n2025年3月期 第1四半期決算短信"})
	convert("111111111111aaaa", q1Pages)
	convert("222222222222bbbb", q1Pages)
	return dbDir
}

func executeHistory(t *testing.T, dbDir string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db-dir", dbDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	dbDir := seedHistory(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "lists documents",
			want: []string{"Converted documents (2)", "111111111111", "222222222222", "q1.pdf"},
		},
		{
			name: "lists documents as markdown",
			args: []string{"--markdown"},
			want: []string{"# Converted documents", "| Document", "`111111111111`"},
		},
		{
			name: "lists runs of a document",
			args: []string{"111111111111"},
			want: []string{"Run history for 111111111111 (q1.pdf, 2 runs)", "history --diff 111111111111"},
		},
		{
			name: "lists runs as markdown",
			args: []string{"--markdown", "111111111111"},
			want: []string{"# Run history: q1.pdf", "| Started"},
		},
		{
			name: "diff as text",
			args: []string{"--diff", "111111111111"},
			want: []string{"Coverage: IMPROVED", "[+] Revenue: null -> 12,345 [p. 2]", "Unchanged:"},
		},
		{
			name: "diff as markdown",
			args: []string{"-d", "-m", "111111111111"},
			want: []string{"# Run comparison: 111111111111", "## Field Changes (", "| Revenue | added | null | 12,345 [p. 2] |"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := executeHistory(t, dbDir, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}

	t.Run("diff as json", func(t *testing.T) {
		t.Parallel()

		out, err := executeHistory(t, dbDir, "--diff", "--json", "111111111111")
		if err != nil {
			t.Fatal(err)
		}
		var c database.Comparison
		if err := json.Unmarshal([]byte(out), &c); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if c.Coverage != database.CoverageImproved || c.DocID != "111111111111" {
			t.Errorf("comparison = %+v", c)
		}
		if c.ModuleDeltas["risk"] != 1 {
			t.Errorf("module deltas = %v", c.ModuleDeltas)
		}
	})

	t.Run("documents as json", func(t *testing.T) {
		t.Parallel()

		out, err := executeHistory(t, dbDir, "--json")
		if err != nil {
			t.Fatal(err)
		}
		var docs []database.DocumentSummary
		if err := json.Unmarshal([]byte(out), &docs); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(docs) != 2 {
			t.Errorf("docs = %+v", docs)
		}
	})
}

func TestHistoryCmdErrors(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantMsg string
	}{
		{name: "conflicting formats", args: []string{"--json", "--markdown"}, wantErr: config.ErrConflictingReportFormats},
		{name: "diff without document", args: []string{"--diff"}, wantMsg: "needs a document ID"},
		{name: "unknown document", args: []string{"ffffffffffff"}, wantMsg: "no runs found"},
		{name: "diff with one run", args: []string{"--diff", "ffffffffffff"}, wantMsg: "at least 2 runs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := executeHistory(t, dbDir, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want %q", err, tt.wantMsg)
			}
		})
	}

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()

		out, err := executeHistory(t, t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "No converted documents") {
			t.Errorf("output = %q", out)
		}
	})
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "positive delta", got: formatDelta(3), want: "+3"},
		{name: "negative delta", got: formatDelta(-2), want: "-2"},
		{name: "zero delta", got: formatDelta(0), want: "0"},
		{name: "null value", got: formatFieldValue("", nil), want: "null"},
		{name: "cited value", got: formatFieldValue("12,345", []int{2, 3}), want: "12,345 [p. 2, 3]"},
		{name: "module counts", got: formatModuleCounts(map[string]int{"risk": 2, "kpi_summary": 1, "zzz": 0}), want: "kpi_summary:1 risk:2 zzz:0"},
		{name: "no module counts", got: formatModuleCounts(nil), want: "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
