package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/irreview/internal/config"
	"github.com/nao1215/irreview/internal/extract"
	"github.com/nao1215/irreview/internal/model"
)

func newStore(t *testing.T, texts ...string) *model.PageStore {
	t.Helper()

	pages := make([]model.Page, len(texts))
	for i, text := range texts {
		method := model.MethodNative
		if text == "" {
			method = model.MethodNone
		}
		pages[i] = model.Page{Index: i + 1, ImageRef: model.ImageRef(i + 1), RawText: text, Method: method}
	}
	store, err := model.NewPageStore(pages)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// newTestRun builds an analyzed run over four pages in a temp layout.
func newTestRun(t *testing.T) *model.Run {
	t.Helper()

	run := model.NewRun("run-1", "/in/q1.pdf", t.TempDir(), time.Date(2025, 5, 14, 9, 0, 0, 0, time.UTC))
	for _, dir := range run.Layout.Dirs() {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatal(err)
		}
	}
	run.Pages = newStore(t,
		"会社名: Acme Corp\n2025年3月期 第1四半期決算説明資料\nクラウド事業の拡大",
		"売上高 12,345 百万円\n営業利益 1,200 百万円\n売上 収益 ともに成長",
		"セグメント情報\nクラウド事業 セグメント利益",
		"",
	)
	run.Common = extract.New().Extract(run.Pages)
	run.Analyses = model.NewAnalysisResult()
	run.Analyses.Set(model.ModuleSegmentHeading, []model.Finding{
		{Module: model.ModuleSegmentHeading, Label: "セグメント情報", Detail: "appears once on 1 page", Citation: model.PageCitation(3)},
	})
	return run
}

func TestInferIndustry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		texts []string
		want  string
	}{
		{"japanese keyword", []string{"当社はクラウドサービスを提供"}, "Technology"},
		{"fullwidth ascii", []string{"ＳａａＳ事業"}, "Technology"},
		{"ascii word", []string{"EC sales grew"}, "Retail / E-commerce"},
		{"ascii keyword inside a word", []string{"see section 3"}, UnknownIndustry},
		{"first pattern wins", []string{"製造 物流"}, "Manufacturing"},
		{"only first six pages", []string{"a", "b", "c", "d", "e", "f", "銀行"}, UnknownIndustry},
		{"no text", []string{""}, UnknownIndustry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InferIndustry(newStore(t, tt.texts...)); got != tt.want {
				t.Errorf("InferIndustry() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelevantPages(t *testing.T) {
	t.Parallel()

	store := newStore(t,
		"risk",
		"リスク リスク 課題",
		"",
		"リスク 課題 challenge",
		"no match here",
	)

	tests := []struct {
		name   string
		topics []string
		limit  int
		want   []int
	}{
		{"ranked by hits then page", []string{"risk"}, 2, []int{2, 4}},
		{"limit above matches", []string{"risk"}, 5, []int{2, 4, 1}},
		{"no match", []string{"segment"}, 2, []int{}},
		{"unknown topic", []string{"weather"}, 2, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RelevantPages(store, tt.topics, tt.limit); !slices.Equal(got, tt.want) {
				t.Errorf("RelevantPages() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewProfile(t *testing.T) {
	t.Parallel()

	run := newTestRun(t)
	p := NewProfile(run.Common, run.Analyses, run.Pages)

	if p.Company != "Acme Corp" {
		t.Errorf("Company = %q", p.Company)
	}
	if p.Industry != "Technology" {
		t.Errorf("Industry = %q", p.Industry)
	}
	if !strings.Contains(p.KPISummary, "Revenue 12,345 [p. 2]") {
		t.Errorf("KPISummary = %q", p.KPISummary)
	}
	if !slices.Equal(p.Segments, []string{"セグメント情報"}) {
		t.Errorf("Segments = %v", p.Segments)
	}

	withFigures := NewProfile(run.Common, run.Analyses, newStore(t, "エネルギー事業セグメント 売上高 5,000 百万円"))
	if !slices.Equal(withFigures.Segments, []string{"エネルギー事業 5,000 百万円 [p. 1]"}) {
		t.Errorf("Segments = %v", withFigures.Segments)
	}

	empty := NewProfile(model.NewCommonInfo(), model.NewAnalysisResult(), newStore(t, ""))
	if empty.Company != "the company" || empty.KPISummary != "no key figures were extracted" {
		t.Errorf("empty profile = %+v", empty)
	}
}

func TestMockProvider(t *testing.T) {
	t.Parallel()

	p := NewMockProvider()
	req := Request{Step: SectionRisks, System: "system", Prompt: "prompt text"}

	first, err := p.Complete(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Complete(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Text != second.Text || first.Usage != second.Usage {
		t.Error("mock answers differ between calls")
	}
	if first.Usage.TotalTokens != first.Usage.InputTokens+first.Usage.OutputTokens || first.Usage.TotalTokens == 0 {
		t.Errorf("usage = %+v", first.Usage)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Complete(ctx, req); !errors.Is(err, context.Canceled) {
		t.Errorf("Complete() on cancelled context error = %v", err)
	}
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		apiKey   string
		wantName string
		wantErr  error
	}{
		{"mock", config.ProviderMock, "", "mock", nil},
		{"openai", config.ProviderOpenAI, "sk-test", "openai", nil},
		{"openai without key", config.ProviderOpenAI, "", "", ErrMissingAPIKey},
		{"unknown", "claude", "", "", ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.NewConfig()
			cfg.Provider = tt.provider
			cfg.APIKey = tt.apiKey
			p, err := NewProvider(cfg, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewProvider() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

const chatResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1715000000,
  "model": "gpt-4o-2024-08-06",
  "choices": [{"index": 0, "finish_reason": "stop",
    "message": {"role": "assistant", "content": "Revenue rose 12% [p. 2].", "refusal": null}}],
  "usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150,
    "prompt_tokens_details": {"cached_tokens": 20}}
}`

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:     "test-key",
		Model:      "gpt-4o",
		BaseURL:    server.URL,
		Attempts:   3,
		RetryDelay: time.Millisecond,
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestOpenAIProvider(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		var payload map[string]any
		p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("read body: %v", err)
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Errorf("unmarshal body: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, chatResponse)
		})

		c, err := p.Complete(context.Background(), Request{
			Step: SectionPerformance, System: "sys", Prompt: "user", MaxTokens: 1000, Temperature: 0.3,
		})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if c.Text != "Revenue rose 12% [p. 2]." {
			t.Errorf("Text = %q", c.Text)
		}
		want := Usage{InputTokens: 120, CachedInputTokens: 20, OutputTokens: 30, TotalTokens: 150}
		if c.Usage != want {
			t.Errorf("Usage = %+v, want %+v", c.Usage, want)
		}
		if c.Model != "gpt-4o-2024-08-06" {
			t.Errorf("Model = %q", c.Model)
		}
		if got, _ := payload["model"].(string); got != "gpt-4o" {
			t.Errorf("request model = %q", got)
		}
		if got, _ := payload["max_tokens"].(float64); got != 1000 {
			t.Errorf("request max_tokens = %v", got)
		}
		if msgs, _ := payload["messages"].([]any); len(msgs) != 2 {
			t.Errorf("request messages = %v", payload["messages"])
		}
	})

	t.Run("retries server errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		p := newTestOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, `{"error": {"message": "boom", "type": "server_error"}}`)
				return
			}
			_, _ = io.WriteString(w, chatResponse)
		})
		if _, err := p.Complete(context.Background(), Request{Step: SectionRisks}); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if got := calls.Load(); got != 2 {
			t.Errorf("calls = %d, want 2", got)
		}
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		p := newTestOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
		})
		if _, err := p.Complete(context.Background(), Request{Step: SectionRisks}); err == nil {
			t.Fatal("Complete() error = nil")
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("calls = %d, want 1", got)
		}
	})

	t.Run("empty completion", func(t *testing.T) {
		t.Parallel()

		p := newTestOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id": "x", "object": "chat.completion", "created": 1, "model": "gpt-4o", "choices": []}`)
		})
		if _, err := p.Complete(context.Background(), Request{Step: SectionRisks}); !errors.Is(err, ErrEmptyCompletion) {
			t.Errorf("Complete() error = %v, want ErrEmptyCompletion", err)
		}
	})
}

type failingProvider struct{}

func (failingProvider) Name() string  { return "failing" }
func (failingProvider) Model() string { return "none" }
func (failingProvider) Complete(context.Context, Request) (*Completion, error) {
	return nil, errors.New("unavailable")
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	t.Run("mock writes article and cost", func(t *testing.T) {
		t.Parallel()

		run := newTestRun(t)
		status := New(NewMockProvider()).Enrich(context.Background(), run)
		if status.Status != model.EnhancedOK {
			t.Fatalf("status = %+v", status)
		}

		article, err := os.ReadFile(run.Layout.ArticleMD())
		if err != nil {
			t.Fatal(err)
		}
		text := string(article)
		for _, want := range []string{
			"# Acme Corp: ",
			"## Overview",
			"## Performance",
			"## Segments",
			"## Financial Health",
			"## Strategy",
			"## Risks",
			"![p. 2](../images/p002.png)",
			"| Industry (inferred) | Technology |",
		} {
			if !strings.Contains(text, want) {
				t.Errorf("article missing %q", want)
			}
		}
		if strings.Contains(text, "p004.png") {
			t.Error("page without text was attached")
		}

		data, err := os.ReadFile(run.Layout.CostJSON())
		if err != nil {
			t.Fatal(err)
		}
		var cost struct {
			Provider string     `json:"provider"`
			Calls    []CallCost `json:"calls"`
			Totals   Usage      `json:"totals"`
		}
		if err := json.Unmarshal(data, &cost); err != nil {
			t.Fatal(err)
		}
		if cost.Provider != "mock" || len(cost.Calls) != len(Sections()) {
			t.Errorf("cost = %+v", cost)
		}
		var sum int64
		for i, c := range cost.Calls {
			sum += c.Tokens.TotalTokens
			if i < len(Sections()) && c.Step != Sections()[i].Key {
				t.Errorf("call %d step = %s, want %s", i, c.Step, Sections()[i].Key)
			}
		}
		if sum != cost.Totals.TotalTokens {
			t.Errorf("totals = %d, sum of calls = %d", cost.Totals.TotalTokens, sum)
		}
	})

	t.Run("mock output is deterministic", func(t *testing.T) {
		t.Parallel()

		var articles []string
		for range 2 {
			run := newTestRun(t)
			New(NewMockProvider()).Enrich(context.Background(), run)
			data, err := os.ReadFile(run.Layout.ArticleMD())
			if err != nil {
				t.Fatal(err)
			}
			articles = append(articles, string(data))
		}
		if articles[0] != articles[1] {
			t.Error("article differs between runs")
		}
	})

	t.Run("provider failure is reported, not returned", func(t *testing.T) {
		t.Parallel()

		run := newTestRun(t)
		status := New(failingProvider{}).Enrich(context.Background(), run)
		if status.Status != model.EnhancedFailed || !strings.Contains(status.Error, "unavailable") {
			t.Errorf("status = %+v", status)
		}
		article, err := os.ReadFile(run.Layout.ArticleMD())
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(article), "could not be generated") {
			t.Error("article does not mention the failed sections")
		}
	})

	t.Run("missing results", func(t *testing.T) {
		t.Parallel()

		run := model.NewRun("run-1", "/in/q1.pdf", t.TempDir(), time.Now())
		if status := New(NewMockProvider()).Enrich(context.Background(), run); status.Status != model.EnhancedFailed {
			t.Errorf("status = %+v", status)
		}
	})
}

func TestCostLedgerWriteFile(t *testing.T) {
	t.Parallel()

	ledger := NewCostLedger(NewMockProvider())
	for _, step := range []string{SectionRisks, "retry", SectionOverview, SectionSegments} {
		ledger.Record(step, "mock", Usage{TotalTokens: 10})
	}

	path := filepath.Join(t.TempDir(), "cost.json")
	if err := ledger.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cost struct {
		Calls  []CallCost `json:"calls"`
		Totals Usage      `json:"totals"`
	}
	if err := json.Unmarshal(data, &cost); err != nil {
		t.Fatal(err)
	}

	want := []string{SectionOverview, SectionSegments, SectionRisks, "retry"}
	if len(cost.Calls) != len(want) {
		t.Fatalf("got %d calls, want %d", len(cost.Calls), len(want))
	}
	for i, c := range cost.Calls {
		if c.Step != want[i] {
			t.Errorf("call %d step = %s, want %s", i, c.Step, want[i])
		}
	}
	if cost.Totals.TotalTokens != 40 {
		t.Errorf("total tokens = %d, want 40", cost.Totals.TotalTokens)
	}
}
