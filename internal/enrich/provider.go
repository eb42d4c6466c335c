package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/irreview/internal/config"
)

// Request is a single generation request.
type Request struct {
	// Step names the article section the request is for.
	Step string

	// System is the system prompt.
	System string

	// Prompt is the user prompt.
	Prompt string

	// MaxTokens bounds the length of the answer.
	MaxTokens int64

	// Temperature is the sampling temperature.
	Temperature float64
}

// Usage counts the tokens of one request.
type Usage struct {
	InputTokens       int64 `json:"input"`
	CachedInputTokens int64 `json:"cached_input"`
	OutputTokens      int64 `json:"output"`
	TotalTokens       int64 `json:"total"`
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:       u.InputTokens + o.InputTokens,
		CachedInputTokens: u.CachedInputTokens + o.CachedInputTokens,
		OutputTokens:      u.OutputTokens + o.OutputTokens,
		TotalTokens:       u.TotalTokens + o.TotalTokens,
	}
}

// Completion is the answer to a Request.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Provider generates text for a Request.
type Provider interface {
	// Name returns the provider identifier ("mock" or "openai").
	Name() string

	// Model returns the model the provider asks for.
	Model() string

	// Complete runs one request. It must honor ctx cancellation.
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// NewProvider returns the provider selected by cfg.Provider.
func NewProvider(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderMock, "":
		return NewMockProvider(), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			BaseURL:  cfg.BaseURL,
			Attempts: cfg.EnrichAttempts,
			Timeout:  cfg.EnrichTimeout,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
