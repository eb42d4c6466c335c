package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // "gpt-4o" when empty
	BaseURL    string        // Optional (tests, compatible gateways)
	Attempts   int           // Tries per request, 3 when <= 0
	RetryDelay time.Duration // Base backoff delay
	Timeout    time.Duration // Per-request timeout
	HTTPClient *http.Client  // Optional (tests)
	Logger     *slog.Logger
}

// OpenAIProvider generates text with the Chat Completions API.
type OpenAIProvider struct {
	client     openai.Client
	model      string
	attempts   uint
	retryDelay time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

// NewOpenAIProvider creates an OpenAIProvider. It returns ErrMissingAPIKey
// when cfg.APIKey is empty.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	// SDK retries are off; Complete retries with retry-go.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		attempts:   uint(cfg.Attempts),
		retryDelay: cfg.RetryDelay,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}, nil
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string { return "openai" }

// Model returns the chat model name.
func (p *OpenAIProvider) Model() string { return p.model }

// Complete sends req as a system and a user message. Server errors and
// rate limiting are retried with exponential backoff; other API errors
// are returned immediately.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	var resp *openai.ChatCompletion
	err := retry.Do(
		func() error {
			reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			r, err := p.client.Chat.Completions.New(reqCtx, params)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("openai request failed, retrying", "step", req.Step, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("openai %s: %w", req.Step, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("openai %s: %w", req.Step, ErrEmptyCompletion)
	}

	u := resp.Usage
	model := resp.Model
	if model == "" {
		model = p.model
	}
	return &Completion{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model: model,
		Usage: Usage{
			InputTokens:       u.PromptTokens,
			CachedInputTokens: u.PromptTokensDetails.CachedTokens,
			OutputTokens:      u.CompletionTokens,
			TotalTokens:       u.TotalTokens,
		},
	}, nil
}

// isRetryable reports whether a failed request is worth another try.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	// Transport errors and per-request timeouts.
	return true
}
