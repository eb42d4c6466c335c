package enrich

import (
	"context"
	"unicode/utf8"
)

// MockModel is the model name reported by MockProvider.
const MockModel = "mock"

var mockResponses = map[string]string{
	SectionOverview: "The company reported results for the period under review. " +
		"Revenue and profit figures are summarized below, followed by segment, " +
		"balance sheet, strategy and risk commentary drawn from the cited pages.",
	SectionPerformance: "Revenue and operating income moved in line with the figures " +
		"shown on the cited pages. Compare the current period with the prior year " +
		"column to judge momentum.",
	SectionSegments: "The segment pages break results down by business line. " +
		"Check which segment contributes most to operating income.",
	SectionFinancialHealth: "The balance sheet and cash flow pages show the financial " +
		"position at period end. Watch equity ratio and operating cash flow.",
	SectionStrategy: "Management describes its priorities and medium-term plan on the " +
		"cited pages. Track whether targets are quantified.",
	SectionRisks: "The document lists risk factors and uncertainties. " +
		"Pay attention to items that could affect the full-year forecast.",
}

// MockProvider returns fixed text per section without any network access.
// It is used when no API key is available and in tests.
type MockProvider struct{}

// NewMockProvider creates a MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Name returns "mock".
func (p *MockProvider) Name() string { return "mock" }

// Model returns MockModel.
func (p *MockProvider) Model() string { return MockModel }

// Complete returns the canned text for req.Step. Usage is estimated from
// the prompt and answer lengths, so cost.json looks like a real run.
func (p *MockProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, ok := mockResponses[req.Step]
	if !ok {
		text = "No commentary available for this section."
	}
	in := estimateTokens(req.System) + estimateTokens(req.Prompt)
	out := estimateTokens(text)
	return &Completion{
		Text:  text,
		Model: MockModel,
		Usage: Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}, nil
}

// estimateTokens approximates a token count as one token per four runes.
func estimateTokens(s string) int64 {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return int64((n + 3) / 4)
}
