package analysis

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/irreview/internal/extract"
	"github.com/nao1215/irreview/internal/model"
)

// Default risk lexicon. English terms match case-insensitively.
var (
	riskTermsJA = []string{
		"為替", "原材料", "コスト", "需給", "規制", "リスク", "不確実性", "災害",
		"サプライチェーン", "金利", "インフレ", "地政学", "競争", "懸念", "減損", "訴訟", "見通し",
	}
	riskTermsEN = []string{
		"risk", "uncertain", "uncertainty", "forward-looking", "may adversely",
		"could adversely", "volatility", "impairment", "litigation",
	}
)

// minSentenceRunes is the length a sentence must exceed to be considered.
const minSentenceRunes = 8

var sentenceBreak = regexp.MustCompile(`[。．!！?？\n]|\.\s`)

// DefaultRiskTerms returns the built-in risk lexicon.
func DefaultRiskTerms() []string {
	return append(append([]string{}, riskTermsJA...), riskTermsEN...)
}

// RiskExtractor reports every sentence containing a risk term. Repeated
// sentences are reported each time they occur.
type RiskExtractor struct {
	terms []string
	lower []string
}

// NewRiskExtractor creates an extractor for the default lexicon plus extra
// terms.
func NewRiskExtractor(extra ...string) *RiskExtractor {
	r := &RiskExtractor{}
	seen := map[string]bool{}
	for _, t := range append(DefaultRiskTerms(), extra...) {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		r.terms = append(r.terms, t)
		r.lower = append(r.lower, key)
	}
	return r
}

// Name implements Analyzer.
func (r *RiskExtractor) Name() model.ModuleName { return model.ModuleRisk }

// Analyze implements Analyzer. Findings are in page order and, within a
// page, in sentence order.
func (r *RiskExtractor) Analyze(ctx context.Context, store *model.PageStore) []model.Finding {
	findings := []model.Finding{}
	for _, p := range store.Pages() {
		if ctx.Err() != nil {
			break
		}
		for _, sentence := range Sentences(p.RawText) {
			term, ok := r.firstTerm(sentence)
			if !ok {
				continue
			}
			findings = append(findings, model.Finding{
				Module:   model.ModuleRisk,
				Label:    term,
				Detail:   sentence,
				Citation: model.PageCitation(p.Index),
			})
		}
	}
	return findings
}

// firstTerm returns the lexicon term occurring earliest in the sentence.
// Terms starting at the same position resolve to the longer one.
func (r *RiskExtractor) firstTerm(sentence string) (string, bool) {
	lower := strings.ToLower(sentence)
	best, bestPos := -1, -1
	for i, t := range r.lower {
		pos := strings.Index(lower, t)
		if pos < 0 {
			continue
		}
		if best < 0 || pos < bestPos || (pos == bestPos && len(t) > len(r.lower[best])) {
			best, bestPos = i, pos
		}
	}
	if best < 0 {
		return "", false
	}
	return r.terms[best], true
}

// Sentences splits page text into normalized sentences longer than
// minSentenceRunes.
func Sentences(raw string) []string {
	var out []string
	for _, part := range sentenceBreak.Split(raw, -1) {
		s := extract.CollapseSpace(extract.Normalize(part))
		if utf8.RuneCountInString(s) > minSentenceRunes {
			out = append(out, s)
		}
	}
	return out
}
