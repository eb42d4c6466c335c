package analysis

import (
	"cmp"
	"context"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/irreview/internal/extract"
	"github.com/nao1215/irreview/internal/model"
)

// extraKPILabels are summarized in addition to the common-field lexicons.
var extraKPILabels = []string{
	"売上総利益", "純資産", "総資産", "自己資本比率", "営業キャッシュ・フロー", "ROE", "EPS",
}

// DefaultKPILabels returns the built-in KPI lexicon.
func DefaultKPILabels() []string {
	var labels []string
	for _, l := range [][]string{
		extract.RevenueLabels,
		extract.OperatingIncomeLabels,
		extract.OrdinaryIncomeLabels,
		extract.NetIncomeLabels,
		extract.EBITDALabels,
		extraKPILabels,
	} {
		labels = append(labels, l...)
	}
	return labels
}

// KPISummarizer reports KPI figures. It emits one finding per label and
// page, holding the first figure printed after that label on the page.
type KPISummarizer struct {
	pattern *regexp.Regexp
	// canonical maps the lower-cased label to its lexicon spelling.
	canonical map[string]string
}

// NewKPISummarizer creates a summarizer for the default lexicon plus extra
// labels.
func NewKPISummarizer(extra ...string) *KPISummarizer {
	seen := map[string]string{}
	var labels []string
	for _, l := range append(DefaultKPILabels(), extra...) {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if l == "" || seen[key] != "" {
			continue
		}
		seen[key] = l
		labels = append(labels, l)
	}
	// Longest first, so the alternation prefers the most specific label.
	slices.SortStableFunc(labels, func(a, b string) int {
		return cmp.Compare(utf8.RuneCountInString(b), utf8.RuneCountInString(a))
	})
	return &KPISummarizer{
		pattern:   regexp.MustCompile(extract.LabelPattern(labels)),
		canonical: seen,
	}
}

// Name implements Analyzer.
func (k *KPISummarizer) Name() model.ModuleName { return model.ModuleKPISummary }

// Analyze implements Analyzer.
func (k *KPISummarizer) Analyze(ctx context.Context, store *model.PageStore) []model.Finding {
	findings := []model.Finding{}
	for _, p := range store.Pages() {
		if ctx.Err() != nil {
			break
		}
		seen := map[string]bool{}
		for _, line := range extract.Lines(p.RawText) {
			for _, loc := range k.pattern.FindAllStringIndex(line, -1) {
				rest := line[loc[1]:]
				// 営業利益率 is a margin, not 営業利益.
				if strings.HasPrefix(rest, "率") {
					continue
				}
				label := k.canonical[strings.ToLower(line[loc[0]:loc[1]])]
				if seen[label] {
					continue
				}
				fig, ok := extract.FindFigure(rest)
				if !ok {
					continue
				}
				seen[label] = true
				findings = append(findings, model.Finding{
					Module:   model.ModuleKPISummary,
					Label:    label,
					Detail:   fig.String(),
					Citation: model.PageCitation(p.Index),
				})
			}
		}
	}
	return findings
}
