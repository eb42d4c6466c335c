package enrich

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/irreview/internal/extract"
	"github.com/nao1215/irreview/internal/model"
)

// Section keys, in article order.
const (
	SectionOverview        = "overview"
	SectionPerformance     = "performance"
	SectionSegments        = "segments"
	SectionFinancialHealth = "financial_health"
	SectionStrategy        = "strategy"
	SectionRisks           = "risks"
)

const (
	// MaxSectionImages bounds the page images attached to one section.
	MaxSectionImages = 2

	// excerptRunes bounds the page text quoted in a prompt.
	excerptRunes = 1500

	sectionMaxTokens  = 1000
	overviewMaxTokens = 500
	temperature       = 0.3
)

// topicKeywords groups the words that mark a page as relevant to a topic.
var topicKeywords = map[string][]string{
	"revenue":   {"売上", "収益", "revenue", "sales"},
	"profit":    {"利益", "profit", "income", "営業利益"},
	"segment":   {"セグメント", "segment", "事業", "business"},
	"financial": {"財務", "financial", "キャッシュ", "cash"},
	"strategy":  {"戦略", "strategy", "計画", "plan"},
	"risk":      {"リスク", "risk", "課題", "challenge"},
	"capital":   {"投資", "investment", "資本", "capital"},
	"growth":    {"成長", "growth", "拡大", "expansion"},
}

// Section is one part of the generated article.
type Section struct {
	Key       string
	Title     string
	Topics    []string
	MaxTokens int64
	guidance  func(p Profile) string
}

// Sections returns the article sections in order.
func Sections() []Section {
	return []Section{
		{
			Key: SectionOverview, Title: "Overview", Topics: []string{"revenue", "profit"}, MaxTokens: overviewMaxTokens,
			guidance: func(p Profile) string {
				return fmt.Sprintf("Summarize the results of %s (%s, %s) in three or four key topics. "+
					"Quote figures with their page numbers where possible. Key figures: %s.",
					p.Company, p.Industry, p.Period, p.KPISummary)
			},
		},
		{
			Key: SectionPerformance, Title: "Performance", Topics: []string{"revenue", "profit", "growth"}, MaxTokens: sectionMaxTokens,
			guidance: func(p Profile) string {
				return fmt.Sprintf("Evaluate the results of %s for %s: drivers of revenue and profit changes "+
					"and the gap to plan. Key figures: %s. Mention one-off factors if any.",
					p.Company, p.Period, p.KPISummary)
			},
		},
		{
			Key: SectionSegments, Title: "Segments", Topics: []string{"segment"}, MaxTokens: sectionMaxTokens,
			guidance: func(p Profile) string {
				return fmt.Sprintf("Compare the business segments (%s) by growth and margin, "+
					"and comment on how resources are allocated between them.", p.segmentText())
			},
		},
		{
			Key: SectionFinancialHealth, Title: "Financial Health", Topics: []string{"financial", "capital"}, MaxTokens: sectionMaxTokens,
			guidance: func(Profile) string {
				return "Assess liquidity, equity ratio and cash generation. Quote balance sheet, " +
					"income statement and cash flow figures and note funding risks."
			},
		},
		{
			Key: SectionStrategy, Title: "Strategy", Topics: []string{"strategy", "growth", "capital"}, MaxTokens: sectionMaxTokens,
			guidance: func(p Profile) string {
				return fmt.Sprintf("Considering competition in the %s industry, assess the feasibility of "+
					"the management strategy and medium-term plan. Main segments: %s.",
					p.Industry, p.segmentText())
			},
		},
		{
			Key: SectionRisks, Title: "Risks", Topics: []string{"risk"}, MaxTokens: sectionMaxTokens,
			guidance: func(Profile) string {
				return "List macro, competitive, operational and regulatory risks stated in the document, " +
					"with their likely impact and any mitigation described."
			},
		},
	}
}

// Guidance returns the section instructions for the profile.
func (s Section) Guidance(p Profile) string {
	if s.guidance == nil {
		return ""
	}
	return s.guidance(p)
}

// Profile is the issuer context shared by all section prompts.
type Profile struct {
	Company    string
	Period     string
	Standard   string
	Industry   string
	KPISummary string
	Segments   []string
}

// NewProfile builds the profile from the extracted common fields, the
// heading findings and the page texts. Segments named with a figure are
// preferred over segment headings.
func NewProfile(common *model.CommonInfo, analyses *model.AnalysisResult, store *model.PageStore) Profile {
	p := Profile{
		Company:  fieldText(common, model.FieldCompanyName, "the company"),
		Period:   fieldText(common, model.FieldFiscalPeriod, ""),
		Standard: fieldText(common, model.FieldAccountingStandard, "unknown"),
		Industry: InferIndustry(store),
	}
	if p.Period == "" {
		p.Period = fieldText(common, model.FieldFiscalYear, "the latest period")
	}

	var kpis []string
	for _, f := range common.Fields() {
		if f.Name.IsKPI() && !f.IsNull() {
			kpis = append(kpis, fmt.Sprintf("%s %s %s", f.Name.Label(), f.Value.Display(), f.Citation.Marker()))
		}
	}
	if len(kpis) == 0 {
		p.KPISummary = "no key figures were extracted"
	} else {
		if unit := fieldText(common, model.FieldCurrencyUnit, ""); unit != "" {
			kpis = append(kpis, "unit: "+unit)
		}
		p.KPISummary = strings.Join(kpis, "; ")
	}

	for _, seg := range extract.FindSegments(store) {
		p.Segments = append(p.Segments, fmt.Sprintf("%s %s %s", seg.Name, seg.Revenue, seg.Citation.Marker()))
	}
	if len(p.Segments) > 0 {
		return p
	}
	for _, f := range analyses.Findings(model.ModuleSegmentHeading) {
		if isSegmentHeading(f.Label) {
			p.Segments = append(p.Segments, f.Label)
		}
		if len(p.Segments) == 4 {
			break
		}
	}
	return p
}

func (p Profile) segmentText() string {
	if len(p.Segments) == 0 {
		return "segment information is limited"
	}
	return strings.Join(p.Segments, ", ")
}

func fieldText(common *model.CommonInfo, name model.FieldName, fallback string) string {
	f, ok := common.Field(name)
	if !ok || f.IsNull() {
		return fallback
	}
	return f.Value.Display()
}

func isSegmentHeading(label string) bool {
	l := strings.ToLower(label)
	return strings.Contains(l, "セグメント") || strings.Contains(l, "segment") || strings.Contains(l, "事業")
}

// RelevantPages ranks pages by the number of topic keyword hits and
// returns at most limit page indices, best first. Ties go to the earlier
// page. Pages without text are never chosen.
func RelevantPages(store *model.PageStore, topics []string, limit int) []int {
	type scored struct {
		index int
		score int
	}
	var ranked []scored
	for _, p := range store.Pages() {
		if p.Method == model.MethodNone {
			continue
		}
		text := strings.ToLower(extract.Normalize(p.RawText))
		score := 0
		for _, t := range topics {
			for _, kw := range topicKeywords[t] {
				score += countKeyword(text, kw)
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{p.Index, score})
		}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		if a.score != b.score {
			return b.score - a.score
		}
		return a.index - b.index
	})

	out := make([]int, 0, limit)
	for _, r := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, r.index)
	}
	return out
}

const systemPrompt = "You are an equity analyst writing a short review of a company's " +
	"financial results for retail investors. Use only the information in the excerpts. " +
	"Write in the language of the excerpts. Cite pages as [p. N]. Do not add headings."

// buildRequest assembles the request for a section from the profile and
// the text of the relevant pages.
func buildRequest(s Section, p Profile, store *model.PageStore, pages []int) Request {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Company: %s\n", p.Company)
	fmt.Fprintf(&sb, "Industry: %s\n", p.Industry)
	fmt.Fprintf(&sb, "Period: %s\n", p.Period)
	fmt.Fprintf(&sb, "Accounting standard: %s\n", p.Standard)
	fmt.Fprintf(&sb, "Key figures: %s\n\n", p.KPISummary)
	sb.WriteString(s.Guidance(p))
	sb.WriteString("\n")
	for _, idx := range pages {
		page, ok := store.Page(idx)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\n--- page %d ---\n%s\n", idx, excerpt(page.RawText, excerptRunes))
	}
	return Request{
		Step:        s.Key,
		System:      systemPrompt,
		Prompt:      sb.String(),
		MaxTokens:   s.MaxTokens,
		Temperature: temperature,
	}
}

func excerpt(s string, limit int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit]) + "..."
}
