package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nao1215/irreview/internal/model"
)

// rule tries to read one field from the normalized text of a page.
type rule struct {
	// name identifies the rule in logs and tests.
	name string
	// maxPage restricts the rule to the first maxPage pages. Zero means
	// every page.
	maxPage int
	match   func(text string) (*model.Value, bool)
}

func (r rule) applies(page int) bool {
	return r.maxPage == 0 || page <= r.maxPage
}

// fieldRules is the ordered rule list for one field.
type fieldRules struct {
	field model.FieldName
	rules []rule
}

// regexRule matches re and builds the value from the submatches.
func regexRule(name, pattern string, maxPage int, build func(m []string) string) rule {
	re := regexp.MustCompile(pattern)
	return rule{
		name:    name,
		maxPage: maxPage,
		match: func(text string) (*model.Value, bool) {
			m := re.FindStringSubmatch(text)
			if m == nil {
				return nil, false
			}
			s := strings.TrimSpace(build(m))
			if s == "" {
				return nil, false
			}
			return model.StringValue(s), true
		},
	}
}

// constRule yields a fixed value when pattern occurs.
func constRule(pattern, value string) rule {
	return regexRule(value, pattern, 0, func([]string) string { return value })
}

func group(i int) func(m []string) string {
	return func(m []string) string { return m[i] }
}

// kpiRule finds the first label occurrence followed by a figure that is not
// a percentage.
func kpiRule(name string, labels ...string) rule {
	re := regexp.MustCompile(LabelPattern(labels))
	return rule{
		name: name,
		match: func(text string) (*model.Value, bool) {
			for _, line := range strings.Split(text, "\n") {
				for _, loc := range re.FindAllStringIndex(line, -1) {
					fig, ok := FindFigure(line[loc[1]:])
					if !ok || fig.Unit == "%" {
						continue
					}
					return model.NumberValue(fig.Value), true
				}
			}
			return nil, false
		},
	}
}

// LabelPattern builds a case-insensitive alternation of literal labels.
func LabelPattern(labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	return "(?i:" + strings.Join(quoted, "|") + ")"
}

const (
	periodJP = `(\d{4})年\s*(\d{1,2})月期\s*第?(\d)四半期`
	periodEN = `FY\s?(\d{4}).{0,5}Q\s?([1-4])`
)

// Lexicons for the KPI fields. The analysis package reuses them.
var (
	RevenueLabels         = []string{"売上高", "売上収益", "営業収益", "Revenue", "Net sales"}
	OperatingIncomeLabels = []string{"営業利益", "営業損益", "Operating income", "Operating profit"}
	OrdinaryIncomeLabels  = []string{"経常利益", "Ordinary income"}
	NetIncomeLabels       = []string{"親会社株主に帰属する当期純利益", "当期純利益", "Net income", "Profit attributable"}
	EBITDALabels          = []string{"EBITDA"}
)

func defaultRules() []fieldRules {
	return []fieldRules{
		{model.FieldCompanyName, []rule{
			regexRule("label_jp", `会社名[ \t]*[:：][ \t]*(.+)`, 0, group(1)),
			regexRule("label_en", `(?i)Company Name[ \t]*[:：][ \t]*(.+)`, 0, group(1)),
			regexRule("kabushiki_prefix", `株式会社[^\s、。]+`, 3, group(0)),
			regexRule("kabushiki_suffix", `[^\s、。]+株式会社`, 0, group(0)),
			regexRule("english_suffix", `[A-Z][\w&.\- ]+ (?:Inc\.|Corp\.|Co\., Ltd\.|Ltd\.)`, 0, group(0)),
		}},
		{model.FieldFiscalPeriod, []rule{
			regexRule("period_jp", periodJP, 0, func(m []string) string {
				return fmt.Sprintf("FY%s Q%s", m[1], m[3])
			}),
			regexRule("period_en", periodEN, 5, func(m []string) string {
				return fmt.Sprintf("FY%s Q%s", m[1], m[2])
			}),
		}},
		{model.FieldFiscalYear, []rule{
			regexRule("period_jp", periodJP, 0, group(1)),
			regexRule("period_en", periodEN, 5, group(1)),
			regexRule("fiscal_year_end", `(\d{4})年\s*\d{1,2}月期`, 0, group(1)),
		}},
		{model.FieldAccountingStandard, []rule{
			constRule(`IFRS|国際会計基準`, "IFRS"),
			constRule(`日本基準|J-GAAP`, "JGAAP"),
			constRule(`US[- ]GAAP|米国会計基準`, "US-GAAP"),
		}},
		{model.FieldCurrencyUnit, []rule{
			constRule(`百万円`, "JPY million"),
			constRule(`千円`, "JPY thousand"),
			constRule(`\bUSD\b|百万ドル`, "USD million"),
			constRule(`円`, "JPY"),
			constRule(`\bJPY\b`, "JPY"),
		}},
		{model.FieldRevenue, []rule{kpiRule("revenue", RevenueLabels...)}},
		{model.FieldOperatingIncome, []rule{kpiRule("operating_income", OperatingIncomeLabels...)}},
		{model.FieldOrdinaryIncome, []rule{kpiRule("ordinary_income", OrdinaryIncomeLabels...)}},
		{model.FieldNetIncome, []rule{kpiRule("net_income", NetIncomeLabels...)}},
		{model.FieldEBITDA, []rule{kpiRule("ebitda", EBITDALabels...)}},
	}
}
