package enrich

import (
	"strings"

	"github.com/nao1215/irreview/internal/extract"
	"github.com/nao1215/irreview/internal/model"
)

// UnknownIndustry is returned by InferIndustry when no keyword matches.
const UnknownIndustry = "Unknown"

// industryScanPages is how many leading pages InferIndustry reads.
const industryScanPages = 6

type industryPattern struct {
	label    string
	keywords []string
}

// industryPatterns is checked in order; the first label with a keyword
// hit wins.
var industryPatterns = []industryPattern{
	{"Technology", []string{"saas", "クラウド", "itサービス", "ソフトウェア", "プラットフォーム", "dx"}},
	{"Retail / E-commerce", []string{"小売", "ec", "通販", "店舗", "eコマース", "チャネル"}},
	{"Manufacturing", []string{"製造", "生産", "工場", "ものづくり"}},
	{"Logistics / Infrastructure", []string{"物流", "配送", "倉庫", "インフラ", "供給網"}},
	{"Financial services", []string{"金融", "銀行", "証券", "保険", "資産運用"}},
	{"Real estate", []string{"不動産", "賃貸", "物件", "開発"}},
	{"Healthcare", []string{"医療", "ヘルスケア", "製薬", "バイオ", "臨床"}},
	{"Energy", []string{"エネルギー", "発電", "電力", "ガス", "再生可能"}},
}

// InferIndustry guesses the industry of the issuer from the first pages.
func InferIndustry(store *model.PageStore) string {
	var sb strings.Builder
	for i, p := range store.Pages() {
		if i >= industryScanPages {
			break
		}
		sb.WriteString(strings.ToLower(extract.Normalize(p.RawText)))
		sb.WriteString("\n")
	}
	text := sb.String()
	for _, ip := range industryPatterns {
		for _, kw := range ip.keywords {
			if containsKeyword(text, kw) {
				return ip.label
			}
		}
	}
	return UnknownIndustry
}

// containsKeyword reports whether text contains kw. ASCII keywords must
// stand as a whole word, so "ec" does not match "section".
func containsKeyword(text, kw string) bool {
	return countKeyword(text, kw) > 0
}

// countKeyword counts the occurrences of kw in text with the word rule of
// containsKeyword.
func countKeyword(text, kw string) int {
	if kw == "" {
		return 0
	}
	if !isASCIIWord(kw) {
		return strings.Count(text, kw)
	}
	n := 0
	for start := 0; ; {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return n
		}
		i += start
		end := i + len(kw)
		if (i == 0 || !isASCIILetter(text[i-1])) && (end == len(text) || !isASCIILetter(text[end])) {
			n++
		}
		start = end
	}
}

func isASCIIWord(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isASCIILetter(s[i]) {
			return false
		}
	}
	return true
}

func isASCIILetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
