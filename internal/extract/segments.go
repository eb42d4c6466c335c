package extract

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/irreview/internal/model"
)

const (
	// MaxSegments bounds the segments reported by FindSegments.
	MaxSegments = 3

	// segmentPages is how many leading pages are searched for segments.
	segmentPages = 10
)

var segmentName = regexp.MustCompile(`[A-Za-z\p{Katakana}\p{Han}ー]{2,20}`)

// genericSegmentWords are names that describe the table, not a segment.
var genericSegmentWords = []string{"セグメント", "Segment", "別", "情報", "合計", "計", "調整額", "その他"}

// Segment is a business segment named on a segment line, with the first
// figure printed after its name.
type Segment struct {
	Name     string         `json:"name"`
	Revenue  Figure         `json:"revenue"`
	Citation model.Citation `json:"citation"`
}

// FindSegments scans the lines mentioning segments on the first pages and
// returns at most MaxSegments distinct segments in document order.
func FindSegments(store *model.PageStore) []Segment {
	var out []Segment
	for _, p := range store.Pages() {
		if p.Index > segmentPages || len(out) == MaxSegments {
			break
		}
		for _, line := range Lines(p.RawText) {
			if !strings.Contains(strings.ToLower(line), "segment") && !strings.Contains(line, "セグメント") {
				continue
			}
			name, fig, ok := segmentOnLine(line)
			if !ok || slices.ContainsFunc(out, func(s Segment) bool { return s.Name == name }) {
				continue
			}
			out = append(out, Segment{Name: name, Revenue: fig, Citation: model.PageCitation(p.Index)})
			if len(out) == MaxSegments {
				break
			}
		}
	}
	return out
}

// segmentOnLine returns the first name on line that is followed by a
// figure, skipping generic words and KPI labels.
func segmentOnLine(line string) (string, Figure, bool) {
	for _, loc := range segmentName.FindAllStringIndex(line, -1) {
		name := trimSegmentWords(line[loc[0]:loc[1]])
		if utf8.RuneCountInString(name) < 2 || isKPILabel(name) {
			continue
		}
		fig, ok := FindFigure(line[loc[1]:])
		if !ok || fig.Unit == "%" {
			continue
		}
		return name, fig, true
	}
	return "", Figure{}, false
}

func trimSegmentWords(name string) string {
	for _, w := range genericSegmentWords {
		name = strings.TrimSuffix(name, w)
		name = strings.TrimPrefix(name, w)
	}
	if slices.Contains(genericSegmentWords, name) {
		return ""
	}
	return name
}

func isKPILabel(name string) bool {
	for _, labels := range [][]string{RevenueLabels, OperatingIncomeLabels, OrdinaryIncomeLabels, NetIncomeLabels, EBITDALabels} {
		for _, l := range labels {
			if strings.EqualFold(name, l) {
				return true
			}
		}
	}
	return false
}
