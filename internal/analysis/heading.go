package analysis

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nao1215/irreview/internal/extract"
	"github.com/nao1215/irreview/internal/model"
)

// DefaultHeadingTopN is the number of headings reported when none is
// configured.
const DefaultHeadingTopN = 10

const (
	minHeadingRunes  = 2
	maxHeadingRunes  = 40
	maxUnmarkedRunes = 20
)

var (
	numberedPrefix = regexp.MustCompile(`^(?:\d{1,2}[.)]|\(\d{1,2}\)|[①-⑳]|第\d+[章節部]|[Ⅰ-Ⅻ][.)])`)
	bracketPrefix  = regexp.MustCompile(`^(?:【.+】|■|●|◆|▶)`)
	segmentWords   = []string{"セグメント", "segment", "事業"}
	sentenceEnds   = []string{"です", "ます", "でした", "ました"}
)

// IsHeading reports whether a normalized line looks like a section
// heading.
func IsHeading(line string) bool {
	n := utf8.RuneCountInString(line)
	if n < minHeadingRunes || n > maxHeadingRunes {
		return false
	}
	if strings.Contains(line, "。") || strings.HasSuffix(line, ".") {
		return false
	}
	// "会社名: Acme Corp" is a labelled value, not a heading.
	if strings.ContainsAny(line, ":：") {
		return false
	}
	for _, end := range sentenceEnds {
		if strings.HasSuffix(line, end) {
			return false
		}
	}
	digits := 0
	for _, r := range line {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits*2 >= n {
		return false
	}

	switch {
	case numberedPrefix.MatchString(line), bracketPrefix.MatchString(line):
		return true
	case containsAnyFold(line, segmentWords):
		return true
	default:
		return digits == 0 && n <= maxUnmarkedRunes
	}
}

func containsAnyFold(s string, words []string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// HeadingFrequency reports the most frequent heading-like lines of the
// document.
type HeadingFrequency struct {
	topN int
}

// NewHeadingFrequency creates the analyzer. topN values below 1 fall back
// to DefaultHeadingTopN.
func NewHeadingFrequency(topN int) *HeadingFrequency {
	if topN < 1 {
		topN = DefaultHeadingTopN
	}
	return &HeadingFrequency{topN: topN}
}

// Name implements Analyzer.
func (h *HeadingFrequency) Name() model.ModuleName { return model.ModuleSegmentHeading }

type headingStat struct {
	text      string
	count     int
	firstPage int
	firstLine int
	pages     []int
}

// Analyze implements Analyzer. Headings are ranked by count, then by the
// page and line where they first appear. Each finding cites every page the
// heading occurs on.
func (h *HeadingFrequency) Analyze(ctx context.Context, store *model.PageStore) []model.Finding {
	stats := map[string]*headingStat{}
	for _, p := range store.Pages() {
		if ctx.Err() != nil {
			break
		}
		for lineNo, line := range extract.Lines(p.RawText) {
			if !IsHeading(line) {
				continue
			}
			st, ok := stats[line]
			if !ok {
				st = &headingStat{text: line, firstPage: p.Index, firstLine: lineNo}
				stats[line] = st
			}
			st.count++
			if !slices.Contains(st.pages, p.Index) {
				st.pages = append(st.pages, p.Index)
			}
		}
	}

	ranked := make([]*headingStat, 0, len(stats))
	for _, st := range stats {
		ranked = append(ranked, st)
	}
	slices.SortFunc(ranked, func(a, b *headingStat) int {
		return cmp.Or(
			cmp.Compare(b.count, a.count),
			cmp.Compare(a.firstPage, b.firstPage),
			cmp.Compare(a.firstLine, b.firstLine),
		)
	})
	if len(ranked) > h.topN {
		ranked = ranked[:h.topN]
	}

	findings := make([]model.Finding, 0, len(ranked))
	for _, st := range ranked {
		citation, err := model.NewCitation(st.pages...)
		if err != nil {
			continue
		}
		findings = append(findings, model.Finding{
			Module:   model.ModuleSegmentHeading,
			Label:    st.text,
			Detail:   occurrences(st.count, len(st.pages)),
			Citation: citation,
		})
	}
	return findings
}

func occurrences(count, pages int) string {
	times := "times"
	if count == 1 {
		times = "time"
	}
	pageWord := "pages"
	if pages == 1 {
		pageWord = "page"
	}
	return fmt.Sprintf("appears %d %s on %d %s", count, times, pages, pageWord)
}
