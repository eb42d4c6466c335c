package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// Normalize folds fullwidth ASCII to its narrow form and halfwidth katakana
// to the wide form, so "売上高　１，２３４" reads as "売上高 1,234".
// Line breaks are preserved.
func Normalize(s string) string {
	return width.Fold.String(s)
}

var spaceRun = regexp.MustCompile(`[ \t\x{00A0}]+`)

// CollapseSpace trims a line and collapses runs of blanks into one space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Lines returns the normalized, non-empty lines of a page.
func Lines(raw string) []string {
	var out []string
	for _, line := range strings.Split(Normalize(raw), "\n") {
		if line = CollapseSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Figure is a number printed after a label.
type Figure struct {
	// Text is the figure as printed, after width folding.
	Text string
	// Value is the parsed number. A leading △ or ▲ makes it negative.
	Value float64
	// Unit is the unit printed right after the number, if any.
	Unit string
}

// String renders the figure with its unit.
func (f Figure) String() string {
	if f.Unit == "" {
		return f.Text
	}
	return f.Text + " " + f.Unit
}

// MaxLabelGap is the number of characters allowed between a label and its
// figure.
const MaxLabelGap = 20

var (
	figurePattern = regexp.MustCompile(`[△▲]?\s?[0-9][0-9,]*(?:\.[0-9]+)?`)
	unitPattern   = regexp.MustCompile(`^\s?(百万円|千円|億円|円|%|USD|million|billion)`)
)

// Date-like suffixes mean the number is part of a period, not a value.
var periodSuffixes = []string{"年", "月", "期", "Q", "日"}

// FindFigure returns the first figure within MaxLabelGap characters of the
// start of rest. rest should be the text following a label, up to the end
// of its line.
func FindFigure(rest string) (Figure, bool) {
	for _, loc := range figurePattern.FindAllStringIndex(rest, -1) {
		if utf8.RuneCountInString(rest[:loc[0]]) > MaxLabelGap {
			break
		}
		after := rest[loc[1]:]
		if hasAnyPrefix(after, periodSuffixes) {
			continue
		}
		text := strings.TrimRight(strings.ReplaceAll(rest[loc[0]:loc[1]], " ", ""), ",")
		v, ok := parseFigure(text)
		if !ok {
			continue
		}
		fig := Figure{Text: text, Value: v}
		if m := unitPattern.FindStringSubmatch(after); m != nil {
			fig.Unit = m[1]
		}
		return fig, true
	}
	return Figure{}, false
}

func parseFigure(text string) (float64, bool) {
	neg := false
	for _, mark := range []string{"△", "▲"} {
		if strings.HasPrefix(text, mark) {
			neg = true
			text = strings.TrimPrefix(text, mark)
		}
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
