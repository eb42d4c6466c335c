package report

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/nao1215/irreview/internal/model"
)

// markerPattern matches an unescaped citation marker such as "[p. 3]" or
// "[p. 1, 4]".
var markerPattern = regexp.MustCompile(`(?:^|[^\\])\[p\. (\d+(?:, \d+)*)\]`)

var imagePagePattern = regexp.MustCompile(`(?:^|/)images/p(\d{3,})\.png$`)

// CitationChecker parses a rendered review and checks it against the page
// store: every image must show an existing page, and every cited page must
// have its image embedded.
type CitationChecker struct {
	md goldmark.Markdown
}

// NewCitationChecker returns a checker using a CommonMark parser.
func NewCitationChecker() *CitationChecker {
	return &CitationChecker{md: goldmark.New()}
}

// CitationReport is what the checker found in a review.
type CitationReport struct {
	// Cited lists every page referenced by a marker, ascending.
	Cited []int
	// Embedded lists every page with an embedded image, ascending.
	Embedded []int
	// Problems describes each violation found.
	Problems []string
}

// OK reports whether no problems were found.
func (r *CitationReport) OK() bool {
	return len(r.Problems) == 0
}

// Check parses src and compares markers and images with store.
func (c *CitationChecker) Check(src []byte, store *model.PageStore) *CitationReport {
	doc := c.md.Parser().Parse(text.NewReader(src))

	cited := map[int]bool{}
	embedded := map[int]bool{}
	var problems []string
	var plain strings.Builder

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			dest := string(node.Destination)
			m := imagePagePattern.FindStringSubmatch(dest)
			if m == nil {
				problems = append(problems, fmt.Sprintf("image %q is not a page image", dest))
				return ast.WalkSkipChildren, nil
			}
			page, _ := strconv.Atoi(m[1])
			if !store.Contains(page) {
				problems = append(problems, fmt.Sprintf("image %q shows page %d which does not exist", dest, page))
			}
			embedded[page] = true
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			plain.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				plain.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.ListItem, *ast.Heading:
			plain.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})

	for _, m := range markerPattern.FindAllStringSubmatch(plain.String(), -1) {
		for _, s := range strings.Split(m[1], ", ") {
			page, err := strconv.Atoi(s)
			if err != nil {
				continue
			}
			cited[page] = true
			if !store.Contains(page) {
				problems = append(problems, fmt.Sprintf("citation of page %d which does not exist", page))
			}
		}
	}

	report := &CitationReport{Cited: sortedKeys(cited), Embedded: sortedKeys(embedded)}
	for _, page := range report.Cited {
		if !embedded[page] {
			problems = append(problems, fmt.Sprintf("page %d is cited but its image is not embedded", page))
		}
	}
	report.Problems = problems
	return report
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
