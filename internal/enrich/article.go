package enrich

import (
	"fmt"
	"io"
	"path"

	"github.com/nao1215/markdown"

	"github.com/nao1215/irreview/internal/model"
)

// imagePrefix is the path from outputs/ back to the output root.
const imagePrefix = "../"

// SectionResult is the generated content of one section.
type SectionResult struct {
	Section Section
	Text    string
	Pages   []int
	Err     error
}

// Article is the generated commentary for one document.
type Article struct {
	Profile  Profile
	Provider string
	Model    string
	Sections []SectionResult
}

// Succeeded returns how many sections were generated without error.
func (a *Article) Succeeded() int {
	n := 0
	for _, s := range a.Sections {
		if s.Err == nil {
			n++
		}
	}
	return n
}

// WriteMarkdown renders the article. Every section lists the pages its
// excerpts came from and embeds their images.
func (a *Article) WriteMarkdown(w io.Writer) error {
	md := markdown.NewMarkdown(w)
	md.H1(fmt.Sprintf("%s: %s", a.Profile.Company, a.Profile.Period))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Company", a.Profile.Company},
			{"Period", a.Profile.Period},
			{"Accounting standard", a.Profile.Standard},
			{"Industry (inferred)", a.Profile.Industry},
		},
	})

	for _, s := range a.Sections {
		md.H2(s.Section.Title)
		md.PlainText("")
		if s.Err != nil {
			md.Warningf("This section could not be generated: %s", s.Err.Error())
			md.PlainText("")
			continue
		}
		md.PlainText(s.Text)
		md.PlainText("")
		if len(s.Pages) == 0 {
			continue
		}
		c, err := model.NewCitation(s.Pages...)
		if err != nil {
			continue
		}
		md.PlainTextf("Sources: %s", c.Marker())
		md.PlainText("")
		for _, p := range s.Pages {
			md.PlainText(markdown.Image(fmt.Sprintf("p. %d", p), path.Join(imagePrefix, model.ImageRef(p))))
		}
		md.PlainText("")
	}

	md.HorizontalRule()
	md.PlainText(markdown.Italic(fmt.Sprintf("Generated by %s (%s). Check figures against the cited pages and outputs/review.md.",
		a.Provider, a.Model)))
	return md.Build()
}
