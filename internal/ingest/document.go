package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/nao1215/irreview/internal/model"
)

// docIDLength is the number of hex characters of the SHA-256 used as the
// document id.
const docIDLength = 12

func init() {
	// pdfcpu would otherwise create a configuration directory in the
	// user's home on first use.
	api.DisableConfigDir()
}

// Document is an opened source PDF.
type Document struct {
	// Path is the file the document was read from.
	Path string

	// Data is the raw file content.
	Data []byte

	// NumPages is the page count reported by pdfcpu.
	NumPages int

	// SHA256 is the hex digest of Data.
	SHA256 string

	// reader gives access to page content. It is nil when the text layer
	// parser rejected the file; text extraction then degrades per page.
	reader *pdf.Reader
}

// DocID returns the short document id derived from the content hash.
func (d *Document) DocID() string {
	if len(d.SHA256) < docIDLength {
		return d.SHA256
	}
	return d.SHA256[:docIDLength]
}

// Opener opens a PDF for ingestion.
type Opener func(path string) (*Document, error)

// OpenDocument reads and validates a PDF. Validation and page counting use
// pdfcpu in relaxed mode; any failure there is ErrCorruptPDF. The text layer
// parser is allowed to fail.
func OpenDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // input path comes from the user
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptPDF, err)
	}

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptPDF, err)
	}
	if n == 0 {
		return nil, ErrNoPages
	}

	sum := sha256.Sum256(data)
	doc := &Document{
		Path:     path,
		Data:     data,
		NumPages: n,
		SHA256:   hex.EncodeToString(sum[:]),
	}

	if r, err := newTextReader(data); err == nil {
		doc.reader = r
	}
	return doc, nil
}

// newTextReader wraps pdf.NewReader, which panics on some malformed files.
func newTextReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// Info returns the document Info dictionary. Entries missing from the
// trailer are looked up in the raw bytes, including XMP metadata.
func (d *Document) Info() *model.DocumentInfo {
	info := d.trailerInfo()
	raw := rawInfo(d.Data)
	fill := func(dst *string, keys ...string) {
		for _, k := range keys {
			if *dst == "" {
				*dst = raw[k]
			}
		}
	}
	fill(&info.Title, "title")
	fill(&info.Author, "author", "xmp_creator")
	fill(&info.Creator, "creator", "xmp_tool")
	fill(&info.Producer, "producer", "xmp_producer")
	fill(&info.CreationDate, "creationDate")
	return info
}

func (d *Document) trailerInfo() (info *model.DocumentInfo) {
	info = &model.DocumentInfo{}
	if d.reader == nil {
		return info
	}
	defer func() {
		if recover() != nil {
			info = &model.DocumentInfo{}
		}
	}()
	v := d.reader.Trailer().Key("Info")
	if v.IsNull() {
		return info
	}
	info.Title = strings.TrimSpace(v.Key("Title").Text())
	info.Author = strings.TrimSpace(v.Key("Author").Text())
	info.Creator = strings.TrimSpace(v.Key("Creator").Text())
	info.Producer = strings.TrimSpace(v.Key("Producer").Text())
	info.CreationDate = strings.TrimSpace(v.Key("CreationDate").Text())
	return info
}

var infoPatterns = map[string]*regexp.Regexp{
	"title":        regexp.MustCompile(`/Title\s*\(([^)]+)\)`),
	"author":       regexp.MustCompile(`/Author\s*\(([^)]+)\)`),
	"creator":      regexp.MustCompile(`/Creator\s*\(([^)]+)\)`),
	"producer":     regexp.MustCompile(`/Producer\s*\(([^)]+)\)`),
	"creationDate": regexp.MustCompile(`/CreationDate\s*\(([^)]+)\)`),
	"xmp_creator":  regexp.MustCompile(`<dc:creator[^>]*>.*?<rdf:li[^>]*>([^<]+)</rdf:li>`),
	"xmp_tool":     regexp.MustCompile(`xmp:CreatorTool>([^<]+)<`),
	"xmp_producer": regexp.MustCompile(`pdf:Producer>([^<]+)<`),
}

// rawInfo scans uncompressed PDF bytes for Info and XMP entries.
func rawInfo(data []byte) map[string]string {
	out := make(map[string]string, len(infoPatterns))
	for key, re := range infoPatterns {
		if m := re.FindSubmatch(data); len(m) > 1 {
			out[key] = unescapePDFString(string(m[1]))
		}
	}
	return out
}

var pdfEscapes = strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t", `\(`, "(", `\)`, ")", `\\`, `\`)

func unescapePDFString(s string) string {
	return strings.TrimSpace(pdfEscapes.Replace(s))
}
