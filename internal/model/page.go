package model

import (
	"fmt"
	"path"
)

// ExtractionMethod records how the raw text of a page was obtained.
type ExtractionMethod string

const (
	// MethodNative means the text came from the PDF text layer.
	MethodNative ExtractionMethod = "native"

	// MethodOCR means the text layer was empty and the text was recognized
	// from the rendered page image.
	MethodOCR ExtractionMethod = "ocr"

	// MethodNone means no text could be obtained for the page.
	MethodNone ExtractionMethod = "none"
)

// ImagesDir is the directory, relative to the output root, holding page images.
const ImagesDir = "images"

// ImageRef returns the output-relative path of the image for a page,
// for example "images/p007.png".
func ImageRef(index int) string {
	return path.Join(ImagesDir, fmt.Sprintf("p%03d.png", index))
}

// Page is a single physical page of the source document.
// Pages are created once during ingestion and never modified.
type Page struct {
	// Index is the 1-based page number.
	Index int `json:"index"`

	// ImageRef is the output-relative path of the rendered page image.
	ImageRef string `json:"-"`

	// RawText is the extracted text. It is empty when Method is MethodNone.
	RawText string `json:"raw_text"`

	// Method records how RawText was obtained.
	Method ExtractionMethod `json:"text_extraction_method"`

	// ImageDegraded is set when rasterization failed and ImageRef points to
	// a placeholder.
	ImageDegraded bool `json:"-"`
}

// Degraded reports whether text or image extraction failed for the page.
func (p Page) Degraded() bool {
	return p.Method == MethodNone || p.ImageDegraded
}

// PageStore is the ordered, immutable collection of pages for one document.
type PageStore struct {
	pages []Page
}

// NewPageStore builds a store from pages ordered by index.
// Indices must be unique and run contiguously from 1.
func NewPageStore(pages []Page) (*PageStore, error) {
	for i, p := range pages {
		if p.Index != i+1 {
			return nil, fmt.Errorf("%w: position %d has index %d", ErrNonContiguousPages, i+1, p.Index)
		}
	}
	cp := make([]Page, len(pages))
	copy(cp, pages)
	return &PageStore{pages: cp}, nil
}

// Len returns the number of pages.
func (s *PageStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pages)
}

// Contains reports whether index names a page in the store.
func (s *PageStore) Contains(index int) bool {
	return index >= 1 && index <= s.Len()
}

// Page returns the page with the given 1-based index.
func (s *PageStore) Page(index int) (Page, bool) {
	if !s.Contains(index) {
		return Page{}, false
	}
	return s.pages[index-1], true
}

// Pages returns a copy of all pages in index order.
func (s *PageStore) Pages() []Page {
	if s == nil {
		return nil
	}
	cp := make([]Page, len(s.pages))
	copy(cp, s.pages)
	return cp
}

// DegradedPages returns the pages whose text or image extraction failed.
func (s *PageStore) DegradedPages() []Page {
	var out []Page
	for _, p := range s.Pages() {
		if p.Degraded() {
			out = append(out, p)
		}
	}
	return out
}
