package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Citation is the set of pages that support a field value or a finding.
// PageIndices is non-empty and strictly increasing.
type Citation struct {
	PageIndices []int `json:"page_indices"`
}

// NewCitation builds a citation from page indices in any order.
// Duplicates are removed.
func NewCitation(pages ...int) (Citation, error) {
	if len(pages) == 0 {
		return Citation{}, ErrEmptyCitation
	}
	idx := slices.Clone(pages)
	slices.Sort(idx)
	idx = slices.Compact(idx)
	if idx[0] < 1 {
		return Citation{}, fmt.Errorf("%w: page %d", ErrPageOutOfRange, idx[0])
	}
	return Citation{PageIndices: idx}, nil
}

// PageCitation is a single-page citation.
func PageCitation(page int) Citation {
	return Citation{PageIndices: []int{page}}
}

// First returns the lowest cited page, or 0 for an empty citation.
func (c Citation) First() int {
	if len(c.PageIndices) == 0 {
		return 0
	}
	return c.PageIndices[0]
}

// Validate checks that the citation is non-empty and that every cited page
// exists in the store.
func (c Citation) Validate(store *PageStore) error {
	if len(c.PageIndices) == 0 {
		return ErrEmptyCitation
	}
	for _, p := range c.PageIndices {
		if !store.Contains(p) {
			return fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, p, store.Len())
		}
	}
	return nil
}

// Marker renders the inline citation marker, "[p. 2]" or "[p. 2, 5]".
func (c Citation) Marker() string {
	parts := make([]string, len(c.PageIndices))
	for i, p := range c.PageIndices {
		parts[i] = strconv.Itoa(p)
	}
	return "[p. " + strings.Join(parts, ", ") + "]"
}
