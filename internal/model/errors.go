package model

import "errors"

var (
	// ErrEmptyCitation is returned when a citation would reference no page.
	ErrEmptyCitation = errors.New("citation must reference at least one page")

	// ErrPageOutOfRange is returned when a citation references a page that
	// is not in the page store.
	ErrPageOutOfRange = errors.New("cited page is out of range")

	// ErrFieldInvariant is returned when a field carries a value without a
	// citation, or a citation without a value.
	ErrFieldInvariant = errors.New("field value and citation must be both present or both absent")

	// ErrNonContiguousPages is returned when page indices are not unique
	// and contiguous starting at 1.
	ErrNonContiguousPages = errors.New("page indices must be contiguous starting at 1")
)
