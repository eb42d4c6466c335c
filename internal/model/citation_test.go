package model

import (
	"errors"
	"slices"
	"testing"
)

func testStore(t *testing.T, n int) *PageStore {
	t.Helper()

	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Index: i + 1, ImageRef: ImageRef(i + 1), Method: MethodNative}
	}
	store, err := NewPageStore(pages)
	if err != nil {
		t.Fatalf("NewPageStore() error = %v", err)
	}
	return store
}

func TestNewCitation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pages   []int
		want    []int
		wantErr error
	}{
		{name: "single page", pages: []int{2}, want: []int{2}},
		{name: "sorted and deduplicated", pages: []int{5, 2, 5, 3}, want: []int{2, 3, 5}},
		{name: "empty", pages: nil, wantErr: ErrEmptyCitation},
		{name: "zero page", pages: []int{0, 1}, wantErr: ErrPageOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NewCitation(tt.pages...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewCitation() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCitation() unexpected error: %v", err)
			}
			if !slices.Equal(got.PageIndices, tt.want) {
				t.Errorf("PageIndices = %v, want %v", got.PageIndices, tt.want)
			}
		})
	}
}

func TestCitationMarker(t *testing.T) {
	t.Parallel()

	if got := PageCitation(2).Marker(); got != "[p. 2]" {
		t.Errorf("Marker() = %q, want %q", got, "[p. 2]")
	}

	c, err := NewCitation(7, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Marker(); got != "[p. 1, 3, 7]" {
		t.Errorf("Marker() = %q, want %q", got, "[p. 1, 3, 7]")
	}
}

func TestCitationValidate(t *testing.T) {
	t.Parallel()

	store := testStore(t, 3)

	if err := PageCitation(3).Validate(store); err != nil {
		t.Errorf("page 3 of 3 should be valid: %v", err)
	}
	if err := PageCitation(4).Validate(store); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("page 4 of 3: error = %v, want ErrPageOutOfRange", err)
	}
	if err := (Citation{}).Validate(store); !errors.Is(err, ErrEmptyCitation) {
		t.Errorf("empty citation: error = %v, want ErrEmptyCitation", err)
	}
}
