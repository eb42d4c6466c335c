package model

import (
	"errors"
	"testing"
)

func TestImageRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		index int
		want  string
	}{
		{1, "images/p001.png"},
		{42, "images/p042.png"},
		{123, "images/p123.png"},
	}
	for _, tt := range tests {
		if got := ImageRef(tt.index); got != tt.want {
			t.Errorf("ImageRef(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestNewPageStore(t *testing.T) {
	t.Parallel()

	t.Run("contiguous pages are accepted", func(t *testing.T) {
		t.Parallel()

		store := testStore(t, 3)
		if store.Len() != 3 {
			t.Fatalf("Len() = %d, want 3", store.Len())
		}
		p, ok := store.Page(2)
		if !ok || p.Index != 2 {
			t.Errorf("Page(2) = %+v, %v", p, ok)
		}
		if _, ok := store.Page(4); ok {
			t.Error("Page(4) should not exist")
		}
		if store.Contains(0) {
			t.Error("Contains(0) should be false")
		}
	})

	t.Run("gap in indices is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewPageStore([]Page{{Index: 1}, {Index: 3}})
		if !errors.Is(err, ErrNonContiguousPages) {
			t.Errorf("error = %v, want ErrNonContiguousPages", err)
		}
	})

	t.Run("store is not affected by caller mutation", func(t *testing.T) {
		t.Parallel()

		pages := []Page{{Index: 1, RawText: "original"}}
		store, err := NewPageStore(pages)
		if err != nil {
			t.Fatal(err)
		}
		pages[0].RawText = "changed"

		got := store.Pages()
		got[0].RawText = "changed again"

		p, _ := store.Page(1)
		if p.RawText != "original" {
			t.Errorf("RawText = %q, want %q", p.RawText, "original")
		}
	})

	t.Run("nil store is empty", func(t *testing.T) {
		t.Parallel()

		var store *PageStore
		if store.Len() != 0 || store.Contains(1) {
			t.Error("nil store should be empty")
		}
	})
}

func TestDegradedPages(t *testing.T) {
	t.Parallel()

	store, err := NewPageStore([]Page{
		{Index: 1, Method: MethodNative},
		{Index: 2, Method: MethodNone},
		{Index: 3, Method: MethodOCR, ImageDegraded: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := store.DegradedPages()
	if len(got) != 2 || got[0].Index != 2 || got[1].Index != 3 {
		t.Errorf("DegradedPages() = %+v, want pages 2 and 3", got)
	}
}
