package database

import (
	"slices"
	"time"

	"github.com/nao1215/irreview/internal/model"
)

// Kinds of field change between two runs.
const (
	ChangeAdded    = "added"   // null before, found now
	ChangeRemoved  = "removed" // found before, null now
	ChangeModified = "changed" // value differs
	ChangeMoved    = "moved"   // same value, cited on other pages
)

// Coverage directions.
const (
	CoverageImproved  = "improved"
	CoverageWorsened  = "worsened"
	CoverageUnchanged = "unchanged"
)

// FieldChange describes how one common field differs between two runs.
type FieldChange struct {
	Field         string `json:"field"`
	Label         string `json:"label"`
	Kind          string `json:"kind"`
	Previous      string `json:"previous,omitempty"`
	Current       string `json:"current,omitempty"`
	PreviousPages []int  `json:"previous_pages,omitempty"`
	CurrentPages  []int  `json:"current_pages,omitempty"`
}

// RunSummary contains metadata about a run for comparison display.
type RunSummary struct {
	RunID         string         `json:"run_id"`
	StartedAt     time.Time      `json:"started_at"`
	PageCount     int            `json:"page_count"`
	DegradedCount int            `json:"degraded_count"`
	NullFields    int            `json:"null_fields"`
	ModuleCounts  map[string]int `json:"module_counts"`
}

// Comparison holds the result of comparing two runs of a document.
type Comparison struct {
	DocID    string     `json:"doc_id"`
	Previous RunSummary `json:"previous_run"`
	Current  RunSummary `json:"current_run"`

	// Changes lists differing fields in field order.
	Changes []FieldChange `json:"changes"`

	// UnchangedCount is the number of fields with the same value and pages.
	UnchangedCount int `json:"unchanged_count"`

	// ModuleDeltas is the change in finding count per module.
	ModuleDeltas map[string]int `json:"module_deltas"`

	// Coverage tells whether fewer fields are null than before.
	Coverage string `json:"coverage"`
}

func summarize(r *RunRecord) RunSummary {
	return RunSummary{
		RunID:         r.RunID,
		StartedAt:     r.StartedAt,
		PageCount:     r.PageCount,
		DegradedCount: r.DegradedCount,
		NullFields:    r.NullFields,
		ModuleCounts:  r.ModuleCounts,
	}
}

// Compare diffs the common fields and module counts of two runs.
func Compare(previous, current *RunRecord) *Comparison {
	result := &Comparison{
		DocID:        current.DocID,
		Previous:     summarize(previous),
		Current:      summarize(current),
		Changes:      []FieldChange{},
		ModuleDeltas: make(map[string]int),
	}

	for _, name := range model.FieldOrder {
		prev, _ := previous.Common.Field(name)
		cur, _ := current.Common.Field(name)
		change := FieldChange{Field: string(name), Label: name.Label()}
		if !prev.IsNull() {
			change.Previous = prev.Value.Display()
			change.PreviousPages = prev.Citation.PageIndices
		}
		if !cur.IsNull() {
			change.Current = cur.Value.Display()
			change.CurrentPages = cur.Citation.PageIndices
		}

		switch {
		case prev.IsNull() && cur.IsNull():
			result.UnchangedCount++
			continue
		case prev.IsNull():
			change.Kind = ChangeAdded
		case cur.IsNull():
			change.Kind = ChangeRemoved
		case !prev.Value.Equal(cur.Value):
			change.Kind = ChangeModified
		case !slices.Equal(change.PreviousPages, change.CurrentPages):
			change.Kind = ChangeMoved
		default:
			result.UnchangedCount++
			continue
		}
		result.Changes = append(result.Changes, change)
	}

	for name, n := range current.ModuleCounts {
		result.ModuleDeltas[name] = n - previous.ModuleCounts[name]
	}
	for name, n := range previous.ModuleCounts {
		if _, ok := current.ModuleCounts[name]; !ok {
			result.ModuleDeltas[name] = -n
		}
	}

	switch {
	case current.NullFields < previous.NullFields:
		result.Coverage = CoverageImproved
	case current.NullFields > previous.NullFields:
		result.Coverage = CoverageWorsened
	default:
		result.Coverage = CoverageUnchanged
	}
	return result
}
