package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ModuleName identifies an analysis module.
type ModuleName string

// Analysis modules, in output order.
const (
	ModuleKPISummary     ModuleName = "kpi_summary"
	ModuleSegmentHeading ModuleName = "segment_heading"
	ModuleRisk           ModuleName = "risk"
)

// ModuleOrder is the fixed order of modules in every artifact.
var ModuleOrder = []ModuleName{ModuleKPISummary, ModuleSegmentHeading, ModuleRisk}

var moduleTitles = map[ModuleName]string{
	ModuleKPISummary:     "KPI Summary",
	ModuleSegmentHeading: "Segments and Headings",
	ModuleRisk:           "Risk Statements",
}

// Title returns the section title for the module.
func (m ModuleName) Title() string {
	if t, ok := moduleTitles[m]; ok {
		return t
	}
	return string(m)
}

// Finding is one atomic result of an analysis module.
// Its citation is always non-empty.
type Finding struct {
	Module   ModuleName `json:"module"`
	Label    string     `json:"label"`
	Detail   string     `json:"detail"`
	Citation Citation   `json:"citation"`
}

// AnalysisResult holds the findings of every module.
type AnalysisResult struct {
	findings map[ModuleName][]Finding
}

// NewAnalysisResult returns a result with an empty slot for every module in
// ModuleOrder.
func NewAnalysisResult() *AnalysisResult {
	r := &AnalysisResult{findings: make(map[ModuleName][]Finding, len(ModuleOrder))}
	for _, m := range ModuleOrder {
		r.findings[m] = []Finding{}
	}
	return r
}

// Set stores the findings of a module, replacing earlier ones.
func (r *AnalysisResult) Set(module ModuleName, findings []Finding) {
	if findings == nil {
		findings = []Finding{}
	}
	r.findings[module] = slices.Clone(findings)
}

// Findings returns a copy of the findings of a module.
func (r *AnalysisResult) Findings(module ModuleName) []Finding {
	if r == nil {
		return nil
	}
	return slices.Clone(r.findings[module])
}

// Count returns the number of findings of a module.
func (r *AnalysisResult) Count(module ModuleName) int {
	if r == nil {
		return 0
	}
	return len(r.findings[module])
}

// Modules returns the module names in output order: ModuleOrder first, then
// any other module in name order.
func (r *AnalysisResult) Modules() []ModuleName {
	if r == nil {
		return nil
	}
	out := slices.Clone(ModuleOrder)
	var extra []ModuleName
	for m := range r.findings {
		if !slices.Contains(ModuleOrder, m) {
			extra = append(extra, m)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// Validate checks that every finding carries a valid citation.
func (r *AnalysisResult) Validate(store *PageStore) error {
	var errs []error
	for _, m := range r.Modules() {
		for i, f := range r.findings[m] {
			if err := f.Citation.Validate(store); err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", m, i, err))
			}
		}
	}
	return errors.Join(errs...)
}

// MarshalJSON writes the result as an object keyed by module name in module
// order. Empty modules are written as [].
func (r *AnalysisResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range r.Modules() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(m))
		if err != nil {
			return nil, err
		}
		findings := r.findings[m]
		if findings == nil {
			findings = []Finding{}
		}
		val, err := json.Marshal(findings)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keyed by module name.
func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	raw := make(map[ModuleName][]Finding)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = *NewAnalysisResult()
	for m, f := range raw {
		r.Set(m, f)
	}
	return nil
}
