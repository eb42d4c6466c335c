package enrich

import (
	"bytes"
	"cmp"
	"os"
	"slices"
	"sync"

	"github.com/nao1215/irreview/internal/report"
)

// CallCost is the token usage of one provider call.
type CallCost struct {
	Step   string `json:"step"`
	Model  string `json:"model"`
	Tokens Usage  `json:"tokens"`
}

// CostLedger accumulates token usage over an enrichment run. It is safe
// for concurrent use.
type CostLedger struct {
	mu       sync.Mutex
	Provider string     `json:"provider"`
	Model    string     `json:"model"`
	Calls    []CallCost `json:"calls"`
	Totals   Usage      `json:"totals"`
}

// NewCostLedger creates an empty ledger for a provider.
func NewCostLedger(p Provider) *CostLedger {
	return &CostLedger{Provider: p.Name(), Model: p.Model(), Calls: []CallCost{}}
}

// Record adds the usage of one call.
func (l *CostLedger) Record(step, model string, u Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, CallCost{Step: step, Model: model, Tokens: u})
	l.Totals = l.Totals.Add(u)
}

// WriteFile writes the ledger as indented JSON. Calls are listed in
// article section order whatever order they completed in.
func (l *CostLedger) WriteFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	slices.SortStableFunc(l.Calls, func(a, b CallCost) int {
		return cmp.Compare(sectionRank(a.Step), sectionRank(b.Step))
	})
	var buf bytes.Buffer
	if _, err := report.NewJSONWriter(&buf, report.WithPrettyPrint()).WriteValue(l); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// sectionRank is the position of a section key in the article. Unknown
// steps sort last.
func sectionRank(step string) int {
	for i, s := range Sections() {
		if s.Key == step {
			return i
		}
	}
	return len(Sections())
}
