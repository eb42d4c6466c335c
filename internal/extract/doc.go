// Package extract resolves the fixed set of common fields (company, period,
// accounting standard, currency unit and headline KPIs) from the page store.
// Each resolved field carries a single-page citation.
package extract
