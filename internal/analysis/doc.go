// Package analysis holds the analysis modules (KPI summary, heading
// frequency and risk statements) and the coordinator that runs them next to
// the field extractor.
package analysis
