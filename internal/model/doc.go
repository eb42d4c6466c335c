// Package model defines the data structures shared by every stage of an
// irreview run.
//
// The main types are:
//   - Page and PageStore: the immutable per-page record produced by ingestion
//   - Citation: the set of page indices that supports a value or finding
//   - Field and CommonInfo: whole-document facts, each either fully sourced
//     or explicitly absent
//   - Finding and AnalysisResult: the citation-bearing output of the
//     analysis modules
//   - RunMetadata: the record written to logs/run.json
//   - Run: the state threaded through the pipeline steps
//
// CommonInfo and AnalysisResult refer to pages by index only. They never hold
// page text or images, so the page store remains the single owner of page
// content.
//
// All types serialize to JSON with a fixed key order so that repeated runs
// over the same document produce byte-identical artifacts.
package model
