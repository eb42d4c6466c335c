// Package report renders and writes the outputs of a run.
//
// Writers render a Review in different formats:
//   - MarkdownWriter: the citation-linked review (outputs/review.md)
//   - JSONWriter: structured JSON for the extracted/ artifacts
//   - SimpleWriter: a plain-text summary for the terminal
//
// The Assembler ties them together. It also validates the JSON artifacts
// against embedded schemas and checks the rendered review with
// CitationChecker.
package report
