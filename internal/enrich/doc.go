// Package enrich implements the optional enhanced mode.
//
// After the baseline outputs are written, an Enricher asks a Provider to
// write one short commentary per article section, attaches the most
// relevant page images and writes outputs/article.md together with the
// token usage in logs/cost.json. Enrichment never fails a run: its
// outcome is reported as a model.EnhancedStatus.
//
// Two providers are available. MockProvider answers deterministically and
// offline. OpenAIProvider calls the Chat Completions API.
package enrich
