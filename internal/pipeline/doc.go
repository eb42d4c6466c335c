// Package pipeline runs the conversion of one document as a sequence of
// steps over a shared model.Run.
//
// DefaultPipeline wires the standard order: ingest, analyze, assemble,
// then the optional enrich and history steps. The finalize step, which
// writes logs/run.json, runs after all others even when one of them
// failed, so a partial run still leaves a log behind.
package pipeline
