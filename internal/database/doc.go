// Package database provides SQLite-based storage for the run history.
//
// RunDB stores one row per completed conversion: the document ID, timing,
// page and degradation counts, module counts and the extracted common
// fields as JSON. The history command lists these rows and diffs the
// common fields of two runs of the same document with Compare.
//
// The database is a single file (irreview.db) opened through the CGO-free
// modernc.org/sqlite driver.
package database
