package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/irreview/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "irreview.db"

// RunDB provides SQLite-based storage for completed runs.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

func (rdb *RunDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		doc_id TEXT NOT NULL,
		source_file TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		page_count INTEGER NOT NULL,
		degraded_count INTEGER NOT NULL DEFAULT 0,
		null_fields INTEGER NOT NULL DEFAULT 0,
		module_counts TEXT,
		enhanced_status TEXT,
		common_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_doc ON runs(doc_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored run.
type RunRecord struct {
	ID            int64
	RunID         string
	DocID         string
	SourceFile    string
	OutputDir     string
	StartedAt     time.Time
	FinishedAt    time.Time
	PageCount     int
	DegradedCount int
	NullFields    int

	// ModuleCounts maps module names to finding counts.
	ModuleCounts map[string]int

	// Enhanced is the enrichment outcome, empty when enhanced mode was off.
	Enhanced string

	// Common holds the extracted fields with their citations.
	Common *model.CommonInfo
}

// NewRunRecord captures the parts of a finished run that are kept in the
// history.
func NewRunRecord(run *model.Run) *RunRecord {
	meta := run.Meta
	rec := &RunRecord{
		RunID:        meta.RunID,
		DocID:        meta.DocID,
		SourceFile:   meta.SourceFile,
		OutputDir:    run.Layout.Root,
		StartedAt:    meta.StartedAt,
		FinishedAt:   meta.FinishedAt,
		PageCount:    meta.PageCount,
		ModuleCounts: make(map[string]int, len(meta.Modules)),
		Common:       run.Common,
	}
	if run.Pages != nil {
		rec.DegradedCount = len(run.Pages.DegradedPages())
	}
	for _, f := range run.Common.Fields() {
		if f.IsNull() {
			rec.NullFields++
		}
	}
	for name, m := range meta.Modules {
		rec.ModuleCounts[name] = m.Count
	}
	if meta.Enhanced != nil {
		rec.Enhanced = meta.Enhanced.Status
	}
	return rec
}

// SaveRun inserts a run and returns its row ID.
func (rdb *RunDB) SaveRun(ctx context.Context, rec *RunRecord) (int64, error) {
	commonJSON, err := json.Marshal(rec.Common)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize common fields: %w", err)
	}
	countsJSON, err := json.Marshal(rec.ModuleCounts)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize module counts: %w", err)
	}

	query := `
	INSERT INTO runs (run_id, doc_id, source_file, output_dir, started_at, finished_at,
		page_count, degraded_count, null_fields, module_counts, enhanced_status, common_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := rdb.db.ExecContext(ctx, query,
		rec.RunID,
		rec.DocID,
		rec.SourceFile,
		rec.OutputDir,
		formatTimestamp(rec.StartedAt),
		formatTimestamp(rec.FinishedAt),
		rec.PageCount,
		rec.DegradedCount,
		rec.NullFields,
		string(countsJSON),
		rec.Enhanced,
		string(commonJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	return result.LastInsertId()
}

const selectRun = `
	SELECT id, run_id, doc_id, source_file, output_dir, started_at, finished_at,
		page_count, degraded_count, null_fields, module_counts, enhanced_status, common_json
	FROM runs
	`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		rec        RunRecord
		started    string
		finished   string
		countsJSON sql.NullString
		enhanced   sql.NullString
		commonJSON string
	)
	err := row.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.DocID,
		&rec.SourceFile,
		&rec.OutputDir,
		&started,
		&finished,
		&rec.PageCount,
		&rec.DegradedCount,
		&rec.NullFields,
		&countsJSON,
		&enhanced,
		&commonJSON,
	)
	if err != nil {
		return nil, err
	}

	rec.StartedAt = parseTimestamp(started)
	rec.FinishedAt = parseTimestamp(finished)
	rec.Enhanced = enhanced.String

	rec.ModuleCounts = make(map[string]int)
	if countsJSON.Valid && countsJSON.String != "" {
		if err := json.Unmarshal([]byte(countsJSON.String), &rec.ModuleCounts); err != nil {
			rec.ModuleCounts = make(map[string]int)
		}
	}

	rec.Common = &model.CommonInfo{}
	if err := json.Unmarshal([]byte(commonJSON), rec.Common); err != nil {
		return nil, fmt.Errorf("failed to parse common fields of run %s: %w", rec.RunID, err)
	}
	return &rec, nil
}

// GetRun retrieves a run by its run ID. It returns nil when no such run
// exists.
func (rdb *RunDB) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	rec, err := scanRun(rdb.db.QueryRowContext(ctx, selectRun+" WHERE run_id = ?", runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// History returns every run of a document, newest first.
func (rdb *RunDB) History(ctx context.Context, docID string) ([]*RunRecord, error) {
	rows, err := rdb.db.QueryContext(ctx, selectRun+" WHERE doc_id = ? ORDER BY started_at DESC, id DESC", docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DocumentSummary describes one document in the history.
type DocumentSummary struct {
	DocID      string    `json:"doc_id"`
	SourceFile string    `json:"source_file"`
	Runs       int       `json:"runs"`
	LastRun    time.Time `json:"last_run"`
}

// ListDocuments returns one entry per document, most recently converted
// first. SourceFile is the file name used by the latest run.
func (rdb *RunDB) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	query := `
	SELECT r.doc_id, r.source_file, c.runs, r.started_at
	FROM runs r
	JOIN (
		SELECT doc_id, COUNT(*) AS runs, MAX(id) AS last_id
		FROM runs
		GROUP BY doc_id
	) c ON r.id = c.last_id
	ORDER BY r.started_at DESC, r.id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		var last string
		if err := rows.Scan(&d.DocID, &d.SourceFile, &d.Runs, &last); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.LastRun = parseTimestamp(last)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// formatTimestamp stores times in UTC with a fixed width, so that string
// order matches time order.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02T15:04:05.000000000Z",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
