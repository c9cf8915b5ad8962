package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/atlas/internal/config"
	"github.com/nao1215/atlas/internal/hook"
	"github.com/nao1215/atlas/internal/model"
)

// CrawlDB provides SQLite-based storage for crawl runs.
//
// Design decision: We keep every run in one database file rather than one
// file per seed because:
//  1. History queries span seeds
//  2. A single file is simpler to back up and inspect
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// mu guards current.
	mu sync.Mutex

	// current is the row ID of the run started by the last Reset, or 0.
	current int64
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB inside dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, config.DefaultDatabaseFilename)

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

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run; run_id is filled in when the run starts
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		seed_url TEXT NOT NULL DEFAULT '',
		strategy TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages_fetched INTEGER NOT NULL DEFAULT 0,
		pages_visited INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		skipped_count INTEGER NOT NULL DEFAULT 0,
		record_count INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		summary_json TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Records produced by page hooks, in arrival order
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL DEFAULT '',
		record_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run);

	-- Graph keys in insertion order
	CREATE TABLE IF NOT EXISTS nodes (
		run INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY(run, position)
	);

	-- Accepted links of each graph key, in discovery order
	CREATE TABLE IF NOT EXISTS edges (
		run INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		source TEXT NOT NULL,
		position INTEGER NOT NULL,
		target TEXT NOT NULL,
		anchor_text TEXT NOT NULL DEFAULT '',
		PRIMARY KEY(run, source, position)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(run, target);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

func (cdb *CrawlDB) activeRun() (int64, error) {
	cdb.mu.Lock()
	defer cdb.mu.Unlock()
	if cdb.current == 0 {
		return 0, ErrNoActiveRun
	}
	return cdb.current, nil
}

// Reset starts a new run row. Earlier runs are kept as history.
func (cdb *CrawlDB) Reset(ctx context.Context) error {
	result, err := cdb.db.ExecContext(ctx,
		`INSERT INTO runs (started_at) VALUES (?)`,
		formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}

	cdb.mu.Lock()
	cdb.current = id
	cdb.mu.Unlock()
	return nil
}

// AppendRecord stores record under the active run.
func (cdb *CrawlDB) AppendRecord(ctx context.Context, record model.Record) error {
	run, err := cdb.activeRun()
	if err != nil {
		return err
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}
	url, _ := record["url"].(string)

	_, err = cdb.db.ExecContext(ctx,
		`INSERT INTO records (run, url, record_json, created_at) VALUES (?, ?, ?, ?)`,
		run, url, string(recordJSON), formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// WriteSnapshot replaces the stored graph of the active run.
func (cdb *CrawlDB) WriteSnapshot(ctx context.Context, graph *model.Graph) (err error) {
	run, err := cdb.activeRun()
	if err != nil {
		return err
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // original error takes precedence
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM nodes WHERE run = ?`, run); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM edges WHERE run = ?`, run); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes (run, position, url) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO edges (run, source, position, target, anchor_text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for i, source := range graph.URLs() {
		if _, err = nodeStmt.ExecContext(ctx, run, i, source); err != nil {
			return fmt.Errorf("failed to insert node: %w", err)
		}
		links, _ := graph.Links(source)
		for j, l := range links {
			if _, err = edgeStmt.ExecContext(ctx, run, source, j, l.Target, l.AnchorText); err != nil {
				return fmt.Errorf("failed to insert edge: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}
	return nil
}

// Name implements hook.Hook.
func (cdb *CrawlDB) Name() string {
	return "database"
}

// OnStart attaches the run ID and seed to the active run.
// Without an active run (results saving disabled) it does nothing.
func (cdb *CrawlDB) OnStart(ctx context.Context, cc *hook.Context) error {
	run, err := cdb.activeRun()
	if errors.Is(err, ErrNoActiveRun) {
		return nil
	}

	_, err = cdb.db.ExecContext(ctx,
		`UPDATE runs SET run_id = ?, seed_url = ? WHERE id = ?`,
		cc.RunID(), cc.Seed(), run,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// OnFinish stores the run summary on the active run.
func (cdb *CrawlDB) OnFinish(ctx context.Context, summary *model.Summary, _ *hook.Context) error {
	run, err := cdb.activeRun()
	if errors.Is(err, ErrNoActiveRun) {
		return nil
	}

	// The graph is stored as nodes and edges by WriteSnapshot.
	stored := *summary
	stored.Graph = nil
	summaryJSON, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	query := `
	UPDATE runs SET
		run_id = ?,
		seed_url = ?,
		strategy = ?,
		started_at = ?,
		finished_at = ?,
		pages_fetched = ?,
		pages_visited = ?,
		error_count = ?,
		skipped_count = ?,
		record_count = ?,
		cancelled = ?,
		summary_json = ?
	WHERE id = ?
	`

	_, err = cdb.db.ExecContext(ctx, query,
		summary.RunID,
		summary.SeedURL,
		summary.Strategy,
		formatTimestamp(summary.StartedAt),
		formatTimestamp(summary.FinishedAt),
		summary.PagesFetched,
		summary.PagesVisited,
		len(summary.Errors),
		summary.TotalSkipped(),
		summary.Records,
		summary.Cancelled,
		string(summaryJSON),
		run,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RunMetadata contains summary information about a crawl run.
// This is used for displaying history without loading records or the graph.
type RunMetadata struct {
	// ID is the row ID of the run.
	ID int64

	// RunID is the crawl's UUID. Empty if the run never started.
	RunID string

	SeedURL    string
	Strategy   string
	StartedAt  time.Time
	FinishedAt time.Time

	PagesFetched int
	PagesVisited int
	Errors       int
	Skipped      int
	Records      int
	Cancelled    bool
}

// Finished reports whether the run reached OnFinish.
func (m RunMetadata) Finished() bool {
	return !m.FinishedAt.IsZero()
}

const runColumns = `id, COALESCE(run_id, ''), seed_url, strategy, started_at, COALESCE(finished_at, ''),
	pages_fetched, pages_visited, error_count, skipped_count, record_count, cancelled`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunMetadata, error) {
	var (
		meta     RunMetadata
		started  string
		finished string
	)
	err := row.Scan(
		&meta.ID,
		&meta.RunID,
		&meta.SeedURL,
		&meta.Strategy,
		&started,
		&finished,
		&meta.PagesFetched,
		&meta.PagesVisited,
		&meta.Errors,
		&meta.Skipped,
		&meta.Records,
		&meta.Cancelled,
	)
	if err != nil {
		return meta, err
	}
	meta.StartedAt = parseTimestamp(started)
	meta.FinishedAt = parseTimestamp(finished)
	return meta, nil
}

// ListRuns returns runs, newest first. seed filters by seed URL when not
// empty; limit caps the result when positive.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string, limit int) ([]RunMetadata, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := make([]any, 0, 2)

	if seed != "" {
		query += " AND seed_url = ?"
		args = append(args, seed)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRun returns the run with the given run ID.
func (cdb *CrawlDB) GetRun(ctx context.Context, runID string) (*RunMetadata, error) {
	row := cdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	meta, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &meta, nil
}

// GetSummary returns the stored summary of a finished run, without its graph.
func (cdb *CrawlDB) GetSummary(ctx context.Context, runID string) (*model.Summary, error) {
	var summaryJSON sql.NullString
	err := cdb.db.QueryRowContext(ctx, `SELECT summary_json FROM runs WHERE run_id = ?`, runID).Scan(&summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	if !summaryJSON.Valid {
		return nil, nil
	}

	var summary model.Summary
	if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &summary, nil
}

func (cdb *CrawlDB) rowID(ctx context.Context, runID string) (int64, error) {
	var id int64
	err := cdb.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE run_id = ?`, runID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up run: %w", err)
	}
	return id, nil
}

// GetRecords returns the records of a run in arrival order.
func (cdb *CrawlDB) GetRecords(ctx context.Context, runID string) ([]model.Record, error) {
	run, err := cdb.rowID(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := cdb.db.QueryContext(ctx, `SELECT record_json FROM records WHERE run = ? ORDER BY id`, run)
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var record model.Record
		if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
			continue // Skip malformed records
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// GetGraph rebuilds the stored graph of a run, preserving key and link order.
func (cdb *CrawlDB) GetGraph(ctx context.Context, runID string) (*model.Graph, error) {
	run, err := cdb.rowID(ctx, runID)
	if err != nil {
		return nil, err
	}

	edgeRows, err := cdb.db.QueryContext(ctx,
		`SELECT source, target, anchor_text FROM edges WHERE run = ? ORDER BY source, position`, run)
	if err != nil {
		return nil, fmt.Errorf("failed to get edges: %w", err)
	}
	links := make(map[string][]model.Link)
	for edgeRows.Next() {
		var source string
		var l model.Link
		if err := edgeRows.Scan(&source, &l.Target, &l.AnchorText); err != nil {
			_ = edgeRows.Close()
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		links[source] = append(links[source], l)
	}
	if err := edgeRows.Close(); err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}

	nodeRows, err := cdb.db.QueryContext(ctx, `SELECT url FROM nodes WHERE run = ? ORDER BY position`, run)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}
	defer nodeRows.Close()

	graph := model.NewGraph()
	for nodeRows.Next() {
		var url string
		if err := nodeRows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		graph.Add(url, links[url])
	}

	return graph, nodeRows.Err()
}

// DeleteRun removes a run with its records and graph.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, runID string) error {
	run, err := cdb.rowID(ctx, runID)
	if err != nil {
		return err
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, table := range []string{"records", "nodes", "edges"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run = ?`, run); err != nil {
			_ = tx.Rollback() //nolint:errcheck // original error takes precedence
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run); err != nil {
		_ = tx.Rollback() //nolint:errcheck // original error takes precedence
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return tx.Commit()
}

// HasRecentRun reports whether seed was crawled to completion within d.
func (cdb *CrawlDB) HasRecentRun(ctx context.Context, seed string, d time.Duration) (bool, error) {
	runs, err := cdb.ListRuns(ctx, seed, 0)
	if err != nil {
		return false, err
	}
	cutoff := time.Now().Add(-d)
	for _, r := range runs {
		if r.Finished() && !r.Cancelled && r.FinishedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // written by formatTimestamp
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
