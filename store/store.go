// Package store persists local run state in a SQLite database: the history
// of maintenance runs, the last cursor seen per collection, and an audit
// trail of every executed mutation.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver

	"skeetsweep/models"
)

const busyTimeout = 5 * time.Second

// Store wraps the database. SQLite only supports a single writer, so the
// connection pool is capped at one connection and writes are serialized.
type Store struct {
	db        *sql.DB
	mu        sync.Mutex
	closeOnce sync.Once

	saveRunStmt    *sql.Stmt
	recentRunsStmt *sql.Stmt
	cursorGetStmt  *sql.Stmt
	cursorPutStmt  *sql.Stmt
	auditPutStmt   *sql.Stmt
	auditGetStmt   *sql.Stmt
}

// Open opens (creating if needed) the database at path with WAL journaling
// and prepares the statements the tool uses.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, busyTimeout.Milliseconds(),
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing statements: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		policy TEXT NOT NULL,
		archive_path TEXT NOT NULL,
		stats TEXT NOT NULL,
		unliked INTEGER NOT NULL,
		unlike_failures INTEGER NOT NULL,
		deleted INTEGER NOT NULL,
		delete_failures INTEGER NOT NULL,
		incomplete INTEGER NOT NULL,
		confirmed INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS cursors (
		collection TEXT PRIMARY KEY,
		cursor TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		uri TEXT NOT NULL,
		reason TEXT NOT NULL,
		ok INTEGER NOT NULL,
		error TEXT NOT NULL,
		executed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_run ON audit(run_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.saveRunStmt, err = s.db.Prepare(`
		INSERT INTO runs (id, started_at, finished_at, policy, archive_path, stats,
			unliked, unlike_failures, deleted, delete_failures, incomplete, confirmed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.recentRunsStmt, err = s.db.Prepare(`
		SELECT id, started_at, finished_at, policy, archive_path, stats,
			unliked, unlike_failures, deleted, delete_failures, incomplete, confirmed
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`)
	if err != nil {
		return err
	}

	s.cursorGetStmt, err = s.db.Prepare(`
		SELECT cursor FROM cursors WHERE collection = ?
	`)
	if err != nil {
		return err
	}

	s.cursorPutStmt, err = s.db.Prepare(`
		INSERT INTO cursors (collection, cursor, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (collection) DO UPDATE SET
			cursor = excluded.cursor,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	s.auditPutStmt, err = s.db.Prepare(`
		INSERT INTO audit (run_id, seq, kind, uri, reason, ok, error, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.auditGetStmt, err = s.db.Prepare(`
		SELECT seq, kind, uri, reason, ok, error, executed_at
		FROM audit
		WHERE run_id = ?
		ORDER BY seq
	`)
	return err
}

// RunRecord is one persisted run as read back from the database.
type RunRecord struct {
	Summary models.RunSummary
	Policy  string
}

// RecordRun appends one finished run to the history.
func (s *Store) RecordRun(ctx context.Context, summary models.RunSummary, policy string) error {
	stats, err := json.Marshal(summary.Stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.saveRunStmt.ExecContext(ctx,
		summary.RunId,
		summary.StartedAt.Unix(),
		summary.FinishedAt.Unix(),
		policy,
		summary.ArchivePath,
		string(stats),
		summary.Unliked,
		summary.UnlikeFailures,
		summary.Deleted,
		summary.DeleteFailures,
		boolToInt(summary.Incomplete),
		boolToInt(summary.Confirmed),
	)
	if err != nil {
		return fmt.Errorf("saving run '%s': %w", summary.RunId, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.recentRunsStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			started, finished     int64
			stats                 string
			incomplete, confirmed int
			r                     RunRecord
		)
		err := rows.Scan(
			&r.Summary.RunId,
			&started,
			&finished,
			&r.Policy,
			&r.Summary.ArchivePath,
			&stats,
			&r.Summary.Unliked,
			&r.Summary.UnlikeFailures,
			&r.Summary.Deleted,
			&r.Summary.DeleteFailures,
			&incomplete,
			&confirmed,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if err := json.Unmarshal([]byte(stats), &r.Summary.Stats); err != nil {
			return nil, fmt.Errorf("unmarshaling stats: %w", err)
		}
		r.Summary.StartedAt = time.Unix(started, 0).UTC()
		r.Summary.FinishedAt = time.Unix(finished, 0).UTC()
		r.Summary.Incomplete = incomplete != 0
		r.Summary.Confirmed = confirmed != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// LastCursor returns the last saved cursor for a collection, or "" when the
// collection has never been paged.
func (s *Store) LastCursor(ctx context.Context, collection string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cursor string
	err := s.cursorGetStmt.QueryRowContext(ctx, collection).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading cursor for '%s': %w", collection, err)
	}
	return cursor, nil
}

// SaveCursor upserts the last cursor seen for a collection. Empty cursors
// are not saved: an exhausted page carries no position worth remembering.
func (s *Store) SaveCursor(ctx context.Context, collection, cursor string) error {
	if cursor == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.cursorPutStmt.ExecContext(ctx, collection, cursor, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("saving cursor for '%s': %w", collection, err)
	}
	return nil
}

// AuditEntry is one mutation as recorded in the audit trail.
type AuditEntry struct {
	Seq        int
	Kind       string
	Uri        string
	Reason     string
	Ok         bool
	Error      string
	ExecutedAt time.Time
}

// AuditEntries returns a run's audit trail in execution order.
func (s *Store) AuditEntries(ctx context.Context, runId string) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.auditGetStmt.QueryContext(ctx, runId)
	if err != nil {
		return nil, fmt.Errorf("listing audit rows for '%s': %w", runId, err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e          AuditEntry
			ok         int
			executedAt int64
		)
		if err := rows.Scan(&e.Seq, &e.Kind, &e.Uri, &e.Reason, &ok, &e.Error, &executedAt); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		e.Ok = ok != 0
		e.ExecutedAt = time.Unix(executedAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AuditRecorder returns a sink that appends one audit row per executed
// mutation for the given run. Audit failures are logged, never returned: a
// ledger problem must not interrupt the deletion loop.
func (s *Store) AuditRecorder(runId string) *AuditRecorder {
	return &AuditRecorder{store: s, runId: runId}
}

type AuditRecorder struct {
	store *Store
	runId string
	seq   int
}

func (r *AuditRecorder) MutationExecuted(kind, uri, reason string, err error) {
	r.seq++
	ok := 1
	errText := ""
	if err != nil {
		ok = 0
		errText = err.Error()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, dbErr := r.store.auditPutStmt.Exec(r.runId, r.seq, kind, uri, reason, ok, errText, time.Now().Unix())
	if dbErr != nil {
		log.Errorf("Recording audit row for '%s' failed: %v", uri, dbErr)
	}
}

// Close is idempotent and safe to call multiple times.
func (s *Store) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{
			s.saveRunStmt, s.recentRunsStmt,
			s.cursorGetStmt, s.cursorPutStmt,
			s.auditPutStmt, s.auditGetStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}
		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
