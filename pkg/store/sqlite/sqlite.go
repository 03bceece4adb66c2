package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/store"
)

// Store implements JournalStore using SQLite.
type Store struct {
	db *sql.DB
}

// Verify interface compliance at compile time.
var _ store.JournalStore = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		assistant_id TEXT NOT NULL DEFAULT '',
		thread_id TEXT NOT NULL DEFAULT '',
		question TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL DEFAULT '',
		citation_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_started ON exchanges(started_at);

	CREATE TABLE IF NOT EXISTS sweeps (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		max_age_seconds INTEGER NOT NULL,
		include_assistant INTEGER NOT NULL DEFAULT 0,
		local_removed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sweep_kinds (
		sweep_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		enumerated INTEGER NOT NULL DEFAULT 0,
		eligible INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (sweep_id, seq),
		FOREIGN KEY (sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- Exchanges ---

func (s *Store) RecordExchange(ctx context.Context, ex *domain.Exchange) error {
	if ex.ID == "" {
		return fmt.Errorf("exchange id is required")
	}
	if ex.FinishedAt.IsZero() {
		ex.FinishedAt = time.Now().UTC()
	}
	if ex.StartedAt.IsZero() {
		ex.StartedAt = ex.FinishedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, assistant_id, thread_id, question, answer, citation_count, status, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.AssistantID, ex.ThreadID, ex.Question, ex.Answer,
		ex.CitationCount, string(ex.Status), ex.Error,
		ex.StartedAt.UTC(), ex.FinishedAt.UTC(),
	)
	return err
}

func (s *Store) RecentExchanges(ctx context.Context, limit int) ([]domain.Exchange, error) {
	query := `SELECT id, assistant_id, thread_id, question, answer, citation_count, status, error, started_at, finished_at
		FROM exchanges ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []domain.Exchange
	for rows.Next() {
		var ex domain.Exchange
		var status string
		if err := rows.Scan(&ex.ID, &ex.AssistantID, &ex.ThreadID, &ex.Question, &ex.Answer,
			&ex.CitationCount, &status, &ex.Error, &ex.StartedAt, &ex.FinishedAt,
		); err != nil {
			return nil, err
		}
		ex.Status = domain.ExchangeStatus(status)
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}

// --- Sweeps ---

func (s *Store) RecordSweep(ctx context.Context, run *store.SweepRun) error {
	if run.ID == "" {
		return fmt.Errorf("sweep id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sweeps (id, started_at, max_age_seconds, include_assistant, local_removed)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), int64(run.MaxAge/time.Second), run.IncludeAssistant, run.LocalRemoved,
	); err != nil {
		return err
	}

	for i, k := range run.Kinds {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sweep_kinds (sweep_id, seq, kind, enumerated, eligible, deleted, failed)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, string(k.Kind), k.Enumerated, k.Eligible, k.Deleted, k.Failed,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) RecentSweeps(ctx context.Context, limit int) ([]store.SweepRun, error) {
	query := `SELECT id, started_at, max_age_seconds, include_assistant, local_removed
		FROM sweeps ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var runs []store.SweepRun
	for rows.Next() {
		var run store.SweepRun
		var maxAgeSeconds int64
		if err := rows.Scan(&run.ID, &run.StartedAt, &maxAgeSeconds, &run.IncludeAssistant, &run.LocalRemoved); err != nil {
			rows.Close()
			return nil, err
		}
		run.MaxAge = time.Duration(maxAgeSeconds) * time.Second
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range runs {
		kinds, err := s.sweepKinds(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Kinds = kinds
	}
	return runs, nil
}

func (s *Store) sweepKinds(ctx context.Context, sweepID string) ([]store.SweepKindCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, enumerated, eligible, deleted, failed
		 FROM sweep_kinds WHERE sweep_id=? ORDER BY seq ASC`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kinds []store.SweepKindCount
	for rows.Next() {
		var k store.SweepKindCount
		var kind string
		if err := rows.Scan(&kind, &k.Enumerated, &k.Eligible, &k.Deleted, &k.Failed); err != nil {
			return nil, err
		}
		k.Kind = domain.ResourceKind(kind)
		kinds = append(kinds, k)
	}
	return kinds, rows.Err()
}
