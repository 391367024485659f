package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Begin(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	args, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("encode args %s: %w", rec.ID, err)
	}
	if rec.StartedAtUnixMs == 0 {
		rec.StartedAtUnixMs = nowUnixMs()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO invocations (id, sweep_id, stage, seq, args, output, status, exit_code, error, started_at_ms, ended_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, '', ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			sweep_id = excluded.sweep_id,
			stage = excluded.stage,
			seq = excluded.seq,
			args = excluded.args,
			output = excluded.output,
			status = excluded.status,
			exit_code = 0,
			error = '',
			started_at_ms = excluded.started_at_ms,
			ended_at_ms = 0
	`, rec.ID, rec.SweepID, rec.Stage, rec.Seq, string(args), rec.Output, string(StatusRunning), rec.StartedAtUnixMs)
	return err
}

func (s *SQLiteStore) Finish(ctx context.Context, id string, exitCode int, errMsg string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE invocations
		SET status = ?, exit_code = ?, error = ?, ended_at_ms = ?
		WHERE id = ?
	`, string(finishedStatus(exitCode, errMsg)), exitCode, errMsg, nowUnixMs(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Record{}, false, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM invocations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) List(ctx context.Context, q Query) ([]Record, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var (
		where []string
		args  []any
	)
	if q.SweepID != "" {
		where = append(where, "sweep_id = ?")
		args = append(args, q.SweepID)
	}
	if q.Stage != "" {
		where = append(where, "stage = ?")
		args = append(args, q.Stage)
	}
	query := `SELECT ` + recordColumns + ` FROM invocations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at_ms, id LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Summary(ctx context.Context, sweepID string) (Summary, error) {
	db, err := s.getDB()
	if err != nil {
		return Summary{}, err
	}

	query := `SELECT status, COUNT(*) FROM invocations`
	var args []any
	if sweepID != "" {
		query += ` WHERE sweep_id = ?`
		args = append(args, sweepID)
	}
	query += ` GROUP BY status`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Summary{}, err
		}
		sum.add(Status(status), n)
	}
	return sum, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

const recordColumns = `id, sweep_id, stage, seq, args, output, status, exit_code, error, started_at_ms, ended_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec    Record
		args   string
		status string
	)
	err := row.Scan(&rec.ID, &rec.SweepID, &rec.Stage, &rec.Seq, &args, &rec.Output,
		&status, &rec.ExitCode, &rec.Error, &rec.StartedAtUnixMs, &rec.EndedAtUnixMs)
	if err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
		return Record{}, fmt.Errorf("decode args %s: %w", rec.ID, err)
	}
	return rec, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			sweep_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			seq INTEGER NOT NULL,
			args TEXT NOT NULL,
			output TEXT NOT NULL,
			status TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			error TEXT NOT NULL,
			started_at_ms INTEGER NOT NULL,
			ended_at_ms INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS invocations_sweep ON invocations (sweep_id, stage);
	`)
	return err
}
