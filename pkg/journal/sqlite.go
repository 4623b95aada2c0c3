package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pricecheck/pkg/model"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS remediation_attempts(
	id TEXT PRIMARY KEY, run_id TEXT, scope TEXT, pfid TEXT, status TEXT, detail TEXT, ts INTEGER);
CREATE INDEX IF NOT EXISTS idx_attempts_pfid ON remediation_attempts(pfid, ts);`

type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Record(ctx context.Context, a Attempt) error {
	a.fill()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO remediation_attempts(id, run_id, scope, pfid, status, detail, ts) VALUES(?,?,?,?,?,?,?)`,
		a.ID, a.RunID, a.Scope, a.PFID, string(a.Status), a.Detail, a.At.UnixNano())
	if err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, pfid string, limit int) ([]Attempt, error) {
	q := `SELECT id, run_id, scope, pfid, status, detail, ts FROM remediation_attempts WHERE pfid=? ORDER BY ts DESC, rowid DESC`
	args := []any{pfid}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal list: %w", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var (
			a      Attempt
			status string
			ts     int64
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.Scope, &a.PFID, &status, &a.Detail, &ts); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		a.Status = model.RemediationStatus(status)
		a.At = time.Unix(0, ts).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
