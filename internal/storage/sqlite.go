package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"archmap/internal/analysis"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no snapshot exists for the requested version.
var ErrNotFound = errors.New("snapshot not found")

// Store persists analysis snapshots in SQLite so version switching across CLI
// invocations can reuse earlier results instead of re-running the upstream
// analysis.
type Store struct {
	db *sql.DB
}

// Open creates or opens a snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		repo TEXT NOT NULL,
		git_ref TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		result JSON NOT NULL,
		PRIMARY KEY (repo, git_ref)
	);`)
	return err
}

// Save upserts the snapshot for (repo, ref). The full result round-trips as
// JSON; there is no need to normalize the graph into relational tables for a
// read-mostly cache.
func (s *Store) Save(ctx context.Context, repo string, res *analysis.Result) error {
	if res == nil || res.GitRef == "" {
		return fmt.Errorf("snapshot requires a resolved git ref")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (repo, git_ref, fetched_at, result)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repo, git_ref) DO UPDATE SET
			fetched_at=excluded.fetched_at,
			result=excluded.result
	`, repo, res.GitRef, time.Now().UTC().Format(time.RFC3339), data)
	return err
}

// Load returns the stored snapshot for (repo, ref), or ErrNotFound.
func (s *Store) Load(ctx context.Context, repo, ref string) (*analysis.Result, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM snapshots WHERE repo = ? AND git_ref = ?`, repo, ref,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var res analysis.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &res, nil
}

// Versions lists the refs stored for a repository, most recently fetched
// first.
func (s *Store) Versions(ctx context.Context, repo string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT git_ref FROM snapshots WHERE repo = ? ORDER BY fetched_at DESC`, repo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Delete removes the snapshot for (repo, ref) if present.
func (s *Store) Delete(ctx context.Context, repo, ref string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE repo = ? AND git_ref = ?`, repo, ref)
	return err
}
