// Package artifact reads and writes the input-data artifact: the SQLite
// database of demographic rate tables, category distributions, and model
// metadata a simulation run draws its inputs from. Tables are indexed by
// sex, age bin, year bin, an optional category parameter, and draw.
package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an artifact key has no rows.
var ErrNotFound = errors.New("artifact key not found")

const schema = `
CREATE TABLE IF NOT EXISTS artifact_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS artifact_data (
	key        TEXT NOT NULL,
	sex        TEXT NOT NULL,
	age_start  REAL NOT NULL,
	age_end    REAL NOT NULL,
	year_start INTEGER NOT NULL,
	year_end   INTEGER NOT NULL,
	parameter  TEXT NOT NULL DEFAULT '',
	draw       INTEGER NOT NULL DEFAULT 0,
	value      REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifact_data_key_draw ON artifact_data (key, draw);
`

// Store is a SQLite-backed artifact.
type Store struct {
	sqlDB *sql.DB
}

// Row is one stratum of an artifact table. A scalar table has a single
// row with an all-encompassing bin; a categorical table has one row per
// category in Parameter.
type Row struct {
	Sex       string
	AgeStart  float64
	AgeEnd    float64
	YearStart int
	YearEnd   int
	Parameter string
	Value     float64
}

// Open opens (creating if absent) an artifact database. Use ":memory:"
// for throwaway stores in tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("artifact path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open artifact db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping artifact db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create artifact schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Keys lists every data key in the artifact, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT DISTINCT key FROM artifact_data ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list artifact keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan artifact key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifact keys: %w", err)
	}
	return keys, nil
}

// LoadRows returns the strata of one table at the given draw. Tables that
// carry no per-draw uncertainty store rows at draw 0 only, so a missing
// draw falls back to draw 0 before reporting ErrNotFound.
func (s *Store) LoadRows(ctx context.Context, key string, draw int) ([]Row, error) {
	out, err := s.loadRowsAt(ctx, key, draw)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 && draw != 0 {
		out, err = s.loadRowsAt(ctx, key, 0)
		if err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return out, nil
}

func (s *Store) loadRowsAt(ctx context.Context, key string, draw int) ([]Row, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT sex, age_start, age_end, year_start, year_end, parameter, value
		 FROM artifact_data
		 WHERE key = ? AND draw = ?
		 ORDER BY parameter, sex, age_start, year_start`,
		key, draw)
	if err != nil {
		return nil, fmt.Errorf("load artifact table %s: %w", key, err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Sex, &r.AgeStart, &r.AgeEnd, &r.YearStart, &r.YearEnd, &r.Parameter, &r.Value); err != nil {
			return nil, fmt.Errorf("scan artifact table %s: %w", key, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load artifact table %s: %w", key, err)
	}
	return out, nil
}

// WriteRows replaces one table's strata at the given draw.
func (s *Store) WriteRows(ctx context.Context, key string, draw int, data []Row) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write artifact table %s: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM artifact_data WHERE key = ? AND draw = ?`, key, draw); err != nil {
		return fmt.Errorf("clear artifact table %s: %w", key, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO artifact_data (key, sex, age_start, age_end, year_start, year_end, parameter, draw, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("write artifact table %s: %w", key, err)
	}
	defer stmt.Close()
	for _, r := range data {
		if _, err := stmt.ExecContext(ctx, key, r.Sex, r.AgeStart, r.AgeEnd, r.YearStart, r.YearEnd, r.Parameter, draw, r.Value); err != nil {
			return fmt.Errorf("write artifact table %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write artifact table %s: %w", key, err)
	}
	return nil
}

// WriteMeta stores a JSON-encoded metadata value under key.
func (s *Store) WriteMeta(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode artifact meta %s: %w", key, err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO artifact_meta (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, string(data))
	if err != nil {
		return fmt.Errorf("write artifact meta %s: %w", key, err)
	}
	return nil
}

// LoadMeta decodes the metadata value under key into out.
func (s *Store) LoadMeta(ctx context.Context, key string, out interface{}) error {
	var raw string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM artifact_meta WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("load artifact meta %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode artifact meta %s: %w", key, err)
	}
	return nil
}

// HasKey reports whether any rows exist for key at any draw.
func (s *Store) HasKey(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM artifact_data WHERE key = ? LIMIT 1`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe artifact key %s: %w", key, err)
	}
	return true, nil
}
