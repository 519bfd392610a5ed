package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const ruleSQLiteSchema = `
CREATE TABLE IF NOT EXISTS rules (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	name TEXT,
	rule TEXT NOT NULL,
	ast BLOB,
	valid INTEGER NOT NULL DEFAULT 1,
	validation_error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	checked_at TEXT
);`

// SQLiteStoreConfig configures the SQLite rule store.
type SQLiteStoreConfig struct {
	// DSN is the database connection string (a file path works).
	DSN string
}

// SQLiteStore persists rule records in SQLite. WAL mode is enabled so
// evaluations can read concurrently with writes.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultSQLitePath returns the default database location,
// ~/.verdict/verdict.db.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("rulestore: resolve user home: %w", err)
	}
	return filepath.Join(home, ".verdict", "verdict.db"), nil
}

// NewSQLiteStore opens (or creates) a SQLite-backed rule store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("rulestore: DSN is required")
	}

	if !strings.HasPrefix(strings.ToLower(cfg.DSN), "file:") {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("rulestore: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("rulestore: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rulestore: set WAL mode: %w", err)
	}
	if _, err := db.Exec(ruleSQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rulestore: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// List returns all records in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]RuleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rule, ast, valid, validation_error, created_at, updated_at, checked_at
		   FROM rules ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("rulestore: list: %w", err)
	}
	defer rows.Close()

	var records []RuleRecord
	for rows.Next() {
		rec, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns one record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (RuleRecord, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rule, ast, valid, validation_error, created_at, updated_at, checked_at
		   FROM rules WHERE id = ?`, id)
	if err != nil {
		return RuleRecord{}, false, fmt.Errorf("rulestore: get: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return RuleRecord{}, false, rows.Err()
	}
	rec, err := scanRule(rows)
	if err != nil {
		return RuleRecord{}, false, err
	}
	return rec, true, nil
}

// Create inserts a new record; an existing ID fails with ErrRuleExists.
func (s *SQLiteStore) Create(ctx context.Context, rec RuleRecord) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rules WHERE id = ?`, rec.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("rulestore: create: %w", err)
	}
	if exists > 0 {
		return ErrRuleExists
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rules (id, name, rule, ast, valid, validation_error, created_at, updated_at, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Name,
		rec.RuleString,
		[]byte(rec.AST),
		boolToInt(rec.Valid),
		rec.ValidationError,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		formatNullableTime(rec.CheckedAt),
	)
	if err != nil {
		return fmt.Errorf("rulestore: create: %w", err)
	}
	return nil
}

// Update replaces an existing record.
func (s *SQLiteStore) Update(ctx context.Context, rec RuleRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rules
		    SET name = ?, rule = ?, ast = ?, valid = ?, validation_error = ?, updated_at = ?, checked_at = ?
		  WHERE id = ?`,
		rec.Name,
		rec.RuleString,
		[]byte(rec.AST),
		boolToInt(rec.Valid),
		rec.ValidationError,
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		formatNullableTime(rec.CheckedAt),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("rulestore: update: %w", err)
	}
	return requireRowChanged(res)
}

// Delete removes a record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("rulestore: delete: %w", err)
	}
	return requireRowChanged(res)
}

// SetValidation updates the revalidation fields of a record.
func (s *SQLiteStore) SetValidation(ctx context.Context, id string, valid bool, message string, checkedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rules SET valid = ?, validation_error = ?, checked_at = ? WHERE id = ?`,
		boolToInt(valid),
		message,
		checkedAt.UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("rulestore: set validation: %w", err)
	}
	return requireRowChanged(res)
}

func requireRowChanged(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rulestore: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func scanRule(rows *sql.Rows) (RuleRecord, error) {
	var (
		rec       RuleRecord
		ast       []byte
		valid     int
		createdAt string
		updatedAt string
		checkedAt sql.NullString
	)
	err := rows.Scan(
		&rec.ID,
		&rec.Name,
		&rec.RuleString,
		&ast,
		&valid,
		&rec.ValidationError,
		&createdAt,
		&updatedAt,
		&checkedAt,
	)
	if err != nil {
		return RuleRecord{}, fmt.Errorf("rulestore: scan: %w", err)
	}

	if len(ast) > 0 {
		rec.AST = ast
	}
	rec.Valid = valid != 0

	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return RuleRecord{}, fmt.Errorf("rulestore: parse created_at %q: %w", createdAt, err)
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return RuleRecord{}, fmt.Errorf("rulestore: parse updated_at %q: %w", updatedAt, err)
	}
	if checkedAt.Valid && checkedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, checkedAt.String)
		if err != nil {
			return RuleRecord{}, fmt.Errorf("rulestore: parse checked_at %q: %w", checkedAt.String, err)
		}
		rec.CheckedAt = &t
	}
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Compile-time interface check.
var _ RuleStore = (*SQLiteStore)(nil)
