package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"

	_ "modernc.org/sqlite"
)

// SQLStore persists records of one config kind in a single table keyed
// by (app_name, inner_id), carrying the remaining fields as a JSON
// value column. No schema migration is prescribed or provided — callers
// own table creation via EnsureSchema.
type SQLStore[T any] struct {
	db    *sql.DB
	table string
}

// OpenSQLiteStore opens (or creates) a sqlite-backed database at path
// and returns a SQLStore for the given table name. path may be ":memory:".
func OpenSQLiteStore[T any](path, table string) (*SQLStore[T], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// A single connection keeps an ":memory:" database alive and
	// visible across calls; sqlite serializes writes regardless.
	db.SetMaxOpenConns(1)
	s := &SQLStore[T]{db: db, table: table}
	if err := s.EnsureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an already-open *sql.DB (e.g. postgres, mysql)
// without prescribing the driver; callers run EnsureSchema themselves
// if the DDL dialect differs from sqlite's.
func NewSQLStore[T any](db *sql.DB, table string) *SQLStore[T] {
	return &SQLStore[T]{db: db, table: table}
}

// EnsureSchema creates the backing table if it does not already exist,
// using sqlite-compatible DDL.
func (s *SQLStore[T]) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		app_name TEXT NOT NULL,
		inner_id TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (app_name, inner_id)
	)`, s.table)
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *SQLStore[T]) Create(ctx context.Context, key Key, record T) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal config record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (app_name, inner_id, value) VALUES (?, ?, ?)`, s.table),
		key.AppName, key.InnerID, string(payload))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return errkind.Wrap(errkind.ErrAlreadyExists, "config %s/%s already exists", key.AppName, key.InnerID)
		}
		return err
	}
	return nil
}

func (s *SQLStore[T]) Get(ctx context.Context, key Key) (T, error) {
	var zero T
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE app_name = ? AND inner_id = ?`, s.table),
		key.AppName, key.InnerID)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, errkind.Wrap(errkind.ErrNotFound, "config %s/%s not found", key.AppName, key.InnerID)
		}
		return zero, err
	}
	var record T
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return zero, fmt.Errorf("unmarshal config record: %w", err)
	}
	return record, nil
}

func (s *SQLStore[T]) Update(ctx context.Context, key Key, record T) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal config record: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET value = ? WHERE app_name = ? AND inner_id = ?`, s.table),
		string(payload), key.AppName, key.InnerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errkind.Wrap(errkind.ErrNotFound, "config %s/%s not found", key.AppName, key.InnerID)
	}
	return nil
}

func (s *SQLStore[T]) Delete(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE app_name = ? AND inner_id = ?`, s.table),
		key.AppName, key.InnerID)
	return err
}

func (s *SQLStore[T]) List(ctx context.Context) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT value FROM %s`, s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var record T
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("unmarshal config record: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLStore[T]) Close() error { return s.db.Close() }

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "constraint")
}
