// Package sqlite implements corpus.Sink on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/store"
)

// Store writes the corpus tables into one SQLite database file.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens (or creates) the database at path and applies the pragmas.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	return &Store{db: db, path: path, logger: logger}, nil
}

// Remove deletes the database file and its WAL companions. A missing file is
// not an error.
func Remove(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DropAll deletes the database file and reopens an empty one.
func (s *Store) DropAll(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return &corpus.StoreError{Op: "drop", Table: "*", Err: err}
	}
	if err := Remove(s.path); err != nil {
		return &corpus.StoreError{Op: "drop", Table: "*", Err: err}
	}
	fresh, err := Open(s.path, s.logger)
	if err != nil {
		return &corpus.StoreError{Op: "drop", Table: "*", Err: err}
	}
	s.db = fresh.db
	s.logger.Info("database file recreated", zap.String("path", s.path))
	return nil
}

// ReplacePoets drops and recreates the poets table with the given rows.
func (s *Store) ReplacePoets(ctx context.Context, poets []corpus.Poet) error {
	return s.write(ctx, "replace", store.Poets, store.PoetRows(poets), true)
}

// ReplacePoems drops and recreates the poems table with the given rows.
func (s *Store) ReplacePoems(ctx context.Context, poems []corpus.Poem) error {
	return s.write(ctx, "replace", store.Poems, store.PoemRows(poems), true)
}

// AppendPoems adds rows to the poems table, creating it if needed.
func (s *Store) AppendPoems(ctx context.Context, poems []corpus.Poem) error {
	return s.write(ctx, "append", store.Poems, store.PoemRows(poems), false)
}

// ReadPoets returns the poets table in insertion order.
func (s *Store) ReadPoets(ctx context.Context) ([]corpus.Poet, error) {
	rows, err := s.db.QueryContext(ctx, store.Poets.SelectSQL()+" ORDER BY rowid")
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			err = corpus.ErrNotFound
		}
		return nil, &corpus.StoreError{Op: "read", Table: store.Poets.Name, Err: err}
	}
	defer rows.Close()

	var poets []corpus.Poet
	for rows.Next() {
		var p corpus.Poet
		if err := rows.Scan(&p.Slug, &p.Name, &p.BirthYear, &p.DeathYear); err != nil {
			return nil, &corpus.StoreError{Op: "read", Table: store.Poets.Name, Err: err}
		}
		poets = append(poets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &corpus.StoreError{Op: "read", Table: store.Poets.Name, Err: err}
	}
	return poets, nil
}

func (s *Store) write(ctx context.Context, op string, table store.Table, rows [][]any, replace bool) error {
	fail := func(err error) error {
		return &corpus.StoreError{Op: op, Table: table.Name, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx, table.DropSQL()); err != nil {
			return fail(fmt.Errorf("drop: %w", err))
		}
	}
	if _, err := tx.ExecContext(ctx, table.CreateSQL(!replace)); err != nil {
		return fail(fmt.Errorf("create: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, table.InsertSQL(func(int) string { return "?" }))
	if err != nil {
		return fail(fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fail(fmt.Errorf("insert: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}

	s.logger.Debug("rows written",
		zap.String("table", table.Name),
		zap.String("mode", op),
		zap.Int("rows", len(rows)),
	)
	return nil
}
