// Package postgres implements corpus.Sink on a Postgres database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/store"
)

// undefinedTable is the SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes the corpus tables into Postgres.
type Store struct {
	pool   pool
	logger *zap.Logger
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(p, logger)
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, logger *zap.Logger) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: p, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// DropAll removes both corpus tables.
func (s *Store) DropAll(ctx context.Context) error {
	for _, t := range []store.Table{store.Poems, store.Poets} {
		if _, err := s.pool.Exec(ctx, t.DropSQL()); err != nil {
			return &corpus.StoreError{Op: "drop", Table: t.Name, Err: err}
		}
	}
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

// ReadPoets returns every row of the poets table.
func (s *Store) ReadPoets(ctx context.Context) ([]corpus.Poet, error) {
	rows, err := s.pool.Query(ctx, store.Poets.SelectSQL())
	if err != nil {
		return nil, &corpus.StoreError{Op: "read", Table: store.Poets.Name, Err: notFound(err)}
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
		return nil, &corpus.StoreError{Op: "read", Table: store.Poets.Name, Err: notFound(err)}
	}
	return poets, nil
}

func (s *Store) write(ctx context.Context, op string, table store.Table, rows [][]any, replace bool) error {
	fail := func(err error) error {
		return &corpus.StoreError{Op: op, Table: table.Name, Err: err}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail(fmt.Errorf("begin: %w", err))
	}
	abort := func(err error) error {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Warn("rollback failed", zap.String("table", table.Name), zap.Error(rbErr))
		}
		return fail(err)
	}

	if replace {
		if _, err := tx.Exec(ctx, table.DropSQL()); err != nil {
			return abort(fmt.Errorf("drop: %w", err))
		}
	}
	if _, err := tx.Exec(ctx, table.CreateSQL(!replace)); err != nil {
		return abort(fmt.Errorf("create: %w", err))
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{table.Name}, table.Columns, pgx.CopyFromRows(rows)); err != nil {
			return abort(fmt.Errorf("copy: %w", err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}

	s.logger.Debug("rows written",
		zap.String("table", table.Name),
		zap.String("mode", op),
		zap.Int("rows", len(rows)),
	)
	return nil
}

func notFound(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s", corpus.ErrNotFound, pgErr.Message)
	}
	return err
}
