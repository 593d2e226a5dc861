// Package pgstore is the PostgreSQL governance.Store. Every unit of work is
// one database transaction; getters inside InTx lock the rows they return
// with SELECT ... FOR UPDATE so concurrent votes and cascades on the same
// rows are serialised.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"kyri56xcaesar/marathon-proj/internal/governance"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool and keeps pinging until the database answers or
// wait runs out.
func Connect(ctx context.Context, url string, maxConns int32, wait time.Duration, log *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	deadline := time.Now().Add(wait)
	for attempt := 1; ; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		pool, err := pgxpool.NewWithConfig(pctx, cfg)
		if err == nil {
			if err = pool.Ping(pctx); err == nil {
				cancel()
				return pool, nil
			}
			pool.Close()
		}
		cancel()

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
		}
		log.Warn("database not ready, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// ApplySchema executes the initialization script at path.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read init sql: %w", err)
	}
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		return fmt.Errorf("execute init sql: %w", err)
	}
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx governance.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{}, true, fn)
}

func (s *Store) View(ctx context.Context, fn func(tx governance.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, false, fn)
}

// txAttempts bounds how often a unit is replayed after the database aborted
// it as a deadlock victim or a serialization failure.
const txAttempts = 3

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, lock bool, fn func(tx governance.Tx) error) error {
	return retry(ctx, txAttempts, func() error {
		return s.once(ctx, opts, lock, fn)
	})
}

func retry(ctx context.Context, attempts int, fn func() error) error {
	for i := 1; ; i++ {
		err := fn()
		if i >= attempts || !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(i) * 10 * time.Millisecond):
		}
	}
}

// retryable reports a deadlock (40P01) or serialization failure (40001).
// Postgres rolled the whole transaction back, so replaying it is safe.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40P01" || pgErr.Code == "40001"
}

func (s *Store) once(ctx context.Context, opts pgx.TxOptions, lock bool, fn func(tx governance.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txn{tx: tx, lock: lock}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(err, "commit")
	}
	return nil
}

type txn struct {
	tx   pgx.Tx
	lock bool
}

var _ governance.Tx = (*txn)(nil)

type scanner interface {
	Scan(dest ...any) error
}

func (t *txn) exec(ctx context.Context, q sq.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return t.tx.Exec(ctx, sql, args...)
}

func (t *txn) query(ctx context.Context, q sq.SelectBuilder) (pgx.Rows, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return t.tx.Query(ctx, sql, args...)
}

func (t *txn) row(ctx context.Context, q sq.SelectBuilder) pgx.Row {
	sql, args, err := q.ToSql()
	if err != nil {
		return errRow{err}
	}
	return t.tx.QueryRow(ctx, sql, args...)
}

// errRow reports a query that could not be built on Scan, like pgx does for
// query errors.
type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// forUpdate locks the selected rows when the unit may write them.
func (t *txn) forUpdate(q sq.SelectBuilder) sq.SelectBuilder {
	if t.lock {
		return q.Suffix("FOR UPDATE")
	}
	return q
}

// mustAffect turns an update or delete that matched nothing into a
// not-found.
func mustAffect(tag pgconn.CommandTag, err error, what, id string) error {
	if err != nil {
		return mapErr(err, what)
	}
	if tag.RowsAffected() == 0 {
		return governance.NotFound("%s %s not found", what, id)
	}
	return nil
}

func affected(tag pgconn.CommandTag, err error, what string) (int, error) {
	if err != nil {
		return 0, mapErr(err, what)
	}
	return int(tag.RowsAffected()), nil
}

func collect[T any](rows pgx.Rows, err error, what string, scan func(scanner) (*T, error)) ([]*T, error) {
	if err != nil {
		return nil, mapErr(err, what)
	}
	defer rows.Close()

	out := []*T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, what)
	}
	return out, nil
}

// mapErr translates driver errors into governance kinds. Missing rows become
// NotFound and unique violations Conflict; everything else is wrapped.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return governance.NotFound("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &governance.Error{Kind: governance.KindConflict, Message: what + " already exists", Cause: err}
		case "25006":
			return &governance.Error{Kind: governance.KindValidation, Message: "write in a read-only unit", Cause: err}
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// nullable stores an absent weak reference as NULL.
func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
