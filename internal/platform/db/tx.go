package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// Querier is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx.
// Repositories run their queries against a Querier so the same code works
// inside and outside a transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// QuerierFromContext returns the transaction bound to ctx, if any.
func QuerierFromContext(ctx context.Context) Querier {
	q, _ := ctx.Value(txKey).(pgx.Tx)
	if q == nil {
		return nil
	}
	return q
}

// WithTx runs fn inside a database transaction. The transaction is stored in
// the context so repositories reached through fn share it. A nil pool runs fn
// directly, which lets service tests exercise transactional flows against
// in-memory repositories.
//
// If ctx already carries a transaction, fn joins it instead of opening a
// nested one.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if pool == nil {
		return fn(ctx)
	}
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok && tx != nil {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
