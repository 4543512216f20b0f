package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// txKey carries the active transaction inside a context.Context.
type txKey struct{}

// Querier unifies query execution over *sql.DB and *sql.Tx, so
// repositories work the same inside and outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// TxRunner runs callbacks inside a transaction with guaranteed commit or
// rollback.
type TxRunner struct {
	DB *sql.DB
}

// NewTxRunner creates a TxRunner over the given database handle.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{DB: db}
}

// WithinTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise; inside fn it is reachable through
// Tx(ctx).
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	ctx = context.WithValue(ctx, txKey{}, tx)
	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Tx extracts the active transaction from the context, if any.
func Tx(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// Querier returns the context's transaction when present, the database
// handle otherwise.
func (r *TxRunner) Querier(ctx context.Context) Querier {
	if tx, ok := Tx(ctx); ok {
		return tx
	}
	return r.DB
}
