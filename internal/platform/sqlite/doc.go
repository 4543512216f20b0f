// Package sqlite provides the embedded storage platform layer: database
// open with pragma tuning, schema migrations and transaction helpers.
//
// The package wraps modernc.org/sqlite (no cgo) and keeps the pool small
// because SQLite allows a single writer. Repositories should accept a
// Querier so they run unchanged inside and outside transactions:
//
//	db, err := sqlite.NewDB(ctx, "data/remindbot.sqlite")
//	runner := sqlite.NewTxRunner(db)
//	err = runner.WithinTx(ctx, func(ctx context.Context) error {
//		q := runner.Querier(ctx)
//		// q is the transaction here
//		return nil
//	})
//
// For tests, NewInMemoryDB gives a throwaway schema-per-test database and
// NewTestDB a file-backed one for cases that need real fsync behavior.
package sqlite
