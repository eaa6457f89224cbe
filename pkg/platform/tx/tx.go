// Package tx carries a SQL transaction through context so every store
// touched by a register unit of work (versions, entities, audit outbox)
// executes against the same transaction without threading *sql.Tx through
// call signatures.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

// WithTx returns a context carrying tx. Passing nil returns ctx unchanged so
// callers can thread an optional transaction without branching.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, tx)
}

// From extracts the transaction, if the context carries one. Stores fall back
// to the connection pool when it does not.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return tx, ok
}

// InTx reports whether ctx carries a transaction. The version store uses it
// to decide whether a live-version lookup should take a row lock.
func InTx(ctx context.Context) bool {
	_, ok := From(ctx)
	return ok
}
