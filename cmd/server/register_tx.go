package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "profreg/pkg/domain-errors"
	txcontext "profreg/pkg/platform/tx"
)

const defaultRegisterTxTimeout = 5 * time.Second

// registerPostgresTx runs register units of work inside a SQL transaction.
// The transaction rides the context so the version, entity and audit outbox
// stores all execute against it.
type registerPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newRegisterPostgresTx(db *sql.DB) *registerPostgresTx {
	return &registerPostgresTx{db: db}
}

func (t *registerPostgresTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultRegisterTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
