package service

import (
	"context"
	"sync"

	dErrors "profreg/pkg/domain-errors"
)

// TxRunner executes fn as one atomic unit of work. Writes made through
// context-aware stores inside fn are committed together or not at all; the
// postgres implementation lives in cmd/server where the *sql.DB is wired.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Restorer is implemented by in-memory stores: Begin snapshots state and
// returns a closure that restores it.
type Restorer interface {
	Begin() (restore func())
}

// inMemoryTxRunner approximates transactional semantics for in-memory
// stores: units of work are serialized by a mutex and rolled back from
// snapshots on error. Good enough for unit tests and local development; it
// does not provide isolation from readers outside the unit of work.
type inMemoryTxRunner struct {
	mu     sync.Mutex
	stores []Restorer
}

// NewInMemoryTxRunner builds a runner over the given in-memory stores.
func NewInMemoryTxRunner(stores ...Restorer) TxRunner {
	return &inMemoryTxRunner{stores: stores}
}

func (r *inMemoryTxRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restores := make([]func(), 0, len(r.stores))
	for _, store := range r.stores {
		restores = append(restores, store.Begin())
	}

	if err := fn(ctx); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}
