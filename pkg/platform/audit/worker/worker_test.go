package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	outbox "profreg/pkg/platform/audit/store/postgres"
)

type fakeOutbox struct {
	mu      sync.Mutex
	entries []outbox.Entry
	listErr error
}

func (f *fakeOutbox) ListUnpublished(_ context.Context, limit int) ([]outbox.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.entries) < limit {
		limit = len(f.entries)
	}
	out := make([]outbox.Entry, limit)
	copy(out, f.entries[:limit])
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	done := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	var remaining []outbox.Entry
	for _, e := range f.entries {
		if !done[e.ID] {
			remaining = append(remaining, e)
		}
	}
	f.entries = remaining
	return nil
}

func (f *fakeOutbox) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakePublisher struct {
	mu       sync.Mutex
	keys     []string
	failFrom int // fail calls at index >= failFrom; -1 never fails
}

func (f *fakePublisher) Publish(_ context.Context, key string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFrom >= 0 && len(f.keys) >= f.failFrom {
		return errors.New("broker unavailable")
	}
	f.keys = append(f.keys, key)
	return nil
}

func newEntries(n int) []outbox.Entry {
	out := make([]outbox.Entry, n)
	for i := range out {
		out[i] = outbox.Entry{ID: uuid.New(), Payload: []byte(`{"action":"version_published"}`)}
	}
	return out
}

func TestDrainOncePublishesAndMarks(t *testing.T) {
	store := &fakeOutbox{entries: newEntries(3)}
	pub := &fakePublisher{failFrom: -1}
	w := New(store, pub, slog.New(slog.DiscardHandler))

	require.NoError(t, w.drainOnce(context.Background()))
	assert.Len(t, pub.keys, 3)
	assert.Zero(t, store.pending())
}

func TestDrainOnceStopsAtFirstPublishFailure(t *testing.T) {
	store := &fakeOutbox{entries: newEntries(3)}
	pub := &fakePublisher{failFrom: 2}
	w := New(store, pub, slog.New(slog.DiscardHandler))

	// The two published entries are marked; the failed one stays for retry.
	require.NoError(t, w.drainOnce(context.Background()))
	assert.Len(t, pub.keys, 2)
	assert.Equal(t, 1, store.pending())

	pub.failFrom = -1
	require.NoError(t, w.drainOnce(context.Background()))
	assert.Zero(t, store.pending())
}

func TestDrainOnceRespectsBatchSize(t *testing.T) {
	store := &fakeOutbox{entries: newEntries(5)}
	pub := &fakePublisher{failFrom: -1}
	w := New(store, pub, slog.New(slog.DiscardHandler), WithBatchSize(2))

	require.NoError(t, w.drainOnce(context.Background()))
	assert.Len(t, pub.keys, 2)
	assert.Equal(t, 3, store.pending())
}

func TestDrainOnceSurfacesListError(t *testing.T) {
	store := &fakeOutbox{listErr: errors.New("connection refused")}
	w := New(store, &fakePublisher{failFrom: -1}, slog.New(slog.DiscardHandler))

	assert.Error(t, w.drainOnce(context.Background()))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := &fakeOutbox{entries: newEntries(1)}
	pub := &fakePublisher{failFrom: -1}
	w := New(store, pub, slog.New(slog.DiscardHandler), WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return store.pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
