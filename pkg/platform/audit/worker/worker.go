package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	outbox "profreg/pkg/platform/audit/store/postgres"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Outbox is the slice of the postgres audit store the relay needs.
type Outbox interface {
	ListUnpublished(ctx context.Context, limit int) ([]outbox.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Publisher sends one serialized event to the audit topic.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Worker drains the transactional outbox to Kafka. Publishing is best-effort
// and retried on the next poll; lifecycle operations never wait on it.
type Worker struct {
	store     Outbox
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type Option func(*Worker)

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func New(store Outbox, publisher Publisher, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		store:     store,
		publisher: publisher,
		logger:    logger,
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Returns ctx.Err() on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "audit relay pass failed", "error", err)
			}
		}
	}
}

// drainOnce relays one batch. Entries that fail to publish stay unpublished
// and are retried on the next pass.
func (w *Worker) drainOnce(ctx context.Context) error {
	entries, err := w.store.ListUnpublished(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if err := w.publisher.Publish(ctx, entry.ID.String(), entry.Payload); err != nil {
			break
		}
		published = append(published, entry.ID)
	}
	if len(published) == 0 {
		return nil
	}
	return w.store.MarkPublished(ctx, published)
}
