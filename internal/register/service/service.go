package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"profreg/internal/register/metrics"
	"profreg/internal/register/models"
	"profreg/internal/register/search"
	dErrors "profreg/pkg/domain-errors"
	audit "profreg/pkg/platform/audit"
	"profreg/pkg/platform/sentinel"
)

// VersionStore is the persistence seam for versions. Implementations must
// honor a transaction carried in the context (see pkg/platform/tx) and take a
// row lock in FindLiveForEntity when running inside one.
type VersionStore interface {
	Save(ctx context.Context, v *models.Version) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Version, error)
	FindLiveForEntity(ctx context.Context, entityID uuid.UUID) (*models.Version, error)
	FindLatestForEntity(ctx context.Context, entityID uuid.UUID) (*models.Version, error)
	FindAllForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Version, error)
}

// EntityStore is the persistence seam for parent entities.
type EntityStore interface {
	Create(ctx context.Context, e *models.Entity) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Entity, error)
	FindBySlug(ctx context.Context, kind models.Kind, slug string) (*models.Entity, error)
	FindByName(ctx context.Context, kind models.Kind, name string) (*models.Entity, error)
	SlugExists(ctx context.Context, kind models.Kind, slug string) (bool, error)
	UpdateSlug(ctx context.Context, id uuid.UUID, slug string) error
	ReplaceSlug(ctx context.Context, id uuid.UUID, slug string) error
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
}

// SearchIndex is the full-text engine adapter consumed by the lifecycle
// service. Operations are idempotent; failures abort the surrounding unit of
// work.
type SearchIndex interface {
	Index(ctx context.Context, id uuid.UUID, doc search.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
	BulkDelete(ctx context.Context, ids []uuid.UUID) error
}

// AuditStore records lifecycle transitions. The postgres implementation is a
// transactional outbox, so Append inside a unit of work commits with it.
type AuditStore interface {
	Append(ctx context.Context, event audit.Event) error
}

// Service orchestrates the version lifecycle across the relational stores and
// the search index.
type Service struct {
	tx       TxRunner
	versions VersionStore
	entities EntityStore
	indexes  map[models.Kind]SearchIndex
	slugs    *SlugService

	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor AuditStore
	tracer  trace.Tracer
	clock   func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditStore(store AuditStore) Option {
	return func(s *Service) {
		s.auditor = store
	}
}

// WithClock sets the time source for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs the lifecycle service. indexes maps each entity kind to its
// search index; tx serializes units of work against the version store.
func New(tx TxRunner, versions VersionStore, entities EntityStore, indexes map[models.Kind]SearchIndex, slugs *SlugService, opts ...Option) *Service {
	s := &Service{
		tx:       tx,
		versions: versions,
		entities: entities,
		indexes:  indexes,
		slugs:    slugs,
		logger:   slog.Default(),
		tracer:   otel.Tracer("profreg/register"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) indexFor(kind models.Kind) (SearchIndex, error) {
	idx, ok := s.indexes[kind]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, "no search index configured for kind "+string(kind))
	}
	return idx, nil
}

// loadVersion translates store sentinels into domain errors.
func (s *Service) loadVersion(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	v, err := s.versions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "version not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load version")
	}
	return v, nil
}

func (s *Service) loadEntity(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	e, err := s.entities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}
	return e, nil
}

func (s *Service) recordAudit(ctx context.Context, event audit.Event) error {
	if s.auditor == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return s.auditor.Append(ctx, event)
}

func (s *Service) logEvent(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
