package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gosimple/slug"

	"profreg/internal/register/models"
	dErrors "profreg/pkg/domain-errors"
	audit "profreg/pkg/platform/audit"
	"profreg/pkg/platform/sentinel"
)

// maxSlugLength caps generated slugs so register URLs stay manageable. The
// collision suffix is appended after truncation.
const maxSlugLength = 100

// SlugService owns URL slug assignment for entities. Slugs are derived from
// the entity name, unique per kind, and set at most once outside the rename
// flow.
type SlugService struct {
	entities EntityStore
	auditor  AuditStore
	logger   *slog.Logger
}

func NewSlugService(entities EntityStore, opts ...SlugOption) *SlugService {
	s := &SlugService{entities: entities, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SlugOption func(*SlugService)

func WithSlugLogger(logger *slog.Logger) SlugOption {
	return func(s *SlugService) {
		s.logger = logger
	}
}

func WithSlugAuditStore(store AuditStore) SlugOption {
	return func(s *SlugService) {
		s.auditor = store
	}
}

// SetSlug assigns a slug derived from the entity's name. Calling it on an
// entity that already has a slug is a no-op: the first published URL wins.
func (s *SlugService) SetSlug(ctx context.Context, e *models.Entity) (*models.Entity, error) {
	if e.HasSlug() {
		return e, nil
	}

	resolved, err := s.resolveSlug(ctx, e.Kind, e.Name)
	if err != nil {
		return nil, err
	}

	if err := s.entities.UpdateSlug(ctx, e.ID, resolved); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another publish got here first; the stored slug stands.
			current, findErr := s.entities.FindByID(ctx, e.ID)
			if findErr == nil {
				return current, nil
			}
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to reload entity after slug conflict")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign slug")
	}

	e.Slug = &resolved
	s.emitAudit(ctx, audit.ActionSlugAssigned, e, resolved)
	return e, nil
}

// Rename corrects a published entity's name outside the version flow and
// re-slugifies it. The old slug is released.
func (s *SlugService) Rename(ctx context.Context, kind models.Kind, oldName, newName string) (string, error) {
	if newName == "" {
		return "", dErrors.New(dErrors.CodeValidation, "new name is required")
	}

	e, err := s.entities.FindByName(ctx, kind, oldName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "entity not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}

	if err := s.entities.UpdateName(ctx, e.ID, newName); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to rename entity")
	}

	resolved, err := s.resolveSlug(ctx, kind, newName)
	if err != nil {
		return "", err
	}
	if err := s.entities.ReplaceSlug(ctx, e.ID, resolved); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to replace slug")
	}

	e.Name = newName
	s.emitAudit(ctx, audit.ActionEntityRenamed, e, resolved)
	return resolved, nil
}

// resolveSlug slugifies name and probes the store for collisions, appending
// -1, -2, ... until an unused slug is found.
func (s *SlugService) resolveSlug(ctx context.Context, kind models.Kind, name string) (string, error) {
	base := slug.Make(name)
	if len(base) > maxSlugLength {
		base = base[:maxSlugLength]
	}
	if base == "" {
		return "", dErrors.New(dErrors.CodeValidation, "entity name produces an empty slug")
	}

	candidate := base
	for suffix := 1; ; suffix++ {
		taken, err := s.entities.SlugExists(ctx, kind, candidate)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to probe slug")
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func (s *SlugService) emitAudit(ctx context.Context, action audit.Action, e *models.Entity, slug string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Append(ctx, audit.Event{
		Action:   action,
		Kind:     string(e.Kind),
		EntityID: e.ID,
		Detail:   slug,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to record slug audit event",
			"entity_id", e.ID, "error", err)
	}
}
