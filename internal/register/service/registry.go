package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"profreg/internal/register/models"
	dErrors "profreg/pkg/domain-errors"
	audit "profreg/pkg/platform/audit"
	"profreg/pkg/platform/sentinel"
)

// CreateEntityInput carries everything needed to open a new register record.
type CreateEntityInput struct {
	Kind           models.Kind
	Name           string
	Summary        string
	Qualifications string
	Legislation    []string
	CreatedBy      string
}

// CreateEntity creates a register entity together with its first Unconfirmed
// version, atomically.
func (s *Service) CreateEntity(ctx context.Context, in CreateEntityInput) (*models.Entity, *models.Version, error) {
	in.Name = strings.TrimSpace(in.Name)

	var (
		entity  *models.Entity
		version *models.Version
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := s.clock()
		e, err := models.NewEntity(uuid.New(), in.Kind, in.Name, now)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, err.Error())
			}
			return err
		}
		if err := s.entities.Create(txCtx, e); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "entity already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create entity")
		}

		v, err := models.NewVersion(uuid.New(), e.ID, in.CreatedBy, now)
		if err != nil {
			return err
		}
		v.Summary = in.Summary
		v.Qualifications = in.Qualifications
		v.Legislation = in.Legislation
		if err := s.versions.Save(txCtx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save first version")
		}

		if err := s.recordAudit(txCtx, audit.Event{
			Action:    audit.ActionEntityCreated,
			Kind:      string(e.Kind),
			EntityID:  e.ID,
			VersionID: v.ID,
			Actor:     in.CreatedBy,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}

		entity = e
		version = v
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logEvent(ctx, "entity_created", "entity_id", entity.ID, "kind", entity.Kind)
	return entity, version, nil
}

// DeriveDraft opens a new Unconfirmed version by copy-on-write duplication of
// the entity's most recent version.
func (s *Service) DeriveDraft(ctx context.Context, entityID uuid.UUID, createdBy string) (*models.Version, error) {
	var draft *models.Version
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		e, err := s.loadEntity(txCtx, entityID)
		if err != nil {
			return err
		}

		latest, err := s.versions.FindLatestForEntity(txCtx, entityID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "entity has no versions to derive from")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load latest version")
		}

		v := models.DeriveNextVersion(latest, uuid.New(), createdBy, s.clock())
		if err := s.versions.Save(txCtx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save derived version")
		}

		if err := s.recordAudit(txCtx, audit.Event{
			Action:    audit.ActionVersionDerived,
			Kind:      string(e.Kind),
			EntityID:  e.ID,
			VersionID: v.ID,
			Actor:     createdBy,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}

		draft = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, "version_derived", "entity_id", entityID, "version_id", draft.ID)
	return draft, nil
}

// GetVersion loads a single version.
func (s *Service) GetVersion(ctx context.Context, versionID uuid.UUID) (*models.Version, error) {
	return s.loadVersion(ctx, versionID)
}

// ListVersions returns an entity's full version history, oldest first.
func (s *Service) ListVersions(ctx context.Context, entityID uuid.UUID) ([]*models.Version, error) {
	if _, err := s.loadEntity(ctx, entityID); err != nil {
		return nil, err
	}
	versions, err := s.versions.FindAllForEntity(ctx, entityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list versions")
	}
	return versions, nil
}

// GetEntity loads an entity by id.
func (s *Service) GetEntity(ctx context.Context, entityID uuid.UUID) (*models.Entity, error) {
	return s.loadEntity(ctx, entityID)
}

// GetLiveBySlug serves the public read view: the entity and its live version,
// addressed by kind and slug.
func (s *Service) GetLiveBySlug(ctx context.Context, kind models.Kind, slugValue string) (*models.Entity, *models.Version, error) {
	e, err := s.entities.FindBySlug(ctx, kind, slugValue)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}

	live, err := s.versions.FindLiveForEntity(ctx, e.ID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load live version")
	}
	if live == nil {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "record is not currently published")
	}
	return e, live, nil
}

// Rename corrects a published entity's name and re-slugifies it. Delegates
// to the slug service; exposed here so the transport layer has one facade.
func (s *Service) Rename(ctx context.Context, kind models.Kind, oldName, newName string) (string, error) {
	return s.slugs.Rename(ctx, kind, strings.TrimSpace(oldName), strings.TrimSpace(newName))
}
