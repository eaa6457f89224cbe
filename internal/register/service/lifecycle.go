package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"profreg/internal/register/models"
	"profreg/internal/register/search"
	dErrors "profreg/pkg/domain-errors"
	audit "profreg/pkg/platform/audit"
)

// Confirm transitions an Unconfirmed or Draft version to Draft, marking it
// ready for publication review. No search index effect.
func (s *Service) Confirm(ctx context.Context, versionID uuid.UUID) (*models.Version, error) {
	var confirmed *models.Version
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		v, err := s.loadVersion(txCtx, versionID)
		if err != nil {
			return err
		}
		if err := v.CanConfirm(); err != nil {
			return err
		}
		v.ApplyConfirm(s.clock())
		if err := s.versions.Save(txCtx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save confirmed version")
		}

		e, err := s.loadEntity(txCtx, v.EntityID)
		if err != nil {
			return err
		}
		if err := s.recordAudit(txCtx, audit.Event{
			Action:    audit.ActionVersionConfirmed,
			Kind:      string(e.Kind),
			EntityID:  e.ID,
			VersionID: v.ID,
			Actor:     v.CreatedBy,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		confirmed = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, "version_confirmed", "version_id", versionID)
	if s.metrics != nil {
		s.metrics.VersionsConfirmed.Inc()
	}
	return confirmed, nil
}

// Publish promotes a draft version to the public record. Inside one unit of
// work: the entity's current live version (loaded under a row lock) is
// demoted to Archived and removed from the search index, the input version
// becomes Live, and its document is upserted. The index calls happen before
// commit so an index failure rolls the relational writes back. After commit,
// a first publish assigns the entity's slug; slug assignment is idempotent
// and entity-scoped, so it deliberately sits outside the version transaction.
func (s *Service) Publish(ctx context.Context, versionID uuid.UUID) (*models.Version, error) {
	start := s.clock()
	ctx, span := s.tracer.Start(ctx, "register.Publish",
		trace.WithAttributes(attribute.String("version_id", versionID.String())))
	defer span.End()

	var (
		published *models.Version
		entity    *models.Entity
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		v, err := s.loadVersion(txCtx, versionID)
		if err != nil {
			return err
		}
		if err := v.CanPublish(); err != nil {
			return err
		}
		e, err := s.loadEntity(txCtx, v.EntityID)
		if err != nil {
			return err
		}
		idx, err := s.indexFor(e.Kind)
		if err != nil {
			return err
		}

		prior, err := s.versions.FindLiveForEntity(txCtx, v.EntityID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load live version")
		}

		now := s.clock()
		if prior != nil && prior.ID != v.ID {
			prior.ApplyDemoteToArchived(now)
			if err := s.versions.Save(txCtx, prior); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to demote live version")
			}
		}

		v.ApplyPublish(now)
		if err := s.versions.Save(txCtx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save published version")
		}

		if err := s.recordAudit(txCtx, audit.Event{
			Action:    audit.ActionVersionPublished,
			Kind:      string(e.Kind),
			EntityID:  e.ID,
			VersionID: v.ID,
			Actor:     v.CreatedBy,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}

		// Index calls are the last thing before commit so an index failure
		// still rolls the relational writes back. Upsert the new document
		// first, then remove the prior one; if the removal fails we
		// compensate by deleting the fresh upsert so a rolled-back publish
		// leaves the index untouched.
		if err := idx.Index(txCtx, v.ID, search.NewDocument(e, v)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to index published version")
		}
		if prior != nil && prior.ID != v.ID {
			if err := idx.Delete(txCtx, prior.ID); err != nil {
				_ = idx.Delete(txCtx, v.ID)
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove archived version from index")
			}
		}

		published = v
		entity = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	// First publish: assign the public URL slug. Runs post-commit because it
	// is idempotent and scoped to the entity, not the version; a failure here
	// leaves the version live and is reported for the caller to retry.
	if !entity.HasSlug() {
		if _, err := s.slugs.SetSlug(ctx, entity); err != nil {
			s.logger.ErrorContext(ctx, "slug assignment failed after publish",
				"entity_id", entity.ID, "error", err)
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.SlugsAssigned.Inc()
		}
	}

	s.logEvent(ctx, "version_published",
		"version_id", versionID, "entity_id", entity.ID, "kind", entity.Kind)
	if s.metrics != nil {
		s.metrics.VersionsPublished.Inc()
		s.metrics.ObservePublish(start)
	}
	return published, nil
}

// Archive withdraws a draft (or unconfirmed) version. Inside one unit of
// work: the entity's current live version, if any, is demoted to Draft, not
// Archived, so withdrawing a replacement draft restores the previously
// published record to an editable state instead of discarding it. All of the
// entity's versions except a remaining live one are bulk-removed from the
// search index.
func (s *Service) Archive(ctx context.Context, versionID uuid.UUID) (*models.Version, error) {
	start := s.clock()
	ctx, span := s.tracer.Start(ctx, "register.Archive",
		trace.WithAttributes(attribute.String("version_id", versionID.String())))
	defer span.End()

	var (
		archived *models.Version
		entity   *models.Entity
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		v, err := s.loadVersion(txCtx, versionID)
		if err != nil {
			return err
		}
		if err := v.CanArchive(); err != nil {
			return err
		}
		e, err := s.loadEntity(txCtx, v.EntityID)
		if err != nil {
			return err
		}
		idx, err := s.indexFor(e.Kind)
		if err != nil {
			return err
		}

		prior, err := s.versions.FindLiveForEntity(txCtx, v.EntityID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load live version")
		}

		now := s.clock()
		if prior != nil && prior.ID != v.ID {
			prior.ApplyDemoteToDraft(now)
			if err := s.versions.Save(txCtx, prior); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to demote live version")
			}
		}

		v.ApplyArchive(now)
		if err := s.versions.Save(txCtx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save archived version")
		}

		if err := s.recordAudit(txCtx, audit.Event{
			Action:    audit.ActionVersionArchived,
			Kind:      string(e.Kind),
			EntityID:  e.ID,
			VersionID: v.ID,
			Actor:     v.CreatedBy,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}

		// Only a live, published version should remain searchable. After the
		// demotion above there may be none, in which case every version of
		// the entity leaves the index. The bulk delete is the last call
		// before commit so an index failure still rolls everything back.
		all, err := s.versions.FindAllForEntity(txCtx, v.EntityID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list entity versions")
		}
		var remove []uuid.UUID
		for _, candidate := range all {
			if candidate.Status == models.StatusLive {
				continue
			}
			remove = append(remove, candidate.ID)
		}
		if err := idx.BulkDelete(txCtx, remove); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove archived versions from index")
		}

		archived = v
		entity = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, "version_archived",
		"version_id", versionID, "entity_id", entity.ID, "kind", entity.Kind)
	if s.metrics != nil {
		s.metrics.VersionsArchived.Inc()
		s.metrics.ObserveArchive(start)
	}
	return archived, nil
}
