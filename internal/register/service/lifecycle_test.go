package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"profreg/internal/register/models"
	"profreg/internal/register/search"
	entitystore "profreg/internal/register/store/entity"
	versionstore "profreg/internal/register/store/version"
	dErrors "profreg/pkg/domain-errors"
	audit "profreg/pkg/platform/audit"
	auditmem "profreg/pkg/platform/audit/store/memory"
)

type LifecycleSuite struct {
	suite.Suite

	ctx      context.Context
	versions *versionstore.InMemory
	entities *entitystore.InMemory
	index    *search.InMemory
	orgIndex *search.InMemory
	auditor  *auditmem.Store
	svc      *Service

	now time.Time
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.ctx = context.Background()
	s.versions = versionstore.NewInMemory()
	s.entities = entitystore.NewInMemory()
	s.index = search.NewInMemory()
	s.orgIndex = search.NewInMemory()
	s.auditor = auditmem.New()
	s.now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	slugs := NewSlugService(s.entities, WithSlugAuditStore(s.auditor))
	s.svc = New(
		NewInMemoryTxRunner(s.versions, s.entities),
		s.versions,
		s.entities,
		map[models.Kind]SearchIndex{
			models.KindProfession:   s.index,
			models.KindOrganisation: s.orgIndex,
		},
		slugs,
		WithAuditStore(s.auditor),
		WithClock(s.tick),
	)
}

// tick advances one second per call so created_at ordering is deterministic.
func (s *LifecycleSuite) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *LifecycleSuite) createProfession(name string) (*models.Entity, *models.Version) {
	e, v, err := s.svc.CreateEntity(s.ctx, CreateEntityInput{
		Kind:           models.KindProfession,
		Name:           name,
		Summary:        "Regulated across the United Kingdom",
		Qualifications: "Degree plus registration",
		Legislation:    []string{"Health Act 1999"},
		CreatedBy:      "editor@example.com",
	})
	s.Require().NoError(err)
	return e, v
}

func (s *LifecycleSuite) publishNewDraft(entityID uuid.UUID) *models.Version {
	draft, err := s.svc.DeriveDraft(s.ctx, entityID, "editor@example.com")
	s.Require().NoError(err)
	_, err = s.svc.Confirm(s.ctx, draft.ID)
	s.Require().NoError(err)
	published, err := s.svc.Publish(s.ctx, draft.ID)
	s.Require().NoError(err)
	return published
}

func (s *LifecycleSuite) TestCreateEntityOpensUnconfirmedVersion() {
	e, v := s.createProfession("Social Worker")

	s.Equal(models.KindProfession, e.Kind)
	s.False(e.HasSlug())
	s.Equal(models.StatusUnconfirmed, v.Status)
	s.Equal(e.ID, v.EntityID)
	s.Len(s.auditor.ByAction(audit.ActionEntityCreated), 1)
}

func (s *LifecycleSuite) TestConfirmMovesUnconfirmedToDraft() {
	_, v := s.createProfession("Social Worker")

	confirmed, err := s.svc.Confirm(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, confirmed.Status)

	stored, err := s.versions.FindByID(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, stored.Status)
	s.Len(s.auditor.ByAction(audit.ActionVersionConfirmed), 1)
}

func (s *LifecycleSuite) TestConfirmRejectsArchivedVersion() {
	_, v := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v.ID)
	s.Require().NoError(err)
	_, err = s.svc.Archive(s.ctx, v.ID)
	s.Require().NoError(err)

	_, err = s.svc.Confirm(s.ctx, v.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *LifecycleSuite) TestFirstPublishGoesLiveIndexesAndAssignsSlug() {
	e, v := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v.ID)
	s.Require().NoError(err)

	published, err := s.svc.Publish(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusLive, published.Status)

	doc, ok := s.index.Get(v.ID)
	s.Require().True(ok, "published version should be searchable")
	s.Equal("Social Worker", doc.Name)
	s.Equal(e.ID, doc.EntityID)

	stored, err := s.entities.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Require().True(stored.HasSlug())
	s.Equal("social-worker", *stored.Slug)

	s.Len(s.auditor.ByAction(audit.ActionVersionPublished), 1)
	s.Len(s.auditor.ByAction(audit.ActionSlugAssigned), 1)
}

func (s *LifecycleSuite) TestPublishRejectsUnconfirmedVersion() {
	_, v := s.createProfession("Social Worker")

	_, err := s.svc.Publish(s.ctx, v.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	s.Zero(s.index.Len())
}

func (s *LifecycleSuite) TestPublishDemotesPriorLiveToArchived() {
	e, v1 := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v1.ID)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx, v1.ID)
	s.Require().NoError(err)

	v2 := s.publishNewDraft(e.ID)
	s.Equal(models.StatusLive, v2.Status)

	prior, err := s.versions.FindByID(s.ctx, v1.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, prior.Status)

	live, err := s.versions.FindLiveForEntity(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(v2.ID, live.ID)

	// The index holds exactly the new live document.
	s.Equal(1, s.index.Len())
	_, ok := s.index.Get(v2.ID)
	s.True(ok)
	_, ok = s.index.Get(v1.ID)
	s.False(ok, "demoted version should leave the index")
}

func (s *LifecycleSuite) TestPublishKeepsSlugFromFirstPublish() {
	e, v1 := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v1.ID)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx, v1.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.entities.UpdateName(s.ctx, e.ID, "Registered Social Worker"))
	s.publishNewDraft(e.ID)

	stored, err := s.entities.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal("social-worker", *stored.Slug)
	s.Len(s.auditor.ByAction(audit.ActionSlugAssigned), 1)
}

func (s *LifecycleSuite) TestPublishRollsBackWhenIndexingFails() {
	e, v := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v.ID)
	s.Require().NoError(err)

	s.index.FailIndex = errors.New("search engine unavailable")
	_, err = s.svc.Publish(s.ctx, v.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	stored, err := s.versions.FindByID(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, stored.Status, "failed publish must roll the status back")
	s.Zero(s.index.Len())

	entity, err := s.entities.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.False(entity.HasSlug(), "no slug on a rolled-back first publish")
}

func (s *LifecycleSuite) TestPublishRollsBackWhenPriorDeleteFails() {
	e, v1 := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v1.ID)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx, v1.ID)
	s.Require().NoError(err)

	draft, err := s.svc.DeriveDraft(s.ctx, e.ID, "editor@example.com")
	s.Require().NoError(err)
	_, err = s.svc.Confirm(s.ctx, draft.ID)
	s.Require().NoError(err)

	s.index.FailDelete = errors.New("search engine unavailable")
	_, err = s.svc.Publish(s.ctx, draft.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	// Relational state rolled back: v1 still live, draft still draft.
	live, err := s.versions.FindLiveForEntity(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(v1.ID, live.ID)
	stored, err := s.versions.FindByID(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, stored.Status)

	// Compensation removed the freshly upserted document, so the index still
	// serves only the live version.
	s.Equal(1, s.index.Len())
	_, ok := s.index.Get(v1.ID)
	s.True(ok)
}

func (s *LifecycleSuite) TestArchiveDraftDemotesLiveToDraft() {
	e, v1 := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v1.ID)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx, v1.ID)
	s.Require().NoError(err)

	draft, err := s.svc.DeriveDraft(s.ctx, e.ID, "editor@example.com")
	s.Require().NoError(err)

	archived, err := s.svc.Archive(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, archived.Status)

	// Withdrawing the replacement puts the published record back on the
	// editor's desk rather than discarding it.
	prior, err := s.versions.FindByID(s.ctx, v1.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, prior.Status)

	live, err := s.versions.FindLiveForEntity(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Nil(live)
	s.Zero(s.index.Len(), "nothing live, nothing searchable")
	s.Len(s.auditor.ByAction(audit.ActionVersionArchived), 1)
}

func (s *LifecycleSuite) TestArchiveRejectsLiveVersion() {
	_, v := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v.ID)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx, v.ID)
	s.Require().NoError(err)

	_, err = s.svc.Archive(s.ctx, v.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	stored, err := s.versions.FindByID(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusLive, stored.Status)
	s.Equal(1, s.index.Len())
}

func (s *LifecycleSuite) TestArchiveRejectsArchivedVersion() {
	_, v := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v.ID)
	s.Require().NoError(err)
	_, err = s.svc.Archive(s.ctx, v.ID)
	s.Require().NoError(err)

	_, err = s.svc.Archive(s.ctx, v.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *LifecycleSuite) TestArchiveRollsBackWhenIndexCleanupFails() {
	e, v1 := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v1.ID)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx, v1.ID)
	s.Require().NoError(err)

	draft, err := s.svc.DeriveDraft(s.ctx, e.ID, "editor@example.com")
	s.Require().NoError(err)

	s.index.FailBulkDelete = errors.New("search engine unavailable")
	_, err = s.svc.Archive(s.ctx, draft.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	live, err := s.versions.FindLiveForEntity(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Require().NotNil(live)
	s.Equal(v1.ID, live.ID, "demotion must roll back with the archive")
	stored, err := s.versions.FindByID(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusUnconfirmed, stored.Status)
}

func (s *LifecycleSuite) TestPublishThenArchiveReplacementRoundTrip() {
	e, v1 := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v1.ID)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx, v1.ID)
	s.Require().NoError(err)

	// Publish a replacement, archiving v1, then withdraw a further draft to
	// check the asymmetry: publish demotes to Archived, archive to Draft.
	v2 := s.publishNewDraft(e.ID)
	v3, err := s.svc.DeriveDraft(s.ctx, e.ID, "editor@example.com")
	s.Require().NoError(err)
	_, err = s.svc.Archive(s.ctx, v3.ID)
	s.Require().NoError(err)

	first, err := s.versions.FindByID(s.ctx, v1.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, first.Status)
	second, err := s.versions.FindByID(s.ctx, v2.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, second.Status)
	third, err := s.versions.FindByID(s.ctx, v3.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, third.Status)

	live, err := s.versions.FindLiveForEntity(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Nil(live)
}

func (s *LifecycleSuite) TestDeriveDraftCopiesLatestSnapshot() {
	e, v1 := s.createProfession("Social Worker")

	draft, err := s.svc.DeriveDraft(s.ctx, e.ID, "second.editor@example.com")
	s.Require().NoError(err)
	s.Equal(models.StatusUnconfirmed, draft.Status)
	s.Equal(v1.Summary, draft.Summary)
	s.Equal(v1.Legislation, draft.Legislation)
	s.NotEqual(v1.ID, draft.ID)

	draft.Legislation[0] = "amended"
	original, err := s.versions.FindByID(s.ctx, v1.ID)
	s.Require().NoError(err)
	s.Equal("Health Act 1999", original.Legislation[0])

	s.Len(s.auditor.ByAction(audit.ActionVersionDerived), 1)
}

func (s *LifecycleSuite) TestGetLiveBySlug() {
	_, v := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v.ID)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx, v.ID)
	s.Require().NoError(err)

	e, live, err := s.svc.GetLiveBySlug(s.ctx, models.KindProfession, "social-worker")
	s.Require().NoError(err)
	s.Equal("Social Worker", e.Name)
	s.Equal(v.ID, live.ID)

	_, _, err = s.svc.GetLiveBySlug(s.ctx, models.KindOrganisation, "social-worker")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "slugs are scoped per kind")
}

func (s *LifecycleSuite) TestGetLiveBySlugUnpublishedIsNotFound() {
	e, v1 := s.createProfession("Social Worker")
	_, err := s.svc.Confirm(s.ctx, v1.ID)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx, v1.ID)
	s.Require().NoError(err)

	draft, err := s.svc.DeriveDraft(s.ctx, e.ID, "editor@example.com")
	s.Require().NoError(err)
	_, err = s.svc.Archive(s.ctx, draft.ID)
	s.Require().NoError(err)

	_, _, err = s.svc.GetLiveBySlug(s.ctx, models.KindProfession, "social-worker")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LifecycleSuite) TestOperationsOnUnknownVersion() {
	for _, op := range []func(context.Context, uuid.UUID) (*models.Version, error){
		s.svc.Confirm, s.svc.Publish, s.svc.Archive,
	} {
		_, err := op(s.ctx, uuid.New())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	}
}

func (s *LifecycleSuite) TestOrganisationPublishesToOwnIndex() {
	e, v, err := s.svc.CreateEntity(s.ctx, CreateEntityInput{
		Kind:      models.KindOrganisation,
		Name:      "General Medical Council",
		Summary:   "Regulator of doctors",
		CreatedBy: "editor@example.com",
	})
	s.Require().NoError(err)
	_, err = s.svc.Confirm(s.ctx, v.ID)
	s.Require().NoError(err)
	_, err = s.svc.Publish(s.ctx, v.ID)
	s.Require().NoError(err)

	s.Zero(s.index.Len())
	s.Equal(1, s.orgIndex.Len())

	stored, err := s.entities.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal("general-medical-council", *stored.Slug)
}
