package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "profreg/pkg/domain-errors"
)

// Version is a snapshot of an entity's editable fields, tagged with a
// lifecycle status. Once published, the snapshot is superseded rather than
// edited in place.
type Version struct {
	ID       uuid.UUID     `json:"id"`
	EntityID uuid.UUID     `json:"entity_id"`
	Status   VersionStatus `json:"status"`

	// Snapshot of the versioned register content.
	Summary        string   `json:"summary"`
	Qualifications string   `json:"qualifications"`
	Legislation    []string `json:"legislation"`

	// CreatedBy is the acting editor, empty for system-created versions.
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanConfirm checks the confirm transition (Unconfirmed|Draft -> Draft).
// Use with ApplyConfirm so the store's Execute callback can hold its lock
// across validation and mutation.
func (v *Version) CanConfirm() error {
	if !v.Status.CanTransitionTo(StatusDraft) || v.Status == StatusLive {
		return dErrors.New(dErrors.CodeInvariantViolation, "only unconfirmed or draft versions can be confirmed")
	}
	return nil
}

// ApplyConfirm marks the version ready for publication review.
func (v *Version) ApplyConfirm(now time.Time) {
	v.Status = StatusDraft
	v.UpdatedAt = now
}

// CanPublish checks the publish transition (Draft -> Live).
func (v *Version) CanPublish() error {
	if v.Status != StatusDraft {
		return dErrors.New(dErrors.CodeInvariantViolation, "only draft versions can be published")
	}
	return nil
}

// ApplyPublish promotes the version to the public record.
func (v *Version) ApplyPublish(now time.Time) {
	v.Status = StatusLive
	v.UpdatedAt = now
}

// CanArchive checks the archive transition. Live versions are never archived
// directly; they are demoted as a side effect of another version's publish.
func (v *Version) CanArchive() error {
	if v.Status == StatusLive {
		return dErrors.New(dErrors.CodeInvariantViolation, "live versions cannot be archived directly; publish a replacement instead")
	}
	if !v.Status.CanTransitionTo(StatusArchived) {
		return dErrors.New(dErrors.CodeInvariantViolation, "version is already archived")
	}
	return nil
}

// ApplyArchive withdraws the version.
func (v *Version) ApplyArchive(now time.Time) {
	v.Status = StatusArchived
	v.UpdatedAt = now
}

// ApplyDemoteToArchived retires the previously live version when a
// replacement is published.
func (v *Version) ApplyDemoteToArchived(now time.Time) {
	v.Status = StatusArchived
	v.UpdatedAt = now
}

// ApplyDemoteToDraft restores the previously live version to an editable
// state when the draft meant to replace it is archived. The asymmetry with
// ApplyDemoteToArchived is deliberate: withdrawing a draft must not destroy
// the previously published record.
func (v *Version) ApplyDemoteToDraft(now time.Time) {
	v.Status = StatusDraft
	v.UpdatedAt = now
}

func NewVersion(id uuid.UUID, entityID uuid.UUID, createdBy string, now time.Time) (*Version, error) {
	if entityID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "version must belong to an entity")
	}
	return &Version{
		ID:        id,
		EntityID:  entityID,
		Status:    StatusUnconfirmed,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DeriveNextVersion duplicates the snapshot fields of previous into a fresh
// Unconfirmed draft. Identity, status and timestamps are reset; slices are
// deep-copied so edits to the draft never leak into the published history.
func DeriveNextVersion(previous *Version, id uuid.UUID, createdBy string, now time.Time) *Version {
	next := &Version{
		ID:             id,
		EntityID:       previous.EntityID,
		Status:         StatusUnconfirmed,
		Summary:        previous.Summary,
		Qualifications: previous.Qualifications,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(previous.Legislation) > 0 {
		next.Legislation = make([]string, len(previous.Legislation))
		copy(next.Legislation, previous.Legislation)
	}
	return next
}
