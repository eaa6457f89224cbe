package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "profreg/pkg/domain-errors"
)

// Kind distinguishes the two register branches. Slugs are unique per kind,
// and each kind maps to its own search index.
type Kind string

const (
	KindProfession   Kind = "profession"
	KindOrganisation Kind = "organisation"
)

// ParseKind validates a kind received from transport.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindProfession, KindOrganisation:
		return Kind(raw), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "kind must be profession or organisation")
}

// Entity is the aggregate root owning a history of versions.
//
// Invariants:
//   - Name is non-empty and at most 255 characters
//   - Slug is nil until the entity's first version is published, then unique
//     among entities of the same kind
//   - Slug is assigned at most once per rename operation; the publish flow
//     never overwrites an existing slug
//   - At most one of the entity's versions has StatusLive at any time
//     (enforced by the lifecycle service inside its unit of work)
type Entity struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Slug      *string   `json:"slug,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasSlug reports whether the entity has been assigned a public URL slug.
func (e *Entity) HasSlug() bool {
	return e.Slug != nil && *e.Slug != ""
}

// ApplySlug records the resolved slug. Callers must check HasSlug first; the
// slug service owns uniqueness probing.
func (e *Entity) ApplySlug(slug string, now time.Time) {
	e.Slug = &slug
	e.UpdatedAt = now
}

// ApplyRename updates the display name. Re-slugification is a separate,
// deliberate administrative step handled by the slug service.
func (e *Entity) ApplyRename(name string, now time.Time) {
	e.Name = name
	e.UpdatedAt = now
}

func NewEntity(id uuid.UUID, kind Kind, name string, now time.Time) (*Entity, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity name cannot be empty")
	}
	if len(name) > 255 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity name must be 255 characters or less")
	}
	return &Entity{
		ID:        id,
		Kind:      kind,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
