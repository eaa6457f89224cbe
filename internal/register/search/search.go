// Package search adapts the external full-text engine the public register is
// served from. The lifecycle service treats every call here as part of its
// unit of work: an index failure rolls the relational transaction back.
package search

import (
	"fmt"

	"github.com/google/uuid"

	"profreg/internal/register/models"
)

// Document is the searchable subset of a live or draft version, keyed by
// version id.
type Document struct {
	VersionID      uuid.UUID `json:"version_id"`
	EntityID       uuid.UUID `json:"entity_id"`
	Kind           string    `json:"kind"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug,omitempty"`
	Summary        string    `json:"summary"`
	Qualifications string    `json:"qualifications"`
}

// NewDocument builds the index document for a version and its owning entity.
func NewDocument(e *models.Entity, v *models.Version) Document {
	doc := Document{
		VersionID:      v.ID,
		EntityID:       e.ID,
		Kind:           string(e.Kind),
		Name:           e.Name,
		Summary:        v.Summary,
		Qualifications: v.Qualifications,
	}
	if e.Slug != nil {
		doc.Slug = *e.Slug
	}
	return doc
}

// IndexName derives the index an entity kind maps to in a given deployment
// environment, e.g. "professions_production". The environment is explicit
// configuration, never read from ambient process state.
func IndexName(kind models.Kind, environment string) string {
	return fmt.Sprintf("%ss_%s", kind, environment)
}
