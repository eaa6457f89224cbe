package entity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"profreg/internal/register/models"
	"profreg/pkg/platform/sentinel"
)

// InMemory keeps entities in a mutex-guarded map for tests and the in-memory
// tx runner.
type InMemory struct {
	mu       sync.RWMutex
	entities map[uuid.UUID]models.Entity
}

func NewInMemory() *InMemory {
	return &InMemory{entities: make(map[uuid.UUID]models.Entity)}
}

func (s *InMemory) Create(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[e.ID]; exists {
		return sentinel.ErrConflict
	}
	s.entities[e.ID] = cloneEntity(e)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[id]; ok {
		out := cloneEntity(&e)
		return &out, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindBySlug(_ context.Context, kind models.Kind, slug string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.Kind == kind && e.Slug != nil && strings.EqualFold(*e.Slug, slug) {
			out := cloneEntity(&e)
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// SlugExists reports whether any entity of the given kind already uses slug.
func (s *InMemory) SlugExists(_ context.Context, kind models.Kind, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.Kind == kind && e.Slug != nil && strings.EqualFold(*e.Slug, slug) {
			return true, nil
		}
	}
	return false, nil
}

// UpdateSlug assigns a slug to an entity that does not have one yet. Returns
// ErrConflict if a slug is already set so callers never clobber a published
// URL by accident.
func (s *InMemory) UpdateSlug(_ context.Context, id uuid.UUID, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.Slug != nil {
		return sentinel.ErrConflict
	}
	e.Slug = &slug
	s.entities[id] = e
	return nil
}

// ReplaceSlug overwrites the slug as part of an administrative rename.
func (s *InMemory) ReplaceSlug(_ context.Context, id uuid.UUID, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.Slug = &slug
	s.entities[id] = e
	return nil
}

func (s *InMemory) UpdateName(_ context.Context, id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.Name = name
	s.entities[id] = e
	return nil
}

// FindByName does a case-insensitive lookup, used by the rename operation.
func (s *InMemory) FindByName(_ context.Context, kind models.Kind, name string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.Kind == kind && strings.EqualFold(e.Name, name) {
			out := cloneEntity(&e)
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Begin snapshots the store's state and returns a restore closure for the
// in-memory tx runner.
func (s *InMemory) Begin() (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[uuid.UUID]models.Entity, len(s.entities))
	for id, e := range s.entities {
		snapshot[id] = cloneEntity(&e)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entities = snapshot
	}
}

func cloneEntity(e *models.Entity) models.Entity {
	out := *e
	if e.Slug != nil {
		slug := *e.Slug
		out.Slug = &slug
	}
	return out
}
