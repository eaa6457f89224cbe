package version

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"profreg/internal/register/models"
	"profreg/pkg/platform/sentinel"
)

// InMemory keeps versions in a mutex-guarded map. It backs unit tests and
// the in-memory tx runner; PostgresStore is the production implementation.
type InMemory struct {
	mu       sync.RWMutex
	versions map[uuid.UUID]models.Version
}

func NewInMemory() *InMemory {
	return &InMemory{versions: make(map[uuid.UUID]models.Version)}
}

// Save upserts a version. The stored value is a copy so later mutations of
// the caller's struct do not leak into the store.
func (s *InMemory) Save(_ context.Context, v *models.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.ID] = cloneVersion(v)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.versions[id]; ok {
		out := cloneVersion(&v)
		return &out, nil
	}
	return nil, sentinel.ErrNotFound
}

// FindLiveForEntity returns the entity's live version, or nil when the
// entity has never been published. Absence is a normal state, not an error.
func (s *InMemory) FindLiveForEntity(_ context.Context, entityID uuid.UUID) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions {
		if v.EntityID == entityID && v.Status == models.StatusLive {
			out := cloneVersion(&v)
			return &out, nil
		}
	}
	return nil, nil
}

// FindAllForEntity returns the entity's versions ordered oldest first.
func (s *InMemory) FindAllForEntity(_ context.Context, entityID uuid.UUID) ([]*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Version
	for _, v := range s.versions {
		if v.EntityID == entityID {
			c := cloneVersion(&v)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// FindLatestForEntity returns the most recently created version, the
// duplication source for a new draft. Returns ErrNotFound when the entity has
// no versions.
func (s *InMemory) FindLatestForEntity(ctx context.Context, entityID uuid.UUID) (*models.Version, error) {
	all, err := s.FindAllForEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return all[len(all)-1], nil
}

func (s *InMemory) FindByStatus(_ context.Context, status models.VersionStatus) ([]*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Version
	for _, v := range s.versions {
		if v.Status == status {
			c := cloneVersion(&v)
			out = append(out, &c)
		}
	}
	return out, nil
}

// Begin snapshots the store's state and returns a restore closure, letting
// the in-memory tx runner roll back failed units of work.
func (s *InMemory) Begin() (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[uuid.UUID]models.Version, len(s.versions))
	for id, v := range s.versions {
		snapshot[id] = cloneVersion(&v)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.versions = snapshot
	}
}

func cloneVersion(v *models.Version) models.Version {
	out := *v
	if len(v.Legislation) > 0 {
		out.Legislation = make([]string, len(v.Legislation))
		copy(out.Legislation, v.Legislation)
	}
	return out
}
