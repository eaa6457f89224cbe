package search

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InMemory is a search index fake for unit tests. The Fail* fields make the
// next call of the matching operation fail once, then clear, so rollback
// compensation in the caller still runs against a working index.
type InMemory struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]Document

	FailIndex      error
	FailDelete     error
	FailBulkDelete error
}

func NewInMemory() *InMemory {
	return &InMemory{docs: make(map[uuid.UUID]Document)}
}

func (m *InMemory) Index(_ context.Context, id uuid.UUID, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailIndex; err != nil {
		m.FailIndex = nil
		return err
	}
	m.docs[id] = doc
	return nil
}

func (m *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailDelete; err != nil {
		m.FailDelete = nil
		return err
	}
	delete(m.docs, id)
	return nil
}

func (m *InMemory) BulkDelete(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailBulkDelete; err != nil {
		m.FailBulkDelete = nil
		return err
	}
	for _, id := range ids {
		delete(m.docs, id)
	}
	return nil
}

// Get returns the indexed document for assertions.
func (m *InMemory) Get(id uuid.UUID) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok
}

// Len returns the number of indexed documents.
func (m *InMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Search is a naive substring match over name and summary, good enough for
// handler tests.
func (m *InMemory) Search(_ context.Context, query string, limit int) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(query)
	var out []Document
	for _, doc := range m.docs {
		if strings.Contains(strings.ToLower(doc.Name), q) || strings.Contains(strings.ToLower(doc.Summary), q) {
			out = append(out, doc)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
