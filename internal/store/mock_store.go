package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// MockStore is an in-memory implementation of Store for testing.
type MockStore struct {
	mu     sync.RWMutex
	models map[string]*storedModel
}

type storedModel struct {
	doc     *models.Document
	updated time.Time
}

// NewMockStore creates a new mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		models: make(map[string]*storedModel),
	}
}

// Save stores a snapshot of m. Later changes to m are not visible.
func (s *MockStore) Save(_ context.Context, m *models.Model) error {
	if m.ID == "" {
		return fmt.Errorf("saving model: empty identifier")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.ID] = &storedModel{doc: m.Document(), updated: time.Now().UTC()}
	return nil
}

// Load rebuilds a fresh model from the stored snapshot.
func (s *MockStore) Load(_ context.Context, id string) (*models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sm, ok := s.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return models.FromDocument(sm.doc)
}

// List returns every stored model ordered by identifier.
func (s *MockStore) List(_ context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.models))
	for _, sm := range s.models {
		out = append(out, infoOf(sm.doc, sm.updated))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes a model by identifier.
func (s *MockStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.models, id)
	return nil
}

// Close is a no-op for the mock store.
func (s *MockStore) Close() error {
	return nil
}
