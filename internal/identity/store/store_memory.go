package store

import (
	"context"
	"sort"
	"sync"

	"governa/internal/identity/models"
	"governa/internal/sentinel"
	id "governa/pkg/domain"
)

// InMemoryStore stores identities in memory for tests and the no-database
// development mode.
type InMemoryStore struct {
	mu         sync.RWMutex
	byID       map[id.IdentityID]*models.Identity
	byEmployee map[string]id.IdentityID
}

// NewInMemoryStore constructs an empty in-memory identity store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:       make(map[id.IdentityID]*models.Identity),
		byEmployee: make(map[string]id.IdentityID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmployee[identity.EmployeeID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byID[identity.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[identity.ID] = identity.Clone()
	s.byEmployee[identity.EmployeeID] = identity.ID
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, identityID id.IdentityID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.byID[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return identity.Clone(), nil
}

func (s *InMemoryStore) GetByEmployeeID(_ context.Context, employeeID string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identityID, ok := s.byEmployee[employeeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[identityID].Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[identity.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[identity.ID] = identity.Clone()
	return nil
}

// List returns all identities ordered by creation time, oldest first.
func (s *InMemoryStore) List(_ context.Context) ([]*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Identity, 0, len(s.byID))
	for _, identity := range s.byID {
		out = append(out, identity.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
