package store

import (
	"context"
	"sort"
	"sync"

	"governa/internal/request/models"
	"governa/internal/sentinel"
	id "governa/pkg/domain"
)

// InMemoryStore keeps requests in a map. The ledger/workflow transaction
// runner serializes mutating flows; the store's own mutex only guards
// individual map operations.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.AccessRequest
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.RequestID]*models.AccessRequest)}
}

func (s *InMemoryStore) Insert(_ context.Context, request *models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[request.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[request.ID] = request.Clone()
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, requestID id.RequestID) (*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return request.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, request *models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[request.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.requests[request.ID] = request.Clone()
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AccessRequest, 0, len(s.requests))
	for _, request := range s.requests {
		if filter.Status != nil && request.Status != *filter.Status {
			continue
		}
		if filter.RequesterID != nil && request.RequesterID != *filter.RequesterID {
			continue
		}
		out = append(out, request.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) ListPendingByRequester(_ context.Context, requesterID id.IdentityID) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AccessRequest
	for _, request := range s.requests {
		if request.RequesterID == requesterID && request.IsPending() {
			out = append(out, request.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Clear removes every request. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = make(map[id.RequestID]*models.AccessRequest)
}
