package audit

import (
	"context"
	"sync"
	"time"

	"governa/internal/sentinel"
	id "governa/pkg/domain"
)

// InMemoryStore keeps audit records in an append-only slice. It backs tests
// and the no-database development mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	seq     int64
}

// NewInMemoryStore constructs an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	record.Seq = s.seq
	copyRecord := cloneRecord(record)
	s.records = append(s.records, copyRecord)
	return nil
}

// Query returns matching records newest-first with offset/limit pagination.
func (s *InMemoryStore) Query(_ context.Context, filter *Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := DefaultQueryLimit
	offset := 0
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		if limit > MaxQueryLimit {
			limit = MaxQueryLimit
		}
		offset = filter.Offset
	}

	var out []*Record
	skipped := 0
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.records[i]
		if !filter.Matches(r) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, cloneRecord(r))
	}
	return out, nil
}

// NextUnpublished returns the oldest records the relay has not yet published.
func (s *InMemoryStore) NextUnpublished(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, r := range s.records {
		if r.PublishedAt != nil {
			continue
		}
		out = append(out, cloneRecord(r))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MarkPublished stamps the relay bookkeeping on one record.
func (s *InMemoryStore) MarkPublished(_ context.Context, recordID id.AuditID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == recordID {
			now := time.Now()
			r.PublishedAt = &now
			return nil
		}
	}
	return sentinel.ErrNotFound
}

// Clear drops all records. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.seq = 0
}

func cloneRecord(r *Record) *Record {
	copyRecord := *r
	if r.Details != nil {
		details := make(map[string]any, len(r.Details))
		for k, v := range r.Details {
			details[k] = v
		}
		copyRecord.Details = details
	}
	if r.PublishedAt != nil {
		t := *r.PublishedAt
		copyRecord.PublishedAt = &t
	}
	return &copyRecord
}
