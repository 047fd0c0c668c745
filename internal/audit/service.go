package audit

import (
	"context"
	"time"

	id "governa/pkg/domain"
	dErrors "governa/pkg/domain-errors"
)

// NewRecord builds a Record ready for Append. The ledger and workflow
// services call this inside their transactions so the record commits with
// the mutation it describes.
func NewRecord(actor string, action Action, target string, details map[string]any) *Record {
	return &Record{
		ID:        id.NewAuditID(),
		Timestamp: time.Now(),
		Actor:     actor,
		Action:    action,
		Target:    target,
		Details:   details,
	}
}

// Service is the query side of the audit trail. The trail is a sink: engine
// logic never reads records back, only external callers do.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Query returns matching records newest-first.
func (s *Service) Query(ctx context.Context, filter *Filter) ([]*Record, error) {
	if filter != nil && filter.Offset < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "offset must not be negative")
	}
	if filter != nil && filter.Limit < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "limit must not be negative")
	}
	records, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit records")
	}
	return records, nil
}
