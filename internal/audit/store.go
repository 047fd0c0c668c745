package audit

import (
	"context"

	id "governa/pkg/domain"
)

// Store is the append-only persistence interface for audit records.
//
// Error Contract:
// - Append returns nil on success or a wrapped infrastructure error
// - Query returns records newest-first; an empty result is not an error
type Store interface {
	Append(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter *Filter) ([]*Record, error)
}

// RelaySource is implemented by stores that track which records the Kafka
// relay has already published. Separate from Store so services that only
// append never see relay bookkeeping.
type RelaySource interface {
	NextUnpublished(ctx context.Context, limit int) ([]*Record, error)
	MarkPublished(ctx context.Context, recordID id.AuditID) error
}
