// Package store persists access requests.
//
// Error contract: GetByID and Update return sentinel.ErrNotFound when no row
// matches; Insert returns sentinel.ErrConflict on a duplicate ID. Services
// translate sentinels into domain errors at their boundary.
package store

import (
	"context"

	"governa/internal/request/models"
	id "governa/pkg/domain"
)

type Store interface {
	Insert(ctx context.Context, request *models.AccessRequest) error
	GetByID(ctx context.Context, requestID id.RequestID) (*models.AccessRequest, error)
	Update(ctx context.Context, request *models.AccessRequest) error

	// List returns requests newest-first.
	List(ctx context.Context, filter models.Filter) ([]*models.AccessRequest, error)

	// ListPendingByRequester returns the requester's pending requests
	// oldest-first, for deterministic voiding order on termination.
	ListPendingByRequester(ctx context.Context, requesterID id.IdentityID) ([]*models.AccessRequest, error)
}
