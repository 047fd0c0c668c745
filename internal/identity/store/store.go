// Package store persists ledger identities.
//
// Error Contract:
// All store methods follow this pattern:
// - Return sentinel.ErrNotFound when the requested identity does not exist
// - Return sentinel.ErrConflict when a unique constraint is violated
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
package store

import (
	"context"

	"governa/internal/identity/models"
	id "governa/pkg/domain"
)

// Store is the persistence interface for ledger identities.
type Store interface {
	Insert(ctx context.Context, identity *models.Identity) error
	GetByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	GetByEmployeeID(ctx context.Context, employeeID string) (*models.Identity, error)
	Update(ctx context.Context, identity *models.Identity) error
	List(ctx context.Context) ([]*models.Identity, error)
}
