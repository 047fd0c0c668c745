// Package provision simulates the downstream systems the engine provisions:
// account creation, group membership, and deactivation. Connectors are
// in-memory stand-ins with the same surface a real integration would have.
//
// Provisioning is best-effort and runs after the ledger transaction commits;
// the ledger is authoritative and a connector failure never rolls back an
// accepted mutation.
package provision

import "context"

// Profile carries the identity attributes a connector needs to create an
// account.
type Profile struct {
	FirstName  string
	LastName   string
	Email      string
	Department string
	JobTitle   string
}

// Account is one downstream account as the connector reports it.
type Account struct {
	ID          string   `json:"id"`
	Login       string   `json:"login"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Enabled     bool     `json:"enabled"`
	Groups      []string `json:"groups"`
}

// Connector is one downstream system. Implementations are safe for
// concurrent use.
type Connector interface {
	// Name matches the system prefix of entitlement names ("AzureAD:...").
	Name() string

	// EnsureAccount creates the account if missing and returns it either way.
	EnsureAccount(ctx context.Context, profile Profile) (Account, error)

	// Disable deactivates the account. Unknown emails are a no-op.
	Disable(ctx context.Context, email string) error

	AddToGroup(ctx context.Context, email, group string) error
	RemoveFromGroup(ctx context.Context, email, group string) error

	// Users lists every account the connector knows, for inspection.
	Users(ctx context.Context) ([]Account, error)
}
