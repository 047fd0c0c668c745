package service

import (
	"context"
	"errors"

	"governa/internal/audit"
	"governa/internal/identity/models"
	"governa/internal/identity/store"
	"governa/internal/sentinel"
	id "governa/pkg/domain"
	dErrors "governa/pkg/domain-errors"
)

// Ledger is the entitlement capability handed to other components'
// transactions. It operates on the caller's tx-bound stores, so a grant
// commits or aborts together with the mutation that triggered it.
type Ledger struct {
	Identities store.Store
	Audit      audit.Store
}

// Identity loads one identity. Inside a PostgreSQL transaction this locks
// the row, serializing against a concurrent termination.
func (l Ledger) Identity(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	identity, err := l.Identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return identity, nil
}

// Grant adds an entitlement to an active identity and appends an
// EntitlementGranted audit record when the set actually changed. Granting to
// a terminated identity is an invalid state, not a silent no-op.
func (l Ledger) Grant(ctx context.Context, identityID id.IdentityID, entitlement, actor string, details map[string]any) (bool, error) {
	if _, _, err := models.ParseEntitlement(entitlement); err != nil {
		return false, err
	}
	identity, err := l.Identity(ctx, identityID)
	if err != nil {
		return false, err
	}
	if !identity.IsActive() {
		return false, dErrors.New(dErrors.CodeInvalidState, "identity is terminated")
	}
	if !identity.AddEntitlement(entitlement) {
		return false, nil
	}
	if err := l.Identities.Update(ctx, identity); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
	}

	if details == nil {
		details = map[string]any{}
	}
	details["entitlement"] = entitlement
	record := audit.NewRecord(actor, audit.ActionEntitlementGranted, audit.IdentityTarget(identityID), details)
	if err := l.Audit.Append(ctx, record); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
	}
	return true, nil
}

// Revoke removes an entitlement and appends an EntitlementRevoked record
// when the set actually changed.
func (l Ledger) Revoke(ctx context.Context, identityID id.IdentityID, entitlement, actor string, details map[string]any) (bool, error) {
	identity, err := l.Identity(ctx, identityID)
	if err != nil {
		return false, err
	}
	if !identity.RemoveEntitlement(entitlement) {
		return false, nil
	}
	if err := l.Identities.Update(ctx, identity); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
	}

	if details == nil {
		details = map[string]any{}
	}
	details["entitlement"] = entitlement
	record := audit.NewRecord(actor, audit.ActionEntitlementRevoked, audit.IdentityTarget(identityID), details)
	if err := l.Audit.Append(ctx, record); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
	}
	return true, nil
}
