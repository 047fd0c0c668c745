// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "governa/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing an IdentityID where a RequestID is expected.
type (
	IdentityID uuid.UUID
	RequestID  uuid.UUID
	AuditID    uuid.UUID
)

// New functions - used when the engine assigns an identifier.

func NewIdentityID() IdentityID { return IdentityID(uuid.New()) }
func NewRequestID() RequestID   { return RequestID(uuid.New()) }
func NewAuditID() AuditID       { return AuditID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseIdentityID(s string) (IdentityID, error) {
	id, err := parseUUID(s, "identity ID")
	return IdentityID(id), err
}

func ParseRequestID(s string) (RequestID, error) {
	id, err := parseUUID(s, "request ID")
	return RequestID(id), err
}

func ParseAuditID(s string) (AuditID, error) {
	id, err := parseUUID(s, "audit record ID")
	return AuditID(id), err
}

// String methods - for logging and debugging.

func (id IdentityID) String() string { return uuid.UUID(id).String() }
func (id RequestID) String() string  { return uuid.UUID(id).String() }
func (id AuditID) String() string    { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id IdentityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic.
// Note: Nil UUIDs are allowed here. Use IsNil() at the service layer for
// business validation, which allows store lookups to return proper
// "not found" errors for consistency.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
