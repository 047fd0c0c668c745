package models

import (
	"strings"
	"time"

	id "governa/pkg/domain"
	dErrors "governa/pkg/domain-errors"
	"governa/internal/sentinel"
)

// Status is the workflow state of an access request. pending is the only
// non-terminal state; approved and rejected are one-shot.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// AccessRequest is one discretionary entitlement ask, owned by the workflow.
// It references ledger identities by ID only.
type AccessRequest struct {
	ID            id.RequestID
	RequesterID   id.IdentityID
	Entitlement   string
	Justification string
	Status        Status
	ApproverID    *id.IdentityID // nil while pending; system voidings leave it nil
	Reason        string         // decision reason, free-form
	SoDWarnings   []string       // advisory conflicts detected at submit time
	CreatedAt     time.Time
	DecidedAt     *time.Time
}

// New creates a pending request with domain invariant checks.
func New(requesterID id.IdentityID, entitlement, justification string, sodWarnings []string) (*AccessRequest, error) {
	if requesterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "requester_id is required")
	}
	if strings.TrimSpace(entitlement) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entitlement is required")
	}
	if strings.TrimSpace(justification) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "justification is required")
	}
	return &AccessRequest{
		ID:            id.NewRequestID(),
		RequesterID:   requesterID,
		Entitlement:   entitlement,
		Justification: justification,
		Status:        StatusPending,
		SoDWarnings:   sodWarnings,
		CreatedAt:     time.Now(),
	}, nil
}

// IsPending reports whether a decision is still possible.
func (r *AccessRequest) IsPending() bool {
	return r.Status == StatusPending
}

// Approve transitions pending -> approved. Any other starting state returns
// sentinel.ErrInvalidState; the decision is one-shot.
func (r *AccessRequest) Approve(approverID id.IdentityID, at time.Time) error {
	if !r.IsPending() {
		return sentinel.ErrInvalidState
	}
	r.Status = StatusApproved
	r.ApproverID = &approverID
	r.DecidedAt = &at
	return nil
}

// Reject transitions pending -> rejected. approverID is nil for system
// voidings (e.g. requester terminated while the request was pending).
func (r *AccessRequest) Reject(approverID *id.IdentityID, reason string, at time.Time) error {
	if !r.IsPending() {
		return sentinel.ErrInvalidState
	}
	r.Status = StatusRejected
	r.ApproverID = approverID
	r.Reason = reason
	r.DecidedAt = &at
	return nil
}

// Clone returns a deep copy so stores never leak shared pointers.
func (r *AccessRequest) Clone() *AccessRequest {
	copyRequest := *r
	copyRequest.SoDWarnings = append([]string(nil), r.SoDWarnings...)
	if r.ApproverID != nil {
		approver := *r.ApproverID
		copyRequest.ApproverID = &approver
	}
	if r.DecidedAt != nil {
		decided := *r.DecidedAt
		copyRequest.DecidedAt = &decided
	}
	return &copyRequest
}

// Filter narrows a List. Nil fields match everything.
type Filter struct {
	Status      *Status
	RequesterID *id.IdentityID
}
