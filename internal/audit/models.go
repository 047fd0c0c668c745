package audit

import (
	"time"

	id "governa/pkg/domain"
)

// Action names one state-changing operation. Values are part of the external
// contract; the client renders them verbatim.
type Action string

const (
	ActionEmployeeCreated    Action = "EmployeeCreated"
	ActionEmployeeUpdated    Action = "EmployeeUpdated"
	ActionEmployeeTerminated Action = "EmployeeTerminated"
	ActionEntitlementGranted Action = "EntitlementGranted"
	ActionEntitlementRevoked Action = "EntitlementRevoked"
	ActionAccessRequested    Action = "AccessRequested"
	ActionAccessApproved     Action = "AccessApproved"
	ActionAccessRejected     Action = "AccessRejected"
)

// System actor labels for mutations not initiated by an identity.
const (
	ActorHRFeed = "HR-FEED"
	ActorSystem = "SYSTEM"
)

// Record captures one completed mutation. Records are append-only: they are
// written in the same transaction as the mutation they describe and are never
// updated afterwards, except for the relay's published bookkeeping.
type Record struct {
	ID          id.AuditID
	Seq         int64 // assigned on append, monotonic per store
	Timestamp   time.Time
	Actor       string // identity ID or a system label such as "HR-FEED"
	Action      Action
	Target      string // e.g. "identity:<uuid>", "request:<uuid>"
	Details     map[string]any
	PublishedAt *time.Time // nil until the relay has pushed the record to Kafka
}

// IdentityTarget formats an identity reference for the Target field.
func IdentityTarget(identityID id.IdentityID) string {
	return "identity:" + identityID.String()
}

// RequestTarget formats an access request reference for the Target field.
func RequestTarget(requestID id.RequestID) string {
	return "request:" + requestID.String()
}

// Filter narrows a Query. Nil fields match everything.
type Filter struct {
	Actor  *string
	Action *Action
	Target *string
	Since  *time.Time
	Until  *time.Time
	Limit  int // 0 means DefaultQueryLimit
	Offset int
}

// DefaultQueryLimit bounds unfiltered queries; audit volume grows without
// bound so every query is paginated.
const DefaultQueryLimit = 100

// MaxQueryLimit caps a single page.
const MaxQueryLimit = 1000

// Matches reports whether the record passes the filter (pagination excluded).
func (f *Filter) Matches(r *Record) bool {
	if f == nil {
		return true
	}
	if f.Actor != nil && r.Actor != *f.Actor {
		return false
	}
	if f.Action != nil && r.Action != *f.Action {
		return false
	}
	if f.Target != nil && r.Target != *f.Target {
		return false
	}
	if f.Since != nil && r.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && r.Timestamp.After(*f.Until) {
		return false
	}
	return true
}
