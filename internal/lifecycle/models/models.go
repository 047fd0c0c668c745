// Package models defines the HR feed event contract.
package models

import identitymodels "governa/internal/identity/models"

// EventType names one HR lifecycle event. Unknown types are rejected, not
// silently ignored, so a misconfigured feed surfaces immediately.
type EventType string

const (
	EventEmployeeCreated    EventType = "EmployeeCreated"
	EventEmployeeUpdated    EventType = "EmployeeUpdated"
	EventEmployeeTerminated EventType = "EmployeeTerminated"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventEmployeeCreated, EventEmployeeUpdated, EventEmployeeTerminated:
		return true
	}
	return false
}

// HREvent is one event from the HR system. EmployeeID routes the event;
// which attribute fields are required depends on the type. Nil fields on an
// update leave the attribute untouched.
type HREvent struct {
	Type       EventType
	EmployeeID string
	FirstName  *string
	LastName   *string
	Email      *string
	Department *identitymodels.Department
	JobTitle   *string
}
