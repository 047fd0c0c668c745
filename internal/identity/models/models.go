package models

import (
	"sort"
	"strings"
	"time"

	id "governa/pkg/domain"
	dErrors "governa/pkg/domain-errors"
)

// Department is the fixed set of org units the HR feed can report.
type Department string

const (
	DepartmentEngineering Department = "Engineering"
	DepartmentSales       Department = "Sales"
	DepartmentMarketing   Department = "Marketing"
	DepartmentHR          Department = "HR"
)

// Departments lists all valid departments in display order.
func Departments() []Department {
	return []Department{DepartmentEngineering, DepartmentSales, DepartmentMarketing, DepartmentHR}
}

func (d Department) IsValid() bool {
	switch d {
	case DepartmentEngineering, DepartmentSales, DepartmentMarketing, DepartmentHR:
		return true
	}
	return false
}

// Status is the lifecycle state of an identity. Transitions are monotonic:
// active -> terminated, never back.
type Status string

const (
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
)

// Identity is the authoritative record of one person. The ledger exclusively
// owns these rows; the workflow references them by ID only.
type Identity struct {
	ID           id.IdentityID
	EmployeeID   string // HR-assigned, unique, never reused
	FirstName    string
	LastName     string
	Email        string
	Department   Department
	JobTitle     string
	Status       Status
	Entitlements []string // sorted, no duplicates; empty once terminated
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New creates an active Identity with domain invariant checks. The initial
// entitlement set is deduplicated and sorted.
func New(employeeID, firstName, lastName, email string, department Department, jobTitle string, entitlements []string) (*Identity, error) {
	if strings.TrimSpace(employeeID) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "employee_id is required")
	}
	if strings.TrimSpace(firstName) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "first_name is required")
	}
	if strings.TrimSpace(lastName) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "last_name is required")
	}
	if strings.TrimSpace(email) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if !department.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown department: "+string(department))
	}

	now := time.Now()
	identity := &Identity{
		ID:         id.NewIdentityID(),
		EmployeeID: employeeID,
		FirstName:  firstName,
		LastName:   lastName,
		Email:      email,
		Department: department,
		JobTitle:   jobTitle,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, name := range entitlements {
		identity.AddEntitlement(name)
	}
	return identity, nil
}

// IsActive reports whether the identity can still hold entitlements.
func (i *Identity) IsActive() bool {
	return i.Status == StatusActive
}

// HasEntitlement reports set membership.
func (i *Identity) HasEntitlement(name string) bool {
	for _, e := range i.Entitlements {
		if e == name {
			return true
		}
	}
	return false
}

// AddEntitlement inserts the entitlement, keeping the set sorted. Returns
// false when the entitlement was already present.
func (i *Identity) AddEntitlement(name string) bool {
	if i.HasEntitlement(name) {
		return false
	}
	i.Entitlements = append(i.Entitlements, name)
	sort.Strings(i.Entitlements)
	return true
}

// RemoveEntitlement deletes the entitlement. Returns false when it was not
// present.
func (i *Identity) RemoveEntitlement(name string) bool {
	for idx, e := range i.Entitlements {
		if e == name {
			i.Entitlements = append(i.Entitlements[:idx], i.Entitlements[idx+1:]...)
			return true
		}
	}
	return false
}

// MarkTerminated flips the status and clears all entitlements, returning the
// set held before termination. Calling it on a terminated identity is a no-op.
func (i *Identity) MarkTerminated() []string {
	if i.Status == StatusTerminated {
		return nil
	}
	revoked := i.Entitlements
	i.Status = StatusTerminated
	i.Entitlements = nil
	return revoked
}

// Clone returns a deep copy so stores never leak shared slices.
func (i *Identity) Clone() *Identity {
	copyIdentity := *i
	copyIdentity.Entitlements = append([]string(nil), i.Entitlements...)
	return &copyIdentity
}

// UpdateParams carries the optional fields of a profile change. Nil fields
// are left untouched.
type UpdateParams struct {
	FirstName  *string
	LastName   *string
	Email      *string
	Department *Department
	JobTitle   *string
}

// Empty reports whether the update carries no changes.
func (p UpdateParams) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.Department == nil && p.JobTitle == nil
}

// ParseEntitlement splits a "System:Group" entitlement name. The format is
// load-bearing: provisioning connectors route on the system prefix.
func ParseEntitlement(name string) (system, group string, err error) {
	system, group, ok := strings.Cut(name, ":")
	if !ok || strings.TrimSpace(system) == "" || strings.TrimSpace(group) == "" {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "invalid entitlement format, expected System:Group")
	}
	return system, group, nil
}
