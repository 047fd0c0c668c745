package testutil

import (
	"fmt"
	"sync/atomic"

	identitymodels "governa/internal/identity/models"
)

var employeeSeq atomic.Int64

// NextEmployeeID returns a unique HR employee ID for fixtures, so parallel
// tests never collide on the uniqueness constraint.
func NextEmployeeID() string {
	return fmt.Sprintf("EMP-%04d", employeeSeq.Add(1))
}

// NewIdentity builds an active identity fixture in the given department.
func NewIdentity(t interface{ Fatalf(string, ...any) }, department identitymodels.Department, entitlements ...string) *identitymodels.Identity {
	employeeID := NextEmployeeID()
	identity, err := identitymodels.New(
		employeeID,
		"Ada",
		"Lovelace",
		employeeID+"@example.com",
		department,
		"Engineer",
		entitlements,
	)
	if err != nil {
		t.Fatalf("build identity fixture: %v", err)
	}
	return identity
}
