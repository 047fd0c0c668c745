// Package policy derives birthright access from identity attributes and
// checks segregation-of-duties conflicts. Rules are static configuration;
// the engine holds no mutable state and is safe for concurrent use.
package policy

import (
	"fmt"
	"sort"

	"governa/internal/identity/models"
)

// Severity grades a segregation-of-duties rule.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SoDRule marks a set of entitlements that must not be held together.
type SoDRule struct {
	ConflictingGroups []string
	Severity          Severity
}

// Engine computes birthright entitlements per department and evaluates
// segregation-of-duties rules over entitlement sets.
type Engine struct {
	baseAccess  []string
	birthrights map[models.Department][]string
	sodRules    []SoDRule
}

// NewEngine builds the engine with the default rule set.
func NewEngine() *Engine {
	return &Engine{
		baseAccess: []string{"AzureAD:All Users", "Slack:general", "Slack:random"},
		birthrights: map[models.Department][]string{
			models.DepartmentEngineering: {"AzureAD:Engineering", "GitHub:Engineering", "Slack:engineering"},
			models.DepartmentSales:       {"AzureAD:Sales", "Slack:sales", "Salesforce:Users"},
			models.DepartmentMarketing:   {"AzureAD:Marketing", "Slack:marketing"},
			models.DepartmentHR:          {"AzureAD:HR", "Slack:general", "Workday:Users"},
		},
		sodRules: []SoDRule{
			{ConflictingGroups: []string{"AzureAD:Engineering", "AzureAD:HR"}, Severity: SeverityHigh},
			{ConflictingGroups: []string{"AzureAD:Sales", "AzureAD:Finance-Admin"}, Severity: SeverityCritical},
		},
	}
}

// BirthrightAccess returns the deduplicated, sorted entitlement set an
// identity in the department is entitled to by default. Every identity gets
// the base access regardless of department.
func (e *Engine) BirthrightAccess(department models.Department) []string {
	seen := make(map[string]struct{}, len(e.baseAccess)+4)
	for _, entitlement := range e.baseAccess {
		seen[entitlement] = struct{}{}
	}
	for _, entitlement := range e.birthrights[department] {
		seen[entitlement] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for entitlement := range seen {
		out = append(out, entitlement)
	}
	sort.Strings(out)
	return out
}

// RevocationList returns the entitlements to remove when an identity moves
// between departments: everything the old department granted that the new
// one does not. Base access appears in both sets, so it survives the move.
func (e *Engine) RevocationList(oldDepartment, newDepartment models.Department) []string {
	keep := make(map[string]struct{})
	for _, entitlement := range e.BirthrightAccess(newDepartment) {
		keep[entitlement] = struct{}{}
	}
	var out []string
	for _, entitlement := range e.BirthrightAccess(oldDepartment) {
		if _, ok := keep[entitlement]; !ok {
			out = append(out, entitlement)
		}
	}
	sort.Strings(out)
	return out
}

// GrantList returns the entitlements a department move adds: everything the
// new department grants that the old one did not.
func (e *Engine) GrantList(oldDepartment, newDepartment models.Department) []string {
	return e.RevocationList(newDepartment, oldDepartment)
}

// CheckSoD reports segregation-of-duties conflicts in the entitlement set.
// Conflicts are advisory: callers record them as warnings, they never block.
func (e *Engine) CheckSoD(entitlements []string) []string {
	held := make(map[string]struct{}, len(entitlements))
	for _, entitlement := range entitlements {
		held[entitlement] = struct{}{}
	}
	var warnings []string
	for _, rule := range e.sodRules {
		if holdsAll(held, rule.ConflictingGroups) {
			warnings = append(warnings, fmt.Sprintf(
				"conflicting entitlements %v (severity: %s)", rule.ConflictingGroups, rule.Severity))
		}
	}
	return warnings
}

func holdsAll(held map[string]struct{}, groups []string) bool {
	for _, group := range groups {
		if _, ok := held[group]; !ok {
			return false
		}
	}
	return true
}
