// Package service implements the identity ledger: the authoritative system
// of record for identities and their entitlements. Every mutation runs in a
// transaction and commits together with the audit record describing it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"governa/internal/audit"
	"governa/internal/identity/models"
	"governa/internal/identity/store"
	"governa/internal/platform/metrics"
	requeststore "governa/internal/request/store"
	"governa/internal/sentinel"
	id "governa/pkg/domain"
	dErrors "governa/pkg/domain-errors"
)

// Stores bundles the stores a ledger transaction touches. When the runner is
// PostgreSQL-backed, all three share one *sql.Tx; termination voids pending
// requests in the same transaction that flips the identity status.
type Stores struct {
	Identities store.Store
	Requests   requeststore.Store
	Audit      audit.Store
}

// Tx runs fn atomically against a consistent set of stores. fn observing an
// error aborts the whole unit.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// Deriver computes birthright entitlements from identity attributes.
type Deriver interface {
	BirthrightAccess(department models.Department) []string
	RevocationList(oldDepartment, newDepartment models.Department) []string
	GrantList(oldDepartment, newDepartment models.Department) []string
}

// VoidReason is recorded on pending requests rejected because their
// requester was terminated.
const VoidReason = "requester terminated"

// Service is the identity ledger.
type Service struct {
	tx      Tx
	reads   store.Store // untransacted read path, no row locks
	policy  Deriver
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(tx Tx, reads store.Store, policy Deriver, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		tx:      tx,
		reads:   reads,
		policy:  policy,
		metrics: m,
		logger:  logger.With(slog.String("component", "identity-ledger")),
	}
}

// CreateParams carries the attributes of a new hire.
type CreateParams struct {
	EmployeeID string
	FirstName  string
	LastName   string
	Email      string
	Department models.Department
	JobTitle   string
}

// ChangeSet reports the entitlement delta a profile update produced.
type ChangeSet struct {
	Granted []string
	Revoked []string
}

// TerminationResult reports what a termination touched.
type TerminationResult struct {
	Identity            *models.Identity
	RevokedEntitlements []string
	VoidedRequests      []id.RequestID
	AlreadyTerminated   bool
}

// Create registers a new identity with its birthright entitlements and
// appends the audit record in the same transaction. Employee IDs are never
// reused: a duplicate, including a rehire, is a conflict.
func (s *Service) Create(ctx context.Context, params CreateParams, actor string) (*models.Identity, error) {
	entitlements := s.policy.BirthrightAccess(params.Department)
	identity, err := models.New(
		params.EmployeeID, params.FirstName, params.LastName,
		params.Email, params.Department, params.JobTitle, entitlements,
	)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, st Stores) error {
		if err := st.Identities.Insert(ctx, identity); err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) || errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "employee_id already exists: "+params.EmployeeID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert identity")
		}
		record := audit.NewRecord(actor, audit.ActionEmployeeCreated, audit.IdentityTarget(identity.ID), map[string]any{
			"employee_id":  identity.EmployeeID,
			"email":        identity.Email,
			"department":   string(identity.Department),
			"entitlements": identity.Entitlements,
		})
		if err := st.Audit.Append(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IdentitiesCreated.Inc()
		s.metrics.AuditRecords.Inc()
	}
	s.logger.Info("identity created",
		slog.String("identity_id", identity.ID.String()),
		slog.String("employee_id", identity.EmployeeID),
		slog.String("department", string(identity.Department)),
	)
	return identity.Clone(), nil
}

// UpdateProfile applies a profile change. A department move re-derives
// birthright access: the old department's exclusive entitlements are revoked
// and the new department's are granted, preserving discretionary grants.
func (s *Service) UpdateProfile(ctx context.Context, employeeID string, params models.UpdateParams, actor string) (*models.Identity, ChangeSet, error) {
	var (
		updated *models.Identity
		changes ChangeSet
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context, st Stores) error {
		identity, err := st.Identities.GetByEmployeeID(ctx, employeeID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "identity not found: "+employeeID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
		}
		if !identity.IsActive() {
			return dErrors.New(dErrors.CodeInvalidState, "identity is terminated")
		}

		oldDepartment := identity.Department
		applyUpdate(identity, params)

		if params.Department != nil && *params.Department != oldDepartment {
			if !params.Department.IsValid() {
				return dErrors.New(dErrors.CodeInvalidInput, "unknown department: "+string(*params.Department))
			}
			for _, name := range s.policy.RevocationList(oldDepartment, identity.Department) {
				if identity.RemoveEntitlement(name) {
					changes.Revoked = append(changes.Revoked, name)
				}
			}
			for _, name := range s.policy.GrantList(oldDepartment, identity.Department) {
				if identity.AddEntitlement(name) {
					changes.Granted = append(changes.Granted, name)
				}
			}
		}

		identity.UpdatedAt = time.Now()
		if err := st.Identities.Update(ctx, identity); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
		}

		details := map[string]any{"employee_id": identity.EmployeeID}
		if params.Department != nil && *params.Department != oldDepartment {
			details["department_from"] = string(oldDepartment)
			details["department_to"] = string(identity.Department)
			details["granted"] = changes.Granted
			details["revoked"] = changes.Revoked
		}
		record := audit.NewRecord(actor, audit.ActionEmployeeUpdated, audit.IdentityTarget(identity.ID), details)
		if err := st.Audit.Append(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
		}

		updated = identity
		return nil
	})
	if err != nil {
		return nil, ChangeSet{}, err
	}

	if s.metrics != nil {
		s.metrics.AuditRecords.Inc()
		for range changes.Granted {
			s.metrics.EntitlementChanges.WithLabelValues("grant").Inc()
		}
		for range changes.Revoked {
			s.metrics.EntitlementChanges.WithLabelValues("revoke").Inc()
		}
	}
	s.logger.Info("identity updated",
		slog.String("identity_id", updated.ID.String()),
		slog.String("employee_id", updated.EmployeeID),
		slog.Int("granted", len(changes.Granted)),
		slog.Int("revoked", len(changes.Revoked)),
	)
	return updated.Clone(), changes, nil
}

// Terminate deactivates an identity, revokes every entitlement, and voids
// the identity's pending access requests, all in one transaction. It is
// idempotent: terminating a terminated identity changes nothing and appends
// no audit record.
func (s *Service) Terminate(ctx context.Context, employeeID string, actor string) (TerminationResult, error) {
	var result TerminationResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context, st Stores) error {
		// Lock order: identity row first, then the request rows.
		identity, err := st.Identities.GetByEmployeeID(ctx, employeeID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "identity not found: "+employeeID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
		}
		if !identity.IsActive() {
			result = TerminationResult{Identity: identity, AlreadyTerminated: true}
			return nil
		}

		revoked := identity.MarkTerminated()
		identity.UpdatedAt = time.Now()
		if err := st.Identities.Update(ctx, identity); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
		}

		voided, err := voidPendingRequests(ctx, st, identity.ID)
		if err != nil {
			return err
		}

		record := audit.NewRecord(actor, audit.ActionEmployeeTerminated, audit.IdentityTarget(identity.ID), map[string]any{
			"employee_id":          identity.EmployeeID,
			"revoked_entitlements": revoked,
			"voided_requests":      requestIDStrings(voided),
		})
		if err := st.Audit.Append(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
		}

		result = TerminationResult{
			Identity:            identity,
			RevokedEntitlements: revoked,
			VoidedRequests:      voided,
		}
		return nil
	})
	if err != nil {
		return TerminationResult{}, err
	}

	if !result.AlreadyTerminated {
		if s.metrics != nil {
			s.metrics.IdentitiesTerminated.Inc()
			s.metrics.AuditRecords.Inc()
			for range result.RevokedEntitlements {
				s.metrics.EntitlementChanges.WithLabelValues("revoke").Inc()
			}
		}
		s.logger.Info("identity terminated",
			slog.String("identity_id", result.Identity.ID.String()),
			slog.String("employee_id", result.Identity.EmployeeID),
			slog.Int("revoked_entitlements", len(result.RevokedEntitlements)),
			slog.Int("voided_requests", len(result.VoidedRequests)),
		)
	}
	result.Identity = result.Identity.Clone()
	return result, nil
}

// voidPendingRequests rejects every pending request the identity owns, with
// the system as actor. Each voiding gets its own audit record so the trail
// explains why the request never reached a human decision.
func voidPendingRequests(ctx context.Context, st Stores, identityID id.IdentityID) ([]id.RequestID, error) {
	pending, err := st.Requests.ListPendingByRequester(ctx, identityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending requests")
	}
	voided := make([]id.RequestID, 0, len(pending))
	now := time.Now()
	for _, request := range pending {
		if err := request.Reject(nil, VoidReason, now); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to void request")
		}
		if err := st.Requests.Update(ctx, request); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to void request")
		}
		record := audit.NewRecord(audit.ActorSystem, audit.ActionAccessRejected, audit.RequestTarget(request.ID), map[string]any{
			"requester_id": request.RequesterID.String(),
			"entitlement":  request.Entitlement,
			"reason":       VoidReason,
		})
		if err := st.Audit.Append(ctx, record); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
		}
		voided = append(voided, request.ID)
	}
	return voided, nil
}

// Get returns one identity by ledger ID.
func (s *Service) Get(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	identity, err := s.reads.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return identity, nil
}

// GetByEmployeeID returns one identity by its HR employee ID.
func (s *Service) GetByEmployeeID(ctx context.Context, employeeID string) (*models.Identity, error) {
	identity, err := s.reads.GetByEmployeeID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found: "+employeeID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return identity, nil
}

// List returns all identities, oldest first.
func (s *Service) List(ctx context.Context) ([]*models.Identity, error) {
	identities, err := s.reads.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list identities")
	}
	return identities, nil
}

func applyUpdate(identity *models.Identity, params models.UpdateParams) {
	if params.FirstName != nil {
		identity.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		identity.LastName = *params.LastName
	}
	if params.Email != nil {
		identity.Email = *params.Email
	}
	if params.Department != nil {
		identity.Department = *params.Department
	}
	if params.JobTitle != nil {
		identity.JobTitle = *params.JobTitle
	}
}

func requestIDStrings(ids []id.RequestID) []string {
	out := make([]string, 0, len(ids))
	for _, requestID := range ids {
		out = append(out, requestID.String())
	}
	return out
}
