// Package service implements the access request workflow: a one-shot
// pending -> approved/rejected state machine over discretionary entitlement
// requests. Approvals mutate the ledger through its capability interface in
// the same transaction as the decision.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"governa/internal/audit"
	identitymodels "governa/internal/identity/models"
	"governa/internal/platform/metrics"
	"governa/internal/provision"
	"governa/internal/request/models"
	"governa/internal/request/store"
	"governa/internal/sentinel"
	id "governa/pkg/domain"
	dErrors "governa/pkg/domain-errors"
)

// Ledger is the capability the workflow needs from the identity ledger. The
// workflow never touches identity rows directly; it holds identities by ID
// and asks the ledger to grant.
type Ledger interface {
	Identity(ctx context.Context, identityID id.IdentityID) (*identitymodels.Identity, error)
	Grant(ctx context.Context, identityID id.IdentityID, entitlement, actor string, details map[string]any) (bool, error)
}

// Stores bundles what one workflow transaction touches. When the runner is
// PostgreSQL-backed all members share one *sql.Tx, so an approval's grant
// and status flip commit or abort together.
type Stores struct {
	Requests store.Store
	Ledger   Ledger
	Audit    audit.Store
}

// Tx runs fn atomically against a consistent set of stores.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// SoDChecker reports advisory segregation-of-duties conflicts for an
// entitlement set.
type SoDChecker interface {
	CheckSoD(entitlements []string) []string
}

// Decision is the approver's verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Service is the access request workflow. Approvals commit the ledger grant
// first; pushing the entitlement to the downstream connectors runs afterwards,
// best-effort.
type Service struct {
	tx      Tx
	reads   store.Store // untransacted read path, no row locks
	sod     SoDChecker
	fanout  *provision.Fanout
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

func New(tx Tx, reads store.Store, sod SoDChecker, fanout *provision.Fanout, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		tx:      tx,
		reads:   reads,
		sod:     sod,
		fanout:  fanout,
		metrics: m,
		logger:  logger.With(slog.String("component", "access-workflow")),
		tracer:  otel.Tracer("governa/request"),
	}
}

// SubmitParams carries one entitlement ask.
type SubmitParams struct {
	RequesterID   id.IdentityID
	Entitlement   string
	Justification string
}

// Submit files a pending request for an active requester. Conflicting
// entitlements under segregation-of-duties rules are recorded as warnings on
// the request; they inform the approver, they never block submission.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.AccessRequest, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.submit")
	defer span.End()

	if _, _, err := identitymodels.ParseEntitlement(params.Entitlement); err != nil {
		return nil, err
	}

	var request *models.AccessRequest
	err := s.tx.RunInTx(ctx, func(ctx context.Context, st Stores) error {
		requester, err := st.Ledger.Identity(ctx, params.RequesterID)
		if err != nil {
			return err
		}
		if !requester.IsActive() {
			return dErrors.New(dErrors.CodeInvalidState, "requester is terminated")
		}

		warnings := s.sod.CheckSoD(append(append([]string(nil), requester.Entitlements...), params.Entitlement))
		request, err = models.New(params.RequesterID, params.Entitlement, params.Justification, warnings)
		if err != nil {
			return err
		}
		if err := st.Requests.Insert(ctx, request); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert access request")
		}

		record := audit.NewRecord(params.RequesterID.String(), audit.ActionAccessRequested, audit.RequestTarget(request.ID), map[string]any{
			"entitlement":   request.Entitlement,
			"justification": request.Justification,
			"sod_warnings":  request.SoDWarnings,
		})
		if err := st.Audit.Append(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("request.id", request.ID.String()))
	if s.metrics != nil {
		s.metrics.RequestsSubmitted.Inc()
		s.metrics.AuditRecords.Inc()
	}
	s.logger.Info("access request submitted",
		slog.String("request_id", request.ID.String()),
		slog.String("requester_id", params.RequesterID.String()),
		slog.String("entitlement", params.Entitlement),
		slog.Int("sod_warnings", len(request.SoDWarnings)),
	)
	return request.Clone(), nil
}

// DecideParams carries one verdict on a pending request.
type DecideParams struct {
	RequestID  id.RequestID
	ApproverID id.IdentityID
	Decision   Decision
	Reason     string
}

// Decide applies a one-shot decision. The first committed decision wins;
// any later attempt fails with an invalid-state error. Self-decision is
// forbidden for both verdicts. On approve the grant and the status flip are
// one atomic unit: if the grant fails, the request stays pending. Once the
// decision commits, the granted entitlement is pushed to the downstream
// connectors, best-effort.
func (s *Service) Decide(ctx context.Context, params DecideParams) (*models.AccessRequest, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.decide",
		trace.WithAttributes(attribute.String("decision", string(params.Decision))))
	defer span.End()
	started := time.Now()

	if !params.Decision.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "decision must be approve or reject")
	}

	// Unlocked pre-read to learn the requester, so the transaction can take
	// identity locks before the request lock. Pending status is re-checked
	// under the lock; this read only routes.
	preview, err := s.reads.GetByID(ctx, params.RequestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "access request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load access request")
	}
	if params.ApproverID == preview.RequesterID {
		return nil, dErrors.New(dErrors.CodeForbidden, "requester cannot decide their own request")
	}

	var (
		decided   *models.AccessRequest
		requester *identitymodels.Identity
		granted   bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context, st Stores) error {
		// Identity rows first, in ID order, then the request row. A fixed
		// lock order keeps concurrent decisions and terminations from
		// deadlocking each other.
		var approver *identitymodels.Identity
		for _, identityID := range lockOrder(preview.RequesterID, params.ApproverID) {
			identity, err := st.Ledger.Identity(ctx, identityID)
			if err != nil {
				if identityID == params.ApproverID && dErrors.HasCode(err, dErrors.CodeNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "approver not found")
				}
				return err
			}
			if identityID == params.ApproverID {
				approver = identity
			} else {
				requester = identity
			}
		}
		if !approver.IsActive() {
			return dErrors.New(dErrors.CodeInvalidState, "approver is terminated")
		}

		request, err := st.Requests.GetByID(ctx, params.RequestID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load access request")
		}
		if !request.IsPending() {
			return dErrors.New(dErrors.CodeInvalidState, "request already decided: "+string(request.Status))
		}

		now := time.Now()
		action := audit.ActionAccessRejected
		if params.Decision == DecisionApprove {
			action = audit.ActionAccessApproved
			granted, err = st.Ledger.Grant(ctx, request.RequesterID, request.Entitlement, params.ApproverID.String(), map[string]any{
				"source":     "access_request",
				"request_id": request.ID.String(),
			})
			if err != nil {
				return err
			}
			if err := request.Approve(params.ApproverID, now); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInvalidState, "request already decided")
			}
		} else {
			approverID := params.ApproverID
			if err := request.Reject(&approverID, params.Reason, now); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInvalidState, "request already decided")
			}
		}

		if err := st.Requests.Update(ctx, request); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update access request")
		}

		details := map[string]any{
			"requester_id": request.RequesterID.String(),
			"entitlement":  request.Entitlement,
		}
		if params.Reason != "" {
			details["reason"] = params.Reason
		}
		record := audit.NewRecord(params.ApproverID.String(), action, audit.RequestTarget(request.ID), details)
		if err := st.Audit.Append(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
		}

		decided = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	if params.Decision == DecisionApprove {
		if granted {
			s.fanout.Grant(ctx, profileOf(requester), []string{decided.Entitlement})
		} else {
			s.logger.Info("approved entitlement already held, ledger unchanged",
				slog.String("request_id", decided.ID.String()),
				slog.String("requester_id", decided.RequesterID.String()),
				slog.String("entitlement", decided.Entitlement),
			)
		}
	}

	if s.metrics != nil {
		s.metrics.RequestsDecided.WithLabelValues(string(params.Decision)).Inc()
		s.metrics.ObserveDecideLatency(time.Since(started).Seconds())
		s.metrics.AuditRecords.Inc()
	}
	s.logger.Info("access request decided",
		slog.String("request_id", decided.ID.String()),
		slog.String("approver_id", params.ApproverID.String()),
		slog.String("decision", string(params.Decision)),
	)
	return decided.Clone(), nil
}

// Get returns one request by ID.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.AccessRequest, error) {
	request, err := s.reads.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "access request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load access request")
	}
	return request, nil
}

// List returns requests newest-first. The ordering is stable so pollers see
// a consistent sequence.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.AccessRequest, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+string(*filter.Status))
	}
	requests, err := s.reads.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access requests")
	}
	return requests, nil
}

func profileOf(identity *identitymodels.Identity) provision.Profile {
	return provision.Profile{
		FirstName:  identity.FirstName,
		LastName:   identity.LastName,
		Email:      identity.Email,
		Department: string(identity.Department),
		JobTitle:   identity.JobTitle,
	}
}

// lockOrder returns the two identity IDs in deterministic order,
// deduplicated.
func lockOrder(a, b id.IdentityID) []id.IdentityID {
	if a == b {
		return []id.IdentityID{a}
	}
	if a.String() < b.String() {
		return []id.IdentityID{a, b}
	}
	return []id.IdentityID{b, a}
}
