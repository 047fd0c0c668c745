// Package service implements the lifecycle engine: it consumes HR feed
// events, applies them to the identity ledger, and fans the resulting
// entitlement changes out to the downstream connectors after commit.
package service

import (
	"context"
	"log/slog"

	"governa/internal/audit"
	identitymodels "governa/internal/identity/models"
	identityservice "governa/internal/identity/service"
	"governa/internal/lifecycle/models"
	"governa/internal/platform/metrics"
	"governa/internal/provision"
	dErrors "governa/pkg/domain-errors"
)

// Ledger is what the engine needs from the identity ledger.
type Ledger interface {
	Create(ctx context.Context, params identityservice.CreateParams, actor string) (*identitymodels.Identity, error)
	UpdateProfile(ctx context.Context, employeeID string, params identitymodels.UpdateParams, actor string) (*identitymodels.Identity, identityservice.ChangeSet, error)
	Terminate(ctx context.Context, employeeID string, actor string) (identityservice.TerminationResult, error)
}

// Service routes HR events to ledger operations. The ledger mutation and
// its audit record commit first; provisioning runs afterwards, best-effort.
type Service struct {
	ledger  Ledger
	fanout  *provision.Fanout
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(ledger Ledger, fanout *provision.Fanout, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		ledger:  ledger,
		fanout:  fanout,
		metrics: m,
		logger:  logger.With(slog.String("component", "lifecycle-engine")),
	}
}

// Process applies one HR event and returns the identity it touched.
func (s *Service) Process(ctx context.Context, event models.HREvent) (*identitymodels.Identity, error) {
	s.logger.Info("processing hr event",
		slog.String("type", string(event.Type)),
		slog.String("employee_id", event.EmployeeID),
	)

	var (
		identity *identitymodels.Identity
		err      error
	)
	switch event.Type {
	case models.EventEmployeeCreated:
		identity, err = s.joiner(ctx, event)
	case models.EventEmployeeUpdated:
		identity, err = s.mover(ctx, event)
	case models.EventEmployeeTerminated:
		identity, err = s.leaver(ctx, event)
	default:
		err = dErrors.New(dErrors.CodeInvalidInput, "unknown event type: "+string(event.Type))
	}

	if s.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.metrics.HREvents.WithLabelValues(string(event.Type), outcome).Inc()
	}
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// joiner creates the identity with birthright access, then provisions
// downstream accounts and group memberships.
func (s *Service) joiner(ctx context.Context, event models.HREvent) (*identitymodels.Identity, error) {
	params := identityservice.CreateParams{
		EmployeeID: event.EmployeeID,
		FirstName:  stringValue(event.FirstName),
		LastName:   stringValue(event.LastName),
		Email:      stringValue(event.Email),
		JobTitle:   stringValue(event.JobTitle),
	}
	if event.Department != nil {
		params.Department = *event.Department
	}

	identity, err := s.ledger.Create(ctx, params, audit.ActorHRFeed)
	if err != nil {
		return nil, err
	}

	s.fanout.Grant(ctx, profileOf(identity), identity.Entitlements)
	return identity, nil
}

// mover updates the profile; a department change re-derives birthright
// access, and the delta is pushed to the connectors.
func (s *Service) mover(ctx context.Context, event models.HREvent) (*identitymodels.Identity, error) {
	params := identitymodels.UpdateParams{
		FirstName:  event.FirstName,
		LastName:   event.LastName,
		Email:      event.Email,
		Department: event.Department,
		JobTitle:   event.JobTitle,
	}
	identity, changes, err := s.ledger.UpdateProfile(ctx, event.EmployeeID, params, audit.ActorHRFeed)
	if err != nil {
		return nil, err
	}

	if len(changes.Granted) > 0 {
		s.fanout.Grant(ctx, profileOf(identity), changes.Granted)
	}
	if len(changes.Revoked) > 0 {
		s.fanout.Revoke(ctx, identity.Email, changes.Revoked)
	}
	return identity, nil
}

// leaver terminates the identity and disables every downstream account.
// Re-terminating is a no-op end to end.
func (s *Service) leaver(ctx context.Context, event models.HREvent) (*identitymodels.Identity, error) {
	result, err := s.ledger.Terminate(ctx, event.EmployeeID, audit.ActorHRFeed)
	if err != nil {
		return nil, err
	}
	if !result.AlreadyTerminated {
		s.fanout.Offboard(ctx, result.Identity.Email)
	}
	return result.Identity, nil
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

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
