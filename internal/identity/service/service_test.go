package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"governa/internal/audit"
	"governa/internal/identity/models"
	"governa/internal/identity/store"
	"governa/internal/lifecycle/policy"
	requestmodels "governa/internal/request/models"
	requeststore "governa/internal/request/store"
	dErrors "governa/pkg/domain-errors"
	"governa/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	identities *store.InMemoryStore
	requests   *requeststore.InMemoryStore
	auditStore *audit.InMemoryStore
	service    *Service
	ledger     Ledger
}

func (s *ServiceSuite) SetupTest() {
	s.identities = store.NewInMemoryStore()
	s.requests = requeststore.NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()

	var mu sync.Mutex
	stores := Stores{Identities: s.identities, Requests: s.requests, Audit: s.auditStore}
	s.service = New(
		NewMemoryTx(&mu, stores),
		s.identities,
		policy.NewEngine(),
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	s.ledger = Ledger{Identities: s.identities, Audit: s.auditStore}
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) createParams(department models.Department) CreateParams {
	employeeID := testutil.NextEmployeeID()
	return CreateParams{
		EmployeeID: employeeID,
		FirstName:  "Grace",
		LastName:   "Hopper",
		Email:      employeeID + "@example.com",
		Department: department,
		JobTitle:   "Engineer",
	}
}

func (s *ServiceSuite) auditRecords(action audit.Action) []*audit.Record {
	records, err := s.auditStore.Query(context.Background(), &audit.Filter{Action: &action})
	s.Require().NoError(err)
	return records
}

func (s *ServiceSuite) TestCreate() {
	s.T().Run("grants birthright entitlements", func(t *testing.T) {
		identity, err := s.service.Create(context.Background(), s.createParams(models.DepartmentEngineering), audit.ActorHRFeed)
		require.NoError(t, err)

		assert.Equal(t, models.StatusActive, identity.Status)
		assert.ElementsMatch(t, []string{
			"AzureAD:All Users",
			"Slack:general",
			"Slack:random",
			"AzureAD:Engineering",
			"GitHub:Engineering",
			"Slack:engineering",
		}, identity.Entitlements)
		assert.IsIncreasing(t, identity.Entitlements)
	})

	s.T().Run("appends EmployeeCreated record", func(t *testing.T) {
		params := s.createParams(models.DepartmentSales)
		identity, err := s.service.Create(context.Background(), params, audit.ActorHRFeed)
		require.NoError(t, err)

		records := s.auditRecords(audit.ActionEmployeeCreated)
		require.NotEmpty(t, records)
		latest := records[0]
		assert.Equal(t, audit.ActorHRFeed, latest.Actor)
		assert.Equal(t, audit.IdentityTarget(identity.ID), latest.Target)
		assert.Equal(t, params.EmployeeID, latest.Details["employee_id"])
	})

	s.T().Run("duplicate employee_id conflicts", func(t *testing.T) {
		params := s.createParams(models.DepartmentMarketing)
		_, err := s.service.Create(context.Background(), params, audit.ActorHRFeed)
		require.NoError(t, err)

		_, err = s.service.Create(context.Background(), params, audit.ActorHRFeed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.T().Run("rehire after termination still conflicts", func(t *testing.T) {
		params := s.createParams(models.DepartmentHR)
		_, err := s.service.Create(context.Background(), params, audit.ActorHRFeed)
		require.NoError(t, err)
		_, err = s.service.Terminate(context.Background(), params.EmployeeID, audit.ActorHRFeed)
		require.NoError(t, err)

		_, err = s.service.Create(context.Background(), params, audit.ActorHRFeed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "terminated employee IDs are never reused")
	})

	s.T().Run("unknown department is invalid input", func(t *testing.T) {
		params := s.createParams("Finance")
		_, err := s.service.Create(context.Background(), params, audit.ActorHRFeed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestUpdateProfile() {
	s.T().Run("attribute-only change leaves entitlements alone", func(t *testing.T) {
		identity, err := s.service.Create(context.Background(), s.createParams(models.DepartmentEngineering), audit.ActorHRFeed)
		require.NoError(t, err)

		title := "Staff Engineer"
		updated, changes, err := s.service.UpdateProfile(context.Background(), identity.EmployeeID, models.UpdateParams{JobTitle: &title}, audit.ActorHRFeed)
		require.NoError(t, err)

		assert.Equal(t, "Staff Engineer", updated.JobTitle)
		assert.Empty(t, changes.Granted)
		assert.Empty(t, changes.Revoked)
		assert.Equal(t, identity.Entitlements, updated.Entitlements)
	})

	s.T().Run("department move swaps birthrights and keeps discretionary grants", func(t *testing.T) {
		identity, err := s.service.Create(context.Background(), s.createParams(models.DepartmentEngineering), audit.ActorHRFeed)
		require.NoError(t, err)

		// Discretionary grant outside any birthright set.
		_, err = s.ledger.Grant(context.Background(), identity.ID, "Tableau:Analysts", audit.ActorSystem, nil)
		require.NoError(t, err)

		department := models.DepartmentSales
		updated, changes, err := s.service.UpdateProfile(context.Background(), identity.EmployeeID, models.UpdateParams{Department: &department}, audit.ActorHRFeed)
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{"AzureAD:Engineering", "GitHub:Engineering", "Slack:engineering"}, changes.Revoked)
		assert.ElementsMatch(t, []string{"AzureAD:Sales", "Slack:sales", "Salesforce:Users"}, changes.Granted)
		assert.Contains(t, updated.Entitlements, "Tableau:Analysts")
		assert.Contains(t, updated.Entitlements, "Slack:general")
		assert.NotContains(t, updated.Entitlements, "GitHub:Engineering")
	})

	s.T().Run("department move audit carries the delta", func(t *testing.T) {
		identity, err := s.service.Create(context.Background(), s.createParams(models.DepartmentMarketing), audit.ActorHRFeed)
		require.NoError(t, err)

		department := models.DepartmentHR
		_, _, err = s.service.UpdateProfile(context.Background(), identity.EmployeeID, models.UpdateParams{Department: &department}, audit.ActorHRFeed)
		require.NoError(t, err)

		records := s.auditRecords(audit.ActionEmployeeUpdated)
		require.NotEmpty(t, records)
		latest := records[0]
		assert.Equal(t, string(models.DepartmentMarketing), latest.Details["department_from"])
		assert.Equal(t, string(models.DepartmentHR), latest.Details["department_to"])
	})

	s.T().Run("terminated identity is invalid state", func(t *testing.T) {
		identity, err := s.service.Create(context.Background(), s.createParams(models.DepartmentEngineering), audit.ActorHRFeed)
		require.NoError(t, err)
		_, err = s.service.Terminate(context.Background(), identity.EmployeeID, audit.ActorHRFeed)
		require.NoError(t, err)

		title := "Ghost"
		_, _, err = s.service.UpdateProfile(context.Background(), identity.EmployeeID, models.UpdateParams{JobTitle: &title}, audit.ActorHRFeed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.T().Run("unknown employee is not found", func(t *testing.T) {
		title := "Nobody"
		_, _, err := s.service.UpdateProfile(context.Background(), "EMP-MISSING", models.UpdateParams{JobTitle: &title}, audit.ActorHRFeed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestTerminate() {
	s.T().Run("revokes everything and flips status", func(t *testing.T) {
		identity, err := s.service.Create(context.Background(), s.createParams(models.DepartmentEngineering), audit.ActorHRFeed)
		require.NoError(t, err)

		result, err := s.service.Terminate(context.Background(), identity.EmployeeID, audit.ActorHRFeed)
		require.NoError(t, err)

		assert.False(t, result.AlreadyTerminated)
		assert.Equal(t, models.StatusTerminated, result.Identity.Status)
		assert.Empty(t, result.Identity.Entitlements)
		assert.ElementsMatch(t, identity.Entitlements, result.RevokedEntitlements)

		records := s.auditRecords(audit.ActionEmployeeTerminated)
		require.NotEmpty(t, records)
		assert.Equal(t, audit.IdentityTarget(identity.ID), records[0].Target)
	})

	s.T().Run("voids pending requests with system audit records", func(t *testing.T) {
		identity, err := s.service.Create(context.Background(), s.createParams(models.DepartmentSales), audit.ActorHRFeed)
		require.NoError(t, err)

		pending := make([]*requestmodels.AccessRequest, 0, 2)
		for _, entitlement := range []string{"GitHub:Engineering", "Tableau:Analysts"} {
			request, err := requestmodels.New(identity.ID, entitlement, "need it", nil)
			require.NoError(t, err)
			require.NoError(t, s.requests.Insert(context.Background(), request))
			pending = append(pending, request)
		}

		result, err := s.service.Terminate(context.Background(), identity.EmployeeID, audit.ActorHRFeed)
		require.NoError(t, err)
		require.Len(t, result.VoidedRequests, 2)

		for _, request := range pending {
			voided, err := s.requests.GetByID(context.Background(), request.ID)
			require.NoError(t, err)
			assert.Equal(t, requestmodels.StatusRejected, voided.Status)
			assert.Nil(t, voided.ApproverID, "system voidings have no approver")
			assert.Equal(t, VoidReason, voided.Reason)
			require.NotNil(t, voided.DecidedAt)
		}

		records := s.auditRecords(audit.ActionAccessRejected)
		require.Len(t, records, 2)
		for _, record := range records {
			assert.Equal(t, audit.ActorSystem, record.Actor)
			assert.Equal(t, VoidReason, record.Details["reason"])
		}
	})

	s.T().Run("leaves decided requests alone", func(t *testing.T) {
		identity, err := s.service.Create(context.Background(), s.createParams(models.DepartmentHR), audit.ActorHRFeed)
		require.NoError(t, err)
		approver, err := s.service.Create(context.Background(), s.createParams(models.DepartmentHR), audit.ActorHRFeed)
		require.NoError(t, err)

		request, err := requestmodels.New(identity.ID, "Workday:Admins", "quarterly review", nil)
		require.NoError(t, err)
		require.NoError(t, request.Approve(approver.ID, request.CreatedAt))
		require.NoError(t, s.requests.Insert(context.Background(), request))

		result, err := s.service.Terminate(context.Background(), identity.EmployeeID, audit.ActorHRFeed)
		require.NoError(t, err)
		assert.Empty(t, result.VoidedRequests)

		got, err := s.requests.GetByID(context.Background(), request.ID)
		require.NoError(t, err)
		assert.Equal(t, requestmodels.StatusApproved, got.Status)
	})

	s.T().Run("repeat termination is a no-op", func(t *testing.T) {
		identity, err := s.service.Create(context.Background(), s.createParams(models.DepartmentMarketing), audit.ActorHRFeed)
		require.NoError(t, err)

		_, err = s.service.Terminate(context.Background(), identity.EmployeeID, audit.ActorHRFeed)
		require.NoError(t, err)
		before := len(s.auditRecords(audit.ActionEmployeeTerminated))

		result, err := s.service.Terminate(context.Background(), identity.EmployeeID, audit.ActorHRFeed)
		require.NoError(t, err)
		assert.True(t, result.AlreadyTerminated)
		assert.Empty(t, result.RevokedEntitlements)
		assert.Len(t, s.auditRecords(audit.ActionEmployeeTerminated), before, "idempotent rerun appends no record")
	})

	s.T().Run("unknown employee is not found", func(t *testing.T) {
		_, err := s.service.Terminate(context.Background(), "EMP-MISSING", audit.ActorHRFeed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestReads() {
	identity, err := s.service.Create(context.Background(), s.createParams(models.DepartmentEngineering), audit.ActorHRFeed)
	s.Require().NoError(err)

	s.T().Run("Get by ledger ID", func(t *testing.T) {
		got, err := s.service.Get(context.Background(), identity.ID)
		require.NoError(t, err)
		assert.Equal(t, identity.EmployeeID, got.EmployeeID)
	})

	s.T().Run("GetByEmployeeID", func(t *testing.T) {
		got, err := s.service.GetByEmployeeID(context.Background(), identity.EmployeeID)
		require.NoError(t, err)
		assert.Equal(t, identity.ID, got.ID)
	})

	s.T().Run("List includes the identity", func(t *testing.T) {
		identities, err := s.service.List(context.Background())
		require.NoError(t, err)
		assert.NotEmpty(t, identities)
	})
}
