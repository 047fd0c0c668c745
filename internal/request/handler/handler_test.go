package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"governa/internal/audit"
	identitymodels "governa/internal/identity/models"
	identityservice "governa/internal/identity/service"
	identitystore "governa/internal/identity/store"
	"governa/internal/lifecycle/policy"
	"governa/internal/provision"
	"governa/internal/request/service"
	"governa/internal/request/store"
	dErrors "governa/pkg/domain-errors"
	"governa/pkg/testutil"
)

// HandlerSuite drives the workflow endpoints through a chi router over a
// real in-memory workflow service.
type HandlerSuite struct {
	suite.Suite
	identities *identitystore.InMemoryStore
	router     chi.Router
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.identities = identitystore.NewInMemoryStore()
	requests := store.NewInMemoryStore()
	auditStore := audit.NewInMemoryStore()

	var mu sync.Mutex
	stores := service.Stores{
		Requests: requests,
		Ledger:   identityservice.Ledger{Identities: s.identities, Audit: auditStore},
		Audit:    auditStore,
	}
	fanout := provision.NewFanout(logger, provision.NewAzureAD(), provision.NewGitHub(), provision.NewSlack())
	workflow := service.New(service.NewMemoryTx(&mu, stores), requests, policy.NewEngine(), fanout, nil, logger)

	s.router = chi.NewRouter()
	New(workflow, logger).Register(s.router)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) newIdentity(department identitymodels.Department, entitlements ...string) *identitymodels.Identity {
	identity := testutil.NewIdentity(s.T(), department, entitlements...)
	s.Require().NoError(s.identities.Insert(context.Background(), identity))
	return identity
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var response map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func (s *HandlerSuite) submit(requesterID, entitlement string) map[string]any {
	w := s.do(http.MethodPost, "/api/requests", SubmitRequest{
		RequesterID:   requesterID,
		Entitlement:   entitlement,
		Justification: "on-call rotation",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return s.decode(w)
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, code dErrors.Code) {
	t.Helper()
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, string(code), response["error"])
}

func (s *HandlerSuite) TestSubmit() {
	s.T().Run("201 - files a pending request", func(t *testing.T) {
		requester := s.newIdentity(identitymodels.DepartmentEngineering)
		response := s.submit(requester.ID.String(), "GitHub:Platform")

		assert.Equal(t, "pending", response["status"])
		assert.Equal(t, requester.ID.String(), response["requester_id"])
		assert.Equal(t, []any{}, response["sod_warnings"], "warnings are never null")
		assert.NotContains(t, response, "approver_id")
	})

	s.T().Run("400 - missing justification", func(t *testing.T) {
		requester := s.newIdentity(identitymodels.DepartmentSales)
		w := s.do(http.MethodPost, "/api/requests", SubmitRequest{
			RequesterID: requester.ID.String(),
			Entitlement: "Salesforce:Admins",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.T().Run("400 - malformed requester id", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/requests", SubmitRequest{
			RequesterID:   "not-a-uuid",
			Entitlement:   "GitHub:Platform",
			Justification: "need it",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.T().Run("404 - unknown requester", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/requests", SubmitRequest{
			RequesterID:   "00000000-0000-4000-8000-000000000001",
			Entitlement:   "GitHub:Platform",
			Justification: "need it",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assertErrorCode(t, w, dErrors.CodeNotFound)
	})
}

func (s *HandlerSuite) TestDecide() {
	s.T().Run("200 - approve flips status and records approver", func(t *testing.T) {
		requester := s.newIdentity(identitymodels.DepartmentEngineering)
		approver := s.newIdentity(identitymodels.DepartmentEngineering)
		submitted := s.submit(requester.ID.String(), "GitHub:Platform")

		w := s.do(http.MethodPost, "/api/requests/"+submitted["id"].(string)+"/approve",
			DecideRequest{ApproverID: approver.ID.String()})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		response := s.decode(w)
		assert.Equal(t, "approved", response["status"])
		assert.Equal(t, approver.ID.String(), response["approver_id"])
		assert.NotEmpty(t, response["decided_at"])
	})

	s.T().Run("200 - reject records the reason", func(t *testing.T) {
		requester := s.newIdentity(identitymodels.DepartmentMarketing)
		approver := s.newIdentity(identitymodels.DepartmentMarketing)
		submitted := s.submit(requester.ID.String(), "Tableau:Analysts")

		w := s.do(http.MethodPost, "/api/requests/"+submitted["id"].(string)+"/reject",
			DecideRequest{ApproverID: approver.ID.String(), Reason: "not justified"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		response := s.decode(w)
		assert.Equal(t, "rejected", response["status"])
		assert.Equal(t, "not justified", response["reason"])
	})

	s.T().Run("403 - self decision", func(t *testing.T) {
		requester := s.newIdentity(identitymodels.DepartmentSales)
		submitted := s.submit(requester.ID.String(), "Salesforce:Admins")

		w := s.do(http.MethodPost, "/api/requests/"+submitted["id"].(string)+"/approve",
			DecideRequest{ApproverID: requester.ID.String()})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assertErrorCode(t, w, dErrors.CodeForbidden)
	})

	s.T().Run("409 - second decision", func(t *testing.T) {
		requester := s.newIdentity(identitymodels.DepartmentEngineering)
		approver := s.newIdentity(identitymodels.DepartmentEngineering)
		other := s.newIdentity(identitymodels.DepartmentEngineering)
		submitted := s.submit(requester.ID.String(), "GitHub:Platform")
		path := "/api/requests/" + submitted["id"].(string)

		w := s.do(http.MethodPost, path+"/approve", DecideRequest{ApproverID: approver.ID.String()})
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(http.MethodPost, path+"/reject", DecideRequest{ApproverID: other.ID.String(), Reason: "late"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assertErrorCode(t, w, dErrors.CodeInvalidState)
	})

	s.T().Run("404 - unknown request", func(t *testing.T) {
		approver := s.newIdentity(identitymodels.DepartmentHR)
		w := s.do(http.MethodPost, "/api/requests/00000000-0000-4000-8000-000000000002/approve",
			DecideRequest{ApproverID: approver.ID.String()})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	s.T().Run("400 - missing approver", func(t *testing.T) {
		requester := s.newIdentity(identitymodels.DepartmentHR)
		submitted := s.submit(requester.ID.String(), "Workday:Admins")

		w := s.do(http.MethodPost, "/api/requests/"+submitted["id"].(string)+"/approve", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestGetAndList() {
	requester := s.newIdentity(identitymodels.DepartmentEngineering)
	approver := s.newIdentity(identitymodels.DepartmentEngineering)
	first := s.submit(requester.ID.String(), "GitHub:Platform")
	second := s.submit(requester.ID.String(), "Tableau:Analysts")

	w := s.do(http.MethodPost, "/api/requests/"+first["id"].(string)+"/approve",
		DecideRequest{ApproverID: approver.ID.String()})
	s.Require().Equal(http.StatusOK, w.Code)

	s.T().Run("200 - get by id", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/requests/"+second["id"].(string), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pending", s.decode(w)["status"])
	})

	s.T().Run("400 - malformed id", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/requests/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.T().Run("200 - list all", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/requests", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var response []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response, 2)
	})

	s.T().Run("200 - filter by status", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/requests?status=approved", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var response []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response, 1)
		assert.Equal(t, first["id"], response[0]["id"])
	})

	s.T().Run("400 - unknown status", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/requests?status=cancelled", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.T().Run("200 - filter by requester", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/requests?requester_id="+requester.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		var response []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response, 2)
	})
}
