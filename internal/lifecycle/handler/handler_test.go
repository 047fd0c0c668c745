package handler

import (
	"bytes"
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
	identityservice "governa/internal/identity/service"
	identitystore "governa/internal/identity/store"
	"governa/internal/lifecycle/policy"
	lifecycleservice "governa/internal/lifecycle/service"
	"governa/internal/provision"
	requeststore "governa/internal/request/store"
	"governa/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	identities := identitystore.NewInMemoryStore()
	var mu sync.Mutex
	stores := identityservice.Stores{
		Identities: identities,
		Requests:   requeststore.NewInMemoryStore(),
		Audit:      audit.NewInMemoryStore(),
	}
	ledger := identityservice.New(identityservice.NewMemoryTx(&mu, stores), identities, policy.NewEngine(), nil, logger)
	fanout := provision.NewFanout(logger, provision.NewAzureAD(), provision.NewGitHub(), provision.NewSlack())
	engine := lifecycleservice.New(ledger, fanout, nil, logger)

	s.router = chi.NewRouter()
	New(engine, logger).Register(s.router)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) post(body any) *httptest.ResponseRecorder {
	encoded, err := json.Marshal(body)
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, "/api/hr/event", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func ptr[T any](v T) *T { return &v }

func (s *HandlerSuite) joinerRequest() HREventRequest {
	employeeID := testutil.NextEmployeeID()
	return HREventRequest{
		EventType:  "EmployeeCreated",
		EmployeeID: employeeID,
		FirstName:  ptr("Ada"),
		LastName:   ptr("Lovelace"),
		Email:      ptr(employeeID + "@example.com"),
		Department: ptr("Engineering"),
		JobTitle:   ptr("Engineer"),
	}
}

func (s *HandlerSuite) TestHandleEvent() {
	s.T().Run("201 - joiner creates the identity", func(t *testing.T) {
		w := s.post(s.joinerRequest())
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var response HREventResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "success", response.Status)
		assert.Equal(t, "active", response.Identity.Status)
		assert.Contains(t, response.Identity.Entitlements, "AzureAD:Engineering")
	})

	s.T().Run("200 - mover updates the identity", func(t *testing.T) {
		joiner := s.joinerRequest()
		require.Equal(t, http.StatusCreated, s.post(joiner).Code)

		w := s.post(HREventRequest{
			EventType:  "EmployeeUpdated",
			EmployeeID: joiner.EmployeeID,
			Department: ptr("Sales"),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var response HREventResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Sales", response.Identity.Department)
		assert.Contains(t, response.Identity.Entitlements, "AzureAD:Sales")
		assert.NotContains(t, response.Identity.Entitlements, "AzureAD:Engineering")
	})

	s.T().Run("200 - leaver terminates the identity", func(t *testing.T) {
		joiner := s.joinerRequest()
		require.Equal(t, http.StatusCreated, s.post(joiner).Code)

		w := s.post(HREventRequest{EventType: "EmployeeTerminated", EmployeeID: joiner.EmployeeID})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var response HREventResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "terminated", response.Identity.Status)
		assert.Empty(t, response.Identity.Entitlements)
	})

	s.T().Run("409 - duplicate employee id", func(t *testing.T) {
		joiner := s.joinerRequest()
		require.Equal(t, http.StatusCreated, s.post(joiner).Code)
		assert.Equal(t, http.StatusConflict, s.post(joiner).Code)
	})

	s.T().Run("400 - unknown event type", func(t *testing.T) {
		w := s.post(HREventRequest{EventType: "EmployeeRehired", EmployeeID: "EMP-X"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.T().Run("400 - unknown department", func(t *testing.T) {
		joiner := s.joinerRequest()
		joiner.Department = ptr("Finance")
		assert.Equal(t, http.StatusBadRequest, s.post(joiner).Code)
	})

	s.T().Run("400 - missing employee id", func(t *testing.T) {
		w := s.post(HREventRequest{EventType: "EmployeeCreated"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.T().Run("400 - malformed email", func(t *testing.T) {
		joiner := s.joinerRequest()
		joiner.Email = ptr("not-an-email")
		assert.Equal(t, http.StatusBadRequest, s.post(joiner).Code)
	})

	s.T().Run("404 - mover for unknown employee", func(t *testing.T) {
		w := s.post(HREventRequest{
			EventType:  "EmployeeUpdated",
			EmployeeID: "EMP-MISSING",
			JobTitle:   ptr("Ghost"),
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
