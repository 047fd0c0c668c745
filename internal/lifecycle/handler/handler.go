// Package handler exposes the HR feed endpoint. The endpoint sits behind
// the feed's bearer-token middleware; the feed is a machine client, not an
// end user.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	identityhandler "governa/internal/identity/handler"
	identitymodels "governa/internal/identity/models"
	"governa/internal/lifecycle/models"
	"governa/internal/transport/http/json"
	"governa/internal/transport/http/shared"
	dErrors "governa/pkg/domain-errors"
	"governa/pkg/requestcontext"
)

// Service processes one HR event end to end.
type Service interface {
	Process(ctx context.Context, event models.HREvent) (*identitymodels.Identity, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/hr/event", h.HandleEvent)
}

// HREventRequest is the wire shape of one HR feed event. Attribute fields
// are optional at the transport layer; the engine enforces per-event-type
// requirements.
type HREventRequest struct {
	EventType  string  `json:"event_type" validate:"required,notblank"`
	EmployeeID string  `json:"employee_id" validate:"required,notblank"`
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Department *string `json:"department,omitempty"`
	JobTitle   *string `json:"job_title,omitempty"`
}

// HREventResponse reports the identity the event touched.
type HREventResponse struct {
	Status   string                          `json:"status"`
	Identity identityhandler.IdentityResponse `json:"identity"`
}

// HandleEvent applies one HR lifecycle event.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := shared.Decode[HREventRequest](r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	event := models.HREvent{
		Type:       models.EventType(req.EventType),
		EmployeeID: req.EmployeeID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		JobTitle:   req.JobTitle,
	}
	if req.Department != nil {
		department := identitymodels.Department(*req.Department)
		if !department.IsValid() {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown department: "+*req.Department))
			return
		}
		event.Department = &department
	}

	identity, err := h.service.Process(ctx, event)
	if err != nil {
		h.logger.ErrorContext(ctx, "hr event failed",
			"error", err, "request_id", requestID, "event_type", req.EventType, "employee_id", req.EmployeeID)
		shared.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if event.Type == models.EventEmployeeCreated {
		status = http.StatusCreated
	}
	json.WriteJSON(w, status, HREventResponse{
		Status:   "success",
		Identity: identityhandler.ToIdentityResponse(identity),
	})
}
