package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"governa/internal/request/models"
	"governa/internal/request/service"
	"governa/internal/transport/http/json"
	"governa/internal/transport/http/shared"
	id "governa/pkg/domain"
	dErrors "governa/pkg/domain-errors"
	"governa/pkg/requestcontext"
)

// Service defines the workflow operations the endpoints expose.
type Service interface {
	Submit(ctx context.Context, params service.SubmitParams) (*models.AccessRequest, error)
	Decide(ctx context.Context, params service.DecideParams) (*models.AccessRequest, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.AccessRequest, error)
	List(ctx context.Context, filter models.Filter) ([]*models.AccessRequest, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/requests", h.HandleSubmit)
	r.Get("/api/requests", h.HandleList)
	r.Get("/api/requests/{id}", h.HandleGet)
	r.Post("/api/requests/{id}/approve", h.HandleApprove)
	r.Post("/api/requests/{id}/reject", h.HandleReject)
}

// SubmitRequest is the wire shape of a new access request.
type SubmitRequest struct {
	RequesterID   string `json:"requester_id" validate:"required,uuid"`
	Entitlement   string `json:"entitlement" validate:"required,notblank"`
	Justification string `json:"justification" validate:"required,notblank"`
}

// DecideRequest carries the approver of a decision. Reason is optional and
// only meaningful on reject.
type DecideRequest struct {
	ApproverID string `json:"approver_id" validate:"required,uuid"`
	Reason     string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// HandleSubmit files a new pending request.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := shared.Decode[SubmitRequest](r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	requesterID, err := id.ParseIdentityID(req.RequesterID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid requester id"))
		return
	}

	request, err := h.service.Submit(ctx, service.SubmitParams{
		RequesterID:   requesterID,
		Entitlement:   req.Entitlement,
		Justification: req.Justification,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "submit request failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, ToRequestResponse(request))
}

// HandleList returns requests newest-first, optionally filtered by status
// (?status=pending) or requester (?requester_id=<uuid>).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter models.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.Status(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("requester_id"); raw != "" {
		requesterID, err := id.ParseIdentityID(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid requester id"))
			return
		}
		filter.RequesterID = &requesterID
	}

	requests, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list requests failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		shared.WriteError(w, err)
		return
	}

	response := make([]RequestResponse, 0, len(requests))
	for _, request := range requests {
		response = append(response, ToRequestResponse(request))
	}
	json.WriteJSON(w, http.StatusOK, response)
}

// HandleGet returns one request by ID.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request id"))
		return
	}

	request, err := h.service.Get(ctx, requestID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get request failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, ToRequestResponse(request))
}

// HandleApprove applies an approve decision.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, service.DecisionApprove)
}

// HandleReject applies a reject decision.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, service.DecisionReject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision service.Decision) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request id"))
		return
	}
	req, err := shared.Decode[DecideRequest](r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	approverID, err := id.ParseIdentityID(req.ApproverID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid approver id"))
		return
	}

	request, err := h.service.Decide(ctx, service.DecideParams{
		RequestID:  requestID,
		ApproverID: approverID,
		Decision:   decision,
		Reason:     req.Reason,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "decide request failed",
			"error", err, "request_id", requestcontext.RequestID(ctx), "decision", string(decision))
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, ToRequestResponse(request))
}
