package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"governa/internal/identity/models"
	"governa/internal/transport/http/json"
	"governa/internal/transport/http/shared"
	id "governa/pkg/domain"
	dErrors "governa/pkg/domain-errors"
	"governa/pkg/requestcontext"
)

// Service defines the read surface the identity endpoints expose. Returns
// domain objects, not HTTP response DTOs.
type Service interface {
	Get(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	List(ctx context.Context) ([]*models.Identity, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/identities", h.HandleList)
	r.Get("/api/identities/{id}", h.HandleGet)
}

// HandleList returns every identity, oldest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identities, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list identities failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		shared.WriteError(w, err)
		return
	}

	response := make([]IdentityResponse, 0, len(identities))
	for _, identity := range identities {
		response = append(response, ToIdentityResponse(identity))
	}
	json.WriteJSON(w, http.StatusOK, response)
}

// HandleGet returns one identity by its ledger ID.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identityID, err := id.ParseIdentityID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid identity id"))
		return
	}

	identity, err := h.service.Get(ctx, identityID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get identity failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, ToIdentityResponse(identity))
}
