package handler

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"governa/internal/provision"
	"governa/internal/transport/http/json"
	"governa/internal/transport/http/shared"
	dErrors "governa/pkg/domain-errors"
)

// Handler exposes the simulated downstream directories for inspection.
type Handler struct {
	fanout *provision.Fanout
	logger *slog.Logger
}

func New(fanout *provision.Fanout, logger *slog.Logger) *Handler {
	return &Handler{fanout: fanout, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/connectors/{name}/users", h.HandleUsers)
}

// HandleUsers lists the accounts one connector currently knows.
func (h *Handler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	connector, ok := h.fanout.Connector(name)
	if !ok {
		names := h.fanout.Names()
		sort.Strings(names)
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound,
			"unknown connector: "+name+" (known: "+strings.Join(names, ", ")+")"))
		return
	}

	accounts, err := connector.Users(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "connector listing failed", "error", err, "connector", name)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list connector users"))
		return
	}
	json.WriteJSON(w, http.StatusOK, accounts)
}
