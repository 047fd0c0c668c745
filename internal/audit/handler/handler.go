package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"governa/internal/audit"
	"governa/internal/transport/http/json"
	"governa/internal/transport/http/shared"
	dErrors "governa/pkg/domain-errors"
	"governa/pkg/requestcontext"
)

// Service is the query side of the audit trail.
type Service interface {
	Query(ctx context.Context, filter *audit.Filter) ([]*audit.Record, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/audit/logs", h.HandleQuery)
}

// RecordResponse is the wire shape of one audit record.
type RecordResponse struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Target    string         `json:"target"`
	Details   map[string]any `json:"details,omitempty"`
}

// HandleQuery returns audit records newest-first. Supported query
// parameters: actor, action, target, since, until (RFC 3339), limit, offset.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseFilter(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	records, err := h.service.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		shared.WriteError(w, err)
		return
	}

	response := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		response = append(response, RecordResponse{
			ID:        record.ID.String(),
			Seq:       record.Seq,
			Timestamp: record.Timestamp,
			Actor:     record.Actor,
			Action:    string(record.Action),
			Target:    record.Target,
			Details:   record.Details,
		})
	}
	json.WriteJSON(w, http.StatusOK, response)
}

func parseFilter(r *http.Request) (*audit.Filter, error) {
	query := r.URL.Query()
	var filter audit.Filter

	if raw := query.Get("actor"); raw != "" {
		filter.Actor = &raw
	}
	if raw := query.Get("action"); raw != "" {
		action := audit.Action(raw)
		filter.Action = &action
	}
	if raw := query.Get("target"); raw != "" {
		filter.Target = &raw
	}
	if raw := query.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "since must be an RFC 3339 timestamp")
		}
		filter.Since = &since
	}
	if raw := query.Get("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "until must be an RFC 3339 timestamp")
		}
		filter.Until = &until
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return &filter, nil
}
