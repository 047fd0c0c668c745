package handler

import (
	"time"

	"governa/internal/request/models"
)

// RequestResponse is the wire shape of one access request.
type RequestResponse struct {
	ID            string     `json:"id"`
	RequesterID   string     `json:"requester_id"`
	Entitlement   string     `json:"entitlement"`
	Justification string     `json:"justification"`
	Status        string     `json:"status"`
	ApproverID    *string    `json:"approver_id,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	SoDWarnings   []string   `json:"sod_warnings"`
	CreatedAt     time.Time  `json:"created_at"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
}

func ToRequestResponse(request *models.AccessRequest) RequestResponse {
	warnings := request.SoDWarnings
	if warnings == nil {
		warnings = []string{}
	}
	response := RequestResponse{
		ID:            request.ID.String(),
		RequesterID:   request.RequesterID.String(),
		Entitlement:   request.Entitlement,
		Justification: request.Justification,
		Status:        string(request.Status),
		Reason:        request.Reason,
		SoDWarnings:   warnings,
		CreatedAt:     request.CreatedAt,
		DecidedAt:     request.DecidedAt,
	}
	if request.ApproverID != nil {
		approver := request.ApproverID.String()
		response.ApproverID = &approver
	}
	return response
}
