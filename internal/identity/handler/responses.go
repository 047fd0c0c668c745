package handler

import (
	"time"

	"governa/internal/identity/models"
)

// IdentityResponse is the wire shape of one ledger identity.
type IdentityResponse struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employee_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Department   string    `json:"department"`
	JobTitle     string    `json:"job_title"`
	Status       string    `json:"status"`
	Entitlements []string  `json:"entitlements"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ToIdentityResponse(identity *models.Identity) IdentityResponse {
	entitlements := identity.Entitlements
	if entitlements == nil {
		entitlements = []string{}
	}
	return IdentityResponse{
		ID:           identity.ID.String(),
		EmployeeID:   identity.EmployeeID,
		FirstName:    identity.FirstName,
		LastName:     identity.LastName,
		Email:        identity.Email,
		Department:   string(identity.Department),
		JobTitle:     identity.JobTitle,
		Status:       string(identity.Status),
		Entitlements: entitlements,
		CreatedAt:    identity.CreatedAt,
		UpdatedAt:    identity.UpdatedAt,
	}
}
