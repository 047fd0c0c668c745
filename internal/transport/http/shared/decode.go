package shared

import (
	"encoding/json"
	"net/http"

	dErrors "governa/pkg/domain-errors"
	"governa/pkg/validation"
)

// Decode parses and validates a JSON request body. Validation runs the
// struct's validate tags; the returned error is a domain error ready for
// WriteError.
func Decode[T any](r *http.Request) (*T, error) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
	}
	if err := validation.Validate(&req); err != nil {
		return nil, err
	}
	return &req, nil
}
