package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	derrors "aegis/pkg/domain-errors"
)

// errorResponse is the uniform error body for every endpoint.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status. Encoding failures are
// swallowed: headers are already written, nothing useful remains to do.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error code to an HTTP status and writes the
// uniform error body.
func WriteError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	status := statusFor(code)

	body := errorResponse{Error: string(code)}
	var de *derrors.Error
	if errors.As(err, &de) {
		body.Description = de.Message
	}

	WriteJSON(w, status, body)
}

func statusFor(code derrors.Code) int {
	switch code {
	case derrors.CodeBadRequest, derrors.CodeInvalidInput:
		return http.StatusBadRequest
	case derrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case derrors.CodePermissionDenied:
		return http.StatusForbidden
	case derrors.CodeUpgradeRequired:
		return http.StatusPaymentRequired
	case derrors.CodeNotFound:
		return http.StatusNotFound
	case derrors.CodeConflict, derrors.CodeInvariantViolation:
		return http.StatusConflict
	case derrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case derrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case derrors.CodeUnsupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
