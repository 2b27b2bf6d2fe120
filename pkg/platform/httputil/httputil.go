package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"attest/pkg/faults"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	// The response body may be incomplete, but headers are already sent.
	_ = json.NewEncoder(w).Encode(response)
}

// ErrorResponse is the JSON error envelope for every failed request. Kind
// carries the fault code so the UI can pick retry behavior per taxonomy.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// WriteError centralizes fault translation to HTTP responses. It translates
// transport-agnostic fault codes into HTTP status codes and error envelopes.
func WriteError(w http.ResponseWriter, err error) {
	var fault *faults.Error
	if errors.As(err, &fault) {
		WriteJSON(w, FaultToHTTPStatus(fault.Code), ErrorResponse{
			Kind:    string(fault.Code),
			Message: fault.Message,
		})
		return
	}

	// Fallback for errors that never passed through the faults package.
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Kind: string(faults.CodeInternal),
	})
}

// FaultToHTTPStatus translates fault codes to HTTP status codes.
func FaultToHTTPStatus(code faults.Code) int {
	switch code {
	case faults.CodeInvalidInput:
		return http.StatusBadRequest
	case faults.CodePermissionDenied:
		return http.StatusForbidden
	case faults.CodeNotFound:
		return http.StatusNotFound
	case faults.CodeConflict:
		return http.StatusConflict
	case faults.CodeContentUnavailable:
		return http.StatusBadGateway
	case faults.CodeContentNotFound:
		// Data-loss class: the reference exists but its payload is gone.
		return http.StatusBadGateway
	case faults.CodeLedgerRejected:
		return http.StatusUnprocessableEntity
	case faults.CodeUnconfirmed:
		return http.StatusGatewayTimeout
	case faults.CodeConsistencyFault:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
