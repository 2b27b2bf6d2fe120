package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"attest/pkg/faults"
)

// DecodeJSON decodes a JSON request body into the target type.
// Returns the decoded value and true on success.
// On failure, writes an error response and returns nil, false.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, faults.New(faults.CodeInvalidInput, "invalid request body"))
		return nil, false
	}
	return &req, true
}

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// DecodeAndValidate combines JSON decoding with request validation. If the
// target type implements Validatable, its Validate method runs after decode
// and any failure is written as an invalid_input response.
func DecodeAndValidate[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, requestID)
	if !ok {
		return nil, false
	}

	if v, isV := any(req).(Validatable); isV {
		if err := v.Validate(); err != nil {
			logger.Warn("invalid request",
				"error", err,
				"request_id", requestID,
			)
			WriteError(w, faults.Wrap(err, faults.CodeInvalidInput, err.Error()))
			return nil, false
		}
	}

	return req, true
}
