// Package gateway contains the HTTP router, middleware chain, and all
// request handlers for the admin API.
package gateway

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes. Registry
// and token codes are deliberately absent: they are rewritten to an
// opaque FORBIDDEN before they reach a client.
var statusForCode = map[string]int{
	model.ErrBadRequest:      http.StatusBadRequest,
	model.ErrForbidden:       http.StatusForbidden,
	model.ErrNotFound:        http.StatusNotFound,
	model.ErrValidationError: http.StatusUnprocessableEntity,
	model.ErrRateLimited:     http.StatusTooManyRequests,
	model.ErrInternalError:   http.StatusInternalServerError,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

type errorResponse struct {
	Error *model.ErrorEnvelope `json:"error"`
}

// WriteError writes an ErrorEnvelope as a JSON response with the correct
// HTTP status code. If err is not an *ErrorEnvelope, a generic 500 is
// returned. Access-denial codes never reach this function directly; use
// Deny for those.
func WriteError(w http.ResponseWriter, err error) {
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

// deniedBody is the single response body every denied request receives,
// whatever the actual cause. An attacker probing model names, subtypes,
// or tokens learns nothing from the response.
var deniedBody = errorResponse{Error: &model.ErrorEnvelope{
	Code:    model.ErrForbidden,
	Message: "Access denied",
}}

// Deny writes the uniform 403 response and records the real cause at
// debug level only.
func (h *Handlers) Deny(w http.ResponseWriter, r *http.Request, cause error) {
	code := model.CodeOf(cause)
	if h.metrics != nil {
		h.metrics.RecordAccessDenied(code)
	}
	h.requestLogger(r).Debug("access denied",
		zap.String("cause", code),
		zap.String("path", r.URL.Path),
		zap.Error(cause))
	WriteJSON(w, http.StatusForbidden, deniedBody)
}
