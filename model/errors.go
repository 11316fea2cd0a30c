package model

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	ErrBadRequest      = "BAD_REQUEST"
	ErrForbidden       = "FORBIDDEN"
	ErrNotFound        = "NOT_FOUND"
	ErrValidationError = "VALIDATION_ERROR"
	ErrRateLimited     = "RATE_LIMITED"
	ErrInternalError   = "INTERNAL_ERROR"
)

// Registry and capability token error codes. Every one of these is
// reported to clients as a plain FORBIDDEN so the response does not
// reveal which check failed.
const (
	ErrDuplicateModel    = "DUPLICATE_MODEL"
	ErrModelNotFound     = "MODEL_NOT_FOUND"
	ErrSubtypeNotAllowed = "SUBTYPE_NOT_ALLOWED"
	ErrWeakKey           = "WEAK_KEY"
	ErrTokenExpired      = "TOKEN_EXPIRED"
	ErrTokenInvalid      = "TOKEN_INVALID"
	ErrTokenMismatch     = "TOKEN_MISMATCH"
	ErrTokenReplayed     = "TOKEN_REPLAYED"
)

// ErrorEnvelope is the standard error response envelope returned by the
// admin API. It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CodeOf extracts the error code from err, or INTERNAL_ERROR when err is
// not an ErrorEnvelope.
func CodeOf(err error) string {
	var env *ErrorEnvelope
	if errors.As(err, &env) {
		return env.Code
	}
	return ErrInternalError
}

// IsAccessDenied reports whether err is one of the registry or token
// failures that must surface as an opaque FORBIDDEN response.
func IsAccessDenied(err error) bool {
	switch CodeOf(err) {
	case ErrForbidden, ErrModelNotFound, ErrSubtypeNotAllowed,
		ErrTokenExpired, ErrTokenInvalid, ErrTokenMismatch, ErrTokenReplayed:
		return true
	}
	return false
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewRateLimitedError returns a RATE_LIMITED error.
func NewRateLimitedError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrRateLimited,
		Message: "Rate limit exceeded. Please try again later.",
	}
}

// NewDuplicateModelError reports a second registration under an already
// taken model name.
func NewDuplicateModelError(name string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrDuplicateModel,
		Message: fmt.Sprintf("model %q is already registered", name),
	}
}

// NewModelNotFoundError reports a lookup of a model name that was never
// registered.
func NewModelNotFoundError(name string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrModelNotFound,
		Message: fmt.Sprintf("model %q is not registered", name),
	}
}

// NewSubtypeNotAllowedError reports an attempt to use a subtype outside
// the model's declared set.
func NewSubtypeNotAllowedError(model, subtype string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSubtypeNotAllowed,
		Message: fmt.Sprintf("subtype %q is not allowed for model %q", subtype, model),
	}
}

// NewWeakKeyError reports a signing key below the minimum length.
func NewWeakKeyError(minLen int) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrWeakKey,
		Message: fmt.Sprintf("signing key must be at least %d characters", minLen),
	}
}

// NewTokenExpiredError reports a capability token past its maximum age.
func NewTokenExpiredError() *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrTokenExpired, Message: "token has expired"}
}

// NewTokenInvalidError reports a capability token that failed signature
// or structural verification.
func NewTokenInvalidError() *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrTokenInvalid, Message: "token is invalid"}
}

// NewTokenMismatchError reports a verified token whose claims do not
// match the request it accompanies.
func NewTokenMismatchError() *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrTokenMismatch, Message: "token does not match request"}
}

// NewTokenReplayedError reports a single-use token presented twice.
func NewTokenReplayedError() *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrTokenReplayed, Message: "token has already been used"}
}
