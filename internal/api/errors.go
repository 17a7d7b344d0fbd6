package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
	"github.com/Chardonneaur/VisitorExclusion/internal/store"
)

// ErrorCode is the machine-readable part of an error body.
type ErrorCode string

const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeRequestTooLarge ErrorCode = "REQUEST_TOO_LARGE"

	// rule and event validation
	ErrCodeValidation       ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrCodeInvalidID        ErrorCode = "INVALID_ID"
	ErrCodeInvalidCondition ErrorCode = "INVALID_CONDITION"
	ErrCodeInvalidPattern   ErrorCode = "INVALID_PATTERN"
	ErrCodeInvalidIPRange   ErrorCode = "INVALID_IP_RANGE"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error     string            `json:"error"` // status text
	Message   string            `json:"message"`
	Code      ErrorCode         `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code ErrorCode, message string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		Fields:    fields,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// ruleErrorStatus maps store and rule validation errors. ok is false for
// errors that should surface as 500.
func ruleErrorStatus(err error) (status int, code ErrorCode, ok bool) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, true
	case errors.Is(err, rules.ErrInvalidPattern):
		return http.StatusBadRequest, ErrCodeInvalidPattern, true
	case errors.Is(err, rules.ErrInvalidIPRange):
		return http.StatusBadRequest, ErrCodeInvalidIPRange, true
	case errors.Is(err, rules.ErrInvalidCondition),
		errors.Is(err, rules.ErrInvalidField),
		errors.Is(err, rules.ErrInvalidOperator):
		return http.StatusBadRequest, ErrCodeInvalidCondition, true
	case errors.Is(err, rules.ErrInvalidRule):
		return http.StatusBadRequest, ErrCodeValidation, true
	}
	return http.StatusInternalServerError, ErrCodeInternal, false
}

func ValidationError(w http.ResponseWriter, r *http.Request, message string, fields map[string]string) {
	writeError(w, r, http.StatusBadRequest, ErrCodeValidation, message, fields)
}

func BadRequestError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	writeError(w, r, http.StatusBadRequest, code, message, nil)
}

func UnauthorizedError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, message, nil)
}

func ForbiddenError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusForbidden, ErrCodeForbidden, message, nil)
}

func NotFoundError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusNotFound, ErrCodeNotFound, message, nil)
}

func RateLimitedError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, message, nil)
}

func RequestTooLargeError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, message, nil)
}

func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, message, nil)
}
