package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
	"github.com/Chardonneaur/VisitorExclusion/internal/store"
)

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter, r *http.Request)
		wantStatus int
		wantCode   ErrorCode
	}{
		{"validation", func(w http.ResponseWriter, r *http.Request) { ValidationError(w, r, "invalid event", nil) }, 400, ErrCodeValidation},
		{"bad request", func(w http.ResponseWriter, r *http.Request) { BadRequestError(w, r, ErrCodeInvalidID, "bad id") }, 400, ErrCodeInvalidID},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { UnauthorizedError(w, r, "missing bearer token") }, 401, ErrCodeUnauthorized},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { ForbiddenError(w, r, "invalid token") }, 403, ErrCodeForbidden},
		{"not found", func(w http.ResponseWriter, r *http.Request) { NotFoundError(w, r, "rule not found") }, 404, ErrCodeNotFound},
		{"too large", func(w http.ResponseWriter, r *http.Request) { RequestTooLargeError(w, r, "too big") }, 413, ErrCodeRequestTooLarge},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) { RateLimitedError(w, r, "slow down") }, 429, ErrCodeRateLimited},
		{"internal", func(w http.ResponseWriter, r *http.Request) { InternalError(w, r, "boom") }, 500, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, httptest.NewRequest(http.MethodGet, "/v1/rules", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tt.wantCode || resp.Error != http.StatusText(tt.wantStatus) || resp.Message == "" {
				t.Errorf("unexpected body %+v", resp)
			}
		})
	}
}

func TestValidationError_FieldsAndRequestID(t *testing.T) {
	var got ErrorResponse
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ValidationError(w, r, "invalid event", map[string]string{"dimensions.21": "slot must be between 1 and 20"})
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/exclusions/check", nil))

	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Fields["dimensions.21"] == "" {
		t.Errorf("fields not returned: %+v", got)
	}
	if got.RequestID == "" {
		t.Error("request id missing")
	}
}

func TestRuleErrorStatus(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   ErrorCode
		wantOK     bool
	}{
		{store.ErrNotFound, 404, ErrCodeNotFound, true},
		{fmt.Errorf("%w: bad", rules.ErrInvalidPattern), 400, ErrCodeInvalidPattern, true},
		{fmt.Errorf("%w: bad", rules.ErrInvalidIPRange), 400, ErrCodeInvalidIPRange, true},
		{rules.ErrInvalidField, 400, ErrCodeInvalidCondition, true},
		{rules.ErrInvalidOperator, 400, ErrCodeInvalidCondition, true},
		{rules.ErrInvalidCondition, 400, ErrCodeInvalidCondition, true},
		{fmt.Errorf("%w: name must not be empty", rules.ErrInvalidRule), 400, ErrCodeValidation, true},
		{errors.New("connection refused"), 500, ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code, ok := ruleErrorStatus(tt.err)
			if status != tt.wantStatus || code != tt.wantCode || ok != tt.wantOK {
				t.Errorf("ruleErrorStatus() = %d %s %v, want %d %s %v", status, code, ok, tt.wantStatus, tt.wantCode, tt.wantOK)
			}
		})
	}
}
