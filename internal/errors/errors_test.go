package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation with fields", NewValidationError("email", "already registered"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrapped validation", fmt.Errorf("register: %w", ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"authentication", ErrAuthentication, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"no session", ErrUnauthenticated, http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{"invalid token", fmt.Errorf("refresh: %w", ErrInvalidToken), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"not found", ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"unavailable", fmt.Errorf("find user: %w", ErrServiceUnavailable), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown", context.Canceled, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)
			assert.Equal(t, tt.wantCode, httpErr.Code)
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"password": "too short", "email": "invalid"}}

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "validation failed: email: invalid; password: too short", err.Error())

	resp := MapErrorToHTTP(err).ToErrorResponse()
	assert.Equal(t, "too short", resp.Fields["password"])
}

func TestHTTPError_Retryable(t *testing.T) {
	assert.True(t, MapErrorToHTTP(ErrServiceUnavailable).Retryable())
	assert.False(t, MapErrorToHTTP(ErrAuthentication).Retryable())
}
