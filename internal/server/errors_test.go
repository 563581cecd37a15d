package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &types.ErrNotFound{Entity: "job role", ID: uuid.New()}, http.StatusNotFound},
		{"forbidden", &types.ErrForbidden{Action: "review job roles"}, http.StatusForbidden},
		{"version conflict", types.NewVersionConflict(), http.StatusConflict},
		{"duplicate", &types.ErrConflict{Code: types.ConflictDuplicateApplication}, http.StatusConflict},
		{"not accepting", &types.ErrConflict{Code: types.ConflictJobNotAccepting}, http.StatusBadRequest},
		{"validation", &types.ErrValidation{Field: "title", Message: "required"}, http.StatusBadRequest},
		{"unauthorized", &ErrUnauthorized{}, http.StatusUnauthorized},
		{"wrapped", fmt.Errorf("failed to approve: %w", types.NewVersionConflict()), http.StatusConflict},
		{"external", &types.ErrExternalService{Service: "llm", Err: errors.New("timeout")}, http.StatusBadGateway},
		{"plain", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestDescribeError(t *testing.T) {
	body := describeError(types.NewVersionConflict())
	assert.Equal(t, types.ConflictVersion, body.Code)
	assert.Contains(t, body.Error, "modified by another user")

	body = describeError(&types.ErrValidation{Field: "reason", Message: "too short"})
	assert.Equal(t, "validation_error", body.Code)
	assert.Equal(t, "reason", body.Field)

	body = describeError(&types.ErrExternalService{Service: "llm", Err: errors.New("api key sk-123 rejected")})
	assert.Equal(t, "upstream_error", body.Code)
	assert.NotContains(t, body.Error, "sk-123")

	body = describeError(errors.New("pq: password authentication failed for user admin"))
	assert.Equal(t, "internal server error", body.Error)
	assert.Equal(t, "internal_error", body.Code)
}
