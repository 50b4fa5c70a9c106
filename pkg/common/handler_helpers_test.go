package common_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		fallbackMsg    string
		expectHandled  bool
		expectStatus   int
		expectContains string
	}{
		{
			name:          "nil error returns false",
			err:           nil,
			fallbackMsg:   "failed",
			expectHandled: false,
		},
		{
			name:           "not found AppError",
			err:            common.NewNotFoundError("driver not found", nil),
			fallbackMsg:    "failed to list documents",
			expectHandled:  true,
			expectStatus:   http.StatusNotFound,
			expectContains: "driver not found",
		},
		{
			name:           "wrapped AppError is unwrapped",
			err:            fmt.Errorf("review: %w", common.NewForbiddenError("not your document")),
			fallbackMsg:    "failed",
			expectHandled:  true,
			expectStatus:   http.StatusForbidden,
			expectContains: "FORBIDDEN",
		},
		{
			name:           "storage error maps to bad gateway",
			err:            common.NewStorageError("failed to store file", errors.New("timeout")),
			fallbackMsg:    "failed",
			expectHandled:  true,
			expectStatus:   http.StatusBadGateway,
			expectContains: "STORAGE_ERROR",
		},
		{
			name:           "plain error uses fallback",
			err:            errors.New("connection reset"),
			fallbackMsg:    "failed to upload document",
			expectHandled:  true,
			expectStatus:   http.StatusInternalServerError,
			expectContains: "failed to upload document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

			handled := common.HandleServiceError(c, tt.err, tt.fallbackMsg)
			assert.Equal(t, tt.expectHandled, handled)

			if tt.expectHandled {
				assert.Equal(t, tt.expectStatus, w.Code)
				assert.Contains(t, w.Body.String(), tt.expectContains)
			}
		})
	}
}

func TestParseUUIDParam(t *testing.T) {
	validID := uuid.New()

	tests := []struct {
		name       string
		value      string
		expectOK   bool
		expectCode int
	}{
		{name: "valid uuid", value: validID.String(), expectOK: true},
		{name: "missing value", value: "", expectOK: false, expectCode: http.StatusBadRequest},
		{name: "malformed value", value: "not-a-uuid", expectOK: false, expectCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
			c.Params = gin.Params{{Key: "id", Value: tt.value}}

			id, ok := common.ParseUUIDParam(c, "id", "document ID")
			assert.Equal(t, tt.expectOK, ok)
			if tt.expectOK {
				assert.Equal(t, validID, id)
			} else {
				assert.Equal(t, tt.expectCode, w.Code)
			}
		})
	}
}

func TestBindJSON(t *testing.T) {
	type body struct {
		Status string `json:"status" binding:"required"`
	}

	t.Run("valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"status":"approved"}`))
		c.Request.Header.Set("Content-Type", "application/json")

		var b body
		require.True(t, common.BindJSON(c, &b))
		assert.Equal(t, "approved", b.Status)
	})

	t.Run("missing required field", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{}`))
		c.Request.Header.Set("Content-Type", "application/json")

		var b body
		assert.False(t, common.BindJSON(c, &b))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("bucket unreachable")
	err := common.NewStorageError("failed to store file", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to store file: bucket unreachable", err.Error())
	assert.True(t, common.IsNotFound(common.NewNotFoundError("document not found", nil)))
	assert.False(t, common.IsNotFound(cause))
}

func TestRunChecks(t *testing.T) {
	results, healthy := common.RunChecks(context.Background(), map[string]common.Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})

	assert.False(t, healthy)
	assert.Equal(t, "healthy", results["postgres"].Status)
	assert.Equal(t, "unhealthy", results["redis"].Status)
	assert.Contains(t, results["redis"].Message, "refused")
}
