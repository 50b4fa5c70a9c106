package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/richxcame/driver-verification/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, userID uuid.UUID, role models.UserRole, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func newAuthRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(testSecret), RequireRole(roles...), func(c *gin.Context) {
		uid, _ := GetUserID(c)
		role, _ := GetUserRole(c)
		c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name       string
		header     string
		roles      []models.UserRole
		wantStatus int
	}{
		{
			name:       "valid driver token",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userID, models.RoleDriver, future),
			roles:      []models.UserRole{models.RoleDriver},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			roles:      []models.UserRole{models.RoleDriver},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			header:     "Token abc",
			roles:      []models.UserRole{models.RoleDriver},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong secret",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), userID, models.RoleDriver, future),
			roles:      []models.UserRole{models.RoleDriver},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userID, models.RoleDriver, time.Now().Add(-time.Minute)),
			roles:      []models.UserRole{models.RoleDriver},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing user id",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), uuid.Nil, models.RoleDriver, future),
			roles:      []models.UserRole{models.RoleDriver},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "driver on admin route",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userID, models.RoleDriver, future),
			roles:      []models.UserRole{models.RoleAdmin},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newAuthRouter(tt.roles...).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				var resp common.Response
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantStatus, resp.Error.Code)
			}
		})
	}
}

func TestAuthMiddleware_RejectsNoneAlgorithm(t *testing.T) {
	token := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, uuid.New(), models.RoleAdmin, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	newAuthRouter(models.RoleAdmin).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUserID_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, err := GetUserID(c)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	c.Set(UserIDKey, "not-a-uuid")
	_, err = GetUserID(c)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}
