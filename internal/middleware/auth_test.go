package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetJWTSecret(testSecret)

	r := gin.New()
	r.GET("/runs", RequireRole(RoleAdmin, RoleAuditor), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})

	valid := func(role string) string {
		return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"sub":  "user-42",
			"role": role,
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
	}

	tests := []struct {
		name   string
		header string
		want   int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Token abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer abc", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"role": RoleAdmin}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": RoleAdmin, "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized, ""},
		{"no role", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "x"}), http.StatusForbidden, ""},
		{"viewer forbidden", "Bearer " + valid(RoleViewer), http.StatusForbidden, ""},
		{"auditor allowed", "Bearer " + valid(RoleAuditor), http.StatusOK, "user-42"},
		{"admin allowed", "Bearer " + valid(RoleAdmin), http.StatusOK, "user-42"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/runs", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(RoleViewer, RoleAdmin, RoleViewer))
	assert.False(t, HasRole("manager", RoleAdmin, RoleAuditor, RoleViewer))
	assert.False(t, HasRole(RoleAdmin))
}
