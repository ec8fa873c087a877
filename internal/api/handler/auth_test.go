package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatpulse/backend/internal/api/handler"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthenticator_IssueAndValidate(t *testing.T) {
	auth := handler.NewAuthenticator("secret")

	token, err := auth.Issue("user_A", time.Hour)
	require.NoError(t, err)

	userID, err := auth.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user_A", userID)
}

func TestAuthenticator_Rejects(t *testing.T) {
	auth := handler.NewAuthenticator("secret")

	otherSecret, err := handler.NewAuthenticator("other").Issue("user_A", time.Hour)
	require.NoError(t, err)
	expired, err := auth.Issue("user_A", -time.Minute)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user_A",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":       "not-a-token",
		"wrong secret":  otherSecret,
		"expired":       expired,
		"missing claim": noUser,
		"no expiry":     noExpiry,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Validate(token)
			assert.ErrorIs(t, err, handler.ErrInvalidToken)
		})
	}
}

func TestAuthenticator_Middleware(t *testing.T) {
	auth := handler.NewAuthenticator("secret")
	token, err := auth.Issue("user_A", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/whoami", auth.Middleware(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})

	tests := []struct {
		name       string
		target     string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "query token", target: "/whoami?token=" + token, wantStatus: http.StatusOK, wantBody: "user_A"},
		{name: "bearer header", target: "/whoami", header: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "user_A"},
		{name: "missing", target: "/whoami", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", target: "/whoami", header: "Basic " + token, wantStatus: http.StatusUnauthorized},
		{name: "invalid", target: "/whoami?token=bogus", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}
