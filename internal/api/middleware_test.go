package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	var gotHolder int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := HolderID(r.Context())
		require.True(t, ok)
		gotHolder = id
	})
	protected := AuthMiddleware(testSecret)(next)

	t.Run("accepts bearer header", func(t *testing.T) {
		gotHolder = 0
		req := httptest.NewRequest("GET", "/api/positions", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "42", testSecret))
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(42), gotHolder)
	})

	t.Run("accepts token query parameter", func(t *testing.T) {
		gotHolder = 0
		req := httptest.NewRequest("GET", "/ws?token="+signToken(t, "7", testSecret), nil)
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(7), gotHolder)
	})

	t.Run("rejects missing token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/positions", nil)
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/positions", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "42", "other-secret"))
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects non-numeric subject", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/positions", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "alice", testSecret))
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "42",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/api/positions", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
