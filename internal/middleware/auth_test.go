package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func signToken(t *testing.T, userID string, expiry time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(expiry).Unix(),
		"iat":     time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(viper.GetString("jwt.secret_key")))
	assert.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")
	InitAuthMiddleware(nil)

	userID := uuid.New().String()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ := r.Context().Value("userID").(string)
		assert.Equal(t, userID, got)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token passes user ID through", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/accounts", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, userID, time.Hour))
		w := httptest.NewRecorder()

		AuthMiddleware(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/accounts", nil)
		w := httptest.NewRecorder()

		AuthMiddleware(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/accounts", nil)
		req.Header.Set("Authorization", "Basic abc123")
		w := httptest.NewRecorder()

		AuthMiddleware(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/accounts", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, userID, -time.Hour))
		w := httptest.NewRecorder()

		AuthMiddleware(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		viper.Set("jwt.secret_key", "other-secret")
		token := signToken(t, userID, time.Hour)
		viper.Set("jwt.secret_key", "test-secret")

		req := httptest.NewRequest("GET", "/api/v1/accounts", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AuthMiddleware(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked token rejected", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		InitAuthMiddleware(client)
		defer InitAuthMiddleware(nil)

		token := signToken(t, userID, time.Hour)
		redisMock.ExpectExists("blacklist:" + token).SetVal(1)

		req := httptest.NewRequest("GET", "/api/v1/accounts", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AuthMiddleware(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("unrevoked token passes the blacklist", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		InitAuthMiddleware(client)
		defer InitAuthMiddleware(nil)

		token := signToken(t, userID, time.Hour)
		redisMock.ExpectExists("blacklist:" + token).SetVal(0)

		req := httptest.NewRequest("GET", "/api/v1/accounts", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AuthMiddleware(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}
