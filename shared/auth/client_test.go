package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(baseURL string) *Client {
	return NewClient(&Config{
		BaseURL:   baseURL,
		JWTSecret: "test-secret",
		Timeout:   2 * time.Second,
	}, testLogger())
}

func TestGenerateAndVerifyToken(t *testing.T) {
	client := newTestClient("")

	token, err := client.GenerateToken(map[string]any{
		"user_id": "user-1",
		"role":    "trader",
	}, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := client.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["user_id"])
	assert.Equal(t, "trader", claims["role"])
}

func TestVerifyExpiredToken(t *testing.T) {
	client := newTestClient("")

	token, err := client.GenerateToken(map[string]any{"user_id": "user-1"}, -time.Hour)
	require.NoError(t, err)

	_, err = client.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	signer := newTestClient("")
	token, err := signer.GenerateToken(map[string]any{"user_id": "user-1"}, time.Hour)
	require.NoError(t, err)

	verifier := NewClient(&Config{JWTSecret: "other-secret"}, testLogger())
	_, err = verifier.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyGarbageToken(t *testing.T) {
	client := newTestClient("")

	_, err := client.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/users/user-1", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": "a@b.c"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	user, err := client.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", user["email"])
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.c", body["email"])

		json.NewEncoder(w).Encode(map[string]any{"token": "jwt-here"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	result, err := client.Authenticate(context.Background(), "a@b.c", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "jwt-here", result["token"])
}

func TestCreateAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/user-1/api-keys", r.URL.Path)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"api_key": "key-abc"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	key, err := client.CreateAPIKey(context.Background(), "user-1", "trading-bot")
	require.NoError(t, err)
	assert.Equal(t, "key-abc", key)
}

func TestRevokeAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	assert.NoError(t, client.RevokeAPIKey(context.Background(), "user-1", "key-1"))
}

func TestUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.Authenticate(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	assert.NoError(t, client.HealthCheck(context.Background()))
}
