package gotrue_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/community-gateway/internal/core/identity"
	"github.com/unifiedui/community-gateway/internal/infrastructure/identity/gotrue"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *gotrue.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := gotrue.NewClient(&gotrue.ClientConfig{
		BaseURL: server.URL + "/",
		APIKey:  "anon-key",
	})
	require.NoError(t, err)
	return client
}

// TestNewClient_Validation tests config validation.
func TestNewClient_Validation(t *testing.T) {
	_, err := gotrue.NewClient(nil)
	assert.ErrorContains(t, err, "config is required")

	_, err = gotrue.NewClient(&gotrue.ClientConfig{})
	assert.ErrorContains(t, err, "base URL is required")
}

// TestGetUser_Success tests resolving a user from an access token.
func TestGetUser_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`{"id":"user-1","email":"a@example.com","role":"authenticated"}`))
	})

	user, err := client.GetUser(context.Background(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "a@example.com", user.Email)
}

// TestGetUser_Unauthorized tests that a rejected token maps to ErrNoSession.
func TestGetUser_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
	})

	_, err := client.GetUser(context.Background(), "expired")
	assert.ErrorIs(t, err, identity.ErrNoSession)
}

// TestGetUser_ServerError tests that other failures are not reported as ErrNoSession.
func TestGetUser_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"database down"}`))
	})

	_, err := client.GetUser(context.Background(), "token")
	require.Error(t, err)
	assert.False(t, errors.Is(err, identity.ErrNoSession))
	assert.Contains(t, err.Error(), "database down")
}

// TestGetUser_EmptyToken tests that no request is made without a token.
func TestGetUser_EmptyToken(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.GetUser(context.Background(), "")
	assert.ErrorIs(t, err, identity.ErrNoSession)
	assert.False(t, called)
}

// TestRefresh_Success tests a refresh token exchange.
func TestRefresh_Success(t *testing.T) {
	expiresAt := time.Now().Add(time.Hour).Unix()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refresh_token"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"expires_in":    3600,
			"expires_at":    expiresAt,
			"user":          map[string]string{"id": "user-1"},
		})
	})

	session, err := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", session.AccessToken)
	assert.Equal(t, "refresh-2", session.RefreshToken)
	assert.Equal(t, expiresAt, session.ExpiresAt.Unix())
	assert.Equal(t, "user-1", session.UserID())
}

// TestRefresh_ExpiresInFallback tests expiry computed from expires_in.
func TestRefresh_ExpiresInFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","expires_in":600}`))
	})

	before := time.Now()
	session, err := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(10*time.Minute), session.ExpiresAt, 5*time.Second)
}

// TestRefresh_Rejected tests that a revoked refresh token maps to ErrNoSession.
func TestRefresh_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh Token Not Found"}`))
	})

	_, err := client.Refresh(context.Background(), "gone")
	assert.ErrorIs(t, err, identity.ErrNoSession)
	assert.Contains(t, err.Error(), "Refresh Token Not Found")
}

// TestSignInWithPassword_InvalidCredentials tests rejected credentials.
func TestSignInWithPassword_InvalidCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.SignInWithPassword(context.Background(), "a@example.com", "wrong")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

// TestSignOut_AlreadyRevoked tests that a 401 on logout is not an error.
func TestSignOut_AlreadyRevoked(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
	})

	assert.NoError(t, client.SignOut(context.Background(), "token"))
}

// TestPing tests the health probe.
func TestPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, client.Ping(context.Background()))
}
