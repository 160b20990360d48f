// Package identity defines the identity provider interface consumed by the gateway.
package identity

import (
	"context"
	"errors"
	"net/http"

	"github.com/unifiedui/community-gateway/internal/domain/models"
)

// ErrNoSession is returned when the request carries no usable session.
// It is the normal unauthenticated-visitor case, not an operational failure.
var ErrNoSession = errors.New("no active session")

// ErrInvalidCredentials is returned when a password sign-in is rejected.
var ErrInvalidCredentials = errors.New("invalid login credentials")

// Type represents the type of identity provider.
type Type string

const (
	// TypeGoTrue represents a GoTrue-compatible auth API.
	TypeGoTrue Type = "gotrue"
)

// Provider is the external identity service. The gateway never issues tokens itself.
type Provider interface {
	// GetUser resolves the user that owns accessToken.
	// Returns ErrNoSession if the token is rejected.
	GetUser(ctx context.Context, accessToken string) (*models.User, error)

	// Refresh exchanges a refresh token for a new session.
	// Returns ErrNoSession if the refresh token is rejected.
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)

	// SignInWithPassword creates a session from email/password credentials.
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)

	// SignOut revokes the session that owns accessToken.
	SignOut(ctx context.Context, accessToken string) error

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// Cookies is the cookie read/write hook pair supplied by a request/response.
type Cookies interface {
	// Get returns the value of the named request cookie.
	Get(name string) (string, bool)

	// Set writes a cookie onto the outgoing response.
	Set(cookie *http.Cookie)
}
