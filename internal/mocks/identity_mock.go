package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/community-gateway/internal/core/identity"
	"github.com/unifiedui/community-gateway/internal/domain/models"
)

// MockIdentityProvider is a mock implementation of identity.Provider.
type MockIdentityProvider struct {
	mock.Mock
}

// GetUser resolves the user that owns accessToken.
func (m *MockIdentityProvider) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// Refresh exchanges a refresh token for a new session.
func (m *MockIdentityProvider) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

// SignInWithPassword creates a session from credentials.
func (m *MockIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

// SignOut revokes the session that owns accessToken.
func (m *MockIdentityProvider) SignOut(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

// Ping checks if the provider is reachable.
func (m *MockIdentityProvider) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ identity.Provider = (*MockIdentityProvider)(nil)
