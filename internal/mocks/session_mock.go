package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/community-gateway/internal/core/identity"
	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/services/session"
)

// MockSessionService is a mock implementation of session.Service.
type MockSessionService struct {
	mock.Mock
}

// Current reads the session from cookies.
func (m *MockSessionService) Current(ctx context.Context, cookies identity.Cookies) (*models.Session, error) {
	args := m.Called(ctx, cookies)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

// Refresh refreshes the session.
func (m *MockSessionService) Refresh(ctx context.Context, cookies identity.Cookies, current *models.Session) (*models.Session, error) {
	args := m.Called(ctx, cookies, current)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

// SignIn signs in with credentials.
func (m *MockSessionService) SignIn(ctx context.Context, cookies identity.Cookies, email, password string) (*models.Session, error) {
	args := m.Called(ctx, cookies, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

// SignOut signs out.
func (m *MockSessionService) SignOut(ctx context.Context, cookies identity.Cookies) error {
	args := m.Called(ctx, cookies)
	return args.Error(0)
}

// Clear removes the session cookies.
func (m *MockSessionService) Clear(cookies identity.Cookies) {
	m.Called(cookies)
}

var _ session.Service = (*MockSessionService)(nil)
