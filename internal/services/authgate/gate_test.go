package authgate_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/community-gateway/internal/core/identity"
	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/mocks"
	"github.com/unifiedui/community-gateway/internal/observability"
	"github.com/unifiedui/community-gateway/internal/services/authgate"
	"github.com/unifiedui/community-gateway/internal/testutils"
)

var gateNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func newGate(t *testing.T, sessions *mocks.MockSessionService, opts ...authgate.Option) *authgate.Gate {
	t.Helper()
	opts = append([]authgate.Option{authgate.WithClock(func() time.Time { return gateNow })}, opts...)
	gate, err := authgate.NewGate(testRoutes(), sessions, opts...)
	require.NoError(t, err)
	return gate
}

func sessionExpiringIn(d time.Duration) *models.Session {
	return &models.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    gateNow.Add(d),
		User:         testutils.NewTestUser(),
	}
}

func TestNewGate_Validation(t *testing.T) {
	_, err := authgate.NewGate(testRoutes(), nil)
	assert.ErrorContains(t, err, "session source is required")

	routes := testRoutes()
	routes.SignInPath = "/private/login"
	_, err = authgate.NewGate(routes, &mocks.MockSessionService{})
	assert.ErrorContains(t, err, "must be public")
}

// TestEvaluate_PublicPathSkipsLookup tests that public paths never consult the session source,
// even while the identity provider is down.
func TestEvaluate_PublicPathSkipsLookup(t *testing.T) {
	sessions := &mocks.MockSessionService{}
	sessions.On("Current", mock.Anything, mock.Anything).Return(nil, errors.New("identity provider unreachable"))
	gate := newGate(t, sessions)

	for _, path := range []string{"/", "/health", "/static/app.css", "/api/public/posts", "/auth/signout"} {
		d := gate.Evaluate(context.Background(), path, testutils.NewCookieJar(nil))
		assert.Equal(t, authgate.ActionProceed, d.Action, path)
		assert.Empty(t, d.Location, path)
		assert.Equal(t, authgate.RoutePublic, d.Class, path)
	}
	sessions.AssertNotCalled(t, "Current", mock.Anything, mock.Anything)
}

// TestEvaluate_ProtectedFailsClosed tests redirects to sign-in for every lookup failure.
func TestEvaluate_ProtectedFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"provider error", errors.New("connection refused")},
		{"no session", identity.ErrNoSession},
		{"nil session without error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &mocks.MockSessionService{}
			sessions.On("Current", mock.Anything, mock.Anything).Return(nil, tt.err)
			gate := newGate(t, sessions)

			d := gate.Evaluate(context.Background(), "/api/v1/chat", testutils.NewCookieJar(nil))
			assert.Equal(t, authgate.ActionRedirectSignIn, d.Action)
			assert.Equal(t, "/auth/signin?redirect=%2Fapi%2Fv1%2Fchat", d.Location)
			assert.Nil(t, d.Session)
			sessions.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// TestEvaluate_FreshSessionProceeds tests that a session outside the threshold passes untouched.
func TestEvaluate_FreshSessionProceeds(t *testing.T) {
	sessions := &mocks.MockSessionService{}
	current := sessionExpiringIn(time.Hour)
	sessions.On("Current", mock.Anything, mock.Anything).Return(current, nil)
	gate := newGate(t, sessions)

	d := gate.Evaluate(context.Background(), "/dashboard", testutils.NewCookieJar(nil))
	assert.Equal(t, authgate.ActionProceed, d.Action)
	assert.Same(t, current, d.Session)
	assert.False(t, d.Refreshed)
	sessions.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything, mock.Anything)
}

// TestEvaluate_RefreshThresholdBoundary tests that a session expiring exactly at the
// threshold is refreshed and one expiring a second later is not.
func TestEvaluate_RefreshThresholdBoundary(t *testing.T) {
	threshold := testRoutes().RefreshThreshold

	t.Run("at threshold", func(t *testing.T) {
		sessions := &mocks.MockSessionService{}
		current := sessionExpiringIn(threshold)
		sessions.On("Current", mock.Anything, mock.Anything).Return(current, nil)
		sessions.On("Refresh", mock.Anything, mock.Anything, current).Return(sessionExpiringIn(time.Hour), nil).Once()
		gate := newGate(t, sessions)

		d := gate.Evaluate(context.Background(), "/dashboard", testutils.NewCookieJar(nil))
		assert.Equal(t, authgate.ActionProceed, d.Action)
		assert.True(t, d.Refreshed)
		sessions.AssertExpectations(t)
	})

	t.Run("one second beyond threshold", func(t *testing.T) {
		sessions := &mocks.MockSessionService{}
		sessions.On("Current", mock.Anything, mock.Anything).Return(sessionExpiringIn(threshold+time.Second), nil)
		gate := newGate(t, sessions)

		d := gate.Evaluate(context.Background(), "/dashboard", testutils.NewCookieJar(nil))
		assert.Equal(t, authgate.ActionProceed, d.Action)
		assert.False(t, d.Refreshed)
		sessions.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything, mock.Anything)
	})
}

// TestEvaluate_ExpiredSessionRefreshes tests that an already expired session is refreshed.
func TestEvaluate_ExpiredSessionRefreshes(t *testing.T) {
	sessions := &mocks.MockSessionService{}
	current := sessionExpiringIn(-time.Minute)
	refreshed := sessionExpiringIn(time.Hour)
	refreshed.AccessToken = "access-2"
	sessions.On("Current", mock.Anything, mock.Anything).Return(current, nil)
	sessions.On("Refresh", mock.Anything, mock.Anything, current).Return(refreshed, nil)
	gate := newGate(t, sessions)

	d := gate.Evaluate(context.Background(), "/dashboard", testutils.NewCookieJar(nil))
	assert.Equal(t, authgate.ActionProceed, d.Action)
	assert.True(t, d.Refreshed)
	assert.Equal(t, "access-2", d.Session.AccessToken)
}

// TestEvaluate_RefreshFailureRedirects tests that a failed refresh clears cookies and redirects.
func TestEvaluate_RefreshFailureRedirects(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"refresh rejected", identity.ErrNoSession},
		{"provider error", errors.New("timeout")},
		{"no session returned", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &mocks.MockSessionService{}
			jar := testutils.NewCookieJar(nil)
			sessions.On("Current", mock.Anything, jar).Return(sessionExpiringIn(time.Minute), nil)
			sessions.On("Refresh", mock.Anything, jar, mock.Anything).Return(nil, tt.err)
			sessions.On("Clear", jar).Once()
			gate := newGate(t, sessions)

			d := gate.Evaluate(context.Background(), "/settings/profile", jar)
			assert.Equal(t, authgate.ActionRedirectSignIn, d.Action)
			assert.Equal(t, "/auth/signin?redirect=%2Fsettings%2Fprofile", d.Location)
			sessions.AssertExpectations(t)
		})
	}
}

// TestEvaluate_LookupTimeout tests that a stalled identity provider is treated as a lookup error.
func TestEvaluate_LookupTimeout(t *testing.T) {
	routes := testRoutes()
	routes.LookupTimeout = 20 * time.Millisecond

	sessions := &mocks.MockSessionService{}
	sessions.On("Current", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	gate, err := authgate.NewGate(routes, sessions)
	require.NoError(t, err)

	start := time.Now()
	d := gate.Evaluate(context.Background(), "/dashboard", testutils.NewCookieJar(nil))
	assert.Equal(t, authgate.ActionRedirectSignIn, d.Action)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// TestEvaluate_AuthPage tests the path-specific redirect for signed-in visitors.
func TestEvaluate_AuthPage(t *testing.T) {
	t.Run("valid session redirects away", func(t *testing.T) {
		sessions := &mocks.MockSessionService{}
		sessions.On("Current", mock.Anything, mock.Anything).Return(sessionExpiringIn(time.Hour), nil)
		gate := newGate(t, sessions)

		d := gate.Evaluate(context.Background(), "/auth/signin", testutils.NewCookieJar(nil))
		assert.Equal(t, authgate.ActionRedirectAuthenticated, d.Action)
		assert.Equal(t, "/dashboard", d.Location)
	})

	t.Run("trailing slash still redirects away", func(t *testing.T) {
		sessions := &mocks.MockSessionService{}
		sessions.On("Current", mock.Anything, mock.Anything).Return(sessionExpiringIn(time.Hour), nil)
		gate := newGate(t, sessions)

		d := gate.Evaluate(context.Background(), "/auth/signin/", testutils.NewCookieJar(nil))
		assert.Equal(t, authgate.ActionRedirectAuthenticated, d.Action)
		assert.Equal(t, "/dashboard", d.Location)
	})

	t.Run("lookup error fails open", func(t *testing.T) {
		sessions := &mocks.MockSessionService{}
		sessions.On("Current", mock.Anything, mock.Anything).Return(nil, errors.New("identity provider unreachable"))
		gate := newGate(t, sessions)

		d := gate.Evaluate(context.Background(), "/auth/signup", testutils.NewCookieJar(nil))
		assert.Equal(t, authgate.ActionProceed, d.Action)
	})

	t.Run("expired session shows the form", func(t *testing.T) {
		sessions := &mocks.MockSessionService{}
		sessions.On("Current", mock.Anything, mock.Anything).Return(sessionExpiringIn(-time.Second), nil)
		gate := newGate(t, sessions)

		d := gate.Evaluate(context.Background(), "/auth/signin", testutils.NewCookieJar(nil))
		assert.Equal(t, authgate.ActionProceed, d.Action)
		sessions.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("other auth routes are not redirected", func(t *testing.T) {
		sessions := &mocks.MockSessionService{}
		gate := newGate(t, sessions)

		d := gate.Evaluate(context.Background(), "/auth/signout", testutils.NewCookieJar(nil))
		assert.Equal(t, authgate.ActionProceed, d.Action)
		sessions.AssertNotCalled(t, "Current", mock.Anything, mock.Anything)
	})
}

// TestEvaluate_NoSessionIsNotWarned tests that signed-out visitors are logged at debug only.
func TestEvaluate_NoSessionIsNotWarned(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	sessions := &mocks.MockSessionService{}
	sessions.On("Current", mock.Anything, mock.Anything).Return(nil, identity.ErrNoSession).Once()
	gate := newGate(t, sessions, authgate.WithLogger(logger))

	gate.Evaluate(context.Background(), "/dashboard", testutils.NewCookieJar(nil))
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.NotContains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	sessions.On("Current", mock.Anything, mock.Anything).Return(nil, errors.New("500 from provider")).Once()
	gate.Evaluate(context.Background(), "/dashboard", testutils.NewCookieJar(nil))
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestEvaluate_RecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	sessions := &mocks.MockSessionService{}
	current := sessionExpiringIn(time.Minute)
	sessions.On("Current", mock.Anything, mock.Anything).Return(current, nil)
	sessions.On("Refresh", mock.Anything, mock.Anything, current).Return(sessionExpiringIn(time.Hour), nil)
	gate := newGate(t, sessions, authgate.WithMetrics(metrics))

	gate.Evaluate(context.Background(), "/dashboard", testutils.NewCookieJar(nil))
	gate.Evaluate(context.Background(), "/health", testutils.NewCookieJar(nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GateDecisionsTotal.WithLabelValues("protected", "proceed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GateDecisionsTotal.WithLabelValues("public", "proceed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionRefreshesTotal.WithLabelValues("success")))
}
