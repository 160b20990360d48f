package authgate

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unifiedui/community-gateway/internal/core/identity"
	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/observability"
)

// Action is what the caller must do with the request.
type Action int

const (
	// ActionProceed lets the request through.
	ActionProceed Action = iota
	// ActionRedirectSignIn sends the visitor to the sign-in page.
	ActionRedirectSignIn
	// ActionRedirectAuthenticated sends a signed-in visitor away from an auth page.
	ActionRedirectAuthenticated
)

// String returns the metric/log label of the action.
func (a Action) String() string {
	switch a {
	case ActionRedirectSignIn:
		return "redirect_signin"
	case ActionRedirectAuthenticated:
		return "redirect_authenticated"
	default:
		return "proceed"
	}
}

// Decision is the outcome of evaluating one request.
type Decision struct {
	Action Action
	// Location is set for redirects.
	Location string
	// Session is the validated (possibly refreshed) session, if one was looked up.
	Session   *models.Session
	Class     RouteClass
	Refreshed bool
}

// SessionSource is the session lookup used by the gate.
type SessionSource interface {
	// Current returns the session carried by cookies.
	Current(ctx context.Context, cookies identity.Cookies) (*models.Session, error)

	// Refresh renews current and writes the new session onto cookies.
	Refresh(ctx context.Context, cookies identity.Cookies, current *models.Session) (*models.Session, error)

	// Clear removes the session cookies.
	Clear(cookies identity.Cookies)
}

// Gate evaluates requests against a RouteConfig.
// It holds no per-request state and is safe for concurrent use.
type Gate struct {
	routes   RouteConfig
	sessions SessionSource
	metrics  *observability.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithMetrics records decisions and refreshes.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithLogger replaces the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a gate. Zero threshold and timeout values take their defaults.
func NewGate(routes RouteConfig, sessions SessionSource, opts ...Option) (*Gate, error) {
	if sessions == nil {
		return nil, errors.New("session source is required")
	}
	if routes.LookupTimeout == 0 {
		routes.LookupTimeout = DefaultLookupTimeout
	}
	if err := routes.Validate(); err != nil {
		return nil, err
	}

	g := &Gate{
		routes:   routes,
		sessions: sessions,
		logger:   log.Logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Routes returns the gate's route policy.
func (g *Gate) Routes() RouteConfig {
	return g.routes
}

// Evaluate decides what to do with a request for path.
// It never fails: every error resolves to proceed or redirect.
func (g *Gate) Evaluate(ctx context.Context, path string, cookies identity.Cookies) Decision {
	class := g.routes.Classify(path)
	label := class.String()

	var d Decision
	switch {
	case class == RouteProtected:
		d = g.protected(ctx, path, cookies)
	case g.routes.IsAuthPath(path):
		label = "auth"
		d = g.authPage(ctx, path, cookies)
	default:
		d = Decision{Action: ActionProceed, Class: RoutePublic}
	}

	g.metrics.RecordGateDecision(label, d.Action.String())
	return d
}

// protected fails closed: anything but a fresh or refreshed session redirects to sign-in.
func (g *Gate) protected(ctx context.Context, path string, cookies identity.Cookies) Decision {
	session, err := g.current(ctx, cookies)
	if err != nil || session == nil {
		g.logLookupFailure(err, path, "session lookup failed")
		return g.signIn(path)
	}

	if session.ExpiresIn(g.now()) > g.routes.RefreshThreshold {
		return Decision{Action: ActionProceed, Class: RouteProtected, Session: session}
	}

	refreshed, err := g.refresh(ctx, cookies, session)
	if err != nil || refreshed == nil {
		g.metrics.RecordRefresh(false)
		g.logLookupFailure(err, path, "session refresh failed")
		g.sessions.Clear(cookies)
		return g.signIn(path)
	}

	g.metrics.RecordRefresh(true)
	return Decision{Action: ActionProceed, Class: RouteProtected, Session: refreshed, Refreshed: true}
}

// authPage fails open: only a valid, unexpired session redirects away.
func (g *Gate) authPage(ctx context.Context, path string, cookies identity.Cookies) Decision {
	session, err := g.current(ctx, cookies)
	if err != nil || session == nil {
		g.logLookupFailure(err, path, "session lookup failed on auth page")
		return Decision{Action: ActionProceed, Class: RoutePublic}
	}
	if session.IsExpired(g.now()) {
		return Decision{Action: ActionProceed, Class: RoutePublic}
	}
	return Decision{
		Action:   ActionRedirectAuthenticated,
		Location: g.routes.AuthenticatedPath,
		Class:    RoutePublic,
		Session:  session,
	}
}

func (g *Gate) current(ctx context.Context, cookies identity.Cookies) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, g.routes.LookupTimeout)
	defer cancel()
	return g.sessions.Current(ctx, cookies)
}

func (g *Gate) refresh(ctx context.Context, cookies identity.Cookies, session *models.Session) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, g.routes.LookupTimeout)
	defer cancel()
	return g.sessions.Refresh(ctx, cookies, session)
}

func (g *Gate) signIn(path string) Decision {
	q := url.Values{"redirect": {cleanPath(path)}}
	return Decision{
		Action:   ActionRedirectSignIn,
		Location: g.routes.SignInPath + "?" + q.Encode(),
		Class:    RouteProtected,
	}
}

// logLookupFailure keeps the ordinary signed-out case out of warn logs.
func (g *Gate) logLookupFailure(err error, path, msg string) {
	if err == nil || errors.Is(err, identity.ErrNoSession) {
		g.logger.Debug().Err(err).Str("path", path).Msg(msg)
		return
	}
	g.logger.Warn().Err(err).Str("path", path).Msg(msg)
}
