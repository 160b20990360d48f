package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/community-gateway/internal/core/identity"
	domainerrors "github.com/unifiedui/community-gateway/internal/domain/errors"
	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/services/authgate"
)

const sessionKey = "session"

// GinCookies adapts a gin request/response pair to identity.Cookies.
type GinCookies struct {
	c *gin.Context
}

// NewGinCookies wraps c.
func NewGinCookies(c *gin.Context) *GinCookies {
	return &GinCookies{c: c}
}

// Get returns the value of the named request cookie.
func (g *GinCookies) Get(name string) (string, bool) {
	value, err := g.c.Cookie(name)
	if err != nil {
		return "", false
	}
	return value, true
}

// Set writes a cookie onto the response.
func (g *GinCookies) Set(cookie *http.Cookie) {
	http.SetCookie(g.c.Writer, cookie)
}

// SessionGateMiddleware applies gate decisions to gin requests.
type SessionGateMiddleware struct {
	gate *authgate.Gate
}

// NewSessionGateMiddleware creates a new SessionGateMiddleware.
func NewSessionGateMiddleware(gate *authgate.Gate) *SessionGateMiddleware {
	return &SessionGateMiddleware{gate: gate}
}

// Gate returns a gin middleware that proceeds or redirects every request.
func (m *SessionGateMiddleware) Gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := m.gate.Evaluate(c.Request.Context(), c.Request.URL.Path, NewGinCookies(c))

		switch decision.Action {
		case authgate.ActionRedirectSignIn, authgate.ActionRedirectAuthenticated:
			c.Header("Cache-Control", "no-store")
			c.Redirect(http.StatusTemporaryRedirect, decision.Location)
			c.Abort()
			return
		}

		if decision.Session != nil {
			SetSession(c, decision.Session)
		}
		c.Next()
	}
}

// RequireRole rejects requests whose session user lacks role.
// It must run behind Gate on a protected path.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := GetSession(c)
		if session == nil || session.User == nil {
			HandleError(c, domainerrors.NewUnauthorizedError("sign in required"))
			return
		}
		if session.User.Role != role {
			HandleError(c, domainerrors.NewForbiddenError("requires role "+role))
			return
		}
		c.Next()
	}
}

// SetSession stores the validated session on the request.
func SetSession(c *gin.Context, s *models.Session) {
	c.Set(sessionKey, s)
}

// GetSession returns the session the gate validated for this request, or nil.
func GetSession(c *gin.Context) *models.Session {
	if value, exists := c.Get(sessionKey); exists {
		if session, ok := value.(*models.Session); ok {
			return session
		}
	}
	return nil
}

// GetUserID returns the signed-in user's ID, or "".
func GetUserID(c *gin.Context) string {
	return GetSession(c).UserID()
}

var _ identity.Cookies = (*GinCookies)(nil)
