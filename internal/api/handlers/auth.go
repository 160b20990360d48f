package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/unifiedui/community-gateway/internal/api/dto"
	"github.com/unifiedui/community-gateway/internal/api/middleware"
	"github.com/unifiedui/community-gateway/internal/core/identity"
	domainerrors "github.com/unifiedui/community-gateway/internal/domain/errors"
	"github.com/unifiedui/community-gateway/internal/services/authgate"
	"github.com/unifiedui/community-gateway/internal/services/session"
)

// AuthHandler serves sign-in, sign-out and the current user.
type AuthHandler struct {
	sessions session.Service
	routes   authgate.RouteConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions session.Service, routes authgate.RouteConfig) *AuthHandler {
	return &AuthHandler{sessions: sessions, routes: routes}
}

// SignIn handles POST /auth/signin
// @Summary Sign in
// @Description Signs in with email and password and sets the session cookies. Form posts are answered with a redirect, JSON posts with the user.
// @Tags Auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body dto.SignInRequest true "Credentials"
// @Success 200 {object} dto.SignInResponse
// @Success 303 "Redirect after a form sign-in"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	isForm := c.ContentType() != binding.MIMEJSON

	var req dto.SignInRequest
	if err := c.ShouldBind(&req); err != nil {
		if isForm {
			h.backToSignIn(c, req.Redirect, "missing")
			return
		}
		middleware.HandleError(c, domainerrors.NewValidationError("email and password are required", err.Error()))
		return
	}

	signedIn, err := h.sessions.SignIn(c.Request.Context(), middleware.NewGinCookies(c), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		logger := middleware.GetRequestLogger(c)
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			logger.Warn().Err(err).Msg("sign-in failed")
		}
		if isForm {
			h.backToSignIn(c, req.Redirect, "invalid")
			return
		}
		if errors.Is(err, identity.ErrInvalidCredentials) {
			middleware.HandleError(c, domainerrors.NewUnauthorizedError("invalid email or password"))
			return
		}
		middleware.HandleError(c, domainerrors.NewServiceUnavailableError("identity provider", err))
		return
	}

	target := h.safeRedirect(req.Redirect)
	if isForm {
		c.Redirect(http.StatusSeeOther, target)
		return
	}
	c.JSON(http.StatusOK, dto.SignInResponse{
		User:     dto.NewUserResponse(signedIn),
		Redirect: target,
	})
}

// SignOut handles POST /auth/signout
// @Summary Sign out
// @Description Revokes the session and clears the session cookies
// @Tags Auth
// @Success 204
// @Success 303 "Redirect after a form sign-out"
// @Router /auth/signout [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context(), middleware.NewGinCookies(c)); err != nil {
		middleware.HandleError(c, err)
		return
	}

	if c.ContentType() == binding.MIMEJSON {
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Me handles GET /api/me
// @Summary Current user
// @Description Returns the signed-in user
// @Tags Auth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	s := middleware.GetSession(c)
	if s == nil || s.User == nil {
		middleware.HandleError(c, domainerrors.NewUnauthorizedError("sign in required"))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dto.NewUserResponse(s))
}

func (h *AuthHandler) backToSignIn(c *gin.Context, redirect, reason string) {
	q := url.Values{"error": {reason}}
	if target := h.safeRedirect(redirect); target != h.routes.AuthenticatedPath {
		q.Set("redirect", target)
	}
	c.Redirect(http.StatusSeeOther, h.routes.SignInPath+"?"+q.Encode())
}

// safeRedirect only allows same-site paths, so the sign-in form cannot be used
// as an open redirect. Auth pages and anything else fall back to the
// authenticated landing page.
func (h *AuthHandler) safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.ContainsAny(target, "\\\r\n") {
		return h.routes.AuthenticatedPath
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return h.routes.AuthenticatedPath
	}
	if h.routes.IsAuthPath(u.Path) {
		return h.routes.AuthenticatedPath
	}
	return u.RequestURI()
}
