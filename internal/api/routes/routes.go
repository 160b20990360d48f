// Package routes defines the HTTP routes of the community gateway.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/unifiedui/community-gateway/internal/api/handlers"
	"github.com/unifiedui/community-gateway/internal/api/middleware"
)

// AdminRole is the identity provider role allowed to use /api/admin.
const AdminRole = "admin"

// Config holds the dependencies for setting up routes.
type Config struct {
	HealthHandler *handlers.HealthHandler
	AuthHandler   *handlers.AuthHandler
	ChatHandler   *handlers.ChatHandler
	PostsHandler  *handlers.PostsHandler
	PagesHandler  *handlers.PagesHandler
	SessionGate   *middleware.SessionGateMiddleware

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// StaticDir is served under /static when set.
	StaticDir string
	// EnableDocs serves the swagger UI under /docs.
	EnableDocs bool
}

// Setup configures all routes on the Gin engine.
// The session gate runs for every request, including unmatched ones, so
// route classification and not route registration decides what is protected.
func Setup(r *gin.Engine, cfg *Config) {
	r.Use(cfg.SessionGate.Gate())

	r.GET("/health", cfg.HealthHandler.Health)
	r.GET("/ready", cfg.HealthHandler.Ready)
	r.GET("/live", cfg.HealthHandler.Live)

	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}

	auth := r.Group("/auth")
	{
		auth.GET("/signin", cfg.PagesHandler.Index)
		auth.POST("/signin", cfg.AuthHandler.SignIn)
		auth.GET("/signup", cfg.PagesHandler.Index)
		auth.POST("/signout", cfg.AuthHandler.SignOut)
	}

	public := r.Group("/api/public")
	{
		public.GET("/posts", cfg.PostsHandler.List)
		public.GET("/posts/search", cfg.PostsHandler.Search)
		public.GET("/posts/:slug", cfg.PostsHandler.Get)
	}

	api := r.Group("/api")
	{
		api.GET("/me", cfg.AuthHandler.Me)

		chat := api.Group("/v1/chat")
		{
			chat.POST("", cfg.ChatHandler.Predict)
			chat.POST("/stream", cfg.ChatHandler.Stream)
			chat.GET("/history", cfg.ChatHandler.History)
		}

		admin := api.Group("/admin", middleware.RequireRole(AdminRole))
		{
			admin.POST("/content/purge", cfg.PostsHandler.Purge)
		}
	}

	r.GET("/", cfg.PagesHandler.Index)
	r.NoRoute(cfg.PagesHandler.Fallback)
	r.NoMethod(middleware.MethodNotAllowed())
}

// SetupWithMiddleware sets up routes behind the common middleware chain.
func SetupWithMiddleware(r *gin.Engine, cfg *Config, loggingMw *middleware.LoggingMiddleware, errorMw *middleware.ErrorMiddleware, corsMw gin.HandlerFunc) {
	r.Use(loggingMw.RequestLogger())
	r.Use(loggingMw.Logger())
	r.Use(errorMw.Recovery())
	if corsMw != nil {
		r.Use(corsMw)
	}

	Setup(r, cfg)
}
