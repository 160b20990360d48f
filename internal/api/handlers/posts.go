package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/community-gateway/internal/api/dto"
	"github.com/unifiedui/community-gateway/internal/api/middleware"
	domainerrors "github.com/unifiedui/community-gateway/internal/domain/errors"
	"github.com/unifiedui/community-gateway/internal/services/content"
)

// PostsHandler serves published blog content.
type PostsHandler struct {
	content content.Service
}

// NewPostsHandler creates a new PostsHandler.
func NewPostsHandler(contentService content.Service) *PostsHandler {
	return &PostsHandler{content: contentService}
}

// List handles GET /api/public/posts
// @Summary List posts
// @Description Returns published posts, newest first
// @Tags Posts
// @Produce json
// @Param tag query string false "Only posts with this tag"
// @Param limit query int false "Page size" default(10) minimum(1) maximum(50)
// @Param offset query int false "Offset for pagination" default(0) minimum(0)
// @Success 200 {object} dto.PostListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/public/posts [get]
func (h *PostsHandler) List(c *gin.Context) {
	var query dto.ListPostsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("invalid query parameters", err.Error()))
		return
	}
	if query.Limit == 0 {
		query.Limit = content.DefaultPageSize
	}

	posts, err := h.content.ListPublished(c.Request.Context(), content.ListOptions{
		Tag:    query.Tag,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, dto.PostListResponse{
		Posts:  posts,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
}

// Search handles GET /api/public/posts/search
// @Summary Search posts
// @Description Full-text search over published posts
// @Tags Posts
// @Produce json
// @Param q query string true "Search query"
// @Param limit query int false "Maximum results" default(10) minimum(1) maximum(50)
// @Success 200 {object} dto.SearchResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/public/posts/search [get]
func (h *PostsHandler) Search(c *gin.Context) {
	var query dto.SearchPostsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("invalid query parameters", err.Error()))
		return
	}

	results, err := h.content.Search(c.Request.Context(), query.Query, query.Limit)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SearchResponse{
		Query:   query.Query,
		Results: results,
	})
}

// Get handles GET /api/public/posts/{slug}
// @Summary Get a post
// @Description Returns a published post by slug
// @Tags Posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} models.Post
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/public/posts/{slug} [get]
func (h *PostsHandler) Get(c *gin.Context) {
	post, err := h.content.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, post)
}

// Purge handles POST /api/admin/content/purge
// @Summary Purge content cache
// @Description Drops every cached post and listing
// @Tags Admin
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/admin/content/purge [post]
func (h *PostsHandler) Purge(c *gin.Context) {
	if err := h.content.Purge(c.Request.Context()); err != nil {
		middleware.HandleError(c, err)
		return
	}

	logger := middleware.GetRequestLogger(c)
	logger.Info().Str("user_id", middleware.GetUserID(c)).Msg("content cache purged by admin")
	c.Status(http.StatusNoContent)
}
