package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/community-gateway/internal/api/middleware"
)

// fallbackIndex is served when no built frontend is present.
const fallbackIndex = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Community</title></head>
<body><div id="root"></div><noscript>This site needs JavaScript.</noscript></body>
</html>
`

// PagesHandler serves the single-page frontend.
type PagesHandler struct {
	indexPath string
}

// NewPagesHandler creates a handler serving index.html from staticDir.
func NewPagesHandler(staticDir string) *PagesHandler {
	h := &PagesHandler{}
	if staticDir != "" {
		index := filepath.Join(staticDir, "index.html")
		if info, err := os.Stat(index); err == nil && !info.IsDir() {
			h.indexPath = index
		}
	}
	return h
}

// Index serves the frontend shell. Routing happens client side.
func (h *PagesHandler) Index(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	if h.indexPath != "" {
		c.File(h.indexPath)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fallbackIndex))
}

// Fallback serves the frontend for unmatched page requests and a JSON 404 for
// anything else.
func (h *PagesHandler) Fallback(c *gin.Context) {
	path := c.Request.URL.Path
	if c.Request.Method == http.MethodGet && !strings.HasPrefix(path, "/api/") && acceptsHTML(c) {
		h.Index(c)
		return
	}
	middleware.NotFound()(c)
}

func acceptsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}
