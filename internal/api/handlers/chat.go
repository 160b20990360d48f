package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/community-gateway/internal/api/dto"
	"github.com/unifiedui/community-gateway/internal/api/middleware"
	"github.com/unifiedui/community-gateway/internal/api/sse"
	domainerrors "github.com/unifiedui/community-gateway/internal/domain/errors"
	"github.com/unifiedui/community-gateway/internal/services/chat"
)

// DefaultKeepAlive is how often an idle stream gets a comment frame.
const DefaultKeepAlive = 15 * time.Second

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	chat      chat.Service
	keepAlive time.Duration
}

// NewChatHandler creates a new ChatHandler. A zero keepAlive takes the default.
func NewChatHandler(chatService chat.Service, keepAlive time.Duration) *ChatHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &ChatHandler{chat: chatService, keepAlive: keepAlive}
}

// Predict handles POST /api/v1/chat
// @Summary Ask a question
// @Description Sends a question to the assistant and returns the complete answer
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body dto.ChatRequest true "Question and history"
// @Success 200 {object} models.ChatResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/chat [post]
func (h *ChatHandler) Predict(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	resp, err := h.chat.Ask(c.Request.Context(), middleware.GetUserID(c), req.ToModel())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Stream handles POST /api/v1/chat/stream
// @Summary Stream an answer
// @Description Sends a question and streams the answer as Server-Sent Events (start, token, metadata, sourceDocuments, usedTools, error, end)
// @Tags Chat
// @Accept json
// @Produce text/event-stream
// @Param request body dto.ChatRequest true "Question and history"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/chat/stream [post]
func (h *ChatHandler) Stream(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, err := h.chat.Stream(ctx, middleware.GetUserID(c), req.ToModel())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		middleware.HandleError(c, domainerrors.NewInternalError("streaming not supported", err))
		return
	}
	c.Status(http.StatusOK)

	logger := middleware.GetRequestLogger(c)
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writer.Write(ev); err != nil {
				logger.Debug().Err(err).Msg("client stopped reading chat stream")
				return
			}
			if ev.Type.IsTerminal() {
				return
			}
		case <-ticker.C:
			if err := writer.WriteComment("keep-alive"); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// History handles GET /api/v1/chat/history
// @Summary Chat history
// @Description Returns the signed-in user's past exchanges, newest first
// @Tags Chat
// @Produce json
// @Param limit query int false "Maximum number of exchanges" default(20) minimum(1) maximum(100)
// @Param offset query int false "Offset for pagination" default(0) minimum(0)
// @Success 200 {object} dto.ChatHistoryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/chat/history [get]
func (h *ChatHandler) History(c *gin.Context) {
	var query dto.HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("invalid query parameters", err.Error()))
		return
	}

	exchanges, err := h.chat.History(c.Request.Context(), middleware.GetUserID(c), query.Limit, query.Offset)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ChatHistoryResponse{
		Exchanges: exchanges,
		Limit:     query.Limit,
		Offset:    query.Offset,
	})
}
