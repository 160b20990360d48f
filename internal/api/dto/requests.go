// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/unifiedui/community-gateway/internal/domain/models"

// SignInRequest is the body of POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
	// Redirect is where the browser goes after signing in. Only same-site paths are honoured.
	Redirect string `json:"redirect" form:"redirect"`
}

// ChatRequest is the body of the chat endpoints.
type ChatRequest struct {
	Question string                    `json:"question" binding:"required"`
	History  []models.ChatHistoryEntry `json:"history,omitempty"`
	ChatID   string                    `json:"chatId,omitempty"`
}

// ToModel converts the request to the backend request shape.
func (r *ChatRequest) ToModel() *models.ChatRequest {
	return &models.ChatRequest{
		Question:  r.Question,
		History:   r.History,
		SessionID: r.ChatID,
	}
}

// ListPostsQuery holds the query parameters of the post listing.
type ListPostsQuery struct {
	Tag    string `form:"tag"`
	Limit  int64  `form:"limit" binding:"omitempty,min=1,max=50"`
	Offset int64  `form:"offset" binding:"omitempty,min=0"`
}

// SearchPostsQuery holds the query parameters of the post search.
type SearchPostsQuery struct {
	Query string `form:"q"`
	Limit int64  `form:"limit" binding:"omitempty,min=1,max=50"`
}

// HistoryQuery holds the query parameters of the chat history.
type HistoryQuery struct {
	Limit  int64 `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int64 `form:"offset" binding:"omitempty,min=0"`
}
