package dto

import (
	"time"

	"github.com/unifiedui/community-gateway/internal/domain/models"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// UserResponse is the signed-in user as exposed to the browser.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewUserResponse builds a UserResponse from a validated session.
func NewUserResponse(s *models.Session) *UserResponse {
	resp := &UserResponse{ExpiresAt: s.ExpiresAt}
	if s.User != nil {
		resp.ID = s.User.ID
		resp.Email = s.User.Email
		resp.Role = s.User.Role
	}
	return resp
}

// SignInResponse is returned by a JSON sign-in.
type SignInResponse struct {
	User     *UserResponse `json:"user"`
	Redirect string        `json:"redirect"`
}

// PostListResponse is a page of post summaries.
type PostListResponse struct {
	Posts  []models.PostSummary `json:"posts"`
	Limit  int64                `json:"limit"`
	Offset int64                `json:"offset"`
}

// SearchResponse holds post search results.
type SearchResponse struct {
	Query   string               `json:"query"`
	Results []models.PostSummary `json:"results"`
}

// ChatHistoryResponse is a page of the user's past exchanges.
type ChatHistoryResponse struct {
	Exchanges []*models.ChatExchange `json:"exchanges"`
	Limit     int64                  `json:"limit"`
	Offset    int64                  `json:"offset"`
}
