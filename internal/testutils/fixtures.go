package testutils

import (
	"time"

	"github.com/unifiedui/community-gateway/internal/domain/models"
)

// Test constants
const (
	TestUserID       = "user-test-def"
	TestUserEmail    = "reader@example.com"
	TestAccessToken  = "access-test-123"
	TestRefreshToken = "refresh-test-456"
	TestPostSlug     = "hello-world"
)

// NewTestUser creates a test user.
func NewTestUser() *models.User {
	return &models.User{
		ID:    TestUserID,
		Email: TestUserEmail,
		Role:  "authenticated",
	}
}

// NewTestSession creates a session that expires after ttl.
func NewTestSession(ttl time.Duration) *models.Session {
	return &models.Session{
		AccessToken:  TestAccessToken,
		RefreshToken: TestRefreshToken,
		ExpiresAt:    time.Now().Add(ttl).UTC().Truncate(time.Second),
		User:         NewTestUser(),
	}
}

// NewTestPost creates a published test post.
func NewTestPost() *models.Post {
	return &models.Post{
		ID:          "post-test-1",
		Title:       "Hello World",
		Slug:        TestPostSlug,
		Excerpt:     "A first post",
		Body:        "Welcome to the community blog.",
		Tags:        []string{"news"},
		Author:      models.Author{Name: "Editor"},
		Published:   true,
		PublishedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ReadingTime: 1,
	}
}
