package chat

import (
	"fmt"

	"github.com/unifiedui/community-gateway/internal/services/chat/flowise"
	"github.com/unifiedui/community-gateway/internal/services/chat/openai"
)

// NewBackend creates the backend selected by config.
func NewBackend(config *BackendConfig) (Backend, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	switch config.Type {
	case BackendTypeFlowise:
		return flowise.NewClient(&flowise.Config{
			BaseURL:    config.BaseURL,
			ChatflowID: config.ChatflowID,
			APIKey:     config.APIKey,
			Timeout:    config.Timeout,
		})
	case BackendTypeOpenAI:
		return openai.NewClient(&openai.Config{
			BaseURL:      config.BaseURL,
			APIKey:       config.APIKey,
			Model:        config.Model,
			SystemPrompt: config.SystemPrompt,
			Timeout:      config.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported chat backend type: %s", config.Type)
	}
}
