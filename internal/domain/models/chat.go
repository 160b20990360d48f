package models

import "time"

// ChatRole is the author of a chat history entry.
type ChatRole string

const (
	// ChatRoleUser is a message written by the user.
	ChatRoleUser ChatRole = "userMessage"
	// ChatRoleAssistant is a message produced by the AI backend.
	ChatRoleAssistant ChatRole = "apiMessage"
)

// ChatHistoryEntry is one turn of prior conversation sent along with a question.
type ChatHistoryEntry struct {
	Role    ChatRole `json:"role" bson:"role"`
	Content string   `json:"content" bson:"content"`
}

// ChatRequest is the wire shape of a question sent to the conversational backend.
type ChatRequest struct {
	Question       string                 `json:"question"`
	History        []ChatHistoryEntry     `json:"history,omitempty"`
	OverrideConfig map[string]interface{} `json:"overrideConfig,omitempty"`
	SessionID      string                 `json:"sessionId,omitempty"`
	Streaming      bool                   `json:"streaming,omitempty"`
}

// SourceDocument is a retrieval result the backend cites for its answer.
type SourceDocument struct {
	PageContent string                 `json:"pageContent" bson:"pageContent"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// UsedTool describes a tool call the backend made while answering.
type UsedTool struct {
	Tool       string      `json:"tool" bson:"tool"`
	ToolInput  interface{} `json:"toolInput,omitempty" bson:"toolInput,omitempty"`
	ToolOutput string      `json:"toolOutput,omitempty" bson:"toolOutput,omitempty"`
}

// ChatResponse is the non-streaming answer from the conversational backend.
type ChatResponse struct {
	Text            string                 `json:"text"`
	ChatID          string                 `json:"chatId,omitempty"`
	SourceDocuments []SourceDocument       `json:"sourceDocuments,omitempty"`
	UsedTools       []UsedTool             `json:"usedTools,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// ExchangeStatus is the terminal outcome of a chat exchange.
type ExchangeStatus string

const (
	// ExchangeStatusCompleted means the backend finished the answer.
	ExchangeStatusCompleted ExchangeStatus = "completed"
	// ExchangeStatusFailed means the exchange ended with an error.
	ExchangeStatusFailed ExchangeStatus = "failed"
	// ExchangeStatusCancelled means the client went away mid-stream.
	ExchangeStatusCancelled ExchangeStatus = "cancelled"
)

// ChatExchange is a persisted question/answer pair.
type ChatExchange struct {
	ID              string           `json:"id" bson:"_id"`
	UserID          string           `json:"userId" bson:"userId"`
	Question        string           `json:"question" bson:"question"`
	Answer          string           `json:"answer" bson:"answer"`
	Status          ExchangeStatus   `json:"status" bson:"status"`
	Error           string           `json:"error,omitempty" bson:"error,omitempty"`
	SourceDocuments []SourceDocument `json:"sourceDocuments,omitempty" bson:"sourceDocuments,omitempty"`
	Backend         string           `json:"backend" bson:"backend"`
	LatencyMs       int64            `json:"latencyMs" bson:"latencyMs"`
	CreatedAt       time.Time        `json:"createdAt" bson:"createdAt"`
}

// NewChatExchange creates an exchange record stamped with the current time.
func NewChatExchange(id, userID, question, backend string) *ChatExchange {
	return &ChatExchange{
		ID:        id,
		UserID:    userID,
		Question:  question,
		Backend:   backend,
		CreatedAt: time.Now().UTC(),
	}
}
