package chat

import (
	"time"

	"github.com/yanqian/eldertech-assistant/pkg/metrics"
)

// Config tunes the assistant conversation.
type Config struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	// HistoryMessages bounds how many earlier messages are replayed to the model.
	HistoryMessages int
	// MaxHistoryTokens additionally trims replayed history; zero disables the bound.
	MaxHistoryTokens int
	TitleLength      int
}

// Message types accepted from clients.
const (
	MessageTypeText  = "text"
	MessageTypeVoice = "voice"
	MessageTypeImage = "image"
)

// Message is one turn of a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Content        string    `json:"content"`
	MessageType    string    `json:"messageType"`
	IsUser         bool      `json:"isUser"`
	CreatedAt      time.Time `json:"timestamp"`
}

// Conversation summarizes a thread owned by one user.
type Conversation struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"-"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	MessageCount  int       `json:"messageCount"`
}

// SendRequest is a user message. A zero ConversationID starts a new conversation.
type SendRequest struct {
	ConversationID int64          `json:"conversationId"`
	Content        string         `json:"content"`
	MessageType    string         `json:"messageType"`
	Context        map[string]any `json:"context,omitempty"`
}

// SendResponse carries the stored user message and the assistant reply.
type SendResponse struct {
	ConversationID int64   `json:"conversationId"`
	UserMessage    Message `json:"userMessage"`
	Reply          Message `json:"reply"`
	// Fallback is set when the reply is the apology sent because the model was unavailable.
	Fallback   bool                `json:"fallback,omitempty"`
	TokenUsage *metrics.TokenUsage `json:"tokenUsage,omitempty"`
}

// StreamChunk is one server-sent update of a streamed reply.
type StreamChunk struct {
	ConversationID int64  `json:"conversationId"`
	Delta          string `json:"delta,omitempty"`
	Completed      bool   `json:"completed"`
	MessageID      int64  `json:"messageId,omitempty"`
	Fallback       bool   `json:"fallback,omitempty"`
}

// Export is a plain-text rendering of a conversation.
type Export struct {
	ConversationID int64  `json:"conversationId"`
	Filename       string `json:"filename"`
	ContentType    string `json:"contentType"`
	Content        string `json:"content"`
}
