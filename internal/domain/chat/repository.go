package chat

import "context"

// Repository persists conversations and their messages. Conversation lookups are scoped
// to the owning user.
type Repository interface {
	CreateConversation(ctx context.Context, userID int64, title string) (Conversation, error)
	GetConversation(ctx context.Context, userID, id int64) (Conversation, bool, error)
	ListConversations(ctx context.Context, userID int64) ([]Conversation, error)
	DeleteConversation(ctx context.Context, userID, id int64) (bool, error)
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	// Messages returns the newest limit messages oldest first; limit <= 0 returns all.
	Messages(ctx context.Context, conversationID int64, limit int) ([]Message, error)
}
