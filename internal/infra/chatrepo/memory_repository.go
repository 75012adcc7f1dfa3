package chatrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yanqian/eldertech-assistant/internal/domain/chat"
)

// MemoryRepository keeps conversations in process memory for tests and local runs.
type MemoryRepository struct {
	mu            sync.RWMutex
	conversations map[int64]chat.Conversation
	messages      map[int64][]chat.Message
	convSeq       int64
	msgSeq        int64
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		conversations: make(map[int64]chat.Conversation),
		messages:      make(map[int64][]chat.Message),
	}
}

// CreateConversation starts a conversation for userID.
func (r *MemoryRepository) CreateConversation(_ context.Context, userID int64, title string) (chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convSeq++
	now := time.Now().UTC()
	conv := chat.Conversation{
		ID:            r.convSeq,
		UserID:        userID,
		Title:         title,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	r.conversations[conv.ID] = conv
	return conv, nil
}

// GetConversation returns the conversation when userID owns it.
func (r *MemoryRepository) GetConversation(_ context.Context, userID, id int64) (chat.Conversation, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.conversations[id]
	if !ok || conv.UserID != userID {
		return chat.Conversation{}, false, nil
	}
	return r.decorate(conv), true, nil
}

// ListConversations returns userID's conversations, most recently active first.
func (r *MemoryRepository) ListConversations(_ context.Context, userID int64) ([]chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []chat.Conversation
	for _, conv := range r.conversations {
		if conv.UserID == userID {
			out = append(out, r.decorate(conv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// DeleteConversation removes a conversation and its messages.
func (r *MemoryRepository) DeleteConversation(_ context.Context, userID, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok || conv.UserID != userID {
		return false, nil
	}
	delete(r.conversations, id)
	delete(r.messages, id)
	return true, nil
}

// AppendMessage stores msg and bumps the conversation's activity time.
func (r *MemoryRepository) AppendMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[msg.ConversationID]
	if !ok {
		return chat.Message{}, fmt.Errorf("conversation %d not found", msg.ConversationID)
	}
	r.msgSeq++
	msg.ID = r.msgSeq
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], msg)
	if msg.CreatedAt.After(conv.LastMessageAt) {
		conv.LastMessageAt = msg.CreatedAt
	}
	r.conversations[conv.ID] = conv
	return msg, nil
}

// Messages returns the newest limit messages oldest first.
func (r *MemoryRepository) Messages(_ context.Context, conversationID int64, limit int) ([]chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.messages[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]chat.Message, len(all))
	copy(out, all)
	return out, nil
}

func (r *MemoryRepository) decorate(conv chat.Conversation) chat.Conversation {
	conv.MessageCount = len(r.messages[conv.ID])
	return conv
}

var _ chat.Repository = (*MemoryRepository)(nil)
