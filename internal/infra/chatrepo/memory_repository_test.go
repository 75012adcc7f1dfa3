package chatrepo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/domain/chat"
)

func TestMemoryRepositoryMessagesReturnsNewestOldestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	conv, err := repo.CreateConversation(ctx, 1, "t")
	require.NoError(t, err)

	base := conv.LastMessageAt.Add(time.Hour)
	for i, text := range []string{"a", "b", "c", "d"} {
		_, err := repo.AppendMessage(ctx, chat.Message{ConversationID: conv.ID, Content: text, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	msgs, err := repo.Messages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d"}, contents(msgs))

	all, err := repo.Messages(ctx, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)

	got, ok, err := repo.GetConversation(ctx, 1, conv.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 4, got.MessageCount)
	require.Equal(t, base.Add(3*time.Minute), got.LastMessageAt)
}

func TestMemoryRepositoryListsMostRecentFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	older, err := repo.CreateConversation(ctx, 1, "older")
	require.NoError(t, err)
	newer, err := repo.CreateConversation(ctx, 1, "newer")
	require.NoError(t, err)
	_, err = repo.CreateConversation(ctx, 2, "other user")
	require.NoError(t, err)

	_, err = repo.AppendMessage(ctx, chat.Message{ConversationID: older.ID, Content: "bump", CreatedAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	convs, err := repo.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Equal(t, older.ID, convs[0].ID)
	require.Equal(t, newer.ID, convs[1].ID)
}

func TestMemoryRepositoryAppendRequiresConversation(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.AppendMessage(context.Background(), chat.Message{ConversationID: 42, Content: "x"})
	require.Error(t, err)
}

func contents(msgs []chat.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}
