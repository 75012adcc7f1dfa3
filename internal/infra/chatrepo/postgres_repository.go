package chatrepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/eldertech-assistant/internal/domain/chat"
)

// PostgresRepository persists conversations in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const conversationSelect = `
	SELECT c.id, c.user_id, c.title, c.created_at, c.updated_at,
	       (SELECT count(*) FROM messages m WHERE m.conversation_id = c.id)
	FROM conversations c`

// CreateConversation starts a conversation for userID.
func (r *PostgresRepository) CreateConversation(ctx context.Context, userID int64, title string) (chat.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, title, created_at, updated_at, 0
	`, userID, title)
	return scanConversation(row)
}

// GetConversation returns the conversation when userID owns it.
func (r *PostgresRepository) GetConversation(ctx context.Context, userID, id int64) (chat.Conversation, bool, error) {
	conv, err := scanConversation(r.pool.QueryRow(ctx, conversationSelect+` WHERE c.id = $1 AND c.user_id = $2`, id, userID))
	if err == pgx.ErrNoRows {
		return chat.Conversation{}, false, nil
	}
	if err != nil {
		return chat.Conversation{}, false, err
	}
	return conv, true, nil
}

// ListConversations returns userID's conversations, most recently active first.
func (r *PostgresRepository) ListConversations(ctx context.Context, userID int64) ([]chat.Conversation, error) {
	rows, err := r.pool.Query(ctx, conversationSelect+` WHERE c.user_id = $1 ORDER BY c.updated_at DESC, c.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chat.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation; messages cascade.
func (r *PostgresRepository) DeleteConversation(ctx context.Context, userID, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AppendMessage stores msg and bumps the conversation's activity time.
func (r *PostgresRepository) AppendMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var created time.Time
		if err := tx.QueryRow(ctx, `
			INSERT INTO messages (conversation_id, content, message_type, is_user, created_at)
			VALUES ($1, $2, $3, $4, COALESCE($5, now()))
			RETURNING id, created_at
		`, msg.ConversationID, msg.Content, msg.MessageType, msg.IsUser, timeArg(msg.CreatedAt)).Scan(&msg.ID, &created); err != nil {
			return err
		}
		msg.CreatedAt = created.UTC()
		_, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, msg.ConversationID, created)
		return err
	})
	if err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// Messages returns the newest limit messages oldest first.
func (r *PostgresRepository) Messages(ctx context.Context, conversationID int64, limit int) ([]chat.Message, error) {
	query := `
		SELECT id, conversation_id, content, message_type, is_user, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY id DESC`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chat.Message
	for rows.Next() {
		var (
			msg     chat.Message
			created time.Time
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Content, &msg.MessageType, &msg.IsUser, &created); err != nil {
			return nil, err
		}
		msg.CreatedAt = created.UTC()
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (chat.Conversation, error) {
	var (
		conv             chat.Conversation
		created, updated time.Time
		count            int64
	)
	if err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &created, &updated, &count); err != nil {
		return chat.Conversation{}, err
	}
	conv.CreatedAt = created.UTC()
	conv.LastMessageAt = updated.UTC()
	conv.MessageCount = int(count)
	return conv, nil
}

func timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ chat.Repository = (*PostgresRepository)(nil)
