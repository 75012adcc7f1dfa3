package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/yanqian/eldertech-assistant/internal/infra/llm/chatgpt"
	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
	"github.com/yanqian/eldertech-assistant/pkg/metrics"
	"github.com/yanqian/eldertech-assistant/pkg/tokens"
	"github.com/yanqian/eldertech-assistant/pkg/util"
)

// FallbackReply is sent when the model cannot answer.
const FallbackReply = "I apologize, but I'm having trouble processing your request right now. Please try again later."

const (
	maxMessageLength   = 4000
	defaultTitleLength = 50
	assistantName      = "ElderTech"
)

// Service exposes the assistant conversation workflows.
type Service interface {
	Send(ctx context.Context, userID int64, req SendRequest) (SendResponse, error)
	Stream(ctx context.Context, userID int64, req SendRequest) (<-chan StreamChunk, error)
	Conversations(ctx context.Context, userID int64) ([]Conversation, error)
	Messages(ctx context.Context, userID, conversationID int64) ([]Message, error)
	Delete(ctx context.Context, userID, conversationID int64) error
	Export(ctx context.Context, userID, conversationID int64) (Export, error)
}

// ChatClient is the subset of the ChatGPT client used for replies.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.Stream, error)
}

type service struct {
	cfg     Config
	repo    Repository
	client  ChatClient
	counter *tokens.Counter
	logger  *slog.Logger
	clock   util.Clock
}

// NewService constructs the chat service. client may be nil, in which case every reply is
// the fallback apology.
func NewService(cfg Config, repo Repository, client ChatClient, counter *tokens.Counter, logger *slog.Logger) Service {
	if cfg.TitleLength <= 0 {
		cfg.TitleLength = defaultTitleLength
	}
	if counter == nil {
		counter = tokens.NewCounter(cfg.Model)
	}
	return &service{
		cfg:     cfg,
		repo:    repo,
		client:  client,
		counter: counter,
		logger:  logger.With("component", "chat.service"),
		clock:   util.NowUTC,
	}
}

func (s *service) Send(ctx context.Context, userID int64, req SendRequest) (SendResponse, error) {
	conv, history, userMsg, err := s.prepare(ctx, userID, req)
	if err != nil {
		return SendResponse{}, err
	}

	reply, usage, fallback := s.complete(ctx, s.buildMessages(history, req.Context, userMsg.Content))
	stored, err := s.repo.AppendMessage(ctx, Message{
		ConversationID: conv.ID,
		Content:        reply,
		MessageType:    MessageTypeText,
		IsUser:         false,
		CreatedAt:      s.clock(),
	})
	if err != nil {
		return SendResponse{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to save reply", err)
	}
	resp := SendResponse{
		ConversationID: conv.ID,
		UserMessage:    userMsg,
		Reply:          stored,
		Fallback:       fallback,
	}
	if !usage.IsZero() {
		resp.TokenUsage = &usage
	}
	return resp, nil
}

func (s *service) Stream(ctx context.Context, userID int64, req SendRequest) (<-chan StreamChunk, error) {
	conv, history, userMsg, err := s.prepare(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	messages := s.buildMessages(history, req.Context, userMsg.Content)

	var stream chatgpt.Stream
	if s.client != nil {
		stream, err = s.client.CreateChatCompletionStream(ctx, s.completionRequest(messages, true))
		if err != nil {
			s.logger.Warn("chatgpt stream request failed", "conversationId", conv.ID, "error", err)
			stream = nil
		}
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		var builder strings.Builder
		if stream != nil {
			defer stream.Close()
			for {
				chunk, recvErr := stream.Recv()
				if recvErr != nil {
					if !errors.Is(recvErr, io.EOF) {
						s.logger.Warn("chatgpt stream recv failed", "conversationId", conv.ID, "error", recvErr)
					}
					break
				}
				for _, choice := range chunk.Choices {
					if choice.Delta.Content == "" {
						continue
					}
					builder.WriteString(choice.Delta.Content)
					select {
					case out <- StreamChunk{ConversationID: conv.ID, Delta: choice.Delta.Content}:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		reply := strings.TrimSpace(builder.String())
		fallback := reply == ""
		if fallback {
			reply = FallbackReply
		}
		// The reply is stored even if the client went away mid-stream.
		stored, err := s.repo.AppendMessage(context.WithoutCancel(ctx), Message{
			ConversationID: conv.ID,
			Content:        reply,
			MessageType:    MessageTypeText,
			CreatedAt:      s.clock(),
		})
		if err != nil {
			s.logger.Error("save streamed reply failed", "conversationId", conv.ID, "error", err)
		}
		final := StreamChunk{ConversationID: conv.ID, Completed: true, MessageID: stored.ID, Fallback: fallback}
		if fallback {
			final.Delta = reply
		}
		select {
		case out <- final:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// prepare validates req, resolves or creates the conversation, loads history and stores the
// user message.
func (s *service) prepare(ctx context.Context, userID int64, req SendRequest) (Conversation, []Message, Message, error) {
	content := normalize(req.Content)
	if content == "" {
		return Conversation{}, nil, Message{}, apperrors.Wrap(apperrors.CodeInvalidInput, "message cannot be empty", nil)
	}
	if len([]rune(content)) > maxMessageLength {
		return Conversation{}, nil, Message{}, apperrors.Wrap(apperrors.CodeInvalidInput,
			fmt.Sprintf("message cannot exceed %d characters", maxMessageLength), nil)
	}
	msgType, err := messageType(req.MessageType)
	if err != nil {
		return Conversation{}, nil, Message{}, err
	}

	var conv Conversation
	if req.ConversationID == 0 {
		conv, err = s.repo.CreateConversation(ctx, userID, title(content, s.cfg.TitleLength))
		if err != nil {
			return Conversation{}, nil, Message{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to start conversation", err)
		}
	} else {
		conv, err = s.conversation(ctx, userID, req.ConversationID)
		if err != nil {
			return Conversation{}, nil, Message{}, err
		}
	}

	var history []Message
	if s.cfg.HistoryMessages > 0 && req.ConversationID != 0 {
		history, err = s.repo.Messages(ctx, conv.ID, s.cfg.HistoryMessages)
		if err != nil {
			return Conversation{}, nil, Message{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to load history", err)
		}
		history = tokens.TrimToBudget(s.counter, history, func(m Message) string { return m.Content }, s.cfg.MaxHistoryTokens)
	}

	userMsg, err := s.repo.AppendMessage(ctx, Message{
		ConversationID: conv.ID,
		Content:        content,
		MessageType:    msgType,
		IsUser:         true,
		CreatedAt:      s.clock(),
	})
	if err != nil {
		return Conversation{}, nil, Message{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to save message", err)
	}
	return conv, history, userMsg, nil
}

func (s *service) buildMessages(history []Message, userContext map[string]any, content string) []chatgpt.Message {
	messages := make([]chatgpt.Message, 0, len(history)+3)
	messages = append(messages, chatgpt.Message{Role: "system", Content: s.cfg.SystemPrompt})
	for _, m := range history {
		role := "assistant"
		if m.IsUser {
			role = "user"
		}
		messages = append(messages, chatgpt.Message{Role: role, Content: m.Content})
	}
	if len(userContext) > 0 {
		if encoded, err := json.Marshal(userContext); err == nil {
			messages = append(messages, chatgpt.Message{Role: "system", Content: "User context: " + string(encoded)})
		}
	}
	return append(messages, chatgpt.Message{Role: "user", Content: content})
}

func (s *service) completionRequest(messages []chatgpt.Message, stream bool) chatgpt.ChatCompletionRequest {
	return chatgpt.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Stream:      stream,
	}
}

// complete asks the model for a reply. Failures are logged and answered with FallbackReply.
func (s *service) complete(ctx context.Context, messages []chatgpt.Message) (string, metrics.TokenUsage, bool) {
	if s.client == nil {
		return FallbackReply, metrics.TokenUsage{}, true
	}
	resp, err := s.client.CreateChatCompletion(ctx, s.completionRequest(messages, false))
	if err != nil {
		s.logger.Warn("chatgpt request failed", "error", err)
		return FallbackReply, metrics.TokenUsage{}, true
	}
	content := resp.Content()
	if content == "" {
		s.logger.Warn("chatgpt response empty")
		return FallbackReply, metrics.TokenUsage{}, true
	}
	usage := metrics.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	metrics.ObserveTokens("chat", usage)
	return content, usage, false
}

func (s *service) Conversations(ctx context.Context, userID int64) ([]Conversation, error) {
	convs, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "failed to list conversations", err)
	}
	if convs == nil {
		convs = []Conversation{}
	}
	return convs, nil
}

func (s *service) Messages(ctx context.Context, userID, conversationID int64) ([]Message, error) {
	if _, err := s.conversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.Messages(ctx, conversationID, 0)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "failed to load messages", err)
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

func (s *service) Delete(ctx context.Context, userID, conversationID int64) error {
	deleted, err := s.repo.DeleteConversation(ctx, userID, conversationID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreError, "failed to delete conversation", err)
	}
	if !deleted {
		return apperrors.Wrap(apperrors.CodeNotFound, "conversation not found", nil)
	}
	s.logger.Info("conversation deleted", "userId", userID, "conversationId", conversationID)
	return nil
}

func (s *service) Export(ctx context.Context, userID, conversationID int64) (Export, error) {
	conv, err := s.conversation(ctx, userID, conversationID)
	if err != nil {
		return Export{}, err
	}
	msgs, err := s.repo.Messages(ctx, conversationID, 0)
	if err != nil {
		return Export{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to load messages", err)
	}
	now := s.clock()
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation: %s\n", conv.Title)
	fmt.Fprintf(&b, "Exported: %s\n\n", now.Format(time.RFC1123))
	for _, m := range msgs {
		speaker := assistantName
		if m.IsUser {
			speaker = "You"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), speaker, m.Content)
	}
	return Export{
		ConversationID: conv.ID,
		Filename:       fmt.Sprintf("conversation_%d_%s.txt", conv.ID, util.Timestamp(now)),
		ContentType:    "text/plain; charset=utf-8",
		Content:        b.String(),
	}, nil
}

func (s *service) conversation(ctx context.Context, userID, id int64) (Conversation, error) {
	conv, ok, err := s.repo.GetConversation(ctx, userID, id)
	if err != nil {
		return Conversation{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to load conversation", err)
	}
	if !ok {
		return Conversation{}, apperrors.Wrap(apperrors.CodeNotFound, "conversation not found", nil)
	}
	return conv, nil
}

func messageType(raw string) (string, error) {
	switch t := strings.ToLower(strings.TrimSpace(raw)); t {
	case "":
		return MessageTypeText, nil
	case MessageTypeText, MessageTypeVoice, MessageTypeImage:
		return t, nil
	default:
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("unsupported message type %q", raw), nil)
	}
}

// title shortens the opening message to at most limit runes, cutting at a word boundary.
func title(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "..."
}

func normalize(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}
