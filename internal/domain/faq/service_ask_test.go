package faq_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
	"github.com/yanqian/eldertech-assistant/internal/infra/faqrepo"
	"github.com/yanqian/eldertech-assistant/internal/infra/faqstore"
	"github.com/yanqian/eldertech-assistant/internal/infra/llm/chatgpt"
	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
	"github.com/yanqian/eldertech-assistant/pkg/logger"
)

type stubChat struct {
	answer string
	err    error
	calls  int
}

func (s *stubChat) CreateChatCompletion(_ context.Context, _ chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error) {
	s.calls++
	var resp chatgpt.ChatCompletionResponse
	if s.err != nil {
		return resp, s.err
	}
	resp.Choices = append(resp.Choices, struct {
		Message      chatgpt.Message `json:"message"`
		FinishReason string          `json:"finish_reason"`
	}{Message: chatgpt.Message{Role: "assistant", Content: s.answer}})
	resp.Usage = chatgpt.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	return resp, nil
}

// keywordEmbedder maps texts to axis vectors by keyword so tests control similarity.
type keywordEmbedder struct {
	err error
}

func (e keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "password"):
			out[i] = []float32{1, 0, 0}
		case strings.Contains(lower, "video"):
			out[i] = []float32{0, 1, 0}
		default:
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

type fixture struct {
	svc   faq.Service
	repo  *faqrepo.MemoryRepository
	store *faqstore.MemoryStore
	chat  *stubChat
}

func newFixture(t *testing.T, embedder faq.Embedder) fixture {
	t.Helper()
	repo := faqrepo.NewMemoryRepository()
	store := faqstore.NewMemoryStore()
	chat := &stubChat{answer: "Generated answer."}
	cfg := faq.Config{
		Model:               "gpt-4o-mini",
		TopRecommendations:  3,
		SimilarityThreshold: 0.5,
		LexicalThreshold:    0.5,
	}
	svc := faq.NewService(cfg, repo, store, chat, embedder, logger.Discard())
	return fixture{svc: svc, repo: repo, store: store, chat: chat}
}

func TestAskAnswersFromKnowledgeBase(t *testing.T) {
	f := newFixture(t, keywordEmbedder{})
	ctx := context.Background()
	entry, err := f.svc.Create(ctx, faq.EntryInput{
		Question: "How do I reset my password?",
		Answer:   "Tap 'Forgot password' on the sign-in screen.",
		Category: "Accounts",
	})
	require.NoError(t, err)

	resp, err := f.svc.Ask(ctx, faq.AskRequest{Question: "I forgot my password"})
	require.NoError(t, err)
	require.Equal(t, faq.SourceFAQ, resp.Source)
	require.Equal(t, entry.ID, resp.EntryID)
	require.Equal(t, faq.SearchModeSimilarity, resp.Mode)
	require.InDelta(t, 1.0, resp.Confidence, 1e-6)
	require.Zero(t, f.chat.calls)

	snapshot, err := f.repo.Snapshot(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, snapshot[0].AskCount)
	require.False(t, snapshot[0].LastAskedAt.IsZero())

	stats, err := f.store.QueryStats(ctx, snapshot[0].CreatedAt.Add(-1))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.EqualValues(t, 1, stats[0].AnsweredCount)
}

func TestAskFallsBackToLLMAndCaches(t *testing.T) {
	f := newFixture(t, keywordEmbedder{})
	ctx := context.Background()

	first, err := f.svc.Ask(ctx, faq.AskRequest{Question: "What is the weather?"})
	require.NoError(t, err)
	require.Equal(t, faq.SourceLLM, first.Source)
	require.Equal(t, "Generated answer.", first.Answer)
	require.NotNil(t, first.TokenUsage)
	require.Zero(t, first.Confidence)

	second, err := f.svc.Ask(ctx, faq.AskRequest{Question: "what is the WEATHER"})
	require.NoError(t, err)
	require.Equal(t, faq.SourceCache, second.Source)
	require.Equal(t, 1, f.chat.calls)
	require.Equal(t, []faq.TrendingQuery{{Query: "What is the weather?", Count: 2}}, second.Recommendations)

	stats, err := f.store.QueryStats(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.EqualValues(t, 2, stats[0].AskedCount)
	require.Zero(t, stats[0].AnsweredCount)
}

func TestAskFallsBackToLexicalWhenEmbeddingsFail(t *testing.T) {
	f := newFixture(t, keywordEmbedder{err: errors.New("provider down")})
	ctx := context.Background()
	_, err := f.svc.Create(ctx, faq.EntryInput{Question: "How do I start a video call?", Answer: "Open the Calls app."})
	require.NoError(t, err)

	resp, err := f.svc.Ask(ctx, faq.AskRequest{Question: "start video call", Mode: faq.SearchModeSimilarity})
	require.NoError(t, err)
	require.Equal(t, faq.SourceFAQ, resp.Source)
	require.Equal(t, faq.SearchMode("lexical"), resp.Mode)
	require.Equal(t, "Open the Calls app.", resp.Answer)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	f := newFixture(t, keywordEmbedder{})
	_, err := f.svc.Ask(context.Background(), faq.AskRequest{Question: "   "})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestAskSurfacesLLMFailure(t *testing.T) {
	f := newFixture(t, keywordEmbedder{})
	f.chat.err = errors.New("timeout")
	_, err := f.svc.Ask(context.Background(), faq.AskRequest{Question: "Something new?"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeLLMError))
}

func TestSearchHybridRanksExactFirst(t *testing.T) {
	f := newFixture(t, keywordEmbedder{})
	ctx := context.Background()
	password, err := f.svc.Create(ctx, faq.EntryInput{Question: "Reset password", Answer: "a"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, faq.EntryInput{Question: "Change password", Answer: "b"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, faq.EntryInput{Question: "Video calls", Answer: "c"})
	require.NoError(t, err)

	resp, err := f.svc.Search(ctx, faq.SearchRequest{Query: "reset password", Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	require.Equal(t, password.ID, resp.Results[0].Entry.ID)
	require.InDelta(t, 1.0, resp.Results[0].Score, 1e-9)
}

func TestAdminLifecycle(t *testing.T) {
	f := newFixture(t, keywordEmbedder{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, faq.EntryInput{Question: "", Answer: "x"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	_, err = f.svc.Create(ctx, faq.EntryInput{Question: "q", Answer: "a", Priority: -1})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	entry, err := f.svc.Create(ctx, faq.EntryInput{Question: "How do I zoom in?", Answer: "Pinch.", Tags: []string{"Screen"}})
	require.NoError(t, err)
	require.Equal(t, "general", entry.Category)
	require.Equal(t, []string{"screen"}, entry.Tags)
	require.Equal(t, faq.DefaultPriority, entry.Priority)

	updated, err := f.svc.Update(ctx, entry.ID, faq.EntryInput{Question: "How do I zoom in?", Answer: "Pinch outwards.", Category: "Display", Priority: 3})
	require.NoError(t, err)
	require.Equal(t, "Display", updated.Category)
	require.Equal(t, 3, updated.Priority)
	require.Equal(t, "Pinch outwards.", updated.Answer)

	after, err := f.svc.Feedback(ctx, entry.ID, 7, faq.FeedbackRequest{Helpful: false, Text: "still small"})
	require.NoError(t, err)
	require.EqualValues(t, 1, after.UnhelpfulCount)

	categories, err := f.svc.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)

	require.NoError(t, f.svc.Delete(ctx, entry.ID))
	_, err = f.svc.Get(ctx, entry.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	require.True(t, apperrors.IsCode(f.svc.Delete(ctx, entry.ID), apperrors.CodeNotFound))

	_, err = f.svc.Feedback(ctx, entry.ID, 0, faq.FeedbackRequest{Helpful: true})
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
