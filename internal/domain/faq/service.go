package faq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yanqian/eldertech-assistant/internal/infra/llm/chatgpt"
	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
	"github.com/yanqian/eldertech-assistant/pkg/metrics"
	"github.com/yanqian/eldertech-assistant/pkg/util"
)

const (
	defaultPrompt = "You are ElderTech, a patient assistant helping older adults with everyday technology. " +
		"Use simple words and short numbered steps."
	semanticHashConfidence = 0.9
	defaultSearchLimit     = 5
)

// Service exposes the knowledge base to users and administrators.
type Service interface {
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	Trending(ctx context.Context) ([]TrendingQuery, error)

	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	Get(ctx context.Context, id int64) (Entry, error)
	Create(ctx context.Context, in EntryInput) (Entry, error)
	Update(ctx context.Context, id int64, in EntryInput) (Entry, error)
	Delete(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, in CategoryInput) (Category, error)
	Feedback(ctx context.Context, id, userID int64, req FeedbackRequest) (Entry, error)
}

// ChatClient generates answers for questions the knowledge base cannot match.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

type service struct {
	cfg      Config
	repo     Repository
	store    Store
	client   ChatClient
	embedder Embedder
	logger   *slog.Logger
	hasher   *semanticHasher
	now      util.Clock
}

// NewService wires up the FAQ domain. embedder may be nil, in which case semantic
// lookups fall back to lexical matching.
func NewService(cfg Config, repo Repository, store Store, client ChatClient, embedder Embedder, logger *slog.Logger) Service {
	return &service{
		cfg:      cfg,
		repo:     repo,
		store:    store,
		client:   client,
		embedder: embedder,
		logger:   logger.With("component", "faq.service"),
		hasher:   newSemanticHasher(defaultSemanticHashPlanes, defaultSemanticHashSeed),
		now:      util.NowUTC,
	}
}

// match is the outcome of a knowledge base lookup.
type match struct {
	entry      Entry
	confidence float64
	mode       SearchMode
}

// query lazily embeds the user's question at most once per request.
type query struct {
	text      string
	embedding []float32
	embedErr  error
	embedded  bool
}

func (s *service) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AskResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "question cannot be empty", nil)
	}
	mode := sanitizeMode(req.Mode)
	canonical := NormalizeQuestion(question)
	q := &query{text: question}

	resp := AskResponse{Question: question, Mode: mode}
	found, ok, err := s.lookup(ctx, q, resolveSearchPlan(mode))
	if err != nil {
		return AskResponse{}, err
	}

	if ok {
		resp.Answer = found.entry.Answer
		resp.Source = SourceFAQ
		resp.MatchedQuestion = found.entry.Question
		resp.EntryID = found.entry.ID
		resp.Confidence = found.confidence
		resp.Mode = found.mode
		if err := s.repo.MarkAsked(ctx, found.entry.ID, s.now()); err != nil {
			s.logger.Warn("faq mark asked failed", "entryId", found.entry.ID, "error", err)
		}
	} else {
		answer, source, usage, err := s.generatedAnswer(ctx, canonical, question)
		if err != nil {
			return AskResponse{}, err
		}
		resp.Answer = answer
		resp.Source = source
		if !usage.IsZero() {
			resp.TokenUsage = &usage
		}
	}
	metrics.FAQAsks.WithLabelValues(resp.Source).Inc()

	ev := QueryEvent{
		Canonical:  canonical,
		Display:    question,
		Answered:   ok,
		Confidence: resp.Confidence,
		At:         s.now(),
	}
	if err := s.store.RecordQuery(ctx, ev); err != nil {
		s.logger.Warn("faq query log failed", "error", err)
	}

	recs, err := s.store.TopQueries(ctx, s.cfg.TopRecommendations)
	if err != nil {
		s.logger.Warn("faq trending fetch failed", "error", err)
		recs = nil
	}
	resp.Recommendations = recs
	return resp, nil
}

func (s *service) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return SearchResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "query cannot be empty", nil)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	mode := sanitizeMode(req.Mode)
	q := &query{text: text}
	resp := SearchResponse{Query: text, Mode: mode, Results: []SearchResult{}}
	seen := make(map[int64]struct{})
	add := func(entry Entry, score float64) {
		if _, dup := seen[entry.ID]; dup || len(resp.Results) >= limit {
			return
		}
		seen[entry.ID] = struct{}{}
		resp.Results = append(resp.Results, SearchResult{Entry: entry, Score: score})
	}

	for _, step := range resolveSearchPlan(mode) {
		switch step {
		case SearchModeSimilarity:
			embedding, err := s.embed(ctx, q)
			if err != nil {
				resp.Mode = searchModeLexical
				matches, err := s.lexicalMatches(ctx, text, limit)
				if err != nil {
					return SearchResponse{}, err
				}
				for _, m := range matches {
					add(m.entry, m.confidence)
				}
				continue
			}
			nearest, err := s.repo.FindNearest(ctx, embedding, limit)
			if err != nil {
				return SearchResponse{}, apperrors.Wrap(apperrors.CodeStoreError, "similarity lookup failed", err)
			}
			for _, m := range nearest {
				add(m.Entry, distanceConfidence(m.Distance))
			}
		default:
			found, ok, err := s.lookup(ctx, q, []SearchMode{step})
			if err != nil {
				return SearchResponse{}, err
			}
			if ok {
				add(found.entry, found.confidence)
			}
		}
	}
	return resp, nil
}

func (s *service) Trending(ctx context.Context) ([]TrendingQuery, error) {
	recs, err := s.store.TopQueries(ctx, s.cfg.TopRecommendations)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "failed to load trending queries", err)
	}
	return recs, nil
}

// lookup walks plan until one strategy produces a match. Embedding failures degrade
// semantic strategies to lexical matching instead of failing the request.
func (s *service) lookup(ctx context.Context, q *query, plan []SearchMode) (match, bool, error) {
	for _, step := range plan {
		switch step {
		case SearchModeExact:
			entry, found, err := s.repo.FindExact(ctx, q.text)
			if err != nil {
				return match{}, false, apperrors.Wrap(apperrors.CodeStoreError, "exact lookup failed", err)
			}
			if found {
				return match{entry: entry, confidence: 1, mode: SearchModeExact}, true, nil
			}
		case SearchModeSemanticHash:
			embedding, err := s.embed(ctx, q)
			if err != nil {
				if m, ok, lexErr := s.bestLexical(ctx, q.text); lexErr != nil || ok {
					return m, ok, lexErr
				}
				continue
			}
			hash, ok, err := s.hasher.Hash(embedding)
			if err != nil || !ok {
				continue
			}
			entry, found, err := s.repo.FindBySemanticHash(ctx, hash)
			if err != nil {
				return match{}, false, apperrors.Wrap(apperrors.CodeStoreError, "semantic hash lookup failed", err)
			}
			if found {
				return match{entry: entry, confidence: semanticHashConfidence, mode: SearchModeSemanticHash}, true, nil
			}
		case SearchModeSimilarity:
			embedding, err := s.embed(ctx, q)
			if err != nil {
				if m, ok, lexErr := s.bestLexical(ctx, q.text); lexErr != nil || ok {
					return m, ok, lexErr
				}
				continue
			}
			nearest, err := s.repo.FindNearest(ctx, embedding, 1)
			if err != nil {
				return match{}, false, apperrors.Wrap(apperrors.CodeStoreError, "similarity lookup failed", err)
			}
			if len(nearest) > 0 && nearest[0].Distance <= s.cfg.SimilarityThreshold {
				return match{
					entry:      nearest[0].Entry,
					confidence: distanceConfidence(nearest[0].Distance),
					mode:       SearchModeSimilarity,
				}, true, nil
			}
		}
	}
	return match{}, false, nil
}

func (s *service) bestLexical(ctx context.Context, text string) (match, bool, error) {
	matches, err := s.lexicalMatches(ctx, text, 1)
	if err != nil || len(matches) == 0 {
		return match{}, false, err
	}
	if matches[0].confidence < s.cfg.LexicalThreshold {
		return match{}, false, nil
	}
	return matches[0], true, nil
}

// lexicalMatches ranks the knowledge base by term overlap with text.
func (s *service) lexicalMatches(ctx context.Context, text string, limit int) ([]match, error) {
	entries, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "lexical lookup failed", err)
	}
	terms := Terms(text)
	var out []match
	for _, entry := range entries {
		score := Jaccard(terms, Terms(entry.Question))
		if score <= 0 {
			continue
		}
		out = append(out, match{entry: entry, confidence: score, mode: searchModeLexical})
	}
	sortMatches(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *service) embed(ctx context.Context, q *query) ([]float32, error) {
	if q.embedded {
		return q.embedding, q.embedErr
	}
	q.embedded = true
	if s.embedder == nil {
		q.embedErr = errors.New("no embedder configured")
		return nil, q.embedErr
	}
	vectors, err := s.embedder.Embed(ctx, []string{q.text})
	switch {
	case err != nil:
		q.embedErr = err
	case len(vectors) == 0 || len(vectors[0]) == 0:
		q.embedErr = errors.New("embedding response empty")
	default:
		q.embedding = vectors[0]
	}
	if q.embedErr != nil {
		s.logger.Warn("faq embedding unavailable, using lexical match", "error", q.embedErr)
	}
	return q.embedding, q.embedErr
}

// generatedAnswer serves unmatched questions from the answer cache or the LLM.
func (s *service) generatedAnswer(ctx context.Context, canonical, question string) (string, string, metrics.TokenUsage, error) {
	cached, ok, err := s.store.GetAnswer(ctx, canonical)
	if err != nil {
		s.logger.Warn("faq cache lookup failed", "error", err)
	}
	if ok {
		return cached.Answer, SourceCache, metrics.TokenUsage{}, nil
	}

	answer, usage, err := s.askLLM(ctx, question)
	if err != nil {
		return "", "", metrics.TokenUsage{}, err
	}
	record := AnswerRecord{Key: canonical, Question: question, Answer: answer, CreatedAt: s.now()}
	if err := s.store.SaveAnswer(ctx, record, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("faq cache save failed", "error", err)
	}
	return answer, SourceLLM, usage, nil
}

func (s *service) askLLM(ctx context.Context, question string) (string, metrics.TokenUsage, error) {
	if s.client == nil {
		return "", metrics.TokenUsage{}, apperrors.Wrap(apperrors.CodeLLMError, "assistant is not configured", nil)
	}
	prompt := strings.TrimSpace(s.cfg.Prompt)
	if prompt == "" {
		prompt = defaultPrompt
	}
	resp, err := s.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []chatgpt.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: fmt.Sprintf("Question: %s\nAnswer concisely in 3 sentences or less.", question)},
		},
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", metrics.TokenUsage{}, apperrors.Wrap(apperrors.CodeLLMError, "chatgpt request failed", err)
	}
	answer := resp.Content()
	if answer == "" {
		return "", metrics.TokenUsage{}, apperrors.Wrap(apperrors.CodeLLMError, "chatgpt response empty", nil)
	}
	usage := metrics.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	metrics.ObserveTokens("faq_answer", usage)
	return answer, usage, nil
}

// distanceConfidence converts an L2 distance between unit vectors into cosine similarity.
func distanceConfidence(distance float64) float64 {
	c := 1 - distance*distance/2
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func resolveSearchPlan(mode SearchMode) []SearchMode {
	switch mode {
	case SearchModeExact:
		return []SearchMode{SearchModeExact}
	case SearchModeSemanticHash:
		return []SearchMode{SearchModeSemanticHash}
	case SearchModeSimilarity:
		return []SearchMode{SearchModeSimilarity}
	default:
		return []SearchMode{SearchModeExact, SearchModeSimilarity}
	}
}

func sanitizeMode(mode SearchMode) SearchMode {
	switch mode {
	case SearchModeExact, SearchModeSemanticHash, SearchModeSimilarity, SearchModeHybrid:
		return mode
	default:
		return SearchModeHybrid
	}
}
