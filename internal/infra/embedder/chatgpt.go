package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
	"github.com/yanqian/eldertech-assistant/internal/infra/llm/chatgpt"
	"github.com/yanqian/eldertech-assistant/pkg/metrics"
	"github.com/yanqian/eldertech-assistant/pkg/tokens"
)

// maxBatchTokens stays well below the provider's 300k request cap.
const maxBatchTokens = 200_000

// EmbeddingClient is the subset of the ChatGPT client used for embeddings.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, req chatgpt.EmbeddingRequest) (chatgpt.EmbeddingResponse, error)
}

// ChatGPTEmbedder calls the OpenAI compatible embeddings API.
type ChatGPTEmbedder struct {
	client  EmbeddingClient
	model   string
	counter *tokens.Counter
	logger  *slog.Logger
}

// NewChatGPTEmbedder constructs an embedder backed by the ChatGPT client.
func NewChatGPTEmbedder(client EmbeddingClient, model string, counter *tokens.Counter, logger *slog.Logger) *ChatGPTEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	if counter == nil {
		counter = tokens.NewCounter(model)
	}
	return &ChatGPTEmbedder{
		client:  client,
		model:   strings.TrimSpace(model),
		counter: counter,
		logger:  logger.With("component", "embedder.chatgpt"),
	}
}

// Embed requests embeddings for texts, splitting them into batches by token count.
// The result holds exactly one vector per input, in input order.
func (e *ChatGPTEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out         = make([][]float32, 0, len(texts))
		batch       []string
		batchTokens int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{Model: e.model, Input: batch})
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}
		vectors := resp.Vectors()
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding result count mismatch: expected %d, got %d", len(batch), len(vectors))
		}
		metrics.ObserveTokens("embedding", metrics.TokenUsage{
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		})
		for _, vec := range vectors {
			cp := make([]float32, len(vec))
			copy(cp, vec)
			out = append(out, cp)
		}
		batch = batch[:0]
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		cost := e.counter.Count(text)
		if cost > maxBatchTokens {
			return nil, fmt.Errorf("text too large for embedding request: tokens=%d", cost)
		}
		if batchTokens+cost > maxBatchTokens && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += cost
	}
	if err := flush(); err != nil {
		return nil, err
	}
	e.logger.Debug("embedded texts", "count", len(out))
	return out, nil
}

var _ faq.Embedder = (*ChatGPTEmbedder)(nil)
