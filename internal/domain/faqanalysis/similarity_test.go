package faqanalysis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
	"github.com/yanqian/eldertech-assistant/pkg/logger"
)

func TestEngineCompare(t *testing.T) {
	const (
		reset   = "How do I reset my password?"
		forgot  = "I forgot my password"
		weather = "What is the weather?"
	)
	tests := []struct {
		name     string
		embedder faq.Embedder
		a, b     string
		want     float64
	}{
		{name: "embedding match", embedder: &topicEmbedder{}, a: reset, b: forgot, want: 1},
		{name: "embedding mismatch", embedder: &topicEmbedder{}, a: reset, b: weather, want: 0},
		{name: "provider failure falls back to term overlap", embedder: failingEmbedder{}, a: reset, b: forgot, want: 1.0 / 3},
		{name: "no embedder uses term overlap", a: reset, b: forgot, want: 1.0 / 3},
		{name: "empty string", embedder: &topicEmbedder{}, a: "", b: reset, want: 0},
		{name: "both empty", embedder: failingEmbedder{}, a: "", b: "", want: 0},
		{name: "stop words only", embedder: &topicEmbedder{}, a: "how do I?", b: "what is it?", want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := faqanalysis.NewEngine(tc.embedder, logger.Discard())
			got, err := engine.Compare(context.Background(), tc.a, tc.b)
			require.NoError(t, err)
			require.InDelta(t, tc.want, got, 1e-9)
			require.GreaterOrEqual(t, got, 0.0)
			require.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestEngineCompareHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := faqanalysis.NewEngine(&blockingEmbedder{release: make(chan struct{})}, logger.Discard())
	_, err := engine.Compare(ctx, "How do I reset my password?", "I forgot my password")
	require.ErrorIs(t, err, context.Canceled)
}
