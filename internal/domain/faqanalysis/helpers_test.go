package faqanalysis_test

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
	"github.com/yanqian/eldertech-assistant/pkg/logger"
	"github.com/yanqian/eldertech-assistant/pkg/util"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// topicEmbedder maps texts onto one axis per topic keyword.
type topicEmbedder struct {
	calls int
}

func (e *topicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "password"):
			out[i] = []float32{1, 0, 0}
		case strings.Contains(lower, "weather"):
			out[i] = []float32{0, 1, 0}
		default:
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider unavailable")
}

// blockingEmbedder waits for ctx, signalling started once it is inside Embed.
type blockingEmbedder struct {
	started chan struct{}
	release chan struct{}
}

func (e *blockingEmbedder) Embed(ctx context.Context, _ []string) ([][]float32, error) {
	if e.started != nil {
		select {
		case e.started <- struct{}{}:
		default:
		}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.release:
		return nil, errors.New("released")
	}
}

func newPipeline(embedder faq.Embedder, opts ...faqanalysis.Option) *faqanalysis.Pipeline {
	engine := faqanalysis.NewEngine(embedder, logger.Discard())
	opts = append([]faqanalysis.Option{
		faqanalysis.WithClock(util.FixedClock(baseTime)),
		faqanalysis.WithRunIDs(func() string { return "run-1" }),
	}, opts...)
	return faqanalysis.NewPipeline(engine, logger.Discard(), opts...)
}

func testConfig() faqanalysis.Config {
	cfg := faqanalysis.DefaultConfig()
	cfg.MinCategoryEntries = 0
	cfg.TimeBudget = 5 * time.Second
	return cfg
}

func passwordEntries() []faq.Entry {
	return []faq.Entry{
		{ID: 1, Question: "How do I reset my password?", HelpfulCount: 10, UnhelpfulCount: 2, CreatedAt: baseTime.Add(-48 * time.Hour)},
		{ID: 2, Question: "I forgot my password", HelpfulCount: 5, UnhelpfulCount: 0, CreatedAt: baseTime.Add(-24 * time.Hour)},
		{ID: 3, Question: "What is the weather?", HelpfulCount: 1, UnhelpfulCount: 0, CreatedAt: baseTime.Add(-72 * time.Hour)},
	}
}

func clusterMembers(clusters []faqanalysis.Cluster) [][]int64 {
	out := make([][]int64, len(clusters))
	for i, c := range clusters {
		out[i] = c.EntryIDs
	}
	return out
}

func hasDegradation(report faqanalysis.Report, d faqanalysis.Degradation) bool {
	for _, got := range report.Degradations {
		if got == d {
			return true
		}
	}
	return false
}
