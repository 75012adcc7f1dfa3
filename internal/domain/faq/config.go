package faq

import "time"

// Config holds runtime knobs for the FAQ service.
type Config struct {
	Model       string
	Temperature float32
	Prompt      string
	CacheTTL    time.Duration
	// TopRecommendations caps trending queries returned with answers.
	TopRecommendations int
	// SimilarityThreshold is the largest embedding distance accepted as a match.
	SimilarityThreshold float64
	// LexicalThreshold is the smallest term overlap accepted when embeddings are down.
	LexicalThreshold float64
	DefaultListLimit int
	MaxListLimit     int
}

func (c Config) listLimit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = c.DefaultListLimit
	}
	if limit <= 0 {
		limit = 50
	}
	if c.MaxListLimit > 0 && limit > c.MaxListLimit {
		limit = c.MaxListLimit
	}
	return limit
}
