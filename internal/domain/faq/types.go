package faq

import (
	"time"

	"github.com/yanqian/eldertech-assistant/pkg/metrics"
)

// SearchMode identifies the lookup strategy.
type SearchMode string

const (
	// SearchModeExact only considers literal text equality.
	SearchModeExact SearchMode = "exact"
	// SearchModeSemanticHash maps questions to a deterministic LSH bucket.
	SearchModeSemanticHash SearchMode = "semantic_hash"
	// SearchModeSimilarity uses nearest neighbour lookups over question embeddings.
	SearchModeSimilarity SearchMode = "similarity"
	// SearchModeHybrid tries exact before falling back to similarity.
	SearchModeHybrid SearchMode = "hybrid"
	// searchModeLexical is reported when embeddings are unavailable.
	searchModeLexical SearchMode = "lexical"
)

// Answer sources reported to clients.
const (
	SourceFAQ   = "faq"
	SourceCache = "cache"
	SourceLLM   = "llm"
)

// Entry is a knowledge base question with its curated answer.
type Entry struct {
	ID             int64     `json:"id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	CategoryID     int64     `json:"categoryId"`
	Category       string    `json:"category,omitempty"`
	Tags           []string  `json:"tags"`
	Priority       int       `json:"priority"`
	HelpfulCount   int64     `json:"helpfulCount"`
	UnhelpfulCount int64     `json:"unhelpfulCount"`
	AskCount       int64     `json:"askCount"`
	SemanticHash   *uint64   `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	LastAskedAt    time.Time `json:"lastAskedAt"`
}

// Category groups entries.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	FAQCount    int64     `json:"faqCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// EntryInput is the admin payload for creating or replacing an entry.
type EntryInput struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	// Priority is the editorial weight; zero means DefaultPriority.
	Priority int `json:"priority"`
}

// CategoryInput is the admin payload for a new category.
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Category string
	Search   string
	Limit    int
}

// FeedbackRequest records whether an entry helped.
type FeedbackRequest struct {
	Helpful bool   `json:"helpful"`
	Text    string `json:"feedbackText,omitempty"`
}

// Feedback is a stored feedback row.
type Feedback struct {
	ID        int64
	EntryID   int64
	UserID    int64
	Helpful   bool
	Text      string
	CreatedAt time.Time
}

// AskRequest is a natural language question from a user.
type AskRequest struct {
	Question string     `json:"question"`
	Mode     SearchMode `json:"mode"`
}

// AskResponse is returned to the HTTP transport.
type AskResponse struct {
	Question        string              `json:"question"`
	Answer          string              `json:"answer"`
	Source          string              `json:"source"`
	MatchedQuestion string              `json:"matchedQuestion,omitempty"`
	EntryID         int64               `json:"entryId,omitempty"`
	Confidence      float64             `json:"confidence"`
	Mode            SearchMode          `json:"mode"`
	Recommendations []TrendingQuery     `json:"recommendations"`
	TokenUsage      *metrics.TokenUsage `json:"tokenUsage,omitempty"`
}

// SearchRequest looks up entries without generating an answer.
type SearchRequest struct {
	Query string     `json:"query"`
	Mode  SearchMode `json:"mode"`
	Limit int        `json:"limit"`
}

// SearchResult is one ranked entry.
type SearchResult struct {
	Entry Entry   `json:"entry"`
	Score float64 `json:"score"`
}

// SearchResponse lists ranked entries.
type SearchResponse struct {
	Query   string         `json:"query"`
	Mode    SearchMode     `json:"mode"`
	Results []SearchResult `json:"results"`
}

// TrendingQuery represents a frequently asked question.
type TrendingQuery struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// SimilarityMatch pairs an entry with its embedding distance to a query.
type SimilarityMatch struct {
	Entry    Entry
	Distance float64
}

// AnswerRecord captures a generated answer persisted in the KV cache.
type AnswerRecord struct {
	Key       string    `json:"key"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
}

// QueryEvent is logged for every question a user asks.
type QueryEvent struct {
	Canonical  string
	Display    string
	Answered   bool
	Confidence float64
	At         time.Time
}

// QueryStat aggregates QueryEvents per canonical question.
type QueryStat struct {
	Canonical      string    `json:"canonical"`
	Display        string    `json:"display"`
	AskedCount     int64     `json:"askedCount"`
	AnsweredCount  int64     `json:"answeredCount"`
	BestConfidence float64   `json:"bestConfidence"`
	FirstSeen      time.Time `json:"firstSeen"`
	LastSeen       time.Time `json:"lastSeen"`
}

// Merge folds ev into the stat.
func (s *QueryStat) Merge(ev QueryEvent) {
	if s.AskedCount == 0 || ev.At.Before(s.FirstSeen) {
		s.FirstSeen = ev.At
	}
	if ev.At.After(s.LastSeen) {
		s.LastSeen = ev.At
	}
	if s.Canonical == "" {
		s.Canonical = ev.Canonical
	}
	if s.Display == "" {
		s.Display = ev.Display
	}
	s.AskedCount++
	if ev.Answered {
		s.AnsweredCount++
	}
	if ev.Confidence > s.BestConfidence {
		s.BestConfidence = ev.Confidence
	}
}
