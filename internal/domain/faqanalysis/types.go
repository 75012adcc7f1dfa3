package faqanalysis

import "time"

// SimilarityPair is a scored edge between two entries. Pairs only live for one run.
type SimilarityPair struct {
	A     int64   `json:"a"`
	B     int64   `json:"b"`
	Score float64 `json:"score"`
}

// Cluster groups entries connected by similarity at or above the threshold.
type Cluster struct {
	ID               string    `json:"id"`
	EntryIDs         []int64   `json:"entryIds"`
	RepresentativeID int64     `json:"representativeId"`
	Representative   string    `json:"representative"`
	CategoryIDs      []int64   `json:"categoryIds"`
	Keywords         []string  `json:"keywords"`
	HelpfulCount     int64     `json:"helpfulCount"`
	UnhelpfulCount   int64     `json:"unhelpfulCount"`
	FeedbackScore    int64     `json:"feedbackScore"`
	AskCount         int64     `json:"askCount"`
	LastAskedAt      time.Time `json:"lastAskedAt"`
}

// GapKind labels why a topic was reported.
type GapKind string

const (
	// GapLowCoverage is a topic whose answers or feedback fall below the coverage threshold.
	GapLowCoverage GapKind = "low_coverage"
	// GapSparseCategory is a category holding fewer entries than configured.
	GapSparseCategory GapKind = "sparse_category"
	// GapLowPriority is a large category whose entries carry a low editorial priority.
	GapLowPriority GapKind = "low_priority"
)

// Gap is a topic the knowledge base covers poorly.
type Gap struct {
	Kind           GapKind   `json:"kind"`
	Topic          string    `json:"topic"`
	ClusterID      string    `json:"clusterId,omitempty"`
	CategoryID     int64     `json:"categoryId,omitempty"`
	Coverage       float64   `json:"coverage"`
	QueryCount     int64     `json:"queryCount"`
	EntryCount     int       `json:"entryCount"`
	AvgPriority    float64   `json:"avgPriority,omitempty"`
	FirstSeen      time.Time `json:"firstSeen"`
	Recommendation string    `json:"recommendation"`
}

// PriorityScore ranks a cluster for maintenance attention.
type PriorityScore struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// Summary carries headline counts of a report.
type Summary struct {
	TotalFAQs     int `json:"totalFaqs"`
	TotalClusters int `json:"totalClusters"`
	TotalGaps     int `json:"totalGaps"`
}

// Degradation names a pipeline stage that ran in a reduced mode.
type Degradation string

const (
	DegradedLexicalSimilarity Degradation = "lexical_similarity"
	DegradedGapsSkipped       Degradation = "gap_detection_skipped"
	DegradedRecencySkipped    Degradation = "recency_skipped"
	DegradedSnapshot          Degradation = "snapshot_unavailable"
	DegradedBudgetExceeded    Degradation = "budget_exceeded"
)

// Report is the output of one analysis run.
type Report struct {
	RunID           string          `json:"runId"`
	Trigger         string          `json:"trigger,omitempty"`
	GeneratedAt     time.Time       `json:"generatedAt"`
	Clusters        []Cluster       `json:"clusters"`
	Gaps            []Gap           `json:"gaps"`
	PriorityRanking []PriorityScore `json:"priorityRanking"`
	Partial         bool            `json:"partial"`
	Stale           bool            `json:"stale"`
	Degradations    []Degradation   `json:"degradations"`
	Summary         Summary         `json:"summary"`
	ArchiveKey      string          `json:"archiveKey,omitempty"`
}

func newReport(runID string, now time.Time) Report {
	return Report{
		RunID:           runID,
		GeneratedAt:     now,
		Clusters:        []Cluster{},
		Gaps:            []Gap{},
		PriorityRanking: []PriorityScore{},
		Degradations:    []Degradation{},
	}
}

func (r *Report) degrade(d Degradation) {
	for _, existing := range r.Degradations {
		if existing == d {
			return
		}
	}
	r.Degradations = append(r.Degradations, d)
	r.Partial = true
}

func (r *Report) summarize(totalFAQs int) {
	r.Summary = Summary{
		TotalFAQs:     totalFAQs,
		TotalClusters: len(r.Clusters),
		TotalGaps:     len(r.Gaps),
	}
}
