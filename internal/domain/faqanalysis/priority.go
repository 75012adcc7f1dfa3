package faqanalysis

import (
	"math"
	"sort"
	"time"
)

// Candidate is anything the priority scorer can rank. Order, when set on both sides,
// breaks score ties ahead of ID.
type Candidate struct {
	ID             string
	Order          int64
	AskCount       int64
	UnhelpfulCount int64
	LastAskedAt    time.Time
}

// Weights parameterize the priority formula. They conventionally sum to 1.
type Weights struct {
	Frequency float64
	Feedback  float64
	Recency   float64
	HalfLife  time.Duration
}

// WeightsFrom extracts the scorer weights from cfg.
func WeightsFrom(cfg Config) Weights {
	return Weights{
		Frequency: cfg.FrequencyWeight,
		Feedback:  cfg.FeedbackWeight,
		Recency:   cfg.RecencyWeight,
		HalfLife:  cfg.RecencyHalfLife,
	}
}

// Rank scores candidates as
//
//	frequency*ask/maxAsk + feedback*unhelpful/maxUnhelpful + recency*exp(-ln2*age/halfLife)
//
// and orders them by score descending, ties by id. When now is zero or any candidate was
// asked after now, the recency term is dropped for every candidate and recencySkipped is true.
func Rank(candidates []Candidate, w Weights, now time.Time) (ranking []PriorityScore, recencySkipped bool) {
	var maxAsk, maxUnhelpful int64
	for _, c := range candidates {
		maxAsk = max(maxAsk, c.AskCount)
		maxUnhelpful = max(maxUnhelpful, c.UnhelpfulCount)
		if !c.LastAskedAt.IsZero() && c.LastAskedAt.After(now) {
			recencySkipped = true
		}
	}
	if now.IsZero() {
		recencySkipped = true
	}

	ranking = make([]PriorityScore, 0, len(candidates))
	orders := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		score := w.Frequency*ratio(c.AskCount, maxAsk) + w.Feedback*ratio(c.UnhelpfulCount, maxUnhelpful)
		if !recencySkipped {
			score += w.Recency * recency(c.LastAskedAt, now, w.HalfLife)
		}
		ranking = append(ranking, PriorityScore{ID: c.ID, Score: score})
		orders = append(orders, c.Order)
	}
	sort.Sort(byPriority{ranking: ranking, orders: orders})
	for i := range ranking {
		ranking[i].Rank = i + 1
	}
	return ranking, recencySkipped
}

// byPriority sorts by score descending, then numeric order, then id.
type byPriority struct {
	ranking []PriorityScore
	orders  []int64
}

func (b byPriority) Len() int { return len(b.ranking) }

func (b byPriority) Swap(i, j int) {
	b.ranking[i], b.ranking[j] = b.ranking[j], b.ranking[i]
	b.orders[i], b.orders[j] = b.orders[j], b.orders[i]
}

func (b byPriority) Less(i, j int) bool {
	if b.ranking[i].Score != b.ranking[j].Score {
		return b.ranking[i].Score > b.ranking[j].Score
	}
	if b.orders[i] != b.orders[j] && b.orders[i] > 0 && b.orders[j] > 0 {
		return b.orders[i] < b.orders[j]
	}
	return b.ranking[i].ID < b.ranking[j].ID
}

func ratio(v, maxV int64) float64 {
	if maxV <= 0 {
		return 0
	}
	return float64(v) / float64(maxV)
}

// recency decays by half every halfLife; never-asked candidates score 0.
func recency(last, now time.Time, halfLife time.Duration) float64 {
	if last.IsZero() || halfLife <= 0 {
		return 0
	}
	age := now.Sub(last)
	return math.Exp(-math.Ln2 * float64(age) / float64(halfLife))
}

func clusterCandidates(clusters []Cluster) []Candidate {
	out := make([]Candidate, len(clusters))
	for i, c := range clusters {
		out[i] = Candidate{
			ID:             c.ID,
			Order:          c.RepresentativeID,
			AskCount:       c.AskCount,
			UnhelpfulCount: c.UnhelpfulCount,
			LastAskedAt:    c.LastAskedAt,
		}
	}
	return out
}
