package faqanalysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

const (
	neutralFeedbackRatio = 0.5
	sparseCategoryExtra  = 2
)

// Coverage combines answer confidence and feedback ratio with equal weight.
func Coverage(answerConfidence, feedbackRatio float64) float64 {
	return 0.5*answerConfidence + 0.5*feedbackRatio
}

// FeedbackRatio is helpful / (helpful + unhelpful), or 0.5 without feedback.
func FeedbackRatio(helpful, unhelpful int64) float64 {
	total := helpful + unhelpful
	if total <= 0 {
		return neutralFeedbackRatio
	}
	return float64(helpful) / float64(total)
}

// AnswerConfidence averages best confidence scaled by answered share, weighted by how often
// each query was asked. Without attached queries a topic is assumed fully answered.
func AnswerConfidence(queries []faq.QueryStat) float64 {
	var sum, weight float64
	for _, q := range queries {
		if q.AskedCount <= 0 {
			continue
		}
		share := float64(q.AnsweredCount) / float64(q.AskedCount)
		sum += float64(q.AskedCount) * q.BestConfidence * share
		weight += float64(q.AskedCount)
	}
	if weight == 0 {
		return 1
	}
	return sum / weight
}

// needsAttention reports whether an unattached query deserves its own topic.
func needsAttention(q faq.QueryStat, coverageThreshold float64) bool {
	return q.AnsweredCount < q.AskedCount || q.BestConfidence < coverageThreshold
}

// clusterGaps reports clusters whose coverage is below threshold. attached[i] holds the
// queries matched to clusters[i].
func clusterGaps(clusters []Cluster, entries map[int64]faq.Entry, attached [][]faq.QueryStat, threshold float64) []Gap {
	var gaps []Gap
	for i, c := range clusters {
		coverage := Coverage(AnswerConfidence(attached[i]), FeedbackRatio(c.HelpfulCount, c.UnhelpfulCount))
		if coverage >= threshold {
			continue
		}
		var (
			count     int64
			firstSeen time.Time
		)
		for _, q := range attached[i] {
			count += q.AskedCount
			firstSeen = earliest(firstSeen, q.FirstSeen)
		}
		if firstSeen.IsZero() {
			for _, id := range c.EntryIDs {
				firstSeen = earliest(firstSeen, entries[id].CreatedAt)
			}
		}
		gaps = append(gaps, Gap{
			Kind:       GapLowCoverage,
			Topic:      c.Representative,
			ClusterID:  c.ID,
			Coverage:   coverage,
			QueryCount: count,
			EntryCount: len(c.EntryIDs),
			FirstSeen:  firstSeen,
			Recommendation: fmt.Sprintf("Review the answers for %q: coverage %.2f across %d asks",
				c.Representative, coverage, count),
		})
	}
	return gaps
}

// uncoveredGaps turns groups of unanswered queries into topics with zero coverage.
func uncoveredGaps(groups [][]faq.QueryStat, threshold float64) []Gap {
	if threshold <= 0 {
		return nil
	}
	gaps := make([]Gap, 0, len(groups))
	for _, group := range groups {
		lead := group[0]
		var (
			count     int64
			firstSeen time.Time
		)
		for _, q := range group {
			count += q.AskedCount
			firstSeen = earliest(firstSeen, q.FirstSeen)
			if q.AskedCount > lead.AskedCount ||
				(q.AskedCount == lead.AskedCount && q.FirstSeen.Before(lead.FirstSeen)) {
				lead = q
			}
		}
		topic := lead.Display
		if topic == "" {
			topic = lead.Canonical
		}
		gaps = append(gaps, Gap{
			Kind:           GapLowCoverage,
			Topic:          topic,
			QueryCount:     count,
			FirstSeen:      firstSeen,
			Recommendation: fmt.Sprintf("Add an FAQ answering %q (asked %d times without a matching entry)", topic, count),
		})
	}
	return gaps
}

// categoryGaps flags categories holding fewer than cfg.MinCategoryEntries entries and
// categories above cfg.LowPriorityMinEntries whose average priority is below
// cfg.LowPriorityThreshold.
func categoryGaps(entries []faq.Entry, cfg Config) []Gap {
	minEntries := cfg.MinCategoryEntries
	if minEntries <= 0 && cfg.LowPriorityThreshold <= 0 {
		return nil
	}
	type bucket struct {
		name        string
		count       int
		prioritySum int
		firstSeen   time.Time
	}
	buckets := make(map[int64]*bucket)
	for _, e := range entries {
		if e.CategoryID == 0 {
			continue
		}
		b, ok := buckets[e.CategoryID]
		if !ok {
			b = &bucket{name: e.Category}
			buckets[e.CategoryID] = b
		}
		b.count++
		b.prioritySum += entryPriority(e)
		b.firstSeen = earliest(b.firstSeen, e.CreatedAt)
	}
	recommended := minEntries + sparseCategoryExtra
	var gaps []Gap
	for id, b := range buckets {
		name := b.name
		if name == "" {
			name = fmt.Sprintf("category %d", id)
		}
		avg := float64(b.prioritySum) / float64(b.count)
		if cfg.LowPriorityThreshold > 0 && b.count > cfg.LowPriorityMinEntries && avg < cfg.LowPriorityThreshold {
			gaps = append(gaps, Gap{
				Kind:           GapLowPriority,
				Topic:          name,
				CategoryID:     id,
				Coverage:       avg / cfg.LowPriorityThreshold,
				EntryCount:     b.count,
				AvgPriority:    avg,
				FirstSeen:      b.firstSeen,
				Recommendation: fmt.Sprintf("Review and prioritize FAQs in the %q category (average priority %.1f)", name, avg),
			})
		}
		if minEntries <= 0 || b.count >= minEntries {
			continue
		}
		gaps = append(gaps, Gap{
			Kind:       GapSparseCategory,
			Topic:      name,
			CategoryID: id,
			Coverage:   float64(b.count) / float64(minEntries),
			EntryCount: b.count,
			FirstSeen:  b.firstSeen,
			Recommendation: fmt.Sprintf("Add more FAQs to the %q category (currently %d, recommend at least %d)",
				name, b.count, recommended),
		})
	}
	return gaps
}

func entryPriority(e faq.Entry) int {
	if e.Priority <= 0 {
		return faq.DefaultPriority
	}
	return e.Priority
}

// orderGaps sorts by query count descending, then first seen, then topic.
func orderGaps(gaps []Gap) {
	sort.SliceStable(gaps, func(i, j int) bool {
		a, b := gaps[i], gaps[j]
		if a.QueryCount != b.QueryCount {
			return a.QueryCount > b.QueryCount
		}
		if !a.FirstSeen.Equal(b.FirstSeen) {
			return a.FirstSeen.Before(b.FirstSeen)
		}
		if a.Topic != b.Topic {
			return a.Topic < b.Topic
		}
		if a.ClusterID != b.ClusterID {
			return a.ClusterID < b.ClusterID
		}
		if a.CategoryID != b.CategoryID {
			return a.CategoryID < b.CategoryID
		}
		return a.Kind < b.Kind
	})
}

func earliest(current, candidate time.Time) time.Time {
	if candidate.IsZero() {
		return current
	}
	if current.IsZero() || candidate.Before(current) {
		return candidate
	}
	return current
}
