package faqanalysis

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
)

// Config is passed explicitly into every run.
type Config struct {
	Enabled             bool
	SimilarityThreshold float64
	CoverageThreshold   float64
	FrequencyWeight     float64
	FeedbackWeight      float64
	RecencyWeight       float64
	RecencyHalfLife     time.Duration
	// TimeBudget bounds a whole run; zero disables the budget.
	TimeBudget time.Duration
	// Workers bounds the pairwise similarity fan-out; zero or one scores serially.
	Workers int
	// MinCategoryEntries flags categories with fewer entries; zero disables the check.
	MinCategoryEntries int
	// QueryWindow limits the query log to recent questions; zero reads everything.
	QueryWindow time.Duration
	// LowPriorityThreshold flags categories whose average entry priority is below it;
	// zero disables the check.
	LowPriorityThreshold float64
	// LowPriorityMinEntries is the entry count a category must exceed to be checked.
	LowPriorityMinEntries int
}

// DefaultConfig mirrors the nightly job defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		SimilarityThreshold:   0.7,
		CoverageThreshold:     0.5,
		FrequencyWeight:       0.5,
		FeedbackWeight:        0.3,
		RecencyWeight:         0.2,
		RecencyHalfLife:       7 * 24 * time.Hour,
		TimeBudget:            2 * time.Minute,
		Workers:               4,
		MinCategoryEntries:    3,
		QueryWindow:           30 * 24 * time.Hour,
		LowPriorityThreshold:  2,
		LowPriorityMinEntries: 5,
	}
}

// Validate reports ErrConfigInvalid wrapped in an AppError.
func (c Config) Validate() error {
	var problem string
	switch {
	case !inUnitInterval(c.SimilarityThreshold):
		problem = fmt.Sprintf("similarity threshold %v must be within [0,1]", c.SimilarityThreshold)
	case !inUnitInterval(c.CoverageThreshold):
		problem = fmt.Sprintf("coverage threshold %v must be within [0,1]", c.CoverageThreshold)
	case !validWeight(c.FrequencyWeight) || !validWeight(c.FeedbackWeight) || !validWeight(c.RecencyWeight):
		problem = "priority weights must be finite and non-negative"
	case c.FrequencyWeight+c.FeedbackWeight+c.RecencyWeight == 0:
		problem = "at least one priority weight must be positive"
	case c.RecencyWeight > 0 && c.RecencyHalfLife <= 0:
		problem = "recency half-life must be positive when recency weight is set"
	case c.TimeBudget < 0:
		problem = "time budget cannot be negative"
	case c.Workers < 0:
		problem = "workers cannot be negative"
	case c.MinCategoryEntries < 0:
		problem = "min category entries cannot be negative"
	case c.QueryWindow < 0:
		problem = "query window cannot be negative"
	case math.IsNaN(c.LowPriorityThreshold) || c.LowPriorityThreshold < 0:
		problem = "low priority threshold cannot be negative"
	case c.LowPriorityMinEntries < 0:
		problem = "low priority min entries cannot be negative"
	default:
		return nil
	}
	return apperrors.Wrap(CodeConfigInvalid, problem, ErrConfigInvalid)
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func validWeight(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
