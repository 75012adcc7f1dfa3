package faqanalysis

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
	"github.com/yanqian/eldertech-assistant/pkg/util"
)

// Input is the read-only snapshot a run works on.
type Input struct {
	Entries []faq.Entry
	Queries []faq.QueryStat
	// QueryLogUnavailable skips gap detection and marks the report partial.
	QueryLogUnavailable bool
}

// Pipeline runs similarity, clustering, gap analysis and priority scoring in one pass.
type Pipeline struct {
	engine *Engine
	logger *slog.Logger
	clock  util.Clock
	runID  func() string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the run clock. A clock returning the zero time disables recency.
func WithClock(clock util.Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(next func() string) Option {
	return func(p *Pipeline) { p.runID = next }
}

// NewPipeline builds a Pipeline around engine.
func NewPipeline(engine *Engine, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine: engine,
		logger: logger.With("component", "faqanalysis.pipeline"),
		clock:  util.NowUTC,
		runID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run produces a report for in. Configuration errors are returned before any work starts.
// Provider, query log and clock problems degrade the report instead of failing it. When
// the time budget expires the run emits nothing and returns ErrBudgetExceeded.
func (p *Pipeline) Run(ctx context.Context, cfg Config, in Input) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	if !cfg.Enabled {
		return Report{}, apperrors.Wrap(CodeDisabled, "faq analysis is disabled", ErrDisabled)
	}
	runCtx := ctx
	if cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.TimeBudget)
		defer cancel()
	}

	report := newReport(p.runID(), p.clock())
	entries := dedupeEntries(in.Entries)
	if len(entries) == 0 {
		report.summarize(0)
		return report, nil
	}

	var queries []faq.QueryStat
	if in.QueryLogUnavailable {
		report.degrade(DegradedGapsSkipped)
	} else {
		queries = sortedQueries(in.Queries)
	}

	texts := make([]string, 0, len(entries)+len(queries))
	for _, e := range entries {
		texts = append(texts, e.Question)
	}
	for _, q := range queries {
		texts = append(texts, queryText(q))
	}
	ix, degraded, err := p.engine.Index(runCtx, texts)
	if err != nil {
		return Report{}, abort(ctx, err)
	}
	if degraded {
		report.degrade(DegradedLexicalSimilarity)
	}

	clusters, err := BuildClusters(runCtx, entries, ix, cfg.SimilarityThreshold, cfg.Workers)
	if err != nil {
		return Report{}, abort(ctx, err)
	}
	report.Clusters = clusters

	if !in.QueryLogUnavailable {
		gaps, err := detectGaps(runCtx, cfg, entries, clusters, queries, ix)
		if err != nil {
			return Report{}, abort(ctx, err)
		}
		report.Gaps = gaps
	}

	ranking, recencySkipped := Rank(clusterCandidates(clusters), WeightsFrom(cfg), report.GeneratedAt)
	if recencySkipped && cfg.RecencyWeight > 0 {
		report.degrade(DegradedRecencySkipped)
	}
	report.PriorityRanking = ranking

	if err := runCtx.Err(); err != nil {
		return Report{}, abort(ctx, err)
	}
	report.summarize(len(entries))
	p.logger.Info("faq analysis complete",
		"runId", report.RunID,
		"entries", len(entries),
		"queries", len(queries),
		"clusters", len(report.Clusters),
		"gaps", len(report.Gaps),
		"lexical", ix.Lexical(),
		"partial", report.Partial,
	)
	return report, nil
}

// detectGaps attaches each query to the most similar cluster representative and reports
// poorly covered topics. Queries in the index follow the entries.
func detectGaps(ctx context.Context, cfg Config, entries []faq.Entry, clusters []Cluster, queries []faq.QueryStat, ix *Index) ([]Gap, error) {
	pos := make(map[int64]int, len(entries))
	byID := make(map[int64]faq.Entry, len(entries))
	for i, e := range entries {
		pos[e.ID] = i
		byID[e.ID] = e
	}
	offset := len(entries)
	attached := make([][]faq.QueryStat, len(clusters))
	var uncovered []faq.QueryStat
	var uncoveredPos []int
	for q, stat := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		best, bestScore := -1, -1.0
		for c, cluster := range clusters {
			score := ix.Score(offset+q, pos[cluster.RepresentativeID])
			if score >= cfg.SimilarityThreshold && score > bestScore {
				best, bestScore = c, score
			}
		}
		if best >= 0 {
			attached[best] = append(attached[best], stat)
			continue
		}
		if needsAttention(stat, cfg.CoverageThreshold) {
			uncovered = append(uncovered, stat)
			uncoveredPos = append(uncoveredPos, offset+q)
		}
	}

	groups, err := groupQueries(ctx, ix, uncovered, uncoveredPos, cfg)
	if err != nil {
		return nil, err
	}

	lowCoverage := append(clusterGaps(clusters, byID, attached, cfg.CoverageThreshold), uncoveredGaps(groups, cfg.CoverageThreshold)...)
	orderGaps(lowCoverage)
	byCategory := categoryGaps(entries, cfg)
	orderGaps(byCategory)
	return append(append([]Gap{}, lowCoverage...), byCategory...), nil
}

// groupQueries clusters unattached queries among themselves with the same threshold.
func groupQueries(ctx context.Context, ix *Index, stats []faq.QueryStat, positions []int, cfg Config) ([][]faq.QueryStat, error) {
	if len(stats) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(stats))
	for i := range ids {
		ids[i] = int64(i)
	}
	rows, err := LinkPairs(ctx, subsetScorer{ix: ix, positions: positions}, ids, cfg.SimilarityThreshold, cfg.Workers)
	if err != nil {
		return nil, err
	}
	uf := newUnionFind(len(stats))
	for _, row := range rows {
		for _, pair := range row {
			uf.union(int(pair.A), int(pair.B))
		}
	}
	var groups [][]faq.QueryStat
	for _, members := range uf.groups() {
		group := make([]faq.QueryStat, len(members))
		for i, m := range members {
			group[i] = stats[m]
		}
		groups = append(groups, group)
	}
	return groups, nil
}

type subsetScorer struct {
	ix        *Index
	positions []int
}

func (s subsetScorer) Score(i, j int) float64 {
	return s.ix.Score(s.positions[i], s.positions[j])
}

func abort(parent context.Context, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return apperrors.Wrap(CodeCanceled, "faq analysis canceled", parentErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(CodeBudgetExceeded, "faq analysis exceeded its time budget", ErrBudgetExceeded)
	}
	return err
}

// dedupeEntries sorts by id and keeps the first occurrence of each id.
func dedupeEntries(in []faq.Entry) []faq.Entry {
	out := make([]faq.Entry, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	kept := make([]faq.Entry, 0, len(out))
	for _, e := range out {
		if len(kept) > 0 && kept[len(kept)-1].ID == e.ID {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func sortedQueries(in []faq.QueryStat) []faq.QueryStat {
	out := make([]faq.QueryStat, 0, len(in))
	for _, q := range in {
		if q.AskedCount > 0 {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Canonical < out[j].Canonical })
	return out
}

func queryText(q faq.QueryStat) string {
	if q.Display != "" {
		return q.Display
	}
	return q.Canonical
}
