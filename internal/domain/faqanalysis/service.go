package faqanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
	"github.com/yanqian/eldertech-assistant/pkg/metrics"
	"github.com/yanqian/eldertech-assistant/pkg/util"
)

// JobName identifies queued analysis runs.
const JobName = "faq_analysis.run"

// Triggers recorded on reports and metrics.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
	TriggerQueue    = "queue"
)

// Service runs the pipeline against live data and keeps the latest report.
type Service interface {
	// Run analyses the current knowledge base. Overlapping calls are rejected.
	Run(ctx context.Context, trigger string) (Report, error)
	Latest(ctx context.Context) (Report, error)
	// Enqueue schedules a run on the job queue and returns its job id.
	Enqueue(ctx context.Context, requestedBy string) (string, error)
	// HandleJob executes a queued run.
	HandleJob(ctx context.Context, name string, payload map[string]any)
}

type service struct {
	cfg           Config
	archivePrefix string
	pipeline      *Pipeline
	source        SnapshotSource
	queries       QueryLog
	reports       ReportStore
	archive       ObjectStorage
	queue         JobQueue
	logger        *slog.Logger
	clock         util.Clock
	mu            sync.Mutex
}

// NewService wires the analysis service. queries, archive and queue may be nil.
func NewService(
	cfg Config,
	archivePrefix string,
	pipeline *Pipeline,
	source SnapshotSource,
	queries QueryLog,
	reports ReportStore,
	archive ObjectStorage,
	queue JobQueue,
	logger *slog.Logger,
) Service {
	return &service{
		cfg:           cfg,
		archivePrefix: archivePrefix,
		pipeline:      pipeline,
		source:        source,
		queries:       queries,
		reports:       reports,
		archive:       archive,
		queue:         queue,
		logger:        logger.With("component", "faqanalysis.service"),
		clock:         util.NowUTC,
	}
}

func (s *service) Run(ctx context.Context, trigger string) (Report, error) {
	if !s.mu.TryLock() {
		return Report{}, apperrors.Wrap(CodeRunning, "faq analysis already running", ErrRunInProgress)
	}
	defer s.mu.Unlock()

	start := time.Now()
	report, outcome, err := s.run(ctx, trigger)
	metrics.AnalysisRuns.WithLabelValues(trigger, outcome).Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn("faq analysis failed", "trigger", trigger, "outcome", outcome, "error", err)
		return Report{}, err
	}
	for _, d := range report.Degradations {
		metrics.AnalysisDegradations.WithLabelValues(string(d)).Inc()
	}
	return report, nil
}

func (s *service) run(ctx context.Context, trigger string) (Report, string, error) {
	if err := s.cfg.Validate(); err != nil {
		return Report{}, "invalid_config", err
	}
	if !s.cfg.Enabled {
		return Report{}, "disabled", apperrors.Wrap(CodeDisabled, "faq analysis is disabled", ErrDisabled)
	}

	entries, err := s.source.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("faq snapshot unavailable", "error", err)
		report, err := s.stale(ctx, trigger, DegradedSnapshot)
		return report, "stale", err
	}

	in := Input{Entries: entries}
	if s.queries == nil {
		in.QueryLogUnavailable = true
	} else {
		var since time.Time
		if s.cfg.QueryWindow > 0 {
			since = s.clock().Add(-s.cfg.QueryWindow)
		}
		stats, err := s.queries.QueryStats(ctx, since)
		if err != nil {
			s.logger.Warn("faq query log unavailable", "error", err)
			in.QueryLogUnavailable = true
		}
		in.Queries = stats
	}

	report, err := s.pipeline.Run(ctx, s.cfg, in)
	if errors.Is(err, ErrBudgetExceeded) {
		report, err := s.stale(ctx, trigger, DegradedBudgetExceeded)
		return report, "budget_exceeded", err
	}
	if err != nil {
		return Report{}, "error", err
	}
	report.Trigger = trigger

	s.archiveReport(ctx, &report)
	if err := s.reports.Save(ctx, report); err != nil {
		s.logger.Warn("faq report save failed", "runId", report.RunID, "error", err)
	}
	metrics.AnalysisClusters.Set(float64(len(report.Clusters)))
	metrics.AnalysisGaps.Set(float64(len(report.Gaps)))

	outcome := "complete"
	if report.Partial {
		outcome = "partial"
	}
	return report, outcome, nil
}

// stale returns the previous report marked stale, or an empty stale marker.
func (s *service) stale(ctx context.Context, trigger string, reason Degradation) (Report, error) {
	previous, ok, err := s.reports.Latest(ctx)
	if err != nil {
		s.logger.Warn("faq previous report unavailable", "error", err)
	}
	if !ok {
		previous = newReport(uuid.NewString(), s.clock())
		previous.Trigger = trigger
	}
	previous.Stale = true
	previous.Degradations = append(append([]Degradation{}, previous.Degradations...), reason)
	return previous, nil
}

func (s *service) archiveReport(ctx context.Context, report *Report) {
	if s.archive == nil {
		return
	}
	stamp := report.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	key := path.Join(s.archivePrefix, fmt.Sprintf("clustering_results_%s.json", util.Timestamp(stamp)))
	report.ArchiveKey = key
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		report.ArchiveKey = ""
		s.logger.Warn("faq report encode failed", "error", err)
		return
	}
	if _, err := s.archive.Put(ctx, key, payload, "application/json"); err != nil {
		report.ArchiveKey = ""
		s.logger.Warn("faq report archive failed", "key", key, "error", err)
		return
	}
	s.logger.Info("faq report archived", "key", key, "bytes", len(payload))
}

func (s *service) Latest(ctx context.Context) (Report, error) {
	report, ok, err := s.reports.Latest(ctx)
	if err != nil {
		return Report{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to load analysis report", err)
	}
	if !ok {
		return Report{}, apperrors.Wrap(apperrors.CodeNotFound, "no analysis report yet", nil)
	}
	return report, nil
}

func (s *service) Enqueue(ctx context.Context, requestedBy string) (string, error) {
	if s.queue == nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "background runs are not configured", nil)
	}
	if !s.cfg.Enabled {
		return "", apperrors.Wrap(CodeDisabled, "faq analysis is disabled", ErrDisabled)
	}
	jobID := uuid.NewString()
	payload := map[string]any{
		"jobId":       jobID,
		"trigger":     TriggerQueue,
		"requestedBy": requestedBy,
	}
	if err := s.queue.Enqueue(ctx, JobName, payload); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStoreError, "failed to enqueue analysis run", err)
	}
	s.logger.Info("faq analysis enqueued", "jobId", jobID, "requestedBy", requestedBy)
	return jobID, nil
}

func (s *service) HandleJob(ctx context.Context, name string, payload map[string]any) {
	if name != JobName {
		s.logger.Warn("unknown job ignored", "job", name)
		return
	}
	trigger, _ := payload["trigger"].(string)
	if trigger == "" {
		trigger = TriggerQueue
	}
	// Queued runs outlive the request that enqueued them.
	report, err := s.Run(context.WithoutCancel(ctx), trigger)
	if err != nil {
		s.logger.Warn("queued faq analysis failed", "jobId", payload["jobId"], "error", err)
		return
	}
	s.logger.Info("queued faq analysis finished", "jobId", payload["jobId"], "runId", report.RunID, "stale", report.Stale)
}
