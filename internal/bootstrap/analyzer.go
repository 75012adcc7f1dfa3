package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
)

// Analyzer runs one FAQ analysis pass outside the server, for cron style invocations.
type Analyzer struct {
	svc    faqanalysis.Service
	logger *slog.Logger
}

// NewAnalyzer is used by Wire to build the batch runner.
func NewAnalyzer(svc faqanalysis.Service, logger *slog.Logger) *Analyzer {
	return &Analyzer{svc: svc, logger: logger.With("component", "bootstrap.analyzer")}
}

// Run executes the pipeline and writes the JSON report to output, or to stdout when
// output is empty.
func (a *Analyzer) Run(ctx context.Context, output string, stdout io.Writer) error {
	report, err := a.svc.Run(ctx, faqanalysis.TriggerCLI)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if output == "" {
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	a.logger.Info("faq analysis report written",
		"path", output,
		"faqs", report.Summary.TotalFAQs,
		"clusters", report.Summary.TotalClusters,
		"gaps", report.Summary.TotalGaps,
		"stale", report.Stale,
	)
	return nil
}
