package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
	"github.com/yanqian/eldertech-assistant/pkg/logger"
)

type stubAnalysis struct {
	report  faqanalysis.Report
	err     error
	trigger string
}

func (s *stubAnalysis) Run(_ context.Context, trigger string) (faqanalysis.Report, error) {
	s.trigger = trigger
	return s.report, s.err
}

func (s *stubAnalysis) Latest(context.Context) (faqanalysis.Report, error) {
	return s.report, s.err
}

func (s *stubAnalysis) Enqueue(context.Context, string) (string, error) {
	return "", nil
}

func (s *stubAnalysis) HandleJob(context.Context, string, map[string]any) {}

func TestAnalyzerWritesReportFile(t *testing.T) {
	svc := &stubAnalysis{report: faqanalysis.Report{RunID: "run-9", Summary: faqanalysis.Summary{TotalFAQs: 3}}}
	path := filepath.Join(t.TempDir(), "report.json")

	require.NoError(t, NewAnalyzer(svc, logger.Discard()).Run(context.Background(), path, nil))
	require.Equal(t, faqanalysis.TriggerCLI, svc.trigger)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got faqanalysis.Report
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "run-9", got.RunID)
	require.Equal(t, 3, got.Summary.TotalFAQs)
}

func TestAnalyzerPrintsToStdout(t *testing.T) {
	svc := &stubAnalysis{report: faqanalysis.Report{RunID: "run-2"}}
	var out bytes.Buffer
	require.NoError(t, NewAnalyzer(svc, logger.Discard()).Run(context.Background(), "", &out))
	require.Contains(t, out.String(), `"runId": "run-2"`)
}

func TestAnalyzerPropagatesErrors(t *testing.T) {
	svc := &stubAnalysis{err: errors.New("disabled")}
	err := NewAnalyzer(svc, logger.Discard()).Run(context.Background(), "", &bytes.Buffer{})
	require.Error(t, err)
}
