package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/infra/config"
	"github.com/yanqian/eldertech-assistant/pkg/logger"
)

// flakyHandler fails with 500 until failures run out and echoes the body it saw.
type flakyHandler struct {
	failures int
	calls    int
	bodies   []string
}

func (h *flakyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls++
	body, _ := io.ReadAll(r.Body)
	h.bodies = append(h.bodies, string(body))
	if h.calls <= h.failures {
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func TestWithRetry(t *testing.T) {
	cfg := config.RetryConfig{Enabled: true, MaxAttempts: 3, Exclude: []string{"/api/faq/analysis/run"}}
	cases := []struct {
		name        string
		cfg         config.RetryConfig
		path        string
		contentType string
		failures    int
		wantCalls   int
		wantStatus  int
	}{
		{"recovers after transient failures", cfg, "/api/faq/1/feedback", "application/json", 2, 3, http.StatusCreated},
		{"gives up at max attempts", cfg, "/api/faq/1/feedback", "application/json", 5, 3, http.StatusInternalServerError},
		{"excluded path runs once", cfg, "/api/faq/analysis/run", "application/json", 1, 1, http.StatusInternalServerError},
		{"uploads run once", cfg, "/api/speech/transcribe", "multipart/form-data; boundary=x", 1, 1, http.StatusInternalServerError},
		{"disabled runs once", config.RetryConfig{MaxAttempts: 3}, "/api/faq/1/feedback", "application/json", 1, 1, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inner := &flakyHandler{failures: tc.failures}
			handler := withRetry(inner, tc.cfg, logger.Discard())

			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(`{"helpful":true}`))
			req.Header.Set("Content-Type", tc.contentType)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code)
			require.Equal(t, tc.wantCalls, inner.calls)
			if tc.contentType == "application/json" {
				for _, body := range inner.bodies {
					require.Equal(t, `{"helpful":true}`, body)
				}
			}
		})
	}
}

func TestWithRetryStopsWhenClientGoesAway(t *testing.T) {
	inner := &flakyHandler{failures: 5}
	cfg := config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Hour}
	handler := withRetry(inner, cfg, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/faq/1/feedback", strings.NewReader(`{}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, 1, inner.calls)
}

func TestWaitBackoff(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	cases := []struct {
		name    string
		ctx     context.Context
		base    time.Duration
		attempt int
		want    bool
	}{
		{"no backoff", context.Background(), 0, 2, true},
		{"short backoff", context.Background(), time.Millisecond, 3, true},
		{"canceled without backoff", canceled, 0, 2, false},
		{"canceled during backoff", canceled, time.Hour, 2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, waitBackoff(tc.ctx, tc.base, tc.attempt))
		})
	}
}
