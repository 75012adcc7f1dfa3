package reportstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
)

const defaultPrefix = "eldertech:faq_analysis"

// ValkeyStore persists the latest report so every replica serves the same one.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyStore builds a store. A non-positive ttl keeps the report until replaced.
func NewValkeyStore(client valkey.Client, prefix string, ttl time.Duration) *ValkeyStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultPrefix
	}
	return &ValkeyStore{client: client, prefix: prefix, ttl: ttl}
}

// Save replaces the latest report.
func (s *ValkeyStore) Save(ctx context.Context, report faqanalysis.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	set := s.client.B().Set().Key(s.latestKey()).Value(string(payload))
	var cmd valkey.Completed
	if s.ttl > 0 {
		cmd = set.Ex(s.ttl).Build()
	} else {
		cmd = set.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

// Latest returns the most recently saved report.
func (s *ValkeyStore) Latest(ctx context.Context) (faqanalysis.Report, bool, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(s.latestKey()).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return faqanalysis.Report{}, false, nil
		}
		return faqanalysis.Report{}, false, err
	}
	var report faqanalysis.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return faqanalysis.Report{}, false, fmt.Errorf("decode report: %w", err)
	}
	return report, true, nil
}

func (s *ValkeyStore) latestKey() string {
	return s.prefix + ":report:latest"
}

var _ faqanalysis.ReportStore = (*ValkeyStore)(nil)
