package faqanalysis

import (
	"context"
	"time"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

// SnapshotSource supplies the entries a run analyses.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]faq.Entry, error)
}

// QueryLog supplies recently asked questions.
type QueryLog interface {
	QueryStats(ctx context.Context, since time.Time) ([]faq.QueryStat, error)
}

// ReportStore keeps the latest report.
type ReportStore interface {
	Save(ctx context.Context, report Report) error
	Latest(ctx context.Context) (Report, bool, error)
}

// ObjectStorage archives serialized reports.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}

// JobQueue defers runs to a background worker.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
}
