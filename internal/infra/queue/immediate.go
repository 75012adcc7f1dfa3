package queue

import (
	"context"
	"sync"

	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
)

// HandlerQueue supports setting a handler for job delivery.
type HandlerQueue interface {
	faqanalysis.JobQueue
	SetHandler(handler Handler)
}

// Handler executes jobs synchronously or in the background.
type Handler func(ctx context.Context, name string, payload map[string]any)

// ImmediateQueue calls the handler on enqueue in a new goroutine.
type ImmediateQueue struct {
	mu      sync.RWMutex
	handler Handler
}

// NewImmediateQueue constructs the queue.
func NewImmediateQueue(handler Handler) *ImmediateQueue {
	return &ImmediateQueue{handler: handler}
}

// SetHandler replaces the handler used for queued jobs.
func (q *ImmediateQueue) SetHandler(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
}

// Enqueue invokes the handler asynchronously. Jobs enqueued before a handler is set are dropped.
func (q *ImmediateQueue) Enqueue(ctx context.Context, name string, payload any) error {
	typed, ok := payload.(map[string]any)
	if !ok {
		typed = map[string]any{}
	}
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return nil
	}
	go handler(ctx, name, typed)
	return nil
}

var _ HandlerQueue = (*ImmediateQueue)(nil)
