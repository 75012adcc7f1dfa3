package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type delivery struct {
	name    string
	payload map[string]any
}

func TestImmediateQueueDeliversToHandler(t *testing.T) {
	got := make(chan delivery, 1)
	q := NewImmediateQueue(nil)
	q.SetHandler(func(_ context.Context, name string, payload map[string]any) {
		got <- delivery{name: name, payload: payload}
	})

	require.NoError(t, q.Enqueue(context.Background(), "faq_analysis.run", map[string]any{"trigger": "queue"}))
	select {
	case d := <-got:
		require.Equal(t, "faq_analysis.run", d.name)
		require.Equal(t, "queue", d.payload["trigger"])
	case <-time.After(time.Second):
		t.Fatal("job not delivered")
	}
}

func TestImmediateQueueNormalizesPayload(t *testing.T) {
	got := make(chan delivery, 1)
	q := NewImmediateQueue(func(_ context.Context, name string, payload map[string]any) {
		got <- delivery{name: name, payload: payload}
	})
	require.NoError(t, q.Enqueue(context.Background(), "job", "not a map"))
	d := <-got
	require.NotNil(t, d.payload)
	require.Empty(t, d.payload)
}

func TestImmediateQueueWithoutHandler(t *testing.T) {
	require.NoError(t, NewImmediateQueue(nil).Enqueue(context.Background(), "job", nil))
}
