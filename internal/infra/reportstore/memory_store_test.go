package reportstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
)

func TestMemoryStoreKeepsLatest(t *testing.T) {
	store := NewMemoryStore()
	_, ok, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(context.Background(), faqanalysis.Report{RunID: "a"}))
	require.NoError(t, store.Save(context.Background(), faqanalysis.Report{RunID: "b"}))
	got, ok, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", got.RunID)
}

func TestValkeyStoreKeys(t *testing.T) {
	require.Equal(t, "eldertech:faq_analysis:report:latest", NewValkeyStore(nil, "", 0).latestKey())
	require.Equal(t, "custom:report:latest", NewValkeyStore(nil, "custom", 0).latestKey())
}
