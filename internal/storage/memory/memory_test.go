package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"link-insights/internal/domain/insight"
	"link-insights/internal/storage"
	"link-insights/internal/storage/memory"
	"link-insights/internal/storage/storagetest"
)

func TestStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return memory.New()
	})
}

func TestInsightHistory(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.AppendInsightHistory(ctx, insight.HistoryEntry{Code: "a", Text: "one", GeneratedAt: time.Now()}))
	require.NoError(t, s.AppendInsightHistory(ctx, insight.HistoryEntry{Code: "b", Text: "two", GeneratedAt: time.Now()}))

	got := s.InsightHistory("a")
	require.Len(t, got, 1)
	require.Equal(t, "one", got[0].Text)
}
