package instrumented_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"link-insights/internal/lib/metrics"
	"link-insights/internal/storage"
	"link-insights/internal/storage/instrumented"
	"link-insights/internal/storage/memory"
	"link-insights/internal/storage/storagetest"
)

func TestStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return instrumented.New(memory.New())
	})
}

func TestRecordsOperationStatus(t *testing.T) {
	s := instrumented.New(memory.New())

	before := testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("LinkByCode", "error"))

	_, err := s.LinkByCode(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	after := testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("LinkByCode", "error"))
	require.Equal(t, before+1, after)
}
