package jobmetrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerEndRecordsStatus(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("prune").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("prune").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("prune", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("prune", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("prune")))
}

func TestTrackerSeparatesRejectedPayloads(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	err := m.Track("import").End(fmt.Errorf("decode: %w", asynq.SkipRetry))
	require.ErrorIs(t, err, asynq.SkipRetry)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("import", "rejected")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.failures.WithLabelValues("import")))
}

func TestAddPrunedIgnoresNonPositive(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddPruned(0)
	m.AddPruned(12)
	require.Equal(t, 12.0, testutil.ToFloat64(m.pruned))

	var nilMetrics *Metrics
	nilMetrics.AddPruned(3)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
