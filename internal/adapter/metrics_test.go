package adapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

func TestNewMetrics(t *testing.T) {
	assert.IsType(t, NoopMetrics{}, NewMetrics(""))
	assert.IsType(t, &TextfileMetrics{}, NewMetrics("metrics.prom"))
}

func TestTextfileMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "mutiny.prom")
	metrics := NewTextfileMetrics(path)

	metrics.MutantTested(m.Killed, 2*time.Second)
	metrics.MutantTested(m.Killed, time.Second)
	metrics.MutantTested(m.Survived, 0)
	metrics.WorkerCreated("test-runner")
	metrics.WorkerRestarted("timeout")
	metrics.SetMutationScore(66.7)

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.mutantsTotal.WithLabelValues("Killed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.workerRestarts.WithLabelValues("timeout")), 0)
	assert.InDelta(t, 66.7, testutil.ToFloat64(metrics.mutationScore), 0.001)

	require.NoError(t, metrics.Flush())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `mutiny_mutants_total{status="Survived"} 1`)
	assert.Contains(t, string(content), "mutiny_last_run_timestamp_seconds")
}

func TestNoopMetrics(t *testing.T) {
	metrics := NoopMetrics{}
	metrics.MutantTested(m.Killed, time.Second)
	metrics.WorkerCreated("checker")
	metrics.WorkerRestarted("crash")
	metrics.SetMutationScore(1)
	require.NoError(t, metrics.Flush())
}
