package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/calvinalkan/blockrev"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveOperation(blockrev.OpRead, 4096, time.Millisecond, nil)
	c.ObserveOperation(blockrev.OpRead, 4096, time.Millisecond, nil)
	c.ObserveOperation(blockrev.OpWrite, 0, time.Millisecond, errors.New("boom"))
	c.ObserveOperation(blockrev.OpSync, 0, 5*time.Millisecond, nil)

	assert.InDelta(t, 2, testutil.ToFloat64(c.operations.WithLabelValues("read", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.operations.WithLabelValues("write", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.operations.WithLabelValues("sync", "ok")), 0)
	assert.InDelta(t, 8192, testutil.ToFloat64(c.opBytes.WithLabelValues("read")), 0)
	assert.Equal(t, 3, testutil.CollectAndCount(c.opDuration))
}

func TestCollector_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveCancel(blockrev.CancelNotCanceled)
	c.ObserveRun(blockrev.Stats{Reads: 4, Writes: 4, Syncs: 3, Reversals: 4}, time.Second, nil)
	c.ObserveRun(blockrev.Stats{Cancelled: true, Reads: 2, Writes: 1}, time.Second, nil)
	c.ObserveRun(blockrev.Stats{Skipped: true}, 0, nil)
	c.ObserveRun(blockrev.Stats{}, 0, errors.New("boom"))

	assert.InDelta(t, 1, testutil.ToFloat64(c.cancels.WithLabelValues("not_canceled")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.runs.WithLabelValues("completed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.runs.WithLabelValues("cancelled")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.runs.WithLabelValues("skipped")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.runs.WithLabelValues("failed")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(c.reversals), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(c.lastIOCounts.WithLabelValues("read")), 0)

	expected := `
# HELP blockrev_reversals_total Total number of fully reversed blocks
# TYPE blockrev_reversals_total counter
blockrev_reversals_total 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "blockrev_reversals_total"))
}

func TestCollector_RecordsRealRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("abcdefgh", 8)+"\n"), 0o600))

	stats, err := blockrev.RewriteFile(t.Context(), path, 4, 3, blockrev.WithSeed(1), blockrev.WithMetrics(c))
	require.NoError(t, err)

	assert.InDelta(t, float64(stats.Reads), testutil.ToFloat64(c.operations.WithLabelValues("read", "ok")), 0)
	assert.InDelta(t, float64(stats.Writes), testutil.ToFloat64(c.operations.WithLabelValues("write", "ok")), 0)
	assert.InDelta(t, float64(stats.Syncs), testutil.ToFloat64(c.operations.WithLabelValues("sync", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.runs.WithLabelValues("completed")), 0)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.ObserveRun(blockrev.Stats{Reversals: 2}, time.Second, nil)

	path := filepath.Join(t.TempDir(), "blockrev.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "blockrev_reversals_total 2")

	require.Error(t, WriteTextfile("", reg))
}
