package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/pkg/prometheus"
)

func newMetrics(t *testing.T) *Metrics {
	t.Helper()
	c, err := prometheus.New(&prometheus.Config{Namespace: "bulk"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	m, err := New(c)
	require.NoError(t, err)
	return m
}

func TestObserveIteration(t *testing.T) {
	m := newMetrics(t)
	m.ObserveIteration(model.MutationDelete, 2, 1, 1, 10*time.Millisecond)
	m.ObserveIteration(model.MutationDelete, 2, 2, 0, 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.iterations.WithLabelValues("delete")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.keys.WithLabelValues("delete", "scanned")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.keys.WithLabelValues("delete", "succeed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.keys.WithLabelValues("delete", "failed")))
}

func TestActionLifecycle(t *testing.T) {
	m := newMetrics(t)
	m.ActionStarted(model.MutationUnlink)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.running.WithLabelValues("unlink")))

	m.ActionFinished(model.MutationUnlink, model.StatusStopped)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.running.WithLabelValues("unlink")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.finished))

	m.ActionStarted(model.MutationUnlink)
	m.ActionFinished(model.MutationUnlink, model.StatusCompleted)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.finished.WithLabelValues("unlink", "completed")))
}

func TestObserveOverview(t *testing.T) {
	m := newMetrics(t)
	o := &model.Overview{ID: "a1", Status: model.StatusRunning}
	o.Progress.Total = 100
	o.Progress.Scanned = 40

	m.ObserveOverview(o)
	assert.Equal(t, float64(100), testutil.ToFloat64(m.progress.WithLabelValues("a1", "total")))
	assert.Equal(t, 4, testutil.CollectAndCount(m.progress))

	o.Status = model.StatusCompleted
	m.ObserveOverview(o)
	assert.Equal(t, 0, testutil.CollectAndCount(m.progress))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIteration(model.MutationDelete, 1, 1, 0, time.Second)
		m.ActionStarted(model.MutationDelete)
		m.ActionFinished(model.MutationDelete, model.StatusFailed)
		m.ObserveOverview(&model.Overview{})
	})
}
