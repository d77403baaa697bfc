// Package metrics 批量任务的 Prometheus 指标
package metrics

import (
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/pkg/prometheus"
)

// Metrics 批量任务指标集合，nil 值可安全调用
type Metrics struct {
	keys       *promclient.CounterVec   // kind, result
	iterations *promclient.CounterVec   // kind
	duration   *promclient.HistogramVec // kind
	finished   *promclient.CounterVec   // kind, status
	running    *promclient.GaugeVec     // kind
	progress   *promclient.GaugeVec     // id, field
}

// New 在 client 上注册批量任务指标
func New(c *prometheus.Client) (*Metrics, error) {
	var (
		m   = &Metrics{}
		err error
	)

	if m.keys, err = c.NewCounter("keys_total", "Keys handled by bulk actions.", []string{"kind", "result"}); err != nil {
		return nil, err
	}
	if m.iterations, err = c.NewCounter("iterations_total", "Bulk action iterations.", []string{"kind"}); err != nil {
		return nil, err
	}
	if m.duration, err = c.NewHistogram("iteration_duration_seconds", "Duration of one scan and mutation round.", []string{"kind"}, nil); err != nil {
		return nil, err
	}
	if m.finished, err = c.NewCounter("actions_finished_total", "Bulk actions reaching a terminal status.", []string{"kind", "status"}); err != nil {
		return nil, err
	}
	if m.running, err = c.NewGauge("actions_running", "Bulk actions currently running.", []string{"kind"}); err != nil {
		return nil, err
	}
	if m.progress, err = c.NewGauge("action_progress", "Latest progress snapshot per bulk action.", []string{"id", "field"}); err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveIteration 记录一轮迭代
func (m *Metrics) ObserveIteration(kind model.MutationKind, scanned, succeed, failed int, d time.Duration) {
	if m == nil {
		return
	}
	k := string(kind)
	m.iterations.WithLabelValues(k).Inc()
	m.duration.WithLabelValues(k).Observe(d.Seconds())
	m.keys.WithLabelValues(k, "scanned").Add(float64(scanned))
	m.keys.WithLabelValues(k, "succeed").Add(float64(succeed))
	m.keys.WithLabelValues(k, "failed").Add(float64(failed))
}

// ActionStarted 任务进入运行
func (m *Metrics) ActionStarted(kind model.MutationKind) {
	if m == nil {
		return
	}
	m.running.WithLabelValues(string(kind)).Inc()
}

// ActionFinished 任务离开运行（暂停或终态）
func (m *Metrics) ActionFinished(kind model.MutationKind, status model.Status) {
	if m == nil {
		return
	}
	m.running.WithLabelValues(string(kind)).Dec()
	if status.IsTerminal() {
		m.finished.WithLabelValues(string(kind), string(status)).Inc()
	}
}

// ObserveOverview 记录任务最新快照，终态时移除该任务的序列
func (m *Metrics) ObserveOverview(o *model.Overview) {
	if m == nil || o == nil {
		return
	}
	if o.Status.IsTerminal() {
		m.progress.DeletePartialMatch(promclient.Labels{"id": o.ID})
		return
	}
	m.progress.WithLabelValues(o.ID, "total").Set(float64(o.Progress.Total))
	m.progress.WithLabelValues(o.ID, "scanned").Set(float64(o.Progress.Scanned))
	m.progress.WithLabelValues(o.ID, "processed").Set(float64(o.Summary.Processed))
	m.progress.WithLabelValues(o.ID, "failed").Set(float64(o.Summary.Failed))
}
