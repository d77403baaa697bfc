package sink

import (
	"context"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/metrics"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
)

// Metrics 把快照写入 Prometheus 指标
type Metrics struct {
	m *metrics.Metrics
}

// NewMetrics 创建指标 Sink
func NewMetrics(m *metrics.Metrics) *Metrics {
	return &Metrics{m: m}
}

func (s *Metrics) Send(_ context.Context, o *model.Overview) error {
	s.m.ObserveOverview(o)
	return nil
}
