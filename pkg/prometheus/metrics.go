package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// register 以 name 为键在 store 中占位后注册 build 构造的指标
// 同名指标只能注册一次，注册失败时释放占位
func register[V prometheus.Collector](c *Client, store *sync.Map, name string, build func() V) (V, error) {
	var zero V
	if c.IsClosed() {
		return zero, ErrClientClosed
	}
	if _, loaded := store.LoadOrStore(name, nil); loaded {
		return zero, ErrMetricExists
	}

	vec := build()
	if err := c.registry.Register(vec); err != nil {
		store.Delete(name)
		return zero, err
	}
	store.Store(name, vec)
	return vec, nil
}

// lookup 注册完成前占位值为 nil，视为不存在
func lookup[V any](store *sync.Map, name string) (V, bool) {
	var zero V
	v, ok := store.Load(name)
	if !ok || v == nil {
		return zero, false
	}
	vec, ok := v.(V)
	return vec, ok
}

func must[V any](v V, err error) V {
	if err != nil {
		panic(err)
	}
	return v
}

// NewCounter 创建并注册 Counter
func (c *Client) NewCounter(name, help string, labels []string) (*prometheus.CounterVec, error) {
	return register(c, &c.counters, name, func() *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	})
}

// MustNewCounter 创建 Counter，失败则 panic
func (c *Client) MustNewCounter(name, help string, labels []string) *prometheus.CounterVec {
	return must(c.NewCounter(name, help, labels))
}

// GetCounter 获取已注册的 Counter
func (c *Client) GetCounter(name string) (*prometheus.CounterVec, bool) {
	return lookup[*prometheus.CounterVec](&c.counters, name)
}

// NewGauge 创建并注册 Gauge
func (c *Client) NewGauge(name, help string, labels []string) (*prometheus.GaugeVec, error) {
	return register(c, &c.gauges, name, func() *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	})
}

// MustNewGauge 创建 Gauge，失败则 panic
func (c *Client) MustNewGauge(name, help string, labels []string) *prometheus.GaugeVec {
	return must(c.NewGauge(name, help, labels))
}

// GetGauge 获取已注册的 Gauge
func (c *Client) GetGauge(name string) (*prometheus.GaugeVec, bool) {
	return lookup[*prometheus.GaugeVec](&c.gauges, name)
}

// NewHistogram 创建并注册 Histogram，buckets 为空时使用默认分桶
func (c *Client) NewHistogram(name, help string, labels []string, buckets []float64) (*prometheus.HistogramVec, error) {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return register(c, &c.histograms, name, func() *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		}, labels)
	})
}

// MustNewHistogram 创建 Histogram，失败则 panic
func (c *Client) MustNewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return must(c.NewHistogram(name, help, labels, buckets))
}

// GetHistogram 获取已注册的 Histogram
func (c *Client) GetHistogram(name string) (*prometheus.HistogramVec, bool) {
	return lookup[*prometheus.HistogramVec](&c.histograms, name)
}

// RegisterCollector 注册自定义 Collector
func (c *Client) RegisterCollector(collector prometheus.Collector) error {
	if c.IsClosed() {
		return ErrClientClosed
	}
	return c.registry.Register(collector)
}

// MustRegisterCollector 注册自定义 Collector，失败则 panic
func (c *Client) MustRegisterCollector(collector prometheus.Collector) {
	if err := c.RegisterCollector(collector); err != nil {
		panic(err)
	}
}
