package prometheus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lk2023060901/xdooria-bulk/pkg/logger"
)

// Client Prometheus 客户端，使用独立的 Registry
type Client struct {
	config   *Config
	registry *prometheus.Registry
	logger   logger.Logger

	// 指标存储
	counters   sync.Map // map[string]*prometheus.CounterVec
	gauges     sync.Map // map[string]*prometheus.GaugeVec
	histograms sync.Map // map[string]*prometheus.HistogramVec

	// HTTP 服务器
	httpServer *http.Server
	listener   net.Listener

	closed atomic.Bool
}

// Option 客户端选项
type Option func(*Client)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New 创建 Prometheus 客户端
// HTTP 服务器不会自动启动，需要调用 Start（或交给 app.BaseApp 管理）
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		logger:   logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("prometheus")

	if cfg.EnableGoCollector {
		c.registry.MustRegister(collectors.NewGoCollector())
	}
	if cfg.EnableProcessCollector {
		c.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return c, nil
}

// Registry 获取底层 Registry
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 返回 HTTP Handler（用于集成到现有 HTTP 服务器）
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
}

// Config 获取配置
func (c *Client) Config() *Config {
	return c.config
}

// Addr HTTP 服务器实际监听地址，未启动时为空
func (c *Client) Addr() string {
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// Start 启动 HTTP 暴露（配置未启用时什么都不做）
func (c *Client) Start() error {
	if c.IsClosed() {
		return ErrClientClosed
	}
	if !c.config.HTTPServer.Enabled || c.httpServer != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.HTTPServer.Path, c.Handler())

	ln, err := net.Listen("tcp", c.config.HTTPServer.Addr)
	if err != nil {
		return err
	}
	c.listener = ln
	c.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  c.config.HTTPServer.Timeout,
		WriteTimeout: c.config.HTTPServer.Timeout,
	}

	go func() {
		if err := c.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("metrics http server stopped", "error", err)
		}
	}()

	c.logger.Info("metrics http server started", "addr", c.Addr(), "path", c.config.HTTPServer.Path)
	return nil
}

// Stop 实现 app.Server
func (c *Client) Stop() error {
	err := c.Close()
	if errors.Is(err, ErrClientClosed) {
		return nil
	}
	return err
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	if c.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return c.httpServer.Shutdown(ctx)
	}

	return nil
}

// IsClosed 检查客户端是否已关闭
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
