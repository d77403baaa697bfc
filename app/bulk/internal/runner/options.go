package runner

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/metrics"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/sink"
	"github.com/lk2023060901/xdooria-bulk/pkg/logger"
)

// Config 运行参数
type Config struct {
	// IterationDelay 两轮之间的让出时间，保证外部的停止信号和其他任务能被调度
	IterationDelay time.Duration `mapstructure:"iteration_delay" json:"iteration_delay" yaml:"iteration_delay" validate:"gte=0"`
	// ProgressInterval 进度推送的最小间隔，0 表示每轮都推送；终态快照总会推送
	ProgressInterval time.Duration `mapstructure:"progress_interval" json:"progress_interval" yaml:"progress_interval" validate:"gte=0"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		IterationDelay:   time.Millisecond,
		ProgressInterval: 0,
	}
}

// Option 可选项
type Option func(*Runner)

// WithConfig 设置运行参数
func WithConfig(cfg Config) Option {
	return func(r *Runner) {
		r.cfg = cfg
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSink 设置进度投递目标
func WithSink(s sink.Sink) Option {
	return func(r *Runner) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracer 设置 tracer，默认使用全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithCommandBuilder 覆盖变更类型默认的命令构造
func WithCommandBuilder(b model.CommandBuilder) Option {
	return func(r *Runner) {
		if b != nil {
			r.build = b
		}
	}
}
