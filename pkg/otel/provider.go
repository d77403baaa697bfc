// Package otel 构建 TracerProvider，批量任务每一轮迭代记录为一个 span
package otel

import (
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/lk2023060901/xdooria-bulk/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerProvider 追踪提供者
type TracerProvider struct {
	config   *Config
	provider *sdktrace.TracerProvider
	closed   atomic.Bool
}

// Option 可选项
type Option func(*options)

type options struct {
	stdout    io.Writer
	setGlobal bool
}

// WithWriter stdout 导出器的输出目标，默认 os.Stderr
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.stdout = w
		}
	}
}

// WithoutGlobal 不替换全局 TracerProvider
func WithoutGlobal() Option {
	return func(o *options) {
		o.setGlobal = false
	}
}

// New 创建追踪提供者，未启用或使用 noop 导出器时返回不记录任何 span 的提供者
func New(cfg *Config, opts ...Option) (*TracerProvider, error) {
	o := options{stdout: os.Stderr, setGlobal: true}
	for _, opt := range opts {
		opt(&o)
	}

	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	if !newCfg.Enabled {
		return &TracerProvider{config: newCfg}, nil
	}

	exporter, err := createExporter(context.Background(), newCfg, o.stdout)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		return &TracerProvider{config: newCfg}, nil
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(newCfg.BatchExport.BatchTimeout),
			sdktrace.WithExportTimeout(newCfg.BatchExport.ExportTimeout),
			sdktrace.WithMaxExportBatchSize(newCfg.BatchExport.BatchSize),
			sdktrace.WithMaxQueueSize(newCfg.BatchExport.MaxQueueSize),
		),
		sdktrace.WithResource(createResource(newCfg)),
		sdktrace.WithSampler(createSampler(newCfg.Sampler)),
	)
	if o.setGlobal {
		otel.SetTracerProvider(provider)
	}

	return &TracerProvider{
		config:   newCfg,
		provider: provider,
	}, nil
}

func createResource(cfg *Config) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func createSampler(cfg SamplerConfig) sdktrace.Sampler {
	switch cfg.Type {
	case SamplerTypeAlways:
		return sdktrace.AlwaysSample()
	case SamplerTypeNever:
		return sdktrace.NeverSample()
	case SamplerTypeRatio:
		return sdktrace.TraceIDRatioBased(cfg.Ratio)
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

// Tracer 获取指定名称的 Tracer，未启用时返回 noop tracer
func (p *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p.provider == nil {
		return noop.NewTracerProvider().Tracer(name, opts...)
	}
	return p.provider.Tracer(name, opts...)
}

// Shutdown 刷新剩余 span 并关闭
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	if p.closed.Swap(true) {
		return ErrProviderClosed
	}
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// Close 使用配置的超时关闭，实现 app.Closer
func (p *TracerProvider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.ShutdownTimeout)
	defer cancel()

	err := p.Shutdown(ctx)
	if errors.Is(err, ErrProviderClosed) {
		return nil
	}
	return err
}

// IsEnabled 是否真正记录 span
func (p *TracerProvider) IsEnabled() bool {
	return p.provider != nil
}

// Config 获取配置
func (p *TracerProvider) Config() *Config {
	return p.config
}
