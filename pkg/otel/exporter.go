package otel

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// createExporter 根据配置创建导出器，noop 返回 nil
func createExporter(ctx context.Context, cfg *Config, stdout io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterTypeOTLPGRPC:
		return createOTLPGRPCExporter(ctx, cfg)
	case ExporterTypeStdout:
		return createStdoutExporter(stdout)
	case ExporterTypeNoop:
		return nil, nil
	default:
		return createOTLPHTTPExporter(ctx, cfg)
	}
}

func createOTLPHTTPExporter(ctx context.Context, cfg *Config) (*otlptrace.Exporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExporterFailed, err)
	}
	return exporter, nil
}

func createOTLPGRPCExporter(ctx context.Context, cfg *Config) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExporterFailed, err)
	}
	return exporter, nil
}

// createStdoutExporter 标准输出留给最终的任务快照，span 写到 w
func createStdoutExporter(w io.Writer) (*stdouttrace.Exporter, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExporterFailed, err)
	}
	return exporter, nil
}
