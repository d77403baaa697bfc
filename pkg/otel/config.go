package otel

import "time"

// Config TracerProvider 配置
type Config struct {
	// Enabled 是否启用追踪，关闭时 Runner 使用全局 noop tracer
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// ServiceName 服务名称
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`

	// Endpoint 导出器端点
	// OTLP HTTP: localhost:4318
	// OTLP gRPC: localhost:4317
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// ExporterType 导出器类型: "otlp-http", "otlp-grpc", "stdout", "noop"
	ExporterType ExporterType `json:"exporter_type" yaml:"exporter_type" mapstructure:"exporter_type" validate:"omitempty,oneof=otlp-http otlp-grpc stdout noop"`

	// Sampler 采样配置
	Sampler SamplerConfig `json:"sampler" yaml:"sampler" mapstructure:"sampler"`

	// BatchExport 批量导出配置
	BatchExport BatchExportConfig `json:"batch_export" yaml:"batch_export" mapstructure:"batch_export"`

	// Attributes 附加的资源属性，例如 redis 实例名
	Attributes map[string]string `json:"attributes" yaml:"attributes" mapstructure:"attributes"`

	// ShutdownTimeout 关闭时刷新剩余 span 的超时
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// Insecure 不使用 TLS
	Insecure bool `json:"insecure" yaml:"insecure" mapstructure:"insecure"`
}

// ExporterType 导出器类型
type ExporterType string

const (
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	// ExporterTypeStdout 调试用，写到 stderr
	ExporterTypeStdout ExporterType = "stdout"
	ExporterTypeNoop   ExporterType = "noop"
)

// SamplerConfig 采样配置
type SamplerConfig struct {
	// Type 采样类型: "always", "never", "ratio", "parent"
	Type SamplerType `json:"type" yaml:"type" mapstructure:"type"`

	// Ratio 采样比率（0.0-1.0），仅当 Type 为 "ratio" 时有效
	Ratio float64 `json:"ratio" yaml:"ratio" mapstructure:"ratio"`
}

// SamplerType 采样类型
type SamplerType string

const (
	SamplerTypeAlways SamplerType = "always"
	SamplerTypeNever  SamplerType = "never"
	SamplerTypeRatio  SamplerType = "ratio"
	SamplerTypeParent SamplerType = "parent"
)

// BatchExportConfig 批量导出配置
type BatchExportConfig struct {
	BatchSize     int           `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	ExportTimeout time.Duration `json:"export_timeout" yaml:"export_timeout" mapstructure:"export_timeout"`
	MaxQueueSize  int           `json:"max_queue_size" yaml:"max_queue_size" mapstructure:"max_queue_size"`
	BatchTimeout  time.Duration `json:"batch_timeout" yaml:"batch_timeout" mapstructure:"batch_timeout"`
}

// DefaultConfig 默认配置，追踪默认关闭
func DefaultConfig() *Config {
	return &Config{
		Enabled:      false,
		ServiceName:  "bulk",
		Endpoint:     "localhost:4318",
		ExporterType: ExporterTypeOTLPHTTP,
		Sampler: SamplerConfig{
			Type:  SamplerTypeParent,
			Ratio: 1.0,
		},
		BatchExport: BatchExportConfig{
			BatchSize:     512,
			ExportTimeout: 30 * time.Second,
			MaxQueueSize:  2048,
			BatchTimeout:  5 * time.Second,
		},
		Attributes:      make(map[string]string),
		ShutdownTimeout: 5 * time.Second,
		Insecure:        true,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return ErrInvalidServiceName
	}
	if c.Sampler.Type == SamplerTypeRatio && (c.Sampler.Ratio < 0 || c.Sampler.Ratio > 1) {
		return ErrInvalidSamplerRatio
	}
	return nil
}
