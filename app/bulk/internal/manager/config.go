package manager

import (
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/runner"
)

// Config Manager 配置
type Config struct {
	// PoolSize 同时运行的任务数上限
	PoolSize int `mapstructure:"pool_size" json:"pool_size" yaml:"pool_size" validate:"gte=1"`
	// MaxErrors 每个任务 Summary 保留的错误条数
	MaxErrors int `mapstructure:"max_errors" json:"max_errors" yaml:"max_errors" validate:"gte=1"`
	// ScanCount 请求未指定 COUNT 时使用
	ScanCount int64 `mapstructure:"scan_count" json:"scan_count" yaml:"scan_count" validate:"gte=1"`

	Runner runner.Config `mapstructure:"runner" json:"runner" yaml:"runner"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		PoolSize:  16,
		MaxErrors: model.DefaultMaxErrors,
		ScanCount: model.DefaultScanCount,
		Runner:    runner.DefaultConfig(),
	}
}
