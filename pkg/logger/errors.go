package logger

import "errors"

var (
	// ErrInvalidOutputPath 启用文件输出但未指定路径
	ErrInvalidOutputPath = errors.New("output path is required when file output is enabled")

	// ErrNoOutputEnabled 控制台与文件输出均被关闭
	ErrNoOutputEnabled = errors.New("at least one output (console or file) must be enabled")

	// ErrInvalidLevel 未知的日志等级
	ErrInvalidLevel = errors.New("unknown log level")
)
