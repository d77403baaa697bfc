package logger

// Level 日志等级
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Format 日志格式
type Format string

const (
	JSONFormat    Format = "json"
	ConsoleFormat Format = "console"
)

// RotationType 轮换类型
type RotationType string

const (
	RotationBySize RotationType = "size"
	RotationByTime RotationType = "time"
)

// Config 日志配置
type Config struct {
	Level  Level  `mapstructure:"level" json:"level" yaml:"level"`    // 日志等级
	Format Format `mapstructure:"format" json:"format" yaml:"format"` // 输出格式 (json/console)

	EnableConsole bool   `mapstructure:"enable_console" json:"enable_console" yaml:"enable_console"` // 启用控制台输出
	EnableFile    bool   `mapstructure:"enable_file" json:"enable_file" yaml:"enable_file"`          // 启用文件输出
	OutputPath    string `mapstructure:"output_path" json:"output_path" yaml:"output_path"`          // 日志文件路径

	TimeFormat string `mapstructure:"time_format" json:"time_format" yaml:"time_format"`

	Rotation RotationConfig `mapstructure:"rotation" json:"rotation" yaml:"rotation"`

	// EnableStacktrace 在 StacktraceLevel 及以上附带堆栈
	EnableStacktrace bool  `mapstructure:"enable_stacktrace" json:"enable_stacktrace" yaml:"enable_stacktrace"`
	StacktraceLevel  Level `mapstructure:"stacktrace_level" json:"stacktrace_level" yaml:"stacktrace_level"`

	// 采样，批量任务的逐轮日志在高频场景下可能刷屏
	EnableSampling     bool `mapstructure:"enable_sampling" json:"enable_sampling" yaml:"enable_sampling"`
	SamplingInitial    int  `mapstructure:"sampling_initial" json:"sampling_initial" yaml:"sampling_initial"`
	SamplingThereafter int  `mapstructure:"sampling_thereafter" json:"sampling_thereafter" yaml:"sampling_thereafter"`

	Development bool `mapstructure:"development" json:"development" yaml:"development"`

	GlobalFields map[string]interface{} `mapstructure:"global_fields" json:"global_fields" yaml:"global_fields"`
}

// RotationConfig 轮换配置
type RotationConfig struct {
	Type RotationType `mapstructure:"type" json:"type" yaml:"type"`

	// 按大小轮换 (lumberjack)
	MaxSize    int  `mapstructure:"max_size" json:"max_size" yaml:"max_size"`          // MB
	MaxBackups int  `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"` // 保留的旧文件数量
	MaxAge     int  `mapstructure:"max_age" json:"max_age" yaml:"max_age"`             // 天
	Compress   bool `mapstructure:"compress" json:"compress" yaml:"compress"`

	// 按时间轮换 (file-rotatelogs)
	RotationTime    string `mapstructure:"rotation_time" json:"rotation_time" yaml:"rotation_time"`
	MaxAgeTime      string `mapstructure:"max_age_time" json:"max_age_time" yaml:"max_age_time"`
	RotationPattern string `mapstructure:"rotation_pattern" json:"rotation_pattern" yaml:"rotation_pattern"`
}

// DefaultConfig 默认配置（仅控制台输出）
func DefaultConfig() *Config {
	return &Config{
		Level:         InfoLevel,
		Format:        ConsoleFormat,
		EnableConsole: true,
		TimeFormat:    "2006-01-02 15:04:05",
		Rotation: RotationConfig{
			Type:            RotationBySize,
			MaxSize:         100,
			MaxBackups:      5,
			MaxAge:          7,
			Compress:        true,
			RotationTime:    "24h",
			MaxAgeTime:      "168h",
			RotationPattern: ".%Y%m%d",
		},
		EnableStacktrace:   true,
		StacktraceLevel:    ErrorLevel,
		SamplingInitial:    100,
		SamplingThereafter: 100,
		GlobalFields:       make(map[string]interface{}),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.EnableFile && c.OutputPath == "" {
		return ErrInvalidOutputPath
	}
	if !c.EnableConsole && !c.EnableFile {
		return ErrNoOutputEnabled
	}
	switch c.Level {
	case "", DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
	default:
		return ErrInvalidLevel
	}
	return nil
}
