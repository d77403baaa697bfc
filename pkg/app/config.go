package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lk2023060901/xdooria-bulk/pkg/config"
	"github.com/spf13/pflag"
)

// EnvPrefix 环境变量前缀，BULK_RUNNER_SCAN_COUNT -> runner.scan_count
const EnvPrefix = "BULK"

var (
	configPath string
	loaded     config.Manager // 加载了配置文件时非空
)

// LoadConfig 统一加载配置
// 优先级：1. 命令行显式参数 > 2. 环境变量 > 3. 配置文件 > 4. 默认值
// bindings 把 flag 名映射到配置 key，只有显式传入的 flag 才会覆盖
func LoadConfig(fs *pflag.FlagSet, args []string, target any, bindings map[string]string, opts ...config.Option) error {
	defaultConfig := "config.yaml"
	if execDir, err := GetExecDir(); err == nil {
		defaultConfig = filepath.Join(execDir, "config.yaml")
	}

	if fs.Lookup("config") == nil {
		fs.StringP("config", "c", defaultConfig, "path to config file")
	}
	if !fs.Parsed() {
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("failed to parse flags: %w", err)
		}
	}

	path, _ := fs.GetString("config")
	if !fs.Changed("config") {
		if envConfig := os.Getenv(EnvPrefix + "_CONFIG"); envConfig != "" {
			path = envConfig
		}
	}

	configPath, loaded = "", nil
	mgr := config.NewManager(opts...)
	mgr.BindEnv(EnvPrefix)

	// 默认路径下没有配置文件时只使用默认值与环境变量
	_, statErr := os.Stat(path)
	explicit := fs.Changed("config") || os.Getenv(EnvPrefix+"_CONFIG") != ""
	switch {
	case statErr == nil:
		if err := mgr.LoadFile(path); err != nil {
			return err
		}
		configPath = path
		loaded = mgr
	case explicit:
		return fmt.Errorf("%w: %s", config.ErrConfigFileNotFound, path)
	}

	for flagName, key := range bindings {
		f := fs.Lookup(flagName)
		if f == nil || !f.Changed {
			continue
		}
		mgr.Set(key, f.Value.String())
	}

	if err := mgr.Unmarshal(target); err != nil {
		return err
	}
	return nil
}

// OnConfigChange 配置文件变化时调用 fn，由 fn 读取需要热更新的配置项
// 没有加载配置文件时返回 false
func OnConfigChange(fn func(m config.Manager)) (bool, error) {
	if loaded == nil {
		return false, nil
	}
	m := loaded
	if err := m.Watch(func() { fn(m) }); err != nil {
		return false, err
	}
	return true, nil
}

// GetExecDir 获取可执行文件所在目录（处理符号链接）
func GetExecDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return filepath.Dir(execPath), nil
	}
	return filepath.Dir(realPath), nil
}

// GetConfigPath 返回最终使用的配置文件路径，未加载文件时为空
func GetConfigPath() string {
	return configPath
}
