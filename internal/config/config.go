package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是 govoicevox 命令行和引擎的顶层配置结构。
type Config struct {
	Core        CoreConfig        `yaml:"core"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Cache       CacheConfig       `yaml:"cache"`
	Log         LogConfig         `yaml:"log"`
}

// CoreConfig 指定原生库与资源文件的位置。
type CoreConfig struct {
	// Library 是 VOICEVOX CORE 动态库路径。
	Library string `yaml:"library"`
	// Onnxruntime 是 ONNX Runtime 动态库路径，为空使用库的默认文件名。
	Onnxruntime string `yaml:"onnxruntime"`
	// DictDir 是 Open JTalk 系统词典目录。
	DictDir string `yaml:"dict_dir"`
	// UserDict 是用户词典 JSON 文件，为空则不使用。
	UserDict string `yaml:"user_dict"`
	// Models 是启动时载入的 VVM 文件，支持 glob。
	Models []string `yaml:"models"`
}

// SynthesizerConfig 合成器配置。
type SynthesizerConfig struct {
	Acceleration         string `yaml:"acceleration"` // auto, cpu, gpu
	NumThreads           int    `yaml:"num_threads"`  // 0 使用原生默认值
	VoiceID              uint32 `yaml:"voice_id"`
	InterrogativeUpspeak *bool  `yaml:"interrogative_upspeak"`
	// Async 为 true 时通过工作 goroutine 调用原生库，调用可被 context 放弃。
	Async bool `yaml:"async"`
}

// CacheConfig 合成结果缓存配置。
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${VOICEVOX_CORE_DIR}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置文件 %s 无效: %w", path, err)
	}
	return cfg, nil
}

// Default 返回只包含默认值的配置，用于没有配置文件的场合。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Validate 检查取值范围，尽早拒绝无法传给原生库的配置。
func (c *Config) Validate() error {
	switch c.Synthesizer.Acceleration {
	case "auto", "cpu", "gpu":
	default:
		return fmt.Errorf("synthesizer.acceleration 只能是 auto、cpu 或 gpu: %q", c.Synthesizer.Acceleration)
	}
	if c.Synthesizer.NumThreads < 0 || c.Synthesizer.NumThreads > 0xffff {
		return fmt.Errorf("synthesizer.num_threads 超出范围: %d", c.Synthesizer.NumThreads)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries 不能为负数: %d", c.Cache.MaxEntries)
	}
	return nil
}

// DefaultLibrary 返回当前平台上 VOICEVOX CORE 动态库的默认文件名。
func DefaultLibrary() string {
	switch runtime.GOOS {
	case "darwin":
		return "libvoicevox_core.dylib"
	case "windows":
		return "voicevox_core.dll"
	default:
		return "libvoicevox_core.so"
	}
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Core.Library == "" {
		cfg.Core.Library = DefaultLibrary()
	}
	if cfg.Synthesizer.Acceleration == "" {
		cfg.Synthesizer.Acceleration = "auto"
	}
	cfg.Synthesizer.Acceleration = strings.ToLower(strings.TrimSpace(cfg.Synthesizer.Acceleration))
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 500
	}
	if cfg.Cache.Path == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Cache.Path = filepath.Join(home, ".govoicevox", "cache.db")
		} else {
			cfg.Cache.Path = "./.govoicevox-cache.db"
		}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Go 不会自动展开 ~，需要手动替换为用户主目录
	for _, p := range []*string{&cfg.Core.Library, &cfg.Core.Onnxruntime, &cfg.Core.DictDir, &cfg.Core.UserDict, &cfg.Cache.Path, &cfg.Log.File} {
		*p = expandHome(*p)
	}
	for i := range cfg.Core.Models {
		cfg.Core.Models[i] = expandHome(cfg.Core.Models[i])
	}
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return p
	}
	return filepath.Join(home, p[2:])
}

// ModelFiles 展开 Core.Models 中的 glob，按出现顺序返回去重后的文件列表。
func (c *Config) ModelFiles() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range c.Core.Models {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("模型路径 %q 无效: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("模型路径 %q 没有匹配的文件", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}
