package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 是 PiVoice 的顶层配置结构。
type Config struct {
	TTS     TTSConfig     `yaml:"tts"`
	Audio   AudioConfig   `yaml:"audio"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// TTSConfig 语音合成配置。
type TTSConfig struct {
	// Provider 选择合成后端: gemini / openai / tencent / edge。
	Provider string        `yaml:"provider"`
	Voice    string        `yaml:"voice"` // 启动时选中的音色目录 ID
	Gemini   GeminiConfig  `yaml:"gemini"`
	OpenAI   OpenAIConfig  `yaml:"openai"`
	Tencent  TencentConfig `yaml:"tencent"`
	Edge     EdgeConfig    `yaml:"edge"`
}

// GeminiConfig Gemini TTS 配置。
type GeminiConfig struct {
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// OpenAIConfig OpenAI 兼容语音接口配置。
type OpenAIConfig struct {
	APIKey  string  `yaml:"api_key"`
	BaseURL string  `yaml:"base_url"`
	Model   string  `yaml:"model"`
	Voice   string  `yaml:"voice"`
	Speed   float64 `yaml:"speed"`
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID  string  `yaml:"secret_id"`
	SecretKey string  `yaml:"secret_key"`
	Region    string  `yaml:"region"`
	VoiceType int64   `yaml:"voice_type"`
	Speed     float64 `yaml:"speed"`
}

// EdgeConfig Edge TTS 配置。
type EdgeConfig struct {
	Voice string `yaml:"voice"`
}

// AudioConfig 本地播放配置。
type AudioConfig struct {
	// AutoPlay 为 true 时合成成功后立即播放。
	AutoPlay bool `yaml:"auto_play"`
}

// StorageConfig 数据目录配置。
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"` // 为空时使用 data_dir/pivoice.db
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // 默认 data_dir/logs/pivoice.log
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 先加载配置文件同目录和当前目录下的 .env（不覆盖已有环境变量），
// 再展开 ${VAR_NAME} 形式的环境变量。
func Load(path string) (*Config, error) {
	loadDotEnv(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	expanded := os.Expand(string(data), os.Getenv)

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// LoadOrDefault 与 Load 相同，但配置文件不存在时返回默认配置，
// 此时只需设置 GEMINI_API_KEY 即可运行。
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = &Config{}
	setDefaults(cfg)
	return cfg, nil
}

// DBPath 返回数据库文件路径。
func (c *Config) DBPath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}
	return filepath.Join(c.Storage.DataDir, "pivoice.db")
}

func loadDotEnv(dir string) {
	candidates := []string{filepath.Join(dir, ".env"), ".env"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.TTS.Provider == "" {
		cfg.TTS.Provider = "gemini"
	}
	cfg.TTS.Provider = strings.ToLower(strings.TrimSpace(cfg.TTS.Provider))
	if cfg.TTS.Voice == "" {
		cfg.TTS.Voice = "Kore"
	}
	if cfg.TTS.Gemini.Model == "" {
		cfg.TTS.Gemini.Model = "gemini-2.5-flash-preview-tts"
	}
	if cfg.TTS.Gemini.BaseURL == "" {
		cfg.TTS.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.TTS.Gemini.RequestsPerMinute == 0 {
		cfg.TTS.Gemini.RequestsPerMinute = 10
	}
	// 兼容只设置环境变量的用法
	if cfg.TTS.Gemini.APIKey == "" {
		cfg.TTS.Gemini.APIKey = firstEnv("GEMINI_API_KEY", "API_KEY")
	}
	if cfg.TTS.OpenAI.APIKey == "" {
		cfg.TTS.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.TTS.OpenAI.Model == "" {
		cfg.TTS.OpenAI.Model = "tts-1"
	}
	if cfg.TTS.Tencent.Region == "" {
		cfg.TTS.Tencent.Region = "ap-guangzhou"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Storage.DataDir == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Storage.DataDir = filepath.Join(home, ".pivoice")
		} else {
			cfg.Storage.DataDir = "./.pivoice-data"
		}
	} else {
		cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)
	}
	cfg.Storage.DBPath = expandHome(cfg.Storage.DBPath)
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.Storage.DataDir, "logs", "pivoice.log")
	}
	cfg.Log.File = expandHome(cfg.Log.File)

	// 去除密钥两端可能的空白（环境变量展开后常见）
	cfg.TTS.Gemini.APIKey = strings.TrimSpace(cfg.TTS.Gemini.APIKey)
	cfg.TTS.OpenAI.APIKey = strings.TrimSpace(cfg.TTS.OpenAI.APIKey)
	cfg.TTS.Tencent.SecretID = strings.TrimSpace(cfg.TTS.Tencent.SecretID)
	cfg.TTS.Tencent.SecretKey = strings.TrimSpace(cfg.TTS.Tencent.SecretKey)
}

// expandHome 展开 ~/ 前缀，Go 不会自动处理。
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

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
