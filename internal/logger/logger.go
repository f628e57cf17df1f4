package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 日志轮转默认值。
const (
	defaultMaxSizeMB  = 32
	defaultMaxBackups = 5
	defaultMaxAgeDays = 14
)

var (
	// L 是全局 logger，各模块通过包级函数使用。
	L *zap.SugaredLogger
	// Z 是底层 zap.Logger。
	Z *zap.Logger
	// rotator 非空表示启用了文件输出。
	rotator *lumberjack.Logger
)

func init() {
	// Init 之前只输出 warn 以上，避免命令行输出被调试信息淹没。
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(os.Stderr),
		zapcore.WarnLevel,
	)
	Z = zap.New(core)
	L = Z.Sugar()
}

// Config 日志配置。
type Config struct {
	Level      string // debug / info / warn / error
	File       string // 日志文件，为空则只写 stderr
	MaxSize    int    // 单文件上限（MB）
	MaxBackups int
	MaxAge     int // 天
	Quiet      bool // 为 true 时不写 stderr（REPL 中使用）
}

// ParseLevel 将字符串解析为 zap 日志级别，空字符串视为 info。
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("不支持的日志级别: %s", level)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Init 根据配置重建全局 logger。
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var sinks []io.Writer
	if !cfg.Quiet {
		sinks = append(sinks, os.Stderr)
	}

	rotator = nil
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("创建日志目录失败: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSize, defaultMaxSizeMB),
			MaxBackups: orDefault(cfg.MaxBackups, defaultMaxBackups),
			MaxAge:     orDefault(cfg.MaxAge, defaultMaxAgeDays),
			Compress:   true,
		}
		sinks = append(sinks, rotator)
	}

	var out io.Writer = io.Discard
	switch len(sinks) {
	case 0:
	case 1:
		out = sinks[0]
	default:
		out = io.MultiWriter(sinks...)
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(out),
		level,
	)
	Z = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	L = Z.Sugar()
	return nil
}

// Sync 刷新缓冲并关闭日志文件，程序退出前调用。
func Sync() {
	if Z != nil {
		_ = Z.Sync()
	}
	if rotator != nil {
		_ = rotator.Close()
	}
}

func Debug(msg string) { L.Debug(msg) }
func Debugf(template string, args ...any) { L.Debugf(template, args...) }
func Info(msg string) { L.Info(msg) }
func Infof(template string, args ...any) { L.Infof(template, args...) }
func Warn(msg string) { L.Warn(msg) }
func Warnf(template string, args ...any) { L.Warnf(template, args...) }
func Error(msg string) { L.Error(msg) }
func Errorf(template string, args ...any) { L.Errorf(template, args...) }
