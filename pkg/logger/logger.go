// Package logger builds the agent's zap logger: a console core on stdout and,
// when a log directory is configured, a JSON core into daily rotated files.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lurkkit/agent/pkg/config"
)

type Logger = zap.Logger

const timeLayout = "2006-01-02 15:04:05.000 -07:00"

var (
	mu         sync.RWMutex
	baseLogger = zap.NewNop()
)

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dbg", "debug":
		return zapcore.DebugLevel
	case "war", "warn", "warning":
		return zapcore.WarnLevel
	case "err", "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init builds the logger from cfg, installs it as the package logger and returns it.
func Init(cfg config.ZapLogConfig) (*zap.Logger, error) {
	l, err := Build(cfg, zapcore.AddSync(os.Stdout))
	if err != nil {
		return nil, err
	}
	mu.Lock()
	baseLogger = l
	mu.Unlock()
	return l, nil
}

// Build returns a logger writing the console core to console.
func Build(cfg config.ZapLogConfig, console zapcore.WriteSyncer) (*zap.Logger, error) {
	level := ParseLevel(cfg.Level)

	var consoleEncoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		consoleEncoder = zapcore.NewJSONEncoder(jsonEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(consoleEncoderConfig())
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, console, level)}

	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		maxAge := cfg.MaxAge
		if maxAge <= 0 {
			maxAge = 7
		}
		writer, err := rotatelogs.New(
			filepath.Join(cfg.Path, "lurkkit-%Y%m%d.log"),
			rotatelogs.WithMaxAge(time.Duration(maxAge)*24*time.Hour),
			rotatelogs.WithRotationTime(24*time.Hour),
		)
		if err != nil {
			return nil, fmt.Errorf("open rotated log: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig()), zapcore.AddSync(writer), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.ConsoleSeparator = " "
	enc.EncodeLevel = coloredLevelEncoder
	// 控制台彩色时间
	enc.EncodeTime = func(t time.Time, pe zapcore.PrimitiveArrayEncoder) {
		pe.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format(timeLayout)))
	}
	// Caller 两级路径
	enc.EncodeCaller = func(c zapcore.EntryCaller, pe zapcore.PrimitiveArrayEncoder) {
		rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
		pe.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
	}
	return enc
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = func(t time.Time, pe zapcore.PrimitiveArrayEncoder) {
		pe.AppendString(t.Format(timeLayout))
	}
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	return enc
}

func coloredLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var s string
	switch level {
	case zapcore.DebugLevel:
		s = "\033[36mDEBUG\033[0m"
	case zapcore.InfoLevel:
		s = "\033[32mINFO \033[0m"
	case zapcore.WarnLevel:
		s = "\033[33mWARN \033[0m"
	case zapcore.ErrorLevel:
		s = "\033[31mERROR\033[0m"
	default:
		s = "\033[35m" + level.CapitalString() + "\033[0m"
	}
	enc.AppendString(s)
}

// GetLogger returns the package logger, a no-op logger before Init.
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

// Named returns a child logger tagged with component.
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
}

func log() *zap.Logger {
	return GetLogger().WithOptions(zap.AddCallerSkip(1))
}

func Debug(msg string, fields ...zap.Field) { log().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { log().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { log().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { log().Error(msg, fields...) }

func Sync() error {
	err := GetLogger().Sync()
	// stdout 不支持 fsync 时忽略
	if err != nil && (strings.Contains(err.Error(), "invalid argument") || strings.Contains(err.Error(), "inappropriate ioctl")) {
		return nil
	}
	return err
}
