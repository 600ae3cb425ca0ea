package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger 创建一个新的日志记录器
func NewLogger(debug bool) *zap.Logger {
	if debug {
		return mustBuild(zap.DebugLevel)
	}
	return mustBuild(zap.InfoLevel)
}

// NewLoggerWithLevel 按级别名称（debug、info、warn、error）创建日志记录器
// debug 为 true 时总是使用 debug 级别
func NewLoggerWithLevel(level string, debug bool) (*zap.Logger, error) {
	if debug {
		return mustBuild(zap.DebugLevel), nil
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return mustBuild(lvl), nil
}

// ParseLevel 解析日志级别，空字符串视为 info
func ParseLevel(level string) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zap.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zap.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

func mustBuild(level zapcore.Level) *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		panic("初始化日志系统失败: " + err.Error())
	}

	return logger
}
