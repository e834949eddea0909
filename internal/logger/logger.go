package logger

import (
	"log/slog"
	"os"
)

// Logger 统一日志接口
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Err(err error, msg string, args ...any)
}

type slogLogger struct{ l *slog.Logger }

// New 基于 slog 创建日志实例
func New(l *slog.Logger) Logger { return &slogLogger{l: l} }

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Err(err error, msg string, args ...any) {
	s.l.Error(msg, append([]any{"error", err}, args...)...)
}

type noop struct{}

// NewNoopLogger 创建空日志实例，用于测试或未注入场景
func NewNoopLogger() Logger { return noop{} }

func (noop) Debug(string, ...any)      {}
func (noop) Info(string, ...any)       {}
func (noop) Warn(string, ...any)       {}
func (noop) Err(error, string, ...any) {}

var defaultLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Set 替换包级默认 slog 实例
func Set(l *slog.Logger) { defaultLogger = l }

// L 返回包级默认 slog 实例
func L() *slog.Logger { return defaultLogger }
