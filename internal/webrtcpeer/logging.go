package webrtcpeer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// slogLevelTrace sits below slog.LevelDebug so pion's trace output stays out
// of debug logs unless the handler asks for it.
const slogLevelTrace = slog.LevelDebug - 4

// LoggerFactory routes pion's internal logging into slog. Each pion scope
// ("ice", "sctp", "pc", ...) becomes a "scope" attribute.
type LoggerFactory struct {
	Logger *slog.Logger
}

var _ logging.LoggerFactory = LoggerFactory{}

func (f LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	l := f.Logger
	if l == nil {
		l = slog.Default()
	}
	return &leveledLogger{log: l.With("component", "pion", "scope", scope)}
}

type leveledLogger struct {
	log *slog.Logger
}

func (l *leveledLogger) emit(level slog.Level, msg string) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}
	l.log.Log(ctx, level, msg)
}

func (l *leveledLogger) emitf(level slog.Level, format string, args ...interface{}) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}
	l.log.Log(ctx, level, fmt.Sprintf(format, args...))
}

func (l *leveledLogger) Trace(msg string) { l.emit(slogLevelTrace, msg) }
func (l *leveledLogger) Tracef(format string, args ...interface{}) {
	l.emitf(slogLevelTrace, format, args...)
}
func (l *leveledLogger) Debug(msg string) { l.emit(slog.LevelDebug, msg) }
func (l *leveledLogger) Debugf(format string, args ...interface{}) {
	l.emitf(slog.LevelDebug, format, args...)
}
func (l *leveledLogger) Info(msg string) { l.emit(slog.LevelInfo, msg) }
func (l *leveledLogger) Infof(format string, args ...interface{}) {
	l.emitf(slog.LevelInfo, format, args...)
}
func (l *leveledLogger) Warn(msg string) { l.emit(slog.LevelWarn, msg) }
func (l *leveledLogger) Warnf(format string, args ...interface{}) {
	l.emitf(slog.LevelWarn, format, args...)
}
func (l *leveledLogger) Error(msg string) { l.emit(slog.LevelError, msg) }
func (l *leveledLogger) Errorf(format string, args ...interface{}) {
	l.emitf(slog.LevelError, format, args...)
}
