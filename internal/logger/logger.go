// Package logger provides the process-wide structured logger. Every
// component logs through here instead of the bare log package, so output
// stays consistent across the scheduler, fetcher, and composer.
package logger

import (
	"log/slog"
	"os"
)

var Logger *slog.Logger

// Init sets up the default logger at the given level ("DEBUG", "INFO",
// "WARN", "ERROR"; anything else falls back to INFO).
func Init(level string) {
	var lvl slog.Level
	switch level {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	Logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(Logger)
}

func Info(msg string, args ...any)  { Logger.Info(msg, args...) }
func Error(msg string, args ...any) { Logger.Error(msg, args...) }
func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }
func Warn(msg string, args ...any)  { Logger.Warn(msg, args...) }

func init() {
	// Safe default until config.Load() calls Init with the real level.
	Init("INFO")
}
