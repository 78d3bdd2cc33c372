package msgtable

import (
	"context"
	"log/slog"
	"os"
)

const (
	// Custom levels
	LogLevelTrace = slog.Level(-8)
)

// SetLoggerHandler sets a custom logger for the msgtable library
func SetLoggerHandler(h slog.Handler) {
	if h == nil {
		return // Keep default
	}
	slog.SetDefault(slog.New(h))
}

func SetLoggerLevel(level slog.Level) {
	slog.SetLogLoggerLevel(level)
}

func SetDebugLevel(addSource bool) {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: addSource,
	})
	slog.SetDefault(slog.New(h))
}

// Logs trace messages, level = -8
func LogTrace(msg string, args ...any) {
	slog.Default().Log(context.Background(), LogLevelTrace, msg, args...)
}

// lazyFacility defers the facility table lookup until the record is emitted.
type lazyFacility struct {
	f Facility
}

func (l lazyFacility) LogValue() slog.Value {
	if name, ok := l.f.Name(); ok {
		return slog.StringValue(name)
	}
	return slog.GroupValue(
		slog.Uint64("value", uint64(l.f)),
		slog.String("class", l.f.Class().String()),
	)
}

// slogReporter reports suppressed malformed-entry diagnostics through slog.
type slogReporter struct{}

func (slogReporter) LogSummary(key string, suppressed int64) {
	slog.Debug("suppressed repeated message table diagnostics",
		"key", key, "count", suppressed)
}
