package cortexheap

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/cortexheap/internal/memmap"
)

// Logger wraps slog.Logger with heap-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithRegion adds the heap bounds to the logger.
func (l *Logger) WithRegion(r Region) *Logger {
	return &Logger{
		Logger: l.Logger.With("heap", r.String()),
	}
}

// WithProgram adds a fixture program name to the logger.
func (l *Logger) WithProgram(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("program", name),
	}
}

// LogInit logs heap initialization, including where the heap sits in the
// target address map.
func (l *Logger) LogInit(ctx context.Context, r Region, backing string) {
	l.InfoContext(ctx, "heap initialized",
		"start", hexAddr(r.Start),
		"size", r.Size(),
		"space", memmap.Classify(uint32(r.Start)).String(),
		"bit_band", memmap.InBitBandRegion(uint32(r.Start)),
		"backing", backing,
	)
}

// LogAlloc logs an allocation.
func (l *Logger) LogAlloc(ctx context.Context, layout Layout, addr Addr, err error) {
	if err != nil {
		l.DebugContext(ctx, "alloc failed",
			"size", layout.Size,
			"align", layout.Align,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "alloc completed",
			"size", layout.Size,
			"align", layout.Align,
			"addr", hexAddr(addr),
		)
	}
}

// LogOOM logs an out-of-memory condition before the handler runs.
func (l *Logger) LogOOM(ctx context.Context, layout Layout, cursor Addr, remaining uint32) {
	l.ErrorContext(ctx, "out of memory",
		"size", layout.Size,
		"align", layout.Align,
		"cursor", hexAddr(cursor),
		"remaining", remaining,
	)
}

// LogDump logs a heap image write.
func (l *Logger) LogDump(ctx context.Context, bytes int64, compression string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "heap dump failed",
			"compression", compression,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "heap dump written",
			"bytes", bytes,
			"compression", compression,
		)
	}
}

// LogFixture logs the outcome of a fixture program.
func (l *Logger) LogFixture(ctx context.Context, name, outcome string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fixture failed",
			"program", name,
			"outcome", outcome,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "fixture completed",
			"program", name,
			"outcome", outcome,
		)
	}
}

type hexAddr Addr

func (a hexAddr) LogValue() slog.Value {
	return slog.StringValue(Addr(a).String())
}
