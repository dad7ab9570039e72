package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/viant/imagespider/index"
)

// Logger wraps slog.Logger with engine operation helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler, or a text handler on
// stderr at info level when handler is nil.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger writing JSON records to w.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger writing text records to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

// LogIndex logs a finished indexing run.
func (l *Logger) LogIndex(ctx context.Context, r *Report) {
	attrs := []any{
		"total", r.Total,
		"succeeded", r.Succeeded,
		"skipped", len(r.Skipped),
		"failed", len(r.Failed),
		"index_size", r.IndexSize,
		"strategy", r.Strategy,
		"elapsed", r.Elapsed.Round(time.Millisecond),
	}
	if len(r.Failed) > 0 {
		l.WarnContext(ctx, "indexing completed with failures", attrs...)
		return
	}
	l.InfoContext(ctx, "indexing completed", attrs...)
}

// LogSkip logs a recoverable per-image failure.
func (l *Logger) LogSkip(ctx context.Context, path, reason string) {
	l.DebugContext(ctx, "image skipped", "path", path, "reason", reason)
}

// LogFailure logs an image rejected by the store.
func (l *Logger) LogFailure(ctx context.Context, path string, err error) {
	l.ErrorContext(ctx, "image failed", "path", path, "error", err)
}

// LogQuery logs a find-similar request.
func (l *Logger) LogQuery(ctx context.Context, ref string, k, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed", "ref", ref, "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "query completed", "ref", ref, "k", k, "results", results)
}

// LogRebuild logs an index rebuild.
func (l *Logger) LogRebuild(ctx context.Context, size int, strategy index.Strategy, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index rebuild failed", "size", size, "error", err)
		return
	}
	l.DebugContext(ctx, "index rebuilt", "size", size, "strategy", strategy)
}
