package simidx

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with index-specific field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler writing to stderr.
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

// NewJSONLogger creates a Logger that writes JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that writes human-readable records to stderr.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(1000), // unreachable
		})),
	}
}

// WithIndex tags every record with the index instance id and tree kind.
func (l *Logger) WithIndex(instance string, kind Kind) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", instance, "kind", string(kind)),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, id ObjectID, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"id", uint64(id),
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"id", uint64(id),
			"dimension", dimension,
		)
	}
}

// LogBulkLoad logs a bulk load.
func (l *Logger) LogBulkLoad(ctx context.Context, count, height int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "bulk load failed",
			"count", count,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "bulk load completed",
			"count", count,
			"height", height,
		)
	}
}

// LogSearch logs a KNN or range query. k is zero for range queries.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, stats SearchStats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
			"nodes_read", stats.NodesRead,
			"distances", stats.Distances,
			"pruned", stats.Pruned,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, id ObjectID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"id", uint64(id),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"id", uint64(id),
		)
	}
}

// LogCheck logs a consistency check.
func (l *Logger) LogCheck(ctx context.Context, size, height int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "consistency check failed",
			"size", size,
			"height", height,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "consistency check passed",
			"size", size,
			"height", height,
		)
	}
}

// LogCompact logs a registry compaction.
func (l *Logger) LogCompact(ctx context.Context, recycled int) {
	l.InfoContext(ctx, "registry compacted",
		"recycled", recycled,
	)
}
