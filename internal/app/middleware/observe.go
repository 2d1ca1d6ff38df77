package middleware

import (
	"context"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
)

// OutcomeRecorder receives one observation per dispatched message.
type OutcomeRecorder interface {
	ObserveMessage(kind, key string, err error, elapsed time.Duration)
}

func ObserveCommands(rec OutcomeRecorder, logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			observe(ctx, rec, logger, "command", cmd.Key(), err, time.Since(start))
			return res, err
		})
	}
}

func ObserveQueries(rec OutcomeRecorder, logger *slog.Logger) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, q)
			observe(ctx, rec, logger, "query", q.Key(), err, time.Since(start))
			return res, err
		})
	}
}

func observe(ctx context.Context, rec OutcomeRecorder, logger *slog.Logger, kind, key string, err error, elapsed time.Duration) {
	if rec != nil {
		rec.ObserveMessage(kind, key, err, elapsed)
	}
	if logger == nil {
		return
	}
	if err != nil {
		logger.DebugContext(ctx, kind+" failed", "key", key, "error", err, "duration", elapsed)
		return
	}
	logger.DebugContext(ctx, kind+" handled", "key", key, "duration", elapsed)
}
