package middleware

import (
	"context"
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/outbox"
)

// OutboxFlush relays the events a command staged once it has committed.
// A relay failure leaves the records pending for the next flush or the
// background worker; the command result stands.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if ferr := box.Flush(ctx); ferr != nil && logger != nil {
				logger.WarnContext(ctx, "outbox flush deferred", "key", cmd.Key(), "error", ferr)
			}
			return res, nil
		})
	}
}
