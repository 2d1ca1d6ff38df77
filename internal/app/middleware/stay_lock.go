package middleware

import (
	"context"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/policies"
)

// StayScopedCommand is implemented by commands that must not run concurrently
// with other writers of the same stay.
type StayScopedCommand interface {
	commands.Command
	StayLockKey() string
}

// StayLock holds the stay's lock for the whole downstream chain. Placed
// outside Transaction it covers the collision check, the writes and the commit.
func StayLock(locker policies.StayLocker) CommandMiddleware {
	if locker == nil {
		panic("middleware: stay locker required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			scoped, ok := cmd.(StayScopedCommand)
			if !ok {
				return nextFn(ctx, cmd)
			}
			key := strings.TrimSpace(scoped.StayLockKey())
			if key == "" {
				return nextFn(ctx, cmd)
			}
			release, err := locker.Lock(ctx, key)
			if err != nil {
				return nil, err
			}
			defer release()
			return nextFn(ctx, cmd)
		})
	}
}
