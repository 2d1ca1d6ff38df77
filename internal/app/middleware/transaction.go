package middleware

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// UnmanagedCommand opts a command out of the ambient unit of work. Handlers
// for such commands open their own units (one per stay, or around a
// side-effect that must not be rolled back).
type UnmanagedCommand interface {
	commands.Command
	ManagesOwnUnit() bool
}

// Transaction runs each command inside one unit of work bound to the
// context. The unit commits only when the handler succeeds.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if um, ok := cmd.(UnmanagedCommand); ok && um.ManagesOwnUnit() {
				return next.Dispatch(ctx, cmd)
			}
			var opts uow.TxOptions
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			return inUnit(ctx, factory, opts, func(execCtx context.Context) (any, error) {
				return next.Dispatch(execCtx, cmd)
			})
		})
	}
}

func inUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, fn func(context.Context) (any, error)) (any, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	execCtx := uow.Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	res, err := fn(execCtx)
	if err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}
