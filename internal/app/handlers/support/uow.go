package support

import (
	"context"
	"errors"

	"staybook/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit already carried by ctx or opens a
// read-only one. cleanup is nil when the unit was reused.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Bind(ctx, unit)
	cleanup := func() {
		_ = unit.Rollback(execCtx)
	}
	return unit, execCtx, cleanup, nil
}

// WithinUnit runs fn inside a fresh read-write unit and commits it when fn
// succeeds. Used by handlers that manage their own transaction boundaries.
func WithinUnit(ctx context.Context, factory uow.UoWFactory, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	if factory == nil {
		return uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	execCtx := uow.Bind(ctx, unit)
	if err := fn(execCtx, unit); err != nil {
		if rbErr := unit.Rollback(execCtx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := unit.Commit(execCtx); err != nil {
		_ = unit.Rollback(execCtx)
		return err
	}
	return nil
}
