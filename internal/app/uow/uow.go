package uow

import (
	"context"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
)

// UnitOfWork groups the transactional stores. Writes made through one unit
// become visible together on Commit or not at all.
type UnitOfWork interface {
	Stays() stays.Catalog
	Ledger() availability.Ledger
	Reservations() reservations.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
