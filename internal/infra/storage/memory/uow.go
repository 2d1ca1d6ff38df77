package memory

import (
	"context"
	"errors"
	"sync"

	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
)

var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrReadOnlyUnit         = errors.New("memory: write attempted in read-only unit")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
)

// Factory starts units over a shared Store.
type Factory struct {
	Store *Store
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{store: f.Store, readOnly: opts.ReadOnly}, nil
}

// op mutates the store and returns how to undo itself. It runs with the
// store's write lock held.
type op func(s *Store) (undo func(), err error)

// Unit stages writes and applies them all-or-nothing on Commit. Reads see
// committed state only.
type Unit struct {
	store    *Store
	readOnly bool

	mu          sync.Mutex
	ops         []op
	afterCommit []func()
	deleted     map[reservations.ReservationID]struct{}
	done        bool
}

func (u *Unit) Stays() stays.Catalog                  { return catalogView{u: u} }
func (u *Unit) Ledger() availability.Ledger           { return ledgerView{u: u} }
func (u *Unit) Reservations() reservations.Repository { return reservationView{u: u} }

func (u *Unit) stage(o op) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	u.ops = append(u.ops, o)
	return nil
}

// OnCommit registers fn to run after a successful commit.
func (u *Unit) OnCommit(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.afterCommit = append(u.afterCommit, fn)
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return ErrUnitClosed
	}
	ops, hooks := u.ops, u.afterCommit
	u.ops, u.afterCommit, u.done = nil, nil, true
	u.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := u.apply(ops); err != nil {
		return err
	}
	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (u *Unit) apply(ops []op) error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	undos := make([]func(), 0, len(ops))
	for _, o := range ops {
		undo, err := o(s)
		if err != nil {
			for i := len(undos) - 1; i >= 0; i-- {
				undos[i]()
			}
			return err
		}
		undos = append(undos, undo)
	}
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ops, u.afterCommit, u.done = nil, nil, true
	return nil
}

func (u *Unit) markDeleted(id reservations.ReservationID) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.deleted == nil {
		u.deleted = make(map[reservations.ReservationID]struct{})
	}
	if _, ok := u.deleted[id]; ok {
		return false
	}
	u.deleted[id] = struct{}{}
	return true
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
