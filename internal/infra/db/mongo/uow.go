package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
)

// Factory runs each unit as a multi-document transaction on one session.
type Factory struct {
	DB *mongo.Database

	StaysRepo        *StayRepository
	LedgerRepo       *LedgerRepository
	ReservationsRepo *ReservationRepository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:               db,
		StaysRepo:        NewStayRepository(db),
		LedgerRepo:       NewLedgerRepository(db),
		ReservationsRepo: NewReservationRepository(db),
	}
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.StaysRepo == nil || f.LedgerRepo == nil || f.ReservationsRepo == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, classify("mongo start session", err)
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, classify("mongo start transaction", err)
	}
	return &Unit{
		session:      session,
		readOnly:     opts.ReadOnly,
		stays:        f.StaysRepo,
		ledger:       f.LedgerRepo,
		reservations: f.ReservationsRepo,
	}, nil
}

type Unit struct {
	session  mongo.Session
	readOnly bool
	finished bool

	stays        *StayRepository
	ledger       *LedgerRepository
	reservations *ReservationRepository
}

func (u *Unit) Stays() stays.Catalog                  { return u.stays }
func (u *Unit) Ledger() availability.Ledger           { return u.ledger }
func (u *Unit) Reservations() reservations.Repository { return u.reservations }

func (u *Unit) Commit(ctx context.Context) error {
	if u.finished {
		return nil
	}
	u.finished = true
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return classify("mongo abort read-only transaction", u.session.AbortTransaction(ctx))
	}
	err := u.session.CommitTransaction(ctx)
	if isWriteConflict(err) {
		return errors.Join(availability.ErrNightConflict, err)
	}
	return classify("mongo commit", err)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.finished {
		return nil
	}
	u.finished = true
	defer u.session.EndSession(ctx)
	return classify("mongo rollback", u.session.AbortTransaction(ctx))
}

// InjectContext binds the session so repositories join the transaction.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
