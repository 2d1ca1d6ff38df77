package reservations

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainreservations "staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
)

const CancelReservationKey = "reservations.cancel"

type CancelReservationCommand struct {
	ReservationID string
	GuestID       string
}

func (c CancelReservationCommand) Key() string { return CancelReservationKey }

func (c CancelReservationCommand) RequiredRole() string { return middleware.RoleGuest }

// ManagesOwnUnit: the stay comes from the stored reservation, and its lock
// is taken before the write unit opens.
func (c CancelReservationCommand) ManagesOwnUnit() bool { return true }

func (c CancelReservationCommand) Validate() error {
	if strings.TrimSpace(c.ReservationID) == "" {
		return domainreservations.ErrReservationNotFound
	}
	if strings.TrimSpace(c.GuestID) == "" {
		return domainreservations.ErrGuestRequired
	}
	return nil
}

type CancelReservationHandler struct {
	UoWFactory uow.UoWFactory
	Locker     policies.StayLocker
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Clock      policies.Clock
	Logger     *slog.Logger
}

// Handle resolves the reservation's stay, takes the stay lock, then re-reads
// the reservation and releases its nights in one unit. Cancelling a
// reservation twice reports ErrReservationNotFound.
func (h *CancelReservationHandler) Handle(ctx context.Context, cmd CancelReservationCommand) (*dto.Reservation, error) {
	id := domainreservations.ReservationID(strings.TrimSpace(cmd.ReservationID))
	stayID, err := h.stayOf(ctx, id, cmd.GuestID)
	if err != nil {
		return nil, err
	}
	if h.Locker != nil {
		release, err := h.Locker.Lock(ctx, string(stayID))
		if err != nil {
			return nil, err
		}
		defer release()
	}

	var res *domainreservations.Reservation
	err = handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		res, err = unit.Reservations().ByIDAndGuest(ctx, id, cmd.GuestID)
		if err != nil {
			return err
		}
		if !res.Active() {
			return domainreservations.ErrReservationNotFound
		}
		if err := unit.Ledger().DeleteNights(ctx, res.StayID, res.Range.Dates()); err != nil {
			return err
		}
		if err := unit.Reservations().Delete(ctx, res.ID); err != nil {
			return err
		}
		if err := res.Cancel(h.Clock.Now()); err != nil {
			return errors.Join(domainreservations.ErrReservationNotFound, err)
		}
		return outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, res.Drain())
	})
	if err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "reservation cancelled", "reservation_id", res.ID, "stay_id", res.StayID)
	out := dto.MapReservation(res)
	return &out, nil
}

func (h *CancelReservationHandler) stayOf(ctx context.Context, id domainreservations.ReservationID, guestID string) (stays.StayID, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return "", err
	}
	if cleanup != nil {
		defer cleanup()
	}
	res, err := unit.Reservations().ByIDAndGuest(execCtx, id, guestID)
	if err != nil {
		return "", err
	}
	if !res.Active() {
		return "", domainreservations.ErrReservationNotFound
	}
	return res.StayID, nil
}

func (h *CancelReservationHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ commands.Handler[CancelReservationCommand, *dto.Reservation] = (*CancelReservationHandler)(nil)
var _ middleware.UnmanagedCommand = CancelReservationCommand{}
