package reservations

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	domainreservations "staybook/internal/domain/reservations"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/stays"
)

const BookStayKey = "reservations.book"

type BookStayCommand struct {
	StayID          string
	GuestID         string
	CheckIn         time.Time
	CheckOut        time.Time
	IdempotencyKeyV string
}

func (c BookStayCommand) Key() string { return BookStayKey }

func (c BookStayCommand) StayLockKey() string { return c.StayID }

func (c BookStayCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return c.GuestID + ":" + c.IdempotencyKeyV
}

func (c BookStayCommand) ResultPrototype() any { return &dto.Reservation{} }

func (c BookStayCommand) RequiredRole() string { return middleware.RoleGuest }

func (c BookStayCommand) Validate() error {
	if strings.TrimSpace(c.StayID) == "" {
		return stays.ErrStayNotFound
	}
	if strings.TrimSpace(c.GuestID) == "" {
		return domainreservations.ErrGuestRequired
	}
	if _, err := daterange.New(c.CheckIn, c.CheckOut); err != nil {
		return domainreservations.ErrInvalidRange
	}
	return nil
}

type BookStayHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   policies.Clock
	Logger  *slog.Logger
	NewID   func() string
}

// Handle expects to run under the stay lock and inside a unit of work: the
// collision check, the night inserts and the reservation write commit together.
func (h *BookStayHandler) Handle(ctx context.Context, cmd BookStayCommand) (*dto.Reservation, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	dr, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, domainreservations.ErrInvalidRange
	}
	now := h.Clock.Now()
	if dr.CheckIn.Before(daterange.Day(now)) {
		return nil, domainreservations.ErrInvalidRange
	}
	stayID := stays.StayID(strings.TrimSpace(cmd.StayID))

	exists, err := unit.Stays().Exists(ctx, stayID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, stays.ErrStayNotFound
	}

	res, err := domainreservations.NewReservation(domainreservations.CreateParams{
		ID:        domainreservations.ReservationID(h.newID()),
		StayID:    stayID,
		GuestID:   cmd.GuestID,
		Range:     dr,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	occupied, err := unit.Ledger().NightsReservedInRange(ctx, []stays.StayID{stayID}, dr.CheckIn, dr.LastNight())
	if err != nil {
		return nil, err
	}
	if _, taken := occupied[stayID]; taken {
		h.logger().InfoContext(ctx, "booking rejected, nights taken",
			"stay_id", stayID, "guest_id", cmd.GuestID,
			"checkin", dr.CheckIn.Format(time.DateOnly), "checkout", dr.CheckOut.Format(time.DateOnly))
		return nil, domainreservations.ErrReservationCollision
	}

	if err := unit.Ledger().InsertNights(ctx, stayID, string(res.ID), dr.Dates()); err != nil {
		if errors.Is(err, availability.ErrNightConflict) {
			h.logger().ErrorContext(ctx, "ledger conflict while booking", "stay_id", stayID, "error", err)
		}
		return nil, err
	}
	if err := res.Activate(now); err != nil {
		return nil, err
	}
	if err := unit.Reservations().Save(ctx, res); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, res.Drain()); err != nil {
		return nil, err
	}

	h.logger().InfoContext(ctx, "reservation booked", "reservation_id", res.ID, "stay_id", stayID, "nights", dr.Nights())
	out := dto.MapReservation(res)
	return &out, nil
}

func (h *BookStayHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *BookStayHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ commands.Handler[BookStayCommand, *dto.Reservation] = (*BookStayHandler)(nil)
var _ middleware.IdempotentCommand = BookStayCommand{}
var _ middleware.StayScopedCommand = BookStayCommand{}
