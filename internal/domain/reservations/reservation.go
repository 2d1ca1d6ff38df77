package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/stays"
)

var (
	ErrInvalidRange         = fmt.Errorf("reservations: invalid range: %w", daterange.ErrInvalidRange)
	ErrReservationCollision = errors.New("reservations: requested nights overlap an active reservation")
	ErrReservationNotFound  = errors.New("reservations: reservation not found")
	ErrInvalidState         = errors.New("reservations: invalid state transition")
	ErrGuestRequired        = errors.New("reservations: guest id required")
)

type ReservationID string

type State string

const (
	// StateRequested only exists while a booking is in flight.
	StateRequested State = "REQUESTED"
	StateActive    State = "ACTIVE"
	StateCancelled State = "CANCELLED"
)

type Reservation struct {
	ID        ReservationID
	StayID    stays.StayID
	GuestID   string
	Range     daterange.DateRange
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ReservationID) (*Reservation, error)
	// ByIDAndGuest returns ErrReservationNotFound unless the reservation
	// exists and belongs to guestID.
	ByIDAndGuest(ctx context.Context, id ReservationID, guestID string) (*Reservation, error)
	ListByStay(ctx context.Context, stayID stays.StayID) ([]*Reservation, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Reservation, error)
	// ListByStayCheckoutAfter returns reservations whose checkout day is after day.
	ListByStayCheckoutAfter(ctx context.Context, stayID stays.StayID, day time.Time) ([]*Reservation, error)
	Save(ctx context.Context, r *Reservation) error
	// Delete returns ErrReservationNotFound when nothing was removed.
	Delete(ctx context.Context, id ReservationID) error
}

type CreateParams struct {
	ID        ReservationID
	StayID    stays.StayID
	GuestID   string
	Range     daterange.DateRange
	CreatedAt time.Time
}

// NewReservation validates the request and returns it in StateRequested.
func NewReservation(params CreateParams) (*Reservation, error) {
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, ErrGuestRequired
	}
	if strings.TrimSpace(string(params.StayID)) == "" {
		return nil, stays.ErrStayNotFound
	}
	if err := params.Range.Validate(); err != nil {
		return nil, ErrInvalidRange
	}
	now := params.CreatedAt.UTC()
	return &Reservation{
		ID:        params.ID,
		StayID:    params.StayID,
		GuestID:   params.GuestID,
		Range:     params.Range,
		State:     StateRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *Reservation) Activate(now time.Time) error {
	if r.State != StateRequested {
		return ErrInvalidState
	}
	r.State = StateActive
	r.UpdatedAt = now.UTC()
	r.Record(ReservationBooked{ReservationID: r.ID, StayID: r.StayID, GuestID: r.GuestID, Range: r.Range, At: r.UpdatedAt})
	return nil
}

func (r *Reservation) Cancel(now time.Time) error {
	if r.State != StateActive {
		return ErrInvalidState
	}
	r.State = StateCancelled
	r.UpdatedAt = now.UTC()
	r.Record(ReservationCancelled{ReservationID: r.ID, StayID: r.StayID, GuestID: r.GuestID, Range: r.Range, At: r.UpdatedAt})
	return nil
}

func (r *Reservation) Active() bool {
	return r != nil && r.State == StateActive
}
