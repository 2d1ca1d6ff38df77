package reservations

import (
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/stays"
)

type ReservationBooked struct {
	ReservationID ReservationID
	StayID        stays.StayID
	GuestID       string
	Range         daterange.DateRange
	At            time.Time
}

func (e ReservationBooked) EventName() string     { return "reservation.booked" }
func (e ReservationBooked) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationBooked) OccurredAt() time.Time { return e.At }

type ReservationCancelled struct {
	ReservationID ReservationID
	StayID        stays.StayID
	GuestID       string
	Range         daterange.DateRange
	At            time.Time
}

func (e ReservationCancelled) EventName() string     { return "reservation.cancelled" }
func (e ReservationCancelled) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationCancelled) OccurredAt() time.Time { return e.At }
