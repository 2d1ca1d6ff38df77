package availability

import (
	"context"
	"errors"
	"time"

	"staybook/internal/domain/stays"
)

// ErrNightConflict means a night row already exists for the stay. It is only
// reachable when the per-stay serialisation around booking was bypassed.
var ErrNightConflict = errors.New("availability: reserved night already exists")

// ReservedNight is one occupied calendar night of one stay. Rows are derived
// from active reservations and never written outside the reservation manager
// or the ledger repair procedure.
type ReservedNight struct {
	StayID        stays.StayID
	Date          time.Time
	ReservationID string
}

// Ledger is the per-night availability index.
type Ledger interface {
	// NightsReservedInRange returns the subset of ids with at least one reserved
	// night in [from, toInclusive].
	NightsReservedInRange(ctx context.Context, ids []stays.StayID, from, toInclusive time.Time) (map[stays.StayID]struct{}, error)
	InsertNights(ctx context.Context, stayID stays.StayID, reservationID string, dates []time.Time) error
	// DeleteNights is idempotent: absent rows are ignored.
	DeleteNights(ctx context.Context, stayID stays.StayID, dates []time.Time) error
	NightsForStay(ctx context.Context, stayID stays.StayID) ([]ReservedNight, error)
}

// NightKey is the composite identity of a ReservedNight.
type NightKey struct {
	StayID stays.StayID
	Date   time.Time
}

func KeyOf(n ReservedNight) NightKey {
	return NightKey{StayID: n.StayID, Date: n.Date.UTC()}
}
