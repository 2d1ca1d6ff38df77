package memory

import (
	"sync"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
)

// Store holds the committed state shared by all units of work. Units read it
// under the read lock and apply their staged writes under the write lock.
type Store struct {
	mu           sync.RWMutex
	stays        map[stays.StayID]*stays.Stay
	reservations map[reservations.ReservationID]*reservations.Reservation
	nights       map[availability.NightKey]availability.ReservedNight
}

func NewStore() *Store {
	return &Store{
		stays:        make(map[stays.StayID]*stays.Stay),
		reservations: make(map[reservations.ReservationID]*reservations.Reservation),
		nights:       make(map[availability.NightKey]availability.ReservedNight),
	}
}

// Seed inserts stays directly, bypassing units. Intended for fixtures.
func (s *Store) Seed(items ...*stays.Stay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range items {
		s.stays[st.ID] = cloneStay(st)
	}
}

// PutNight writes a ledger row directly, bypassing units. Used to simulate
// drift in tests of the reconciliation procedure.
func (s *Store) PutNight(n availability.ReservedNight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.Date = n.Date.UTC()
	s.nights[availability.KeyOf(n)] = n
}

// DropNight removes a ledger row directly, bypassing units.
func (s *Store) DropNight(n availability.ReservedNight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nights, availability.KeyOf(n))
}

func cloneStay(s *stays.Stay) *stays.Stay {
	return &stays.Stay{
		ID:          s.ID,
		Host:        s.Host,
		Name:        s.Name,
		Description: s.Description,
		Address:     s.Address,
		Capacity:    s.Capacity,
		Images:      append([]string(nil), s.Images...),
		CreatedAt:   s.CreatedAt,
	}
}

func cloneReservation(r *reservations.Reservation) *reservations.Reservation {
	return &reservations.Reservation{
		ID:        r.ID,
		StayID:    r.StayID,
		GuestID:   r.GuestID,
		Range:     r.Range,
		State:     r.State,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Version:   r.Version,
	}
}
