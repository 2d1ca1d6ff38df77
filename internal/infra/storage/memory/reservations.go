package memory

import (
	"context"
	"sort"
	"time"

	"staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
)

type reservationView struct {
	u *Unit
}

func (r reservationView) ByID(_ context.Context, id reservations.ReservationID) (*reservations.Reservation, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, reservations.ErrReservationNotFound
	}
	return cloneReservation(res), nil
}

func (r reservationView) ByIDAndGuest(ctx context.Context, id reservations.ReservationID, guestID string) (*reservations.Reservation, error) {
	res, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.GuestID != guestID {
		return nil, reservations.ErrReservationNotFound
	}
	return res, nil
}

func (r reservationView) ListByStay(_ context.Context, stayID stays.StayID) ([]*reservations.Reservation, error) {
	return r.collect(func(res *reservations.Reservation) bool { return res.StayID == stayID }), nil
}

func (r reservationView) ListByGuest(_ context.Context, guestID string) ([]*reservations.Reservation, error) {
	return r.collect(func(res *reservations.Reservation) bool { return res.GuestID == guestID }), nil
}

func (r reservationView) ListByStayCheckoutAfter(_ context.Context, stayID stays.StayID, day time.Time) ([]*reservations.Reservation, error) {
	return r.collect(func(res *reservations.Reservation) bool {
		return res.StayID == stayID && res.Range.EndsAfter(day)
	}), nil
}

func (r reservationView) collect(match func(*reservations.Reservation) bool) []*reservations.Reservation {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*reservations.Reservation, 0)
	for _, res := range s.reservations {
		if match(res) {
			out = append(out, cloneReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.CheckIn.Before(out[j].Range.CheckIn) })
	return out
}

func (r reservationView) Save(_ context.Context, res *reservations.Reservation) error {
	snapshot := cloneReservation(res)
	snapshot.Version++
	if err := r.u.stage(func(s *Store) (func(), error) {
		prev, had := s.reservations[snapshot.ID]
		s.reservations[snapshot.ID] = snapshot
		return func() {
			if had {
				s.reservations[snapshot.ID] = prev
				return
			}
			delete(s.reservations, snapshot.ID)
		}, nil
	}); err != nil {
		return err
	}
	res.Version = snapshot.Version
	return nil
}

// Delete reports ErrReservationNotFound when the reservation is already gone,
// either now or by the time the unit commits.
func (r reservationView) Delete(ctx context.Context, id reservations.ReservationID) error {
	if _, err := r.ByID(ctx, id); err != nil {
		return err
	}
	if !r.u.markDeleted(id) {
		return reservations.ErrReservationNotFound
	}
	return r.u.stage(func(s *Store) (func(), error) {
		prev, had := s.reservations[id]
		if !had {
			return nil, reservations.ErrReservationNotFound
		}
		delete(s.reservations, id)
		return func() { s.reservations[id] = prev }, nil
	})
}

var _ reservations.Repository = reservationView{}
