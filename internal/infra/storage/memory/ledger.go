package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/stays"
)

type ledgerView struct {
	u *Unit
}

func (l ledgerView) NightsReservedInRange(_ context.Context, ids []stays.StayID, from, toInclusive time.Time) (map[stays.StayID]struct{}, error) {
	out := make(map[stays.StayID]struct{})
	if len(ids) == 0 {
		return out, nil
	}
	from, to := daterange.Day(from), daterange.Day(toInclusive)
	if to.Before(from) {
		return out, nil
	}
	s := l.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			if _, taken := s.nights[availability.NightKey{StayID: id, Date: d}]; taken {
				out[id] = struct{}{}
				break
			}
		}
	}
	return out, nil
}

// InsertNights is checked against committed rows when the unit commits. Any
// existing row fails the whole unit with ErrNightConflict.
func (l ledgerView) InsertNights(_ context.Context, stayID stays.StayID, reservationID string, dates []time.Time) error {
	rows := make([]availability.ReservedNight, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, availability.ReservedNight{StayID: stayID, Date: daterange.Day(d), ReservationID: reservationID})
	}
	return l.u.stage(func(s *Store) (func(), error) {
		for _, row := range rows {
			if _, exists := s.nights[availability.KeyOf(row)]; exists {
				return nil, fmt.Errorf("%w: stay %s night %s", availability.ErrNightConflict, stayID, row.Date.Format(time.DateOnly))
			}
		}
		for _, row := range rows {
			s.nights[availability.KeyOf(row)] = row
		}
		return func() {
			for _, row := range rows {
				delete(s.nights, availability.KeyOf(row))
			}
		}, nil
	})
}

func (l ledgerView) DeleteNights(_ context.Context, stayID stays.StayID, dates []time.Time) error {
	keys := make([]availability.NightKey, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, availability.NightKey{StayID: stayID, Date: daterange.Day(d)})
	}
	return l.u.stage(func(s *Store) (func(), error) {
		removed := make([]availability.ReservedNight, 0, len(keys))
		for _, k := range keys {
			if row, ok := s.nights[k]; ok {
				removed = append(removed, row)
				delete(s.nights, k)
			}
		}
		return func() {
			for _, row := range removed {
				s.nights[availability.KeyOf(row)] = row
			}
		}, nil
	})
}

func (l ledgerView) NightsForStay(_ context.Context, stayID stays.StayID) ([]availability.ReservedNight, error) {
	s := l.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]availability.ReservedNight, 0)
	for k, row := range s.nights {
		if k.StayID == stayID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

var _ availability.Ledger = ledgerView{}
