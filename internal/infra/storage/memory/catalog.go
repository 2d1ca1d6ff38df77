package memory

import (
	"context"
	"sort"

	"staybook/internal/domain/stays"
)

type catalogView struct {
	u *Unit
}

func (c catalogView) ByID(_ context.Context, id stays.StayID) (*stays.Stay, error) {
	s := c.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stays[id]
	if !ok {
		return nil, stays.ErrStayNotFound
	}
	return cloneStay(st), nil
}

func (c catalogView) ByIDAndHost(ctx context.Context, id stays.StayID, host stays.HostID) (*stays.Stay, error) {
	st, err := c.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Host != host {
		return nil, stays.ErrStayNotFound
	}
	return st, nil
}

func (c catalogView) ListByHost(_ context.Context, host stays.HostID) ([]*stays.Stay, error) {
	s := c.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*stays.Stay, 0)
	for _, st := range s.stays {
		if st.Host == host {
			out = append(out, cloneStay(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (c catalogView) Exists(_ context.Context, id stays.StayID) (bool, error) {
	s := c.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stays[id]
	return ok, nil
}

func (c catalogView) IDs(_ context.Context) ([]stays.StayID, error) {
	s := c.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]stays.StayID, 0, len(s.stays))
	for id := range s.stays {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (c catalogView) FilterByCapacity(_ context.Context, ids []stays.StayID, guests int) ([]*stays.Stay, error) {
	s := c.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*stays.Stay, 0, len(ids))
	for _, id := range ids {
		if st, ok := s.stays[id]; ok && st.Accommodates(guests) {
			out = append(out, cloneStay(st))
		}
	}
	return out, nil
}

func (c catalogView) Save(_ context.Context, stay *stays.Stay) error {
	snapshot := cloneStay(stay)
	return c.u.stage(func(s *Store) (func(), error) {
		prev, had := s.stays[snapshot.ID]
		s.stays[snapshot.ID] = snapshot
		return func() {
			if had {
				s.stays[snapshot.ID] = prev
				return
			}
			delete(s.stays, snapshot.ID)
		}, nil
	})
}

func (c catalogView) Delete(_ context.Context, id stays.StayID) error {
	return c.u.stage(func(s *Store) (func(), error) {
		prev, had := s.stays[id]
		if !had {
			return nil, stays.ErrStayNotFound
		}
		delete(s.stays, id)
		return func() { s.stays[id] = prev }, nil
	})
}

var _ stays.Catalog = catalogView{}
