package reservations_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/reservations"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainreservations "staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
	"staybook/internal/infra/storage/memory"
)

func june(d int) time.Time {
	return time.Date(2031, 6, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store  *memory.Store
	outbox *memory.Outbox
	cmds   commands.Bus
	qs     queries.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.Seed(
		&stays.Stay{ID: "s1", Host: "h1", Name: "Loft", Address: "1 Main St", Capacity: 4},
		&stays.Stay{ID: "s2", Host: "h2", Name: "Cabin", Address: "2 Lake Rd", Capacity: 2},
	)
	factory := memory.Factory{Store: store}
	box := memory.NewOutbox(nil, nil)
	locks := memory.NewStayLocks(0)
	clock := func() time.Time { return june(1) }

	cmdBus := commands.NewInMemoryBus()
	seq := 0
	var seqMu sync.Mutex
	commands.RegisterHandler[reservations.BookStayCommand, *dto.Reservation](cmdBus, reservations.BookStayKey, &reservations.BookStayHandler{
		Outbox: box,
		Clock:  clock,
		NewID: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("r%d", seq)
		},
	})
	commands.RegisterHandler[reservations.CancelReservationCommand, *dto.Reservation](cmdBus, reservations.CancelReservationKey, &reservations.CancelReservationHandler{
		UoWFactory: factory,
		Locker:     locks,
		Outbox:     box,
		Clock:      clock,
	})
	cmds := middleware.ChainCommands(cmdBus,
		middleware.Validation(middleware.SelfValidator{}),
		middleware.OutboxFlush(box, nil),
		middleware.StayLock(locks),
		middleware.Transaction(factory, nil),
	)

	qBus := queries.NewInMemoryBus()
	queries.RegisterHandler[reservations.ListStayReservationsQuery, dto.ReservationCollection](qBus, reservations.ListStayReservationsKey, &reservations.ListStayReservationsHandler{UoWFactory: factory})
	queries.RegisterHandler[reservations.ListGuestReservationsQuery, dto.ReservationCollection](qBus, reservations.ListGuestReservationsKey, &reservations.ListGuestReservationsHandler{UoWFactory: factory})

	return &fixture{store: store, outbox: box, cmds: cmds, qs: qBus}
}

func (f *fixture) book(stay, guest string, in, out time.Time) (*dto.Reservation, error) {
	return commands.Dispatch[reservations.BookStayCommand, *dto.Reservation](context.Background(), f.cmds, reservations.BookStayCommand{
		StayID: stay, GuestID: guest, CheckIn: in, CheckOut: out,
	})
}

func (f *fixture) cancel(id, guest string) (*dto.Reservation, error) {
	return commands.Dispatch[reservations.CancelReservationCommand, *dto.Reservation](context.Background(), f.cmds, reservations.CancelReservationCommand{
		ReservationID: id, GuestID: guest,
	})
}

func (f *fixture) nights(t *testing.T, stay stays.StayID) []string {
	t.Helper()
	unit, _ := memory.Factory{Store: f.store}.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	rows, err := unit.Ledger().NightsForStay(context.Background(), stay)
	if err != nil {
		t.Fatalf("nights: %v", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Date.Format(time.DateOnly)+"="+r.ReservationID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBook_WritesLedgerAndReservation(t *testing.T) {
	f := newFixture(t)
	res, err := f.book("s1", "g1", june(10), june(13))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if res.Status != string(domainreservations.StateActive) || res.Nights != 3 {
		t.Fatalf("unexpected reservation: %+v", res)
	}
	want := []string{"2031-06-10=r1", "2031-06-11=r1", "2031-06-12=r1"}
	if got := f.nights(t, "s1"); !equal(got, want) {
		t.Fatalf("ledger = %v, want %v", got, want)
	}
	if d := f.outbox.Delivered(); len(d) != 1 || d[0].Name != "reservation.booked" {
		t.Fatalf("unexpected events: %+v", d)
	}
}

func TestBook_AdjacentStaysDoNotCollide(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book("s1", "g1", june(10), june(12)); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := f.book("s1", "g2", june(12), june(14)); err != nil {
		t.Fatalf("adjacent booking rejected: %v", err)
	}
	if _, err := f.book("s1", "g3", june(8), june(10)); err != nil {
		t.Fatalf("booking ending on checkin rejected: %v", err)
	}
	if got := f.nights(t, "s1"); len(got) != 6 {
		t.Fatalf("want 6 nights, got %v", got)
	}
}

func TestBook_OverlapRejectedWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book("s1", "g1", june(10), june(13)); err != nil {
		t.Fatalf("first: %v", err)
	}
	before := f.nights(t, "s1")

	overlaps := []struct{ in, out int }{{12, 15}, {8, 11}, {11, 12}, {9, 14}}
	for _, o := range overlaps {
		_, err := f.book("s1", "g2", june(o.in), june(o.out))
		if !errors.Is(err, domainreservations.ErrReservationCollision) {
			t.Fatalf("[%d,%d): want collision, got %v", o.in, o.out, err)
		}
	}
	if got := f.nights(t, "s1"); !equal(got, before) {
		t.Fatalf("ledger changed: %v -> %v", before, got)
	}
	list, err := queries.Ask[reservations.ListStayReservationsQuery, dto.ReservationCollection](context.Background(), f.qs, reservations.ListStayReservationsQuery{StayID: "s1"})
	if err != nil || len(list.Items) != 1 {
		t.Fatalf("want one reservation, got %+v, %v", list.Items, err)
	}
	// Other stays are unaffected.
	if _, err := f.book("s2", "g2", june(10), june(13)); err != nil {
		t.Fatalf("other stay: %v", err)
	}
}

func TestBook_InvalidInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name    string
		stay    string
		in, out time.Time
		want    error
	}{
		{"same day", "s1", june(10), june(10), domainreservations.ErrInvalidRange},
		{"reversed", "s1", june(12), june(10), domainreservations.ErrInvalidRange},
		{"checkin in the past", "s1", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC), domainreservations.ErrInvalidRange},
		{"checkin yesterday", "s1", june(1).AddDate(0, 0, -1), june(3), domainreservations.ErrInvalidRange},
		{"unknown stay", "nope", june(10), june(12), stays.ErrStayNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.book(tt.stay, "g1", tt.in, tt.out); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
	if got := f.nights(t, "s1"); len(got) != 0 {
		t.Fatalf("ledger touched: %v", got)
	}
}

func TestBook_CheckinTodayAccepted(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book("s1", "g1", june(1), june(2)); err != nil {
		t.Fatalf("same-day checkin rejected: %v", err)
	}
}

func TestCancel_RoundTripFreesNights(t *testing.T) {
	f := newFixture(t)
	res, err := f.book("s1", "g1", june(10), june(13))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := f.cancel(res.ID, "someone-else"); !errors.Is(err, domainreservations.ErrReservationNotFound) {
		t.Fatalf("foreign cancel: want not found, got %v", err)
	}
	cancelled, err := f.cancel(res.ID, "g1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != string(domainreservations.StateCancelled) {
		t.Fatalf("want CANCELLED, got %s", cancelled.Status)
	}
	if got := f.nights(t, "s1"); len(got) != 0 {
		t.Fatalf("nights not released: %v", got)
	}
	if _, err := f.cancel(res.ID, "g1"); !errors.Is(err, domainreservations.ErrReservationNotFound) {
		t.Fatalf("second cancel: want not found, got %v", err)
	}
	if _, err := f.book("s1", "g2", june(10), june(13)); err != nil {
		t.Fatalf("rebook freed nights: %v", err)
	}
}

func TestBook_ConcurrentRaceHasOneWinner(t *testing.T) {
	f := newFixture(t)
	const contenders = 24
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			// Every request overlaps night 11.
			_, err := f.book("s1", fmt.Sprintf("g%d", i), june(10+i%2), june(12+i%3))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domainreservations.ErrReservationCollision):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()
	if wins != 1 || conflicts != contenders-1 {
		t.Fatalf("wins=%d conflicts=%d", wins, conflicts)
	}

	list, err := queries.Ask[reservations.ListStayReservationsQuery, dto.ReservationCollection](context.Background(), f.qs, reservations.ListStayReservationsQuery{StayID: "s1"})
	if err != nil || len(list.Items) != 1 {
		t.Fatalf("want one reservation, got %+v, %v", list.Items, err)
	}
	if got := f.nights(t, "s1"); len(got) != list.Items[0].Nights {
		t.Fatalf("ledger %v does not match reservation %+v", got, list.Items[0])
	}
}

func TestCancel_ConcurrentSecondCancelNotFound(t *testing.T) {
	f := newFixture(t)
	res, err := f.book("s1", "g1", june(10), june(13))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.cancel(res.ID, "g1")
		}(i)
	}
	wg.Wait()
	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, domainreservations.ErrReservationNotFound):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("want exactly one successful cancel, got %d", ok)
	}
	if got := f.nights(t, "s1"); len(got) != 0 {
		t.Fatalf("nights left behind: %v", got)
	}
}

func TestListQueries(t *testing.T) {
	f := newFixture(t)
	_, _ = f.book("s1", "g1", june(10), june(12))
	_, _ = f.book("s2", "g1", june(3), june(5))
	_, _ = f.book("s1", "g2", june(20), june(21))

	mine, err := queries.Ask[reservations.ListGuestReservationsQuery, dto.ReservationCollection](context.Background(), f.qs, reservations.ListGuestReservationsQuery{GuestID: "g1"})
	if err != nil {
		t.Fatalf("guest list: %v", err)
	}
	if len(mine.Items) != 2 || mine.Items[0].StayID != "s2" {
		t.Fatalf("want two reservations ordered by checkin, got %+v", mine.Items)
	}

	_, err = queries.Ask[reservations.ListStayReservationsQuery, dto.ReservationCollection](context.Background(), f.qs, reservations.ListStayReservationsQuery{StayID: "s1", HostID: "h2"})
	if !errors.Is(err, stays.ErrStayNotFound) {
		t.Fatalf("foreign host: want ErrStayNotFound, got %v", err)
	}
	owned, err := queries.Ask[reservations.ListStayReservationsQuery, dto.ReservationCollection](context.Background(), f.qs, reservations.ListStayReservationsQuery{StayID: "s1", HostID: "h1"})
	if err != nil || len(owned.Items) != 2 {
		t.Fatalf("host list: %+v, %v", owned.Items, err)
	}
}
