package stays_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlerstays "staybook/internal/app/handlers/stays"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/stays"
	"staybook/internal/infra/storage/memory"
)

// --- Mocks ---

type fakeGeocoder struct {
	lat, lon float64
	err      error
	calls    int
}

func (g *fakeGeocoder) Resolve(context.Context, string) (float64, float64, error) {
	g.calls++
	return g.lat, g.lon, g.err
}

type fakeImages struct {
	stored  map[string]bool
	failAt  int
	puts    int
	deleted []string
}

func (s *fakeImages) Put(_ context.Context, stayID string, img policies.ImageUpload) (string, error) {
	s.puts++
	if s.failAt > 0 && s.puts == s.failAt {
		return "", errors.New("bucket unavailable")
	}
	body, _ := io.ReadAll(img.Body)
	url := "https://img.local/" + stayID + "/" + img.Name + "?" + string(body)
	s.stored[url] = true
	return url, nil
}

func (s *fakeImages) Delete(_ context.Context, url string) error {
	delete(s.stored, url)
	s.deleted = append(s.deleted, url)
	return nil
}

type failingGeo struct {
	*memory.GeoIndex
}

func (failingGeo) Index(context.Context, stays.Location) error { return errors.New("geo down") }

// --- Tests ---

var now = time.Date(2031, 6, 15, 9, 0, 0, 0, time.UTC)

type env struct {
	store   *memory.Store
	geo     *memory.GeoIndex
	images  *fakeImages
	coder   *fakeGeocoder
	outbox  *memory.Outbox
	factory memory.Factory
}

func newEnv() *env {
	store := memory.NewStore()
	return &env{
		store:   store,
		geo:     memory.NewGeoIndex(),
		images:  &fakeImages{stored: map[string]bool{}},
		coder:   &fakeGeocoder{lat: 48.85, lon: 2.35},
		outbox:  memory.NewOutbox(nil, nil),
		factory: memory.Factory{Store: store},
	}
}

func (e *env) bus(geo stays.GeoIndex) commands.Bus {
	clock := func() time.Time { return now }
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[handlerstays.CreateStayCommand, *dto.Stay](bus, handlerstays.CreateStayKey, &handlerstays.CreateStayHandler{
		UoWFactory: e.factory, Geo: geo, Geocoder: e.coder, Images: e.images, Outbox: e.outbox, Clock: clock,
		NewID: func() string { return "stay-1" },
	})
	commands.RegisterHandler[handlerstays.DeleteStayCommand, *handlerstays.DeleteStayResult](bus, handlerstays.DeleteStayKey, &handlerstays.DeleteStayHandler{
		UoWFactory: e.factory, Geo: geo, Images: e.images, Outbox: e.outbox, Clock: clock,
	})
	return middleware.ChainCommands(bus,
		middleware.Validation(middleware.SelfValidator{}),
		middleware.OutboxFlush(e.outbox, nil),
		middleware.StayLock(memory.NewStayLocks(0)),
		middleware.Transaction(e.factory, nil),
	)
}

func createCmd() handlerstays.CreateStayCommand {
	return handlerstays.CreateStayCommand{
		HostID: "h1", Name: "Loft", Address: "1 Rue de Rivoli, Paris", Capacity: 3,
		Images: []policies.ImageUpload{{Name: "a.jpg", Body: strings.NewReader("1")}, {Name: "b.jpg", Body: strings.NewReader("2")}},
	}
}

func TestCreateStay_GeocodesUploadsAndIndexes(t *testing.T) {
	e := newEnv()
	out, err := commands.Dispatch[handlerstays.CreateStayCommand, *dto.Stay](context.Background(), e.bus(e.geo), createCmd())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.ID != "stay-1" || len(out.Images) != 2 || e.coder.calls != 1 {
		t.Fatalf("unexpected stay %+v (geocoder calls %d)", out, e.coder.calls)
	}
	ids, _ := e.geo.WithinRadius(context.Background(), 48.85, 2.35, 1)
	if len(ids) != 1 || ids[0] != "stay-1" {
		t.Fatalf("stay not indexed: %v", ids)
	}
	if d := e.outbox.Delivered(); len(d) != 1 || d[0].Name != "stay.listed" {
		t.Fatalf("unexpected events: %+v", d)
	}
}

func TestCreateStay_ExplicitCoordinatesSkipGeocoder(t *testing.T) {
	e := newEnv()
	cmd := createCmd()
	lat, lon := 45.76, 4.83
	cmd.Lat, cmd.Lon = &lat, &lon
	if _, err := commands.Dispatch[handlerstays.CreateStayCommand, *dto.Stay](context.Background(), e.bus(e.geo), cmd); err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.coder.calls != 0 {
		t.Fatal("geocoder called despite explicit coordinates")
	}
}

func TestCreateStay_IndexFailureRemovesStay(t *testing.T) {
	e := newEnv()
	_, err := commands.Dispatch[handlerstays.CreateStayCommand, *dto.Stay](context.Background(), e.bus(failingGeo{e.geo}), createCmd())
	if err == nil {
		t.Fatal("want error")
	}
	unit, _ := e.factory.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	if ok, _ := unit.Stays().Exists(context.Background(), "stay-1"); ok {
		t.Fatal("stay left in catalog after indexing failure")
	}
	if len(e.images.stored) != 0 {
		t.Fatalf("images left behind: %v", e.images.stored)
	}
}

func TestCreateStay_UploadFailureCleansPartialUploads(t *testing.T) {
	e := newEnv()
	e.images.failAt = 2
	if _, err := commands.Dispatch[handlerstays.CreateStayCommand, *dto.Stay](context.Background(), e.bus(e.geo), createCmd()); err == nil {
		t.Fatal("want error")
	}
	if len(e.images.stored) != 0 || len(e.images.deleted) != 1 {
		t.Fatalf("stored=%v deleted=%v", e.images.stored, e.images.deleted)
	}
}

func TestCreateStay_Validation(t *testing.T) {
	e := newEnv()
	bad := createCmd()
	bad.Capacity = 0
	if _, err := commands.Dispatch[handlerstays.CreateStayCommand, *dto.Stay](context.Background(), e.bus(e.geo), bad); !errors.Is(err, stays.ErrCapacity) {
		t.Fatalf("want ErrCapacity, got %v", err)
	}
	e.coder.err = policies.ErrAddressNotFound
	if _, err := commands.Dispatch[handlerstays.CreateStayCommand, *dto.Stay](context.Background(), e.bus(e.geo), createCmd()); !errors.Is(err, policies.ErrAddressNotFound) {
		t.Fatalf("want ErrAddressNotFound, got %v", err)
	}
	if e.images.puts != 0 {
		t.Fatal("images uploaded for a stay that could not be located")
	}
}

func seedReservation(t *testing.T, e *env, id string, in, out time.Time) {
	t.Helper()
	dr, err := daterange.New(in, out)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	unit, _ := e.factory.Begin(context.Background(), uow.TxOptions{})
	_ = unit.Reservations().Save(context.Background(), &reservations.Reservation{ID: reservations.ReservationID(id), StayID: "s1", GuestID: "g1", Range: dr, State: reservations.StateActive})
	_ = unit.Ledger().InsertNights(context.Background(), "s1", id, dr.Dates())
	if err := unit.Commit(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestDeleteStay_RefusesWhileReservationsCheckOutLater(t *testing.T) {
	e := newEnv()
	e.store.Seed(&stays.Stay{ID: "s1", Host: "h1", Name: "Loft", Address: "x", Capacity: 2})
	_ = e.geo.Index(context.Background(), stays.Location{StayID: "s1", Lat: 1, Lon: 1})
	seedReservation(t, e, "past", now.AddDate(0, 0, -10), now.AddDate(0, 0, -7))
	seedReservation(t, e, "future", now.AddDate(0, 0, -1), now.AddDate(0, 0, 2))
	bus := e.bus(e.geo)

	_, err := commands.Dispatch[handlerstays.DeleteStayCommand, *handlerstays.DeleteStayResult](context.Background(), bus, handlerstays.DeleteStayCommand{HostID: "h2", StayID: "s1"})
	if !errors.Is(err, stays.ErrStayNotFound) {
		t.Fatalf("foreign host: want ErrStayNotFound, got %v", err)
	}
	_, err = commands.Dispatch[handlerstays.DeleteStayCommand, *handlerstays.DeleteStayResult](context.Background(), bus, handlerstays.DeleteStayCommand{HostID: "h1", StayID: "s1"})
	if !errors.Is(err, stays.ErrStayHasActiveReservations) {
		t.Fatalf("want ErrStayHasActiveReservations, got %v", err)
	}

	unit, _ := e.factory.Begin(context.Background(), uow.TxOptions{})
	_ = unit.Ledger().DeleteNights(context.Background(), "s1", mustRange(t, now.AddDate(0, 0, -1), now.AddDate(0, 0, 2)).Dates())
	_ = unit.Reservations().Delete(context.Background(), "future")
	if err := unit.Commit(context.Background()); err != nil {
		t.Fatalf("drop future: %v", err)
	}

	res, err := commands.Dispatch[handlerstays.DeleteStayCommand, *handlerstays.DeleteStayResult](context.Background(), bus, handlerstays.DeleteStayCommand{HostID: "h1", StayID: "s1"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res.RemovedReservations != 1 {
		t.Fatalf("want past reservation removed, got %+v", res)
	}
	reader, _ := e.factory.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	if nights, _ := reader.Ledger().NightsForStay(context.Background(), "s1"); len(nights) != 0 {
		t.Fatalf("nights left: %+v", nights)
	}
	if ids, _ := e.geo.WithinRadius(context.Background(), 1, 1, 1); len(ids) != 0 {
		t.Fatalf("geo point left: %v", ids)
	}
}

func TestDeleteStay_CheckoutTodayIsNotUpcoming(t *testing.T) {
	e := newEnv()
	e.store.Seed(&stays.Stay{ID: "s1", Host: "h1", Name: "Loft", Address: "x", Capacity: 2})
	seedReservation(t, e, "leaving", now.AddDate(0, 0, -2), now)
	_, err := commands.Dispatch[handlerstays.DeleteStayCommand, *handlerstays.DeleteStayResult](context.Background(), e.bus(e.geo), handlerstays.DeleteStayCommand{HostID: "h1", StayID: "s1"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestHostQueries(t *testing.T) {
	e := newEnv()
	e.store.Seed(
		&stays.Stay{ID: "s1", Host: "h1", Name: "Loft", Address: "x", Capacity: 2, CreatedAt: now},
		&stays.Stay{ID: "s2", Host: "h1", Name: "Barn", Address: "y", Capacity: 6, CreatedAt: now.Add(time.Hour)},
		&stays.Stay{ID: "s3", Host: "h2", Name: "Flat", Address: "z", Capacity: 1, CreatedAt: now},
	)
	seedReservation(t, e, "r1", now.AddDate(0, 0, 3), now.AddDate(0, 0, 5))
	bus := queries.NewInMemoryBus()
	queries.RegisterHandler[handlerstays.GetHostStayQuery, dto.Stay](bus, handlerstays.GetHostStayKey, &handlerstays.GetHostStayHandler{UoWFactory: e.factory})
	queries.RegisterHandler[handlerstays.ListHostStaysQuery, dto.StayCollection](bus, handlerstays.ListHostStaysKey, &handlerstays.ListHostStaysHandler{UoWFactory: e.factory})
	queries.RegisterHandler[handlerstays.GetStayCalendarQuery, dto.StayCalendar](bus, handlerstays.GetStayCalendarKey, &handlerstays.GetStayCalendarHandler{UoWFactory: e.factory})
	ctx := context.Background()

	list, err := queries.Ask[handlerstays.ListHostStaysQuery, dto.StayCollection](ctx, bus, handlerstays.ListHostStaysQuery{HostID: "h1"})
	if err != nil || len(list.Items) != 2 {
		t.Fatalf("list: %+v, %v", list.Items, err)
	}
	if _, err := queries.Ask[handlerstays.GetHostStayQuery, dto.Stay](ctx, bus, handlerstays.GetHostStayQuery{HostID: "h1", StayID: "s3"}); !errors.Is(err, stays.ErrStayNotFound) {
		t.Fatalf("foreign stay: want ErrStayNotFound, got %v", err)
	}
	cal, err := queries.Ask[handlerstays.GetStayCalendarQuery, dto.StayCalendar](ctx, bus, handlerstays.GetStayCalendarQuery{HostID: "h1", StayID: "s1"})
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(cal.Nights) != 2 || cal.Nights[0].Date != "2031-06-18" {
		t.Fatalf("unexpected calendar: %+v", cal)
	}
}

func mustRange(t *testing.T, in, out time.Time) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(in, out)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return dr
}
