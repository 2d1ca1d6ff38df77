package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/domain/geo"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/stays"
)

const SearchStaysKey = "search.stays"

var (
	ErrInvalidSearchRange    = errors.New("search: checkin must be today or later and before checkout")
	ErrInvalidSearchCriteria = errors.New("search: invalid search criteria")
)

type SearchStaysQuery struct {
	GuestNumber int
	CheckIn     time.Time
	CheckOut    time.Time
	Lat         float64
	Lon         float64
	// RadiusKm <= 0 means stays.DefaultRadiusKm.
	RadiusKm float64
}

func (q SearchStaysQuery) Key() string { return SearchStaysKey }

// Recorder observes how much each pipeline stage narrowed the result.
type Recorder interface {
	ObserveSearch(candidates, available, matched int)
}

type SearchStaysHandler struct {
	UoWFactory uow.UoWFactory
	Geo        stays.GeoIndex
	Clock      policies.Clock
	Recorder   Recorder
	Logger     *slog.Logger
}

// Handle runs geo lookup, then the ledger range query, then the capacity
// filter. It takes no locks.
func (h *SearchStaysHandler) Handle(ctx context.Context, q SearchStaysQuery) (dto.StayCollection, error) {
	dr, err := h.validate(q)
	if err != nil {
		return dto.StayCollection{}, err
	}

	candidates, err := h.Geo.WithinRadius(ctx, q.Lat, q.Lon, stays.EffectiveRadius(q.RadiusKm))
	if err != nil {
		return dto.StayCollection{}, err
	}
	if len(candidates) == 0 {
		h.observe(0, 0, 0)
		return dto.StayCollection{Items: []dto.Stay{}}, nil
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.StayCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	occupied, err := unit.Ledger().NightsReservedInRange(execCtx, candidates, dr.CheckIn, dr.LastNight())
	if err != nil {
		return dto.StayCollection{}, err
	}
	available := make([]stays.StayID, 0, len(candidates))
	for _, id := range candidates {
		if _, taken := occupied[id]; !taken {
			available = append(available, id)
		}
	}
	if len(available) == 0 {
		h.observe(len(candidates), 0, 0)
		return dto.StayCollection{Items: []dto.Stay{}}, nil
	}

	matched, err := unit.Stays().FilterByCapacity(execCtx, available, q.GuestNumber)
	if err != nil {
		return dto.StayCollection{}, err
	}
	h.observe(len(candidates), len(available), len(matched))
	if h.Logger != nil {
		h.Logger.DebugContext(ctx, "search completed",
			"candidates", len(candidates), "available", len(available), "matched", len(matched))
	}
	return dto.MapStays(matched), nil
}

func (h *SearchStaysHandler) validate(q SearchStaysQuery) (daterange.DateRange, error) {
	checkIn, checkOut := daterange.Day(q.CheckIn), daterange.Day(q.CheckOut)
	if checkIn.IsZero() || checkOut.IsZero() || !checkIn.Before(checkOut) {
		return daterange.DateRange{}, ErrInvalidSearchRange
	}
	if checkIn.Before(daterange.Day(h.Clock.Now())) {
		return daterange.DateRange{}, ErrInvalidSearchRange
	}
	if q.GuestNumber < 1 {
		return daterange.DateRange{}, ErrInvalidSearchCriteria
	}
	if !geo.ValidateCoordinates(q.Lat, q.Lon) {
		return daterange.DateRange{}, ErrInvalidSearchCriteria
	}
	return daterange.New(checkIn, checkOut)
}

func (h *SearchStaysHandler) observe(candidates, available, matched int) {
	if h.Recorder != nil {
		h.Recorder.ObserveSearch(candidates, available, matched)
	}
}

var _ queries.Handler[SearchStaysQuery, dto.StayCollection] = (*SearchStaysHandler)(nil)
