package reservations

import (
	"context"
	"strings"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainreservations "staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
)

const (
	ListStayReservationsKey  = "reservations.list_for_stay"
	ListGuestReservationsKey = "reservations.list_for_guest"
)

// ListStayReservationsQuery lists a stay's reservations. A non-empty HostID
// restricts the listing to stays owned by that host.
type ListStayReservationsQuery struct {
	StayID string
	HostID string
}

func (q ListStayReservationsQuery) Key() string { return ListStayReservationsKey }

func (q ListStayReservationsQuery) RequiredRole() string { return middleware.RoleHost }

type ListStayReservationsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListStayReservationsHandler) Handle(ctx context.Context, q ListStayReservationsQuery) (dto.ReservationCollection, error) {
	stayID := stays.StayID(strings.TrimSpace(q.StayID))
	if stayID == "" {
		return dto.ReservationCollection{}, stays.ErrStayNotFound
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ReservationCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if host := strings.TrimSpace(q.HostID); host != "" {
		if _, err := unit.Stays().ByIDAndHost(execCtx, stayID, stays.HostID(host)); err != nil {
			return dto.ReservationCollection{}, err
		}
	}
	items, err := unit.Reservations().ListByStay(execCtx, stayID)
	if err != nil {
		return dto.ReservationCollection{}, err
	}
	return dto.MapReservations(items), nil
}

type ListGuestReservationsQuery struct {
	GuestID string
}

func (q ListGuestReservationsQuery) Key() string { return ListGuestReservationsKey }

func (q ListGuestReservationsQuery) Validate() error {
	if strings.TrimSpace(q.GuestID) == "" {
		return domainreservations.ErrGuestRequired
	}
	return nil
}

type ListGuestReservationsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListGuestReservationsHandler) Handle(ctx context.Context, q ListGuestReservationsQuery) (dto.ReservationCollection, error) {
	if err := q.Validate(); err != nil {
		return dto.ReservationCollection{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ReservationCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Reservations().ListByGuest(execCtx, strings.TrimSpace(q.GuestID))
	if err != nil {
		return dto.ReservationCollection{}, err
	}
	return dto.MapReservations(items), nil
}

var (
	_ queries.Handler[ListStayReservationsQuery, dto.ReservationCollection]  = (*ListStayReservationsHandler)(nil)
	_ queries.Handler[ListGuestReservationsQuery, dto.ReservationCollection] = (*ListGuestReservationsHandler)(nil)
)
