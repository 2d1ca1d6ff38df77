package stays

import (
	"context"
	"strings"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainstays "staybook/internal/domain/stays"
)

const (
	GetHostStayKey     = "stays.get_for_host"
	ListHostStaysKey   = "stays.list_for_host"
	GetStayCalendarKey = "stays.calendar"
)

type GetHostStayQuery struct {
	HostID string
	StayID string
}

func (q GetHostStayQuery) Key() string { return GetHostStayKey }

func (q GetHostStayQuery) RequiredRole() string { return middleware.RoleHost }

type GetHostStayHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetHostStayHandler) Handle(ctx context.Context, q GetHostStayQuery) (dto.Stay, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Stay{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	stay, err := ownedStay(execCtx, unit, q.StayID, q.HostID)
	if err != nil {
		return dto.Stay{}, err
	}
	return dto.MapStay(stay), nil
}

type ListHostStaysQuery struct {
	HostID string
}

func (q ListHostStaysQuery) Key() string { return ListHostStaysKey }

func (q ListHostStaysQuery) RequiredRole() string { return middleware.RoleHost }

type ListHostStaysHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListHostStaysHandler) Handle(ctx context.Context, q ListHostStaysQuery) (dto.StayCollection, error) {
	host := strings.TrimSpace(q.HostID)
	if host == "" {
		return dto.StayCollection{}, domainstays.ErrHostRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.StayCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Stays().ListByHost(execCtx, domainstays.HostID(host))
	if err != nil {
		return dto.StayCollection{}, err
	}
	return dto.MapStays(items), nil
}

// GetStayCalendarQuery returns the reserved nights of a host's stay.
type GetStayCalendarQuery struct {
	HostID string
	StayID string
}

func (q GetStayCalendarQuery) Key() string { return GetStayCalendarKey }

func (q GetStayCalendarQuery) RequiredRole() string { return middleware.RoleHost }

type GetStayCalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetStayCalendarHandler) Handle(ctx context.Context, q GetStayCalendarQuery) (dto.StayCalendar, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.StayCalendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	stay, err := ownedStay(execCtx, unit, q.StayID, q.HostID)
	if err != nil {
		return dto.StayCalendar{}, err
	}
	nights, err := unit.Ledger().NightsForStay(execCtx, stay.ID)
	if err != nil {
		return dto.StayCalendar{}, err
	}
	return dto.MapCalendar(stay.ID, nights), nil
}

func ownedStay(ctx context.Context, unit uow.UnitOfWork, stayID, hostID string) (*domainstays.Stay, error) {
	id := domainstays.StayID(strings.TrimSpace(stayID))
	host := domainstays.HostID(strings.TrimSpace(hostID))
	if id == "" || host == "" {
		return nil, domainstays.ErrStayNotFound
	}
	return unit.Stays().ByIDAndHost(ctx, id, host)
}

var _ queries.Handler[GetHostStayQuery, dto.Stay] = (*GetHostStayHandler)(nil)
var _ queries.Handler[ListHostStaysQuery, dto.StayCollection] = (*ListHostStaysHandler)(nil)
var _ queries.Handler[GetStayCalendarQuery, dto.StayCalendar] = (*GetStayCalendarHandler)(nil)
