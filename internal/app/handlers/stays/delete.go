package stays

import (
	"context"
	"log/slog"
	"strings"

	"staybook/internal/app/commands"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	"staybook/internal/domain/shared/daterange"
	domainstays "staybook/internal/domain/stays"
)

const DeleteStayKey = "stays.delete"

type DeleteStayCommand struct {
	HostID string
	StayID string
}

func (c DeleteStayCommand) Key() string { return DeleteStayKey }

func (c DeleteStayCommand) StayLockKey() string { return c.StayID }

func (c DeleteStayCommand) RequiredRole() string { return middleware.RoleHost }

func (c DeleteStayCommand) ManagesOwnUnit() bool { return true }

func (c DeleteStayCommand) Validate() error {
	if strings.TrimSpace(c.StayID) == "" || strings.TrimSpace(c.HostID) == "" {
		return domainstays.ErrStayNotFound
	}
	return nil
}

type DeleteStayResult struct {
	StayID              string `json:"stay_id"`
	RemovedReservations int    `json:"removed_reservations"`
}

type DeleteStayHandler struct {
	UoWFactory uow.UoWFactory
	Geo        domainstays.GeoIndex
	Images     policies.ImageStore
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Clock      policies.Clock
	Logger     *slog.Logger
}

// Handle refuses while any reservation checks out after today. Past
// reservations and their nights are removed with the stay; the geo point and
// images go after commit.
func (h *DeleteStayHandler) Handle(ctx context.Context, cmd DeleteStayCommand) (*DeleteStayResult, error) {
	now := h.Clock.Now()
	today := daterange.Day(now)
	var (
		stay    *domainstays.Stay
		removed int
	)
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		stay, err = ownedStay(ctx, unit, cmd.StayID, cmd.HostID)
		if err != nil {
			return err
		}
		upcoming, err := unit.Reservations().ListByStayCheckoutAfter(ctx, stay.ID, today)
		if err != nil {
			return err
		}
		if len(upcoming) > 0 {
			return domainstays.ErrStayHasActiveReservations
		}
		past, err := unit.Reservations().ListByStay(ctx, stay.ID)
		if err != nil {
			return err
		}
		for _, res := range past {
			if err := unit.Ledger().DeleteNights(ctx, stay.ID, res.Range.Dates()); err != nil {
				return err
			}
			if err := unit.Reservations().Delete(ctx, res.ID); err != nil {
				return err
			}
		}
		removed = len(past)
		if err := unit.Stays().Delete(ctx, stay.ID); err != nil {
			return err
		}
		stay.Delist(now)
		return outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, stay.Drain())
	})
	if err != nil {
		return nil, err
	}

	if h.Geo != nil {
		if err := h.Geo.Remove(ctx, stay.ID); err != nil {
			// An orphaned point is dropped by the capacity filter during search.
			h.logger().WarnContext(ctx, "geo point removal failed", "stay_id", stay.ID, "error", err)
		}
	}
	if h.Images != nil {
		for _, url := range stay.Images {
			if err := h.Images.Delete(ctx, url); err != nil {
				h.logger().WarnContext(ctx, "image removal failed", "stay_id", stay.ID, "url", url, "error", err)
			}
		}
	}
	h.logger().InfoContext(ctx, "stay deleted", "stay_id", stay.ID, "removed_reservations", removed)
	return &DeleteStayResult{StayID: string(stay.ID), RemovedReservations: removed}, nil
}

func (h *DeleteStayHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ commands.Handler[DeleteStayCommand, *DeleteStayResult] = (*DeleteStayHandler)(nil)
var _ middleware.StayScopedCommand = DeleteStayCommand{}

