package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/stays"
)

const RebuildLedgerKey = "ledger.rebuild"

// RebuildLedgerCommand reconciles one stay, or every stay when StayID is empty.
type RebuildLedgerCommand struct {
	StayID string
}

func (c RebuildLedgerCommand) Key() string { return RebuildLedgerKey }

func (c RebuildLedgerCommand) RequiredRole() string { return middleware.RoleHost }

func (c RebuildLedgerCommand) ManagesOwnUnit() bool { return true }

type RebuildLedgerHandler struct {
	UoWFactory uow.UoWFactory
	Locker     policies.StayLocker
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Clock      policies.Clock
	Logger     *slog.Logger
}

// Handle derives each stay's nights from its active reservations and patches
// the ledger to match. Each stay is repaired under its lock in its own unit.
func (h *RebuildLedgerHandler) Handle(ctx context.Context, cmd RebuildLedgerCommand) (*dto.LedgerRepair, error) {
	ids, err := h.targets(ctx, strings.TrimSpace(cmd.StayID))
	if err != nil {
		return nil, err
	}
	report := &dto.LedgerRepair{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		inserted, deleted, err := h.repair(ctx, id)
		if err != nil {
			return report, fmt.Errorf("ledger: repair stay %s: %w", id, err)
		}
		report.Stays++
		report.Inserted += inserted
		report.Deleted += deleted
	}
	h.logger().InfoContext(ctx, "ledger rebuilt", "stays", report.Stays, "inserted", report.Inserted, "deleted", report.Deleted)
	return report, nil
}

func (h *RebuildLedgerHandler) targets(ctx context.Context, stayID string) ([]stays.StayID, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if stayID != "" {
		ok, err := unit.Stays().Exists(execCtx, stays.StayID(stayID))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, stays.ErrStayNotFound
		}
		return []stays.StayID{stays.StayID(stayID)}, nil
	}
	return unit.Stays().IDs(execCtx)
}

func (h *RebuildLedgerHandler) repair(ctx context.Context, id stays.StayID) (int, int, error) {
	if h.Locker != nil {
		release, err := h.Locker.Lock(ctx, string(id))
		if err != nil {
			return 0, 0, err
		}
		defer release()
	}
	var patch availability.Patch
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		current, err := unit.Ledger().NightsForStay(ctx, id)
		if err != nil {
			return err
		}
		reservations, err := unit.Reservations().ListByStay(ctx, id)
		if err != nil {
			return err
		}
		active := make([]availability.Occupancy, 0, len(reservations))
		for _, r := range reservations {
			if r.Active() {
				active = append(active, availability.Occupancy{ReservationID: string(r.ID), Range: r.Range})
			}
		}
		patch = availability.Diff(id, current, active)
		if patch.Empty() {
			return nil
		}
		if len(patch.Delete) > 0 {
			if err := unit.Ledger().DeleteNights(ctx, id, patch.Delete); err != nil {
				return err
			}
		}
		for owner, dates := range patch.Insert {
			if err := unit.Ledger().InsertNights(ctx, id, owner, dates); err != nil {
				return err
			}
		}
		ev := availability.LedgerRepairedEvent(id, patch.Inserted(), len(patch.Delete), h.Clock.Now())
		return outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, []events.DomainEvent{ev})
	})
	if err != nil {
		return 0, 0, err
	}
	if !patch.Empty() {
		h.logger().WarnContext(ctx, "ledger drift repaired", "stay_id", id, "inserted", patch.Inserted(), "deleted", len(patch.Delete))
	}
	return patch.Inserted(), len(patch.Delete), nil
}

func (h *RebuildLedgerHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ commands.Handler[RebuildLedgerCommand, *dto.LedgerRepair] = (*RebuildLedgerHandler)(nil)
