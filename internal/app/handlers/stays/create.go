package stays

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainstays "staybook/internal/domain/stays"
)

const CreateStayKey = "stays.create"

var ErrGeocoderUnavailable = errors.New("stays: no coordinates supplied and no geocoder configured")

type CreateStayCommand struct {
	HostID      string
	Name        string
	Description string
	Address     string
	Capacity    int
	// Lat and Lon are used as-is when both are set; otherwise the address
	// is geocoded.
	Lat    *float64
	Lon    *float64
	Images []policies.ImageUpload
}

func (c CreateStayCommand) Key() string { return CreateStayKey }

func (c CreateStayCommand) RequiredRole() string { return middleware.RoleHost }

func (c CreateStayCommand) ManagesOwnUnit() bool { return true }

func (c CreateStayCommand) Validate() error {
	switch {
	case strings.TrimSpace(c.HostID) == "":
		return domainstays.ErrHostRequired
	case strings.TrimSpace(c.Name) == "":
		return domainstays.ErrNameRequired
	case strings.TrimSpace(c.Address) == "":
		return domainstays.ErrAddressRequired
	case c.Capacity < 1:
		return domainstays.ErrCapacity
	case (c.Lat == nil) != (c.Lon == nil):
		return domainstays.ErrInvalidCoordinates
	}
	return nil
}

type CreateStayHandler struct {
	UoWFactory uow.UoWFactory
	Geo        domainstays.GeoIndex
	Geocoder   policies.Geocoder
	Images     policies.ImageStore
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Clock      policies.Clock
	Logger     *slog.Logger
	NewID      func() string
}

// Handle commits the stay first and indexes its location afterwards. When
// indexing fails the stay and its uploaded images are removed again.
func (h *CreateStayHandler) Handle(ctx context.Context, cmd CreateStayCommand) (*dto.Stay, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	id := domainstays.StayID(h.newID())

	loc, err := h.locate(ctx, id, cmd)
	if err != nil {
		return nil, err
	}

	urls, err := h.upload(ctx, id, cmd.Images)
	if err != nil {
		return nil, err
	}

	stay, err := domainstays.NewStay(domainstays.CreateParams{
		ID:          id,
		Host:        domainstays.HostID(strings.TrimSpace(cmd.HostID)),
		Name:        cmd.Name,
		Description: cmd.Description,
		Address:     cmd.Address,
		Capacity:    cmd.Capacity,
		Images:      urls,
		Location:    loc,
		Now:         h.Clock.Now(),
	})
	if err != nil {
		h.discardImages(ctx, urls)
		return nil, err
	}

	err = handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Stays().Save(ctx, stay); err != nil {
			return err
		}
		return outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, stay.Drain())
	})
	if err != nil {
		h.discardImages(ctx, urls)
		return nil, err
	}

	if err := h.Geo.Index(ctx, loc); err != nil {
		h.logger().ErrorContext(ctx, "geo indexing failed, removing stay", "stay_id", id, "error", err)
		rollbackErr := handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			return unit.Stays().Delete(ctx, id)
		})
		h.discardImages(ctx, urls)
		return nil, errors.Join(fmt.Errorf("stays: index location: %w", err), rollbackErr)
	}

	h.logger().InfoContext(ctx, "stay listed", "stay_id", id, "host_id", stay.Host, "capacity", stay.Capacity)
	out := dto.MapStay(stay)
	return &out, nil
}

func (h *CreateStayHandler) locate(ctx context.Context, id domainstays.StayID, cmd CreateStayCommand) (domainstays.Location, error) {
	loc := domainstays.Location{StayID: id}
	if cmd.Lat != nil && cmd.Lon != nil {
		loc.Lat, loc.Lon = *cmd.Lat, *cmd.Lon
	} else {
		if h.Geocoder == nil {
			return loc, ErrGeocoderUnavailable
		}
		lat, lon, err := h.Geocoder.Resolve(ctx, strings.TrimSpace(cmd.Address))
		if err != nil {
			return loc, err
		}
		loc.Lat, loc.Lon = lat, lon
	}
	if err := loc.Validate(); err != nil {
		return loc, err
	}
	return loc, nil
}

func (h *CreateStayHandler) upload(ctx context.Context, id domainstays.StayID, images []policies.ImageUpload) ([]string, error) {
	if len(images) == 0 {
		return nil, nil
	}
	if h.Images == nil {
		return nil, errors.New("stays: image store not configured")
	}
	urls := make([]string, 0, len(images))
	for _, img := range images {
		url, err := h.Images.Put(ctx, string(id), img)
		if err != nil {
			h.discardImages(ctx, urls)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (h *CreateStayHandler) discardImages(ctx context.Context, urls []string) {
	if h.Images == nil {
		return
	}
	for _, url := range urls {
		if err := h.Images.Delete(ctx, url); err != nil {
			h.logger().WarnContext(ctx, "image cleanup failed", "url", url, "error", err)
		}
	}
}

func (h *CreateStayHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *CreateStayHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ commands.Handler[CreateStayCommand, *dto.Stay] = (*CreateStayHandler)(nil)
var _ middleware.UnmanagedCommand = CreateStayCommand{}
