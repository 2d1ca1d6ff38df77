package stays

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/shared/events"
)

var (
	ErrStayNotFound              = errors.New("stays: stay not found")
	ErrStayHasActiveReservations = errors.New("stays: stay has reservations checking out in the future")
	ErrCapacity                  = errors.New("stays: capacity must be at least 1")
	ErrNameRequired              = errors.New("stays: name is required")
	ErrAddressRequired           = errors.New("stays: address is required")
	ErrHostRequired              = errors.New("stays: host is required")
	errStayIDRequired            = errors.New("stays: id is required")
)

type StayID string
type HostID string

type Stay struct {
	ID          StayID
	Host        HostID
	Name        string
	Description string
	Address     string
	Capacity    int
	Images      []string
	CreatedAt   time.Time
	events.EventRecorder
}

// Catalog is the stay store. It is read by the search pipeline and the
// reservation manager; only listing operations write to it.
type Catalog interface {
	ByID(ctx context.Context, id StayID) (*Stay, error)
	ByIDAndHost(ctx context.Context, id StayID, host HostID) (*Stay, error)
	ListByHost(ctx context.Context, host HostID) ([]*Stay, error)
	Exists(ctx context.Context, id StayID) (bool, error)
	IDs(ctx context.Context) ([]StayID, error)
	// FilterByCapacity returns the stays among ids whose capacity is at least
	// guests. Unknown ids are dropped.
	FilterByCapacity(ctx context.Context, ids []StayID, guests int) ([]*Stay, error)
	Save(ctx context.Context, stay *Stay) error
	Delete(ctx context.Context, id StayID) error
}

type CreateParams struct {
	ID          StayID
	Host        HostID
	Name        string
	Description string
	Address     string
	Capacity    int
	Images      []string
	Location    Location
	Now         time.Time
}

func NewStay(params CreateParams) (*Stay, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errStayIDRequired
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, ErrHostRequired
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(params.Address) == "" {
		return nil, ErrAddressRequired
	}
	if params.Capacity < 1 {
		return nil, ErrCapacity
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	s := &Stay{
		ID:          params.ID,
		Host:        params.Host,
		Name:        strings.TrimSpace(params.Name),
		Description: strings.TrimSpace(params.Description),
		Address:     strings.TrimSpace(params.Address),
		Capacity:    params.Capacity,
		Images:      append([]string(nil), params.Images...),
		CreatedAt:   now.UTC(),
	}
	s.Record(StayListed{StayID: s.ID, Host: s.Host, Capacity: s.Capacity, Lat: params.Location.Lat, Lon: params.Location.Lon, At: s.CreatedAt})
	return s, nil
}

// Delist records the removal of the stay from the catalog.
func (s *Stay) Delist(now time.Time) {
	s.Record(StayDelisted{StayID: s.ID, Host: s.Host, At: now.UTC()})
}

// Accommodates reports whether the stay fits the given number of guests.
func (s *Stay) Accommodates(guests int) bool {
	return s != nil && s.Capacity >= guests
}
