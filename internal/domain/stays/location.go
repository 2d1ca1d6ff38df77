package stays

import (
	"context"
	"errors"

	"staybook/internal/domain/geo"
)

// DefaultRadiusKm applies when a search omits the distance.
const DefaultRadiusKm = 50.0

var ErrInvalidCoordinates = errors.New("stays: coordinates out of range")

// Location is the single geo point of a stay.
type Location struct {
	StayID StayID
	Lat    float64
	Lon    float64
}

func (l Location) Validate() error {
	if !geo.ValidateCoordinates(l.Lat, l.Lon) {
		return ErrInvalidCoordinates
	}
	return nil
}

// GeoIndex answers radius lookups over stay locations. Results are an
// unordered candidate set.
type GeoIndex interface {
	Index(ctx context.Context, loc Location) error
	WithinRadius(ctx context.Context, lat, lon, radiusKm float64) ([]StayID, error)
	Remove(ctx context.Context, id StayID) error
}

// EffectiveRadius resolves a missing or non-positive radius to the default.
func EffectiveRadius(radiusKm float64) float64 {
	if radiusKm <= 0 {
		return DefaultRadiusKm
	}
	return radiusKm
}
