package memory

import (
	"context"
	"sync"

	"staybook/internal/domain/geo"
	"staybook/internal/domain/stays"
)

// GeoIndex scans every point with the haversine distance. Fine for local runs
// and tests; use the Redis index for real catalogues.
type GeoIndex struct {
	mu     sync.RWMutex
	points map[stays.StayID]stays.Location
}

func NewGeoIndex() *GeoIndex {
	return &GeoIndex{points: make(map[stays.StayID]stays.Location)}
}

func (g *GeoIndex) Index(_ context.Context, loc stays.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.points[loc.StayID] = loc
	return nil
}

func (g *GeoIndex) WithinRadius(_ context.Context, lat, lon, radiusKm float64) ([]stays.StayID, error) {
	if !geo.ValidateCoordinates(lat, lon) {
		return nil, stays.ErrInvalidCoordinates
	}
	radiusKm = stays.EffectiveRadius(radiusKm)
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]stays.StayID, 0)
	for id, p := range g.points {
		if geo.Haversine(lat, lon, p.Lat, p.Lon) <= radiusKm {
			out = append(out, id)
		}
	}
	return out, nil
}

func (g *GeoIndex) Remove(_ context.Context, id stays.StayID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.points, id)
	return nil
}

var _ stays.GeoIndex = (*GeoIndex)(nil)
