package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"staybook/internal/domain/geo"
	"staybook/internal/domain/stays"
)

// GeoIndex keeps every stay location in one sorted set and answers radius
// lookups with GEORADIUS_RO.
type GeoIndex struct {
	rdb goredis.Cmdable
	key string
}

func NewGeoIndex(rdb goredis.Cmdable, prefix string) *GeoIndex {
	return &GeoIndex{rdb: rdb, key: prefix + "stays:geo"}
}

func (g *GeoIndex) Index(ctx context.Context, loc stays.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	err := g.rdb.GeoAdd(ctx, g.key, &goredis.GeoLocation{
		Name:      string(loc.StayID),
		Longitude: loc.Lon,
		Latitude:  loc.Lat,
	}).Err()
	return classify("redis geoadd", err)
}

func (g *GeoIndex) WithinRadius(ctx context.Context, lat, lon, radiusKm float64) ([]stays.StayID, error) {
	if !geo.ValidateCoordinates(lat, lon) {
		return nil, stays.ErrInvalidCoordinates
	}
	members, err := g.rdb.GeoRadius(ctx, g.key, lon, lat, &goredis.GeoRadiusQuery{
		Radius: stays.EffectiveRadius(radiusKm),
		Unit:   "km",
	}).Result()
	if err != nil {
		return nil, classify("redis georadius", err)
	}
	out := make([]stays.StayID, 0, len(members))
	for _, m := range members {
		out = append(out, stays.StayID(m.Name))
	}
	return out, nil
}

func (g *GeoIndex) Remove(ctx context.Context, id stays.StayID) error {
	return classify("redis zrem", g.rdb.ZRem(ctx, g.key, string(id)).Err())
}

var _ stays.GeoIndex = (*GeoIndex)(nil)
