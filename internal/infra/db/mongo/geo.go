package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/geo"
	"staybook/internal/domain/stays"
)

// GeoIndex keeps one GeoJSON point per stay in its own collection, backed
// by a 2dsphere index. Writes happen outside the unit of work, after the
// stay itself is stored.
type GeoIndex struct {
	col *mongo.Collection
}

func NewGeoIndex(db *mongo.Database) *GeoIndex {
	return &GeoIndex{col: db.Collection(locationsCollection)}
}

type pointDocument struct {
	Type        string     `bson:"type"`
	Coordinates [2]float64 `bson:"coordinates"`
}

type locationDocument struct {
	ID       string        `bson:"_id"`
	Location pointDocument `bson:"location"`
}

func (g *GeoIndex) Index(ctx context.Context, loc stays.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	doc := locationDocument{
		ID:       string(loc.StayID),
		Location: pointDocument{Type: "Point", Coordinates: [2]float64{loc.Lon, loc.Lat}},
	}
	_, err := g.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return classify("mongo locations upsert", err)
}

func (g *GeoIndex) WithinRadius(ctx context.Context, lat, lon, radiusKm float64) ([]stays.StayID, error) {
	if !geo.ValidateCoordinates(lat, lon) {
		return nil, stays.ErrInvalidCoordinates
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := g.col.Find(ctx, radiusFilter(lat, lon, stays.EffectiveRadius(radiusKm)), opts)
	if err != nil {
		return nil, classify("mongo locations radius", err)
	}
	defer cur.Close(ctx)
	var out []stays.StayID
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, stays.StayID(doc.ID))
	}
	return out, classify("mongo locations radius", cur.Err())
}

func (g *GeoIndex) Remove(ctx context.Context, id stays.StayID) error {
	_, err := g.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	return classify("mongo locations delete", err)
}

// radiusFilter matches points inside a spherical cap. $centerSphere takes
// the radius in radians, so kilometres are divided by the earth radius.
func radiusFilter(lat, lon, radiusKm float64) bson.M {
	return bson.M{
		"location": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{bson.A{lon, lat}, radiusKm / geo.EarthRadiusKm},
			},
		},
	}
}

var _ stays.GeoIndex = (*GeoIndex)(nil)
