package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/stays"
)

type StayRepository struct {
	col *mongo.Collection
}

func NewStayRepository(db *mongo.Database) *StayRepository {
	return &StayRepository{col: db.Collection(staysCollection)}
}

func (r *StayRepository) ByID(ctx context.Context, id stays.StayID) (*stays.Stay, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *StayRepository) ByIDAndHost(ctx context.Context, id stays.StayID, host stays.HostID) (*stays.Stay, error) {
	return r.findOne(ctx, bson.M{"_id": string(id), "host_id": string(host)})
}

func (r *StayRepository) findOne(ctx context.Context, filter bson.M) (*stays.Stay, error) {
	var doc stayDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, stays.ErrStayNotFound
		}
		return nil, classify("mongo stays find", err)
	}
	return doc.toAggregate(), nil
}

func (r *StayRepository) ListByHost(ctx context.Context, host stays.HostID) ([]*stays.Stay, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.find(ctx, bson.M{"host_id": string(host)}, opts)
}

func (r *StayRepository) Exists(ctx context.Context, id stays.StayID) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": string(id)}, options.Count().SetLimit(1))
	if err != nil {
		return false, classify("mongo stays count", err)
	}
	return n > 0, nil
}

func (r *StayRepository) IDs(ctx context.Context) ([]stays.StayID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, classify("mongo stays ids", err)
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
	return out, classify("mongo stays ids", cur.Err())
}

func (r *StayRepository) FilterByCapacity(ctx context.Context, ids []stays.StayID, guests int) ([]*stays.Stay, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": raw}, "capacity": bson.M{"$gte": guests}})
}

func (r *StayRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*stays.Stay, error) {
	cur, err := r.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, classify("mongo stays find", err)
	}
	defer cur.Close(ctx)
	var docs []stayDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("mongo stays decode", err)
	}
	out := make([]*stays.Stay, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *StayRepository) Save(ctx context.Context, stay *stays.Stay) error {
	doc := newStayDocument(stay)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return classify("mongo stays save", err)
}

func (r *StayRepository) Delete(ctx context.Context, id stays.StayID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return classify("mongo stays delete", err)
	}
	if res.DeletedCount == 0 {
		return stays.ErrStayNotFound
	}
	return nil
}

type stayDocument struct {
	ID          string    `bson:"_id"`
	HostID      string    `bson:"host_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Address     string    `bson:"address"`
	Capacity    int       `bson:"capacity"`
	Images      []string  `bson:"images"`
	CreatedAt   time.Time `bson:"created_at"`
}

func newStayDocument(s *stays.Stay) stayDocument {
	return stayDocument{
		ID:          string(s.ID),
		HostID:      string(s.Host),
		Name:        s.Name,
		Description: s.Description,
		Address:     s.Address,
		Capacity:    s.Capacity,
		Images:      s.Images,
		CreatedAt:   s.CreatedAt.UTC(),
	}
}

func (d stayDocument) toAggregate() *stays.Stay {
	return &stays.Stay{
		ID:          stays.StayID(d.ID),
		Host:        stays.HostID(d.HostID),
		Name:        d.Name,
		Description: d.Description,
		Address:     d.Address,
		Capacity:    d.Capacity,
		Images:      d.Images,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

var _ stays.Catalog = (*StayRepository)(nil)
