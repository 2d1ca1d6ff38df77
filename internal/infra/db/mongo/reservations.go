package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/reservations"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/stays"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

type ReservationRepository struct {
	col *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	return &ReservationRepository{col: db.Collection(reservationsCollection)}
}

func (r *ReservationRepository) ByID(ctx context.Context, id reservations.ReservationID) (*reservations.Reservation, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ReservationRepository) ByIDAndGuest(ctx context.Context, id reservations.ReservationID, guestID string) (*reservations.Reservation, error) {
	return r.findOne(ctx, bson.M{"_id": string(id), "guest_id": guestID})
}

func (r *ReservationRepository) findOne(ctx context.Context, filter bson.M) (*reservations.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservations.ErrReservationNotFound
		}
		return nil, classify("mongo reservations find", err)
	}
	return doc.toAggregate(), nil
}

func (r *ReservationRepository) ListByStay(ctx context.Context, stayID stays.StayID) ([]*reservations.Reservation, error) {
	return r.find(ctx, bson.M{"stay_id": string(stayID)})
}

func (r *ReservationRepository) ListByGuest(ctx context.Context, guestID string) ([]*reservations.Reservation, error) {
	return r.find(ctx, bson.M{"guest_id": guestID})
}

func (r *ReservationRepository) ListByStayCheckoutAfter(ctx context.Context, stayID stays.StayID, day time.Time) ([]*reservations.Reservation, error) {
	return r.find(ctx, bson.M{"stay_id": string(stayID), "check_out": bson.M{"$gt": daterange.Day(day)}})
}

func (r *ReservationRepository) find(ctx context.Context, filter bson.M) ([]*reservations.Reservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify("mongo reservations find", err)
	}
	defer cur.Close(ctx)
	var docs []reservationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("mongo reservations decode", err)
	}
	out := make([]*reservations.Reservation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

// Save upserts with optimistic versioning.
func (r *ReservationRepository) Save(ctx context.Context, res *reservations.Reservation) error {
	doc := newReservationDocument(res)
	filter := bson.M{"_id": doc.ID, "version": res.Version}
	doc.Version = res.Version + 1
	out, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
			return ErrConcurrentUpdate
		}
		return classify("mongo reservations save", err)
	}
	if out.MatchedCount == 0 && out.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	res.Version = doc.Version
	return nil
}

// Delete reports ErrReservationNotFound when nothing was removed, including
// when a concurrent transaction is removing the same document.
func (r *ReservationRepository) Delete(ctx context.Context, id reservations.ReservationID) error {
	out, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		if isWriteConflict(err) {
			return reservations.ErrReservationNotFound
		}
		return classify("mongo reservations delete", err)
	}
	if out.DeletedCount == 0 {
		return reservations.ErrReservationNotFound
	}
	return nil
}

type reservationDocument struct {
	ID        string    `bson:"_id"`
	StayID    string    `bson:"stay_id"`
	GuestID   string    `bson:"guest_id"`
	CheckIn   time.Time `bson:"check_in"`
	CheckOut  time.Time `bson:"check_out"`
	State     string    `bson:"state"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
	Version   int64     `bson:"version"`
}

func newReservationDocument(res *reservations.Reservation) reservationDocument {
	return reservationDocument{
		ID:        string(res.ID),
		StayID:    string(res.StayID),
		GuestID:   res.GuestID,
		CheckIn:   res.Range.CheckIn.UTC(),
		CheckOut:  res.Range.CheckOut.UTC(),
		State:     string(res.State),
		CreatedAt: res.CreatedAt.UTC(),
		UpdatedAt: res.UpdatedAt.UTC(),
		Version:   res.Version,
	}
}

func (d reservationDocument) toAggregate() *reservations.Reservation {
	return &reservations.Reservation{
		ID:        reservations.ReservationID(d.ID),
		StayID:    stays.StayID(d.StayID),
		GuestID:   d.GuestID,
		Range:     daterange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		State:     reservations.State(d.State),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
		Version:   d.Version,
	}
}

var _ reservations.Repository = (*ReservationRepository)(nil)
