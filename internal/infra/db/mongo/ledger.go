package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/stays"
)

// LedgerRepository stores one document per reserved night, keyed by
// (stay_id, date) through a unique index.
type LedgerRepository struct {
	col *mongo.Collection
}

func NewLedgerRepository(db *mongo.Database) *LedgerRepository {
	return &LedgerRepository{col: db.Collection(ledgerCollection)}
}

func (r *LedgerRepository) NightsReservedInRange(ctx context.Context, ids []stays.StayID, from, toInclusive time.Time) (map[stays.StayID]struct{}, error) {
	out := make(map[stays.StayID]struct{})
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	filter := bson.M{
		"stay_id": bson.M{"$in": raw},
		"date":    bson.M{"$gte": daterange.Day(from), "$lte": daterange.Day(toInclusive)},
	}
	values, err := r.col.Distinct(ctx, "stay_id", filter)
	if err != nil {
		return nil, classify("mongo ledger range", err)
	}
	for _, v := range values {
		if id, ok := v.(string); ok {
			out[stays.StayID(id)] = struct{}{}
		}
	}
	return out, nil
}

func (r *LedgerRepository) InsertNights(ctx context.Context, stayID stays.StayID, reservationID string, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}
	docs := make([]any, 0, len(dates))
	for _, d := range dates {
		docs = append(docs, newNightDocument(availability.ReservedNight{StayID: stayID, Date: d, ReservationID: reservationID}))
	}
	_, err := r.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
			return fmt.Errorf("%w: stay %s: %v", availability.ErrNightConflict, stayID, err)
		}
		return classify("mongo ledger insert", err)
	}
	return nil
}

func (r *LedgerRepository) DeleteNights(ctx context.Context, stayID stays.StayID, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, daterange.Day(d))
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"stay_id": string(stayID), "date": bson.M{"$in": days}})
	return deleteNightsError(stayID, err)
}

// deleteNightsError reports a write conflict as a lost race with another
// release of the same nights.
func deleteNightsError(stayID stays.StayID, err error) error {
	if err != nil && isWriteConflict(err) {
		return fmt.Errorf("%w: stay %s: %v", reservations.ErrReservationNotFound, stayID, err)
	}
	return classify("mongo ledger delete", err)
}

func (r *LedgerRepository) NightsForStay(ctx context.Context, stayID stays.StayID) ([]availability.ReservedNight, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"stay_id": string(stayID)}, opts)
	if err != nil {
		return nil, classify("mongo ledger find", err)
	}
	defer cur.Close(ctx)
	var docs []nightDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("mongo ledger decode", err)
	}
	out := make([]availability.ReservedNight, 0, len(docs))
	for _, d := range docs {
		out = append(out, availability.ReservedNight{StayID: stays.StayID(d.StayID), Date: d.Date.UTC(), ReservationID: d.ReservationID})
	}
	return out, nil
}

type nightDocument struct {
	ID            string    `bson:"_id"`
	StayID        string    `bson:"stay_id"`
	Date          time.Time `bson:"date"`
	ReservationID string    `bson:"reservation_id"`
}

func newNightDocument(n availability.ReservedNight) nightDocument {
	day := daterange.Day(n.Date)
	return nightDocument{
		ID:            string(n.StayID) + "|" + day.Format(time.DateOnly),
		StayID:        string(n.StayID),
		Date:          day,
		ReservationID: n.ReservationID,
	}
}

var _ availability.Ledger = (*LedgerRepository)(nil)
