package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/shared/storage"
)

const (
	staysCollection        = "stays"
	reservationsCollection = "reservations"
	ledgerCollection       = "ledger_nights"
	idempotencyCollection  = "app_idempotency"
	locationsCollection    = "stay_locations"

	writeConflictCode = 112
)

type Client struct {
	DB *mongo.Database
}

func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, storage.Unavailable("mongo connect", err)
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return classify("mongo ping", c.DB.Client().Ping(ctx, nil))
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the stores rely on. The unique
// (stay_id, date) index on the ledger is what turns a double insert into
// availability.ErrNightConflict.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		ledgerCollection: {
			{Keys: bson.D{{Key: "stay_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "reservation_id", Value: 1}}},
		},
		reservationsCollection: {
			{Keys: bson.D{{Key: "stay_id", Value: 1}, {Key: "check_out", Value: 1}}},
			{Keys: bson.D{{Key: "guest_id", Value: 1}}},
		},
		staysCollection: {
			{Keys: bson.D{{Key: "host_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		locationsCollection: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		},
	}
	for name, models := range specs {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return classify("mongo ensure indexes "+name, err)
		}
	}
	return nil
}

// classify wraps transport failures as storage.ErrUnavailable and passes
// everything else through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) || errors.Is(err, context.DeadlineExceeded) {
		return storage.Unavailable(op, err)
	}
	return err
}

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(writeConflictCode)
}
