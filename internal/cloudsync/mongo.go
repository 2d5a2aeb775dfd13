package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const itineraryCollection = "itineraries"

// MongoRemote keeps one document per user in the itineraries collection.
type MongoRemote struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// DialMongo connects, pings, and binds the itineraries collection of database.
func DialMongo(ctx context.Context, uri, database string) (*MongoRemote, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return NewMongoRemote(client.Database(database).Collection(itineraryCollection)), nil
}

// NewMongoRemote wraps an already bound collection.
func NewMongoRemote(coll *mongo.Collection) *MongoRemote {
	return &MongoRemote{client: coll.Database().Client(), coll: coll}
}

func (m *MongoRemote) Load(ctx context.Context, userID string) (Record, error) {
	var rec Record
	err := m.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNoRecord
	}
	if err != nil {
		return Record{}, err
	}
	if rec.Data != nil {
		rec.Data.Normalize()
	}
	return rec, nil
}

func (m *MongoRemote) Save(ctx context.Context, rec Record) error {
	_, err := m.coll.ReplaceOne(ctx,
		bson.M{"user_id": rec.UserID},
		rec,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *MongoRemote) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
