package offer

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const offersCollection = "offers"

// MongoStore is the MongoDB-backed offer store.
type MongoStore struct {
	offers *mongo.Collection
}

// NewMongoStore creates a Store over the given database handle.
func NewMongoStore(db *mongo.Database) *MongoStore {
	if db == nil {
		panic("offer: mongo database is required")
	}
	return &MongoStore{offers: db.Collection(offersCollection)}
}

func (s *MongoStore) ListByApplication(ctx context.Context, applicationID string) ([]Offer, error) {
	cursor, err := s.offers.Find(ctx, bson.M{"application_id": applicationID})
	if err != nil {
		return nil, err
	}
	var out []Offer
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IncrementUsage applies one guarded usage increment. The filter admits the
// document only while capacity remains, so concurrent commits cannot push
// CurrentUsage past MaxUsage.
func (s *MongoStore) IncrementUsage(ctx context.Context, id string) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"max_usage": bson.M{"$exists": false}},
			bson.M{"max_usage": 0},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$current_usage", "$max_usage"}}},
		},
	}

	res, err := s.offers.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"current_usage": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the offer is gone or its capacity ran out between
		// resolution and commit.
		n, err := s.offers.CountDocuments(ctx, bson.M{"_id": id})
		if err == nil && n == 0 {
			return fmt.Errorf("%w: %s", ErrOfferNotFound, id)
		}
		return fmt.Errorf("%w: %s", ErrUsageExceeded, id)
	}
	return nil
}
