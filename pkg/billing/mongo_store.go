package billing

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	subscriptionsCollection = "subscriptions"
	eventsCollection        = "events"
)

// MongoStore is the MongoDB-backed Store. ApplyTransition runs inside a
// session transaction so the subscription write, the event record, and the
// offer usage increment commit as one unit.
type MongoStore struct {
	client *mongo.Client
	subs   *mongo.Collection
	events *mongo.Collection
	usage  OfferUsageCommitter // optional, may be nil
}

// NewMongoStore creates a Store over the given database handle. usage may
// be nil when no offer usage tracking is wired; when set, its collection
// must live in the same deployment so it joins the transaction.
func NewMongoStore(client *mongo.Client, db *mongo.Database, usage OfferUsageCommitter) *MongoStore {
	if client == nil || db == nil {
		panic("billing: mongo client and database are required")
	}
	return &MongoStore{
		client: client,
		subs:   db.Collection(subscriptionsCollection),
		events: db.Collection(eventsCollection),
		usage:  usage,
	}
}

// EnsureIndexes creates the indexes the store relies on: a unique index on
// the provider subscription ID. The event collection's _id already enforces
// event dedup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.subs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "provider_sub_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return classifyTransitionErr(err)
}

func (s *MongoStore) GetByProviderID(ctx context.Context, providerSubID string) (*Subscription, error) {
	var sub Subscription
	err := s.subs.FindOne(ctx, bson.M{"provider_sub_id": providerSubID}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, classifyTransitionErr(err)
	}
	return &sub, nil
}

func (s *MongoStore) GetEvent(ctx context.Context, eventID string) (*EventRecord, error) {
	var rec EventRecord
	err := s.events.FindOne(ctx, bson.M{"_id": eventID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, classifyTransitionErr(err)
	}
	return &rec, nil
}

func (s *MongoStore) ApplyTransition(ctx context.Context, sub *Subscription, record *EventRecord, offerID string) error {
	session, err := s.client.StartSession()
	if err != nil {
		return classifyTransitionErr(err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		// Event record first: its unique _id is the dedup gate for the whole
		// transaction.
		if _, err := s.events.InsertOne(ctx, record); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrEventAlreadyProcessed
			}
			return nil, err
		}
		if offerID != "" && s.usage != nil {
			if err := s.usage.IncrementUsage(ctx, offerID); err != nil {
				return nil, err
			}
		}
		if sub != nil {
			_, err := s.subs.ReplaceOne(ctx,
				bson.M{"_id": sub.ID},
				sub,
				options.Replace().SetUpsert(true),
			)
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return classifyTransitionErr(err)
}

func (s *MongoStore) PruneEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.events.DeleteMany(ctx, bson.M{"processed_at": bson.M{"$lt": olderThan}})
	if err != nil {
		return 0, classifyTransitionErr(err)
	}
	return res.DeletedCount, nil
}

// classifyTransitionErr maps driver failures onto the store's transient
// error taxonomy so the service retries only what is safe to retry.
func classifyTransitionErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEventAlreadyProcessed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return errors.Join(ErrStoreTimeout, err)
	}
	var srvErr mongo.ServerError
	if errors.As(err, &srvErr) {
		if srvErr.HasErrorLabel("TransientTransactionError") || srvErr.HasErrorLabel("UnknownTransactionCommitResult") {
			return errors.Join(ErrStoreConflict, err)
		}
	}
	return err
}
