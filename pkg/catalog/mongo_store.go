package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const (
	plansCollection        = "plans"
	applicationsCollection = "applications"
)

// MongoStore is the MongoDB-backed Store.
type MongoStore struct {
	plans *mongo.Collection
	apps  *mongo.Collection
}

// NewMongoStore creates a Store over the given database handle.
func NewMongoStore(db *mongo.Database) *MongoStore {
	if db == nil {
		panic("catalog: mongo database is required")
	}
	return &MongoStore{
		plans: db.Collection(plansCollection),
		apps:  db.Collection(applicationsCollection),
	}
}

func (s *MongoStore) GetPlan(ctx context.Context, id string) (*Plan, error) {
	var plan Plan
	err := s.plans.FindOne(ctx, bson.M{"_id": id}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPlanNotFound
		}
		return nil, classifyStoreErr(err)
	}
	return &plan, nil
}

func (s *MongoStore) ListPlans(ctx context.Context, applicationID string) ([]Plan, error) {
	app, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if len(app.PlanIDs) == 0 {
		return nil, nil
	}

	cursor, err := s.plans.Find(ctx, bson.M{"_id": bson.M{"$in": app.PlanIDs}})
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	var found []Plan
	if err := cursor.All(ctx, &found); err != nil {
		return nil, classifyStoreErr(err)
	}

	// Preserve the plan set's stable order; Find returns storage order.
	byID := make(map[string]Plan, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	plans := make([]Plan, 0, len(app.PlanIDs))
	for _, id := range app.PlanIDs {
		if p, ok := byID[id]; ok {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

func (s *MongoStore) GetApplication(ctx context.Context, id string) (*Application, error) {
	var app Application
	err := s.apps.FindOne(ctx, bson.M{"_id": id}).Decode(&app)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrApplicationNotFound
		}
		return nil, classifyStoreErr(err)
	}
	return &app, nil
}

func (s *MongoStore) ListApplications(ctx context.Context) ([]Application, error) {
	cursor, err := s.apps.Find(ctx, bson.M{})
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	var apps []Application
	if err := cursor.All(ctx, &apps); err != nil {
		return nil, classifyStoreErr(err)
	}
	return apps, nil
}

// AddApplicationPlan grows the plan set via $addToSet, so concurrent adds of
// the same plan cannot produce duplicates.
func (s *MongoStore) AddApplicationPlan(ctx context.Context, applicationID, planID string) error {
	res, err := s.apps.UpdateOne(ctx,
		bson.M{"_id": applicationID},
		bson.M{"$addToSet": bson.M{"plan_ids": planID}},
	)
	if err != nil {
		return classifyStoreErr(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrApplicationNotFound, applicationID)
	}
	return nil
}

func (s *MongoStore) SetDefaultPlan(ctx context.Context, applicationID, planID string) error {
	res, err := s.apps.UpdateOne(ctx,
		bson.M{"_id": applicationID},
		bson.M{"$set": bson.M{"default_plan_id": planID}},
	)
	if err != nil {
		return classifyStoreErr(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrApplicationNotFound, applicationID)
	}
	return nil
}

func classifyStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrStoreTimeout, err)
	}
	return err
}
