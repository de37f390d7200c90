package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the document store collection audit events are written to.
const CollectionName = "audit_logs"

// inserter is the subset of *mongo.Collection the sink needs.
type inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MongoSink persists events as documents keyed by event ID.
type MongoSink struct {
	coll inserter
}

// NewMongoSink writes to the audit_logs collection of db.
func NewMongoSink(db *mongo.Database) *MongoSink {
	return &MongoSink{coll: db.Collection(CollectionName)}
}

func (s *MongoSink) Emit(ctx context.Context, event Event) error {
	if _, err := s.coll.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert audit event %s: %w", event.ID, err)
	}
	return nil
}
