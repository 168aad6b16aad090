package ingest

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

const reportCollection = "ingestion_runs"

// MongoReporter implements Reporter on a MongoDB collection.
type MongoReporter struct {
	collection *mongo.Collection
}

var _ Reporter = (*MongoReporter)(nil)

func NewMongoReporter(client *mongo.Client, database string) *MongoReporter {
	return &MongoReporter{collection: client.Database(database).Collection(reportCollection)}
}

func (r *MongoReporter) Report(ctx context.Context, report RunReport) error {
	if _, err := r.collection.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("failed to insert run report: %w", err)
	}
	return nil
}
