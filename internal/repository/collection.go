package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// Inserts beyond this are split into concurrent batches.
const bulkWriteBatchSize = 1000

type CollectionOperations interface {
	InsertOne(ctx context.Context, document interface{}) error
	BulkWrite(ctx context.Context, operations []mongo.WriteModel, opts *options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) *mongo.SingleResult
	FindMany(ctx context.Context, filter bson.M, opts *options.FindOptions, documents interface{}) error
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (r *mongoRepository) Collection(name string) CollectionOperations {
	return &mongoCollection{
		coll: r.client.Database(r.dbName).Collection(name),
	}
}

// InsertOne stamps created_at/updated_at on the document before inserting it.
func (c *mongoCollection) InsertOne(ctx context.Context, document interface{}) error {
	doc, ok := document.(map[string]interface{})
	if !ok {
		docBytes, err := bson.Marshal(document)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		if err := bson.Unmarshal(docBytes, &doc); err != nil {
			return fmt.Errorf("failed to unmarshal document: %w", err)
		}
	}

	now := time.Now()
	doc["created_at"] = now
	doc["updated_at"] = now
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// BulkWriteError reports how much of a batched write landed before the failure.
type BulkWriteError struct {
	InsertedCount int64
	Err           error
}

func (r *BulkWriteError) Error() string {
	return fmt.Sprintf("bulk write failed after %d inserts: %v", r.InsertedCount, r.Err)
}

func (r *BulkWriteError) Unwrap() error {
	return r.Err
}

func (c *mongoCollection) BulkWrite(ctx context.Context, operations []mongo.WriteModel, opts *options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	if len(operations) == 0 {
		return &mongo.BulkWriteResult{UpsertedIDs: make(map[int64]interface{})}, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	results := make([]*mongo.BulkWriteResult, (len(operations)+bulkWriteBatchSize-1)/bulkWriteBatchSize)

	for i := 0; i < len(operations); i += bulkWriteBatchSize {
		batchIndex := i / bulkWriteBatchSize
		batch := operations[i:min(i+bulkWriteBatchSize, len(operations))]

		g.Go(func() error {
			operation := func() (*mongo.BulkWriteResult, error) {
				return c.coll.BulkWrite(ctx, batch, opts)
			}
			result, err := backoff.Retry(ctx, operation,
				backoff.WithBackOff(backoff.NewExponentialBackOff()),
				backoff.WithMaxElapsedTime(30*time.Second),
			)
			if err != nil {
				return fmt.Errorf("failed to execute bulk write batch: %w", err)
			}
			results[batchIndex] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		bulkWriteError := &BulkWriteError{Err: err}
		for _, result := range results {
			if result != nil {
				bulkWriteError.InsertedCount += result.InsertedCount
			}
		}
		return nil, bulkWriteError
	}

	finalResult := &mongo.BulkWriteResult{UpsertedIDs: make(map[int64]interface{})}
	for _, result := range results {
		finalResult.InsertedCount += result.InsertedCount
		finalResult.MatchedCount += result.MatchedCount
		finalResult.ModifiedCount += result.ModifiedCount
		finalResult.UpsertedCount += result.UpsertedCount
		for k, v := range result.UpsertedIDs {
			finalResult.UpsertedIDs[k] = v
		}
	}
	return finalResult, nil
}

func (c *mongoCollection) FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) *mongo.SingleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c *mongoCollection) FindMany(ctx context.Context, filter bson.M, opts *options.FindOptions, documents interface{}) error {
	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to find documents: %w", err)
	}
	if err := cursor.All(ctx, documents); err != nil {
		return fmt.Errorf("failed to decode documents: %w", err)
	}
	return nil
}
