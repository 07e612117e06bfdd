package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quiz-session-service/internal/domain"
)

// StepCatalog reads steps from the steps collection.
type StepCatalog struct {
	collection *mongo.Collection
}

func NewStepCatalog(db *mongo.Database) *StepCatalog {
	return &StepCatalog{collection: db.Collection(stepsCollection)}
}

func (c *StepCatalog) GetStep(ctx context.Context, id string) (domain.Step, error) {
	var step domain.Step
	err := c.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&step)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Step{}, fmt.Errorf("%w: step %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Step{}, fmt.Errorf("load step: %w", err)
	}
	return step, nil
}

// SampleRandom uses $sample, which returns distinct documents.
func (c *StepCatalog) SampleRandom(ctx context.Context, n int) ([]domain.Step, error) {
	if n <= 0 {
		return []domain.Step{}, nil
	}
	cursor, err := c.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$sample", Value: bson.M{"size": n}}},
	})
	if err != nil {
		return nil, fmt.Errorf("sample steps: %w", err)
	}
	defer cursor.Close(ctx)

	steps := make([]domain.Step, 0, n)
	if err := cursor.All(ctx, &steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	return steps, nil
}

// InsertSteps upserts steps by id.
func (c *StepCatalog) InsertSteps(ctx context.Context, steps []domain.Step) error {
	if len(steps) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(steps))
	for _, step := range steps {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": step.ID}).
			SetReplacement(step).
			SetUpsert(true))
	}
	if _, err := c.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("insert steps: %w", err)
	}
	return nil
}
