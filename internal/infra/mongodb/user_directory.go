package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserDirectory keeps a history array on user documents.
type UserDirectory struct {
	collection *mongo.Collection
}

func NewUserDirectory(db *mongo.Database) *UserDirectory {
	return &UserDirectory{collection: db.Collection(usersCollection)}
}

func (d *UserDirectory) AppendHistory(ctx context.Context, userID, sessionID string) error {
	_, err := d.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"history": sessionID}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns the history ids stored on the user document.
func (d *UserDirectory) History(ctx context.Context, userID string) ([]string, error) {
	var doc struct {
		History []string `bson:"history"`
	}
	err := d.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user history: %w", err)
	}
	return doc.History, nil
}
