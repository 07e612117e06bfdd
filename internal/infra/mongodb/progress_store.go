package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quiz-session-service/internal/domain"
)

// ProgressStore keeps durable sessions in the histories collection. It needs
// the unique {user, quiz} index from EnsureIndexes.
type ProgressStore struct {
	collection *mongo.Collection
}

func NewProgressStore(db *mongo.Database) *ProgressStore {
	return &ProgressStore{collection: db.Collection(historiesCollection)}
}

func (s *ProgressStore) FindOne(ctx context.Context, userID, quizID string) (domain.Session, error) {
	var session domain.Session
	err := s.collection.FindOne(ctx, bson.M{"user": userID, "quiz": quizID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Session{}, fmt.Errorf("%w: session for quiz %s", domain.ErrNotFound, quizID)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load history: %w", err)
	}
	if session.Progress == nil {
		session.Progress = []domain.ProgressEntry{}
	}
	return session, nil
}

func (s *ProgressStore) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	if session.ID == "" {
		session.ID = primitive.NewObjectID().Hex()
	}
	if session.Progress == nil {
		session.Progress = []domain.ProgressEntry{}
	}
	session.Version = 0
	if _, err := s.collection.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Session{}, domain.ErrAlreadyStarted
		}
		return domain.Session{}, fmt.Errorf("insert history: %w", err)
	}
	return session, nil
}

// Save replaces the document only while its version still matches.
func (s *ProgressStore) Save(ctx context.Context, session domain.Session) error {
	expected := session.Version
	session.Version = expected + 1
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": session.ID, "version": expected}, session)
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := s.collection.CountDocuments(ctx, bson.M{"_id": session.ID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check history: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, session.ID)
	}
	return domain.ErrConcurrentUpdate
}

func (s *ProgressStore) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list histories: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := make([]domain.Session, 0)
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("decode histories: %w", err)
	}
	return sessions, nil
}
