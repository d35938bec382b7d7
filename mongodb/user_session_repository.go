package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/walletgate/walletgate/domain"
)

// ErrUserSessionNotFound is returned when no active login session matches.
var ErrUserSessionNotFound = errors.New("user session not found or expired")

// UserSessionRepositoryMongo implements domain.UserSessionRepository.
type UserSessionRepositoryMongo struct {
	collection *mongo.Collection
}

// NewUserSessionRepository creates the repository and ensures its indexes.
func NewUserSessionRepository(ctx context.Context, db *mongo.Database) (*UserSessionRepositoryMongo, error) {
	repo := &UserSessionRepositoryMongo{
		collection: db.Collection(UserSessionsCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for user_sessions collection (might already exist)")
	}

	return repo, nil
}

// Store persists a new login session.
func (r *UserSessionRepositoryMongo) Store(ctx context.Context, session *domain.UserSession) error {
	if session.Token == "" {
		return errors.New("session token cannot be empty")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("user session with this token already exists")
		}
		log.Error().Err(err).Msg("Error storing user session")
		return fmt.Errorf("failed to store user session: %w", err)
	}
	return nil
}

// FindActive returns an active, unexpired session by token.
func (r *UserSessionRepositoryMongo) FindActive(ctx context.Context, token string, now time.Time) (*domain.UserSession, error) {
	filter := bson.M{
		"token":      token,
		"active":     true,
		"expires_at": bson.M{"$gt": now},
	}

	var session domain.UserSession
	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserSessionNotFound
		}
		log.Error().Err(err).Msg("Error finding user session")
		return nil, fmt.Errorf("failed to find user session: %w", err)
	}
	return &session, nil
}

// Deactivate marks a session inactive (logout).
func (r *UserSessionRepositoryMongo) Deactivate(ctx context.Context, token string) error {
	update := bson.M{"$set": bson.M{"active": false}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"token": token}, update)
	if err != nil {
		log.Error().Err(err).Msg("Error deactivating user session")
		return fmt.Errorf("failed to deactivate user session: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserSessionNotFound
	}
	return nil
}

var _ domain.UserSessionRepository = (*UserSessionRepositoryMongo)(nil)
