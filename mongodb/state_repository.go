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

// ErrStateNotFound is returned when no unexpired, unused state matches.
var ErrStateNotFound = errors.New("oauth state not found, expired, or already used")

// OAuthStateRepositoryMongo implements domain.OAuthStateRepository.
type OAuthStateRepositoryMongo struct {
	collection *mongo.Collection
}

// NewOAuthStateRepository creates the repository and ensures its indexes.
func NewOAuthStateRepository(ctx context.Context, db *mongo.Database) (*OAuthStateRepositoryMongo, error) {
	repo := &OAuthStateRepositoryMongo{
		collection: db.Collection(OAuthStatesCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(3600),
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for oauth_states collection (might already exist)")
	}

	return repo, nil
}

// Store persists a new OAuth state record.
func (r *OAuthStateRepositoryMongo) Store(ctx context.Context, state *domain.OAuthState) error {
	if state.State == "" {
		return errors.New("state value cannot be empty")
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, state)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("oauth state already exists: %w", err)
		}
		log.Error().Err(err).Msg("Error storing oauth state")
		return fmt.Errorf("failed to store oauth state: %w", err)
	}

	log.Debug().Str("session_id", state.SessionID).Msg("OAuth state stored")
	return nil
}

// Consume atomically marks an unexpired, unused state as used and returns
// it; the conditional filter guarantees at most one success per state value.
func (r *OAuthStateRepositoryMongo) Consume(ctx context.Context, state string, now time.Time) (*domain.OAuthState, error) {
	filter := bson.M{
		"state":      state,
		"used":       false,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"used": true, "used_at": now}}

	var record domain.OAuthState
	err := r.collection.FindOneAndUpdate(ctx, filter, update).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStateNotFound
		}
		log.Error().Err(err).Msg("Error consuming oauth state")
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return &record, nil
}

// DeleteExpired removes all states past their expiry.
func (r *OAuthStateRepositoryMongo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	return err
}

var _ domain.OAuthStateRepository = (*OAuthStateRepositoryMongo)(nil)
