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

// ErrSessionNotFound is returned when no unexpired, unused session matches.
var ErrSessionNotFound = errors.New("session not found, expired, or already used")

// WalletSessionRepositoryMongo implements domain.WalletSessionRepository.
type WalletSessionRepositoryMongo struct {
	collection *mongo.Collection
}

// NewWalletSessionRepository creates the repository and ensures its indexes.
func NewWalletSessionRepository(ctx context.Context, db *mongo.Database) (*WalletSessionRepositoryMongo, error) {
	repo := &WalletSessionRepositoryMongo{
		collection: db.Collection(WalletSessionsCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(3600), // safety net behind explicit GC
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for wallet_sessions collection (might already exist)")
	}

	return repo, nil
}

// Store persists a new wallet session.
func (r *WalletSessionRepositoryMongo) Store(ctx context.Context, session *domain.WalletSession) error {
	if session.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("wallet session already exists: %w", err)
		}
		log.Error().Err(err).Msg("Error storing wallet session")
		return fmt.Errorf("failed to store wallet session: %w", err)
	}

	log.Debug().Str("wallet", session.WalletAddress).Msg("Wallet session stored")
	return nil
}

// Consume atomically marks an unexpired, unused session as used and returns
// it. The filter carries used=false so a racing duplicate consume matches
// nothing and observes ErrSessionNotFound.
func (r *WalletSessionRepositoryMongo) Consume(ctx context.Context, sessionID string, now time.Time) (*domain.WalletSession, error) {
	filter := bson.M{
		"session_id": sessionID,
		"used":       false,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"used": true, "used_at": now}}

	var session domain.WalletSession
	err := r.collection.FindOneAndUpdate(ctx, filter, update).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		log.Error().Err(err).Msg("Error consuming wallet session")
		return nil, fmt.Errorf("failed to consume wallet session: %w", err)
	}
	return &session, nil
}

// Peek returns an unexpired, unused session without flipping used.
func (r *WalletSessionRepositoryMongo) Peek(ctx context.Context, sessionID string, now time.Time) (*domain.WalletSession, error) {
	filter := bson.M{
		"session_id": sessionID,
		"used":       false,
		"expires_at": bson.M{"$gt": now},
	}

	var session domain.WalletSession
	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		log.Error().Err(err).Msg("Error reading wallet session")
		return nil, fmt.Errorf("failed to read wallet session: %w", err)
	}
	return &session, nil
}

// DeleteExpired removes all sessions past their expiry.
func (r *WalletSessionRepositoryMongo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	return err
}

// DeleteUsedBefore removes consumed sessions older than the cutoff.
func (r *WalletSessionRepositoryMongo) DeleteUsedBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{
		"used":    true,
		"used_at": bson.M{"$lt": cutoff},
	})
	return err
}

var _ domain.WalletSessionRepository = (*WalletSessionRepositoryMongo)(nil)
