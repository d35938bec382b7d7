package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/walletgate/walletgate/domain"
)

// ErrAccountNotFound is returned when no linked account matches.
var ErrAccountNotFound = errors.New("linked account not found")

// LinkedAccountRepositoryMongo implements domain.LinkedAccountRepository.
type LinkedAccountRepositoryMongo struct {
	collection *mongo.Collection
}

// NewLinkedAccountRepository creates the repository and ensures its indexes.
// Both sides of the wallet/account link are uniquely indexed so the 1:1
// invariant also holds at the storage layer.
func NewLinkedAccountRepository(ctx context.Context, db *mongo.Database) (*LinkedAccountRepositoryMongo, error) {
	repo := &LinkedAccountRepositoryMongo{
		collection: db.Collection(UsersCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "wallet_address", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "external_account_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for users collection (might already exist)")
	}

	return repo, nil
}

// Upsert stores the account keyed by wallet address, preserving _id on
// update.
func (r *LinkedAccountRepositoryMongo) Upsert(ctx context.Context, account *domain.LinkedAccount) error {
	if account.WalletAddress == "" {
		return errors.New("wallet address cannot be empty")
	}

	filter := bson.M{"wallet_address": account.WalletAddress}
	update := bson.M{"$set": bson.M{
		"wallet_address":          account.WalletAddress,
		"external_account_id":     account.ExternalAccountID,
		"external_username":       account.ExternalUsername,
		"balance":                 account.Balance,
		"current_role":            account.CurrentRole,
		"eligible_roles":          account.EligibleRoles,
		"encrypted_access_token":  account.EncryptedAccessToken,
		"encrypted_refresh_token": account.EncryptedRefreshToken,
		"connected_at":            account.ConnectedAt,
		"last_role_update":        account.LastRoleUpdate,
	}}

	opts := options.UpdateOne().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("account link conflicts with an existing record: %w", err)
		}
		log.Error().Err(err).Str("wallet", account.WalletAddress).Msg("Error upserting linked account")
		return fmt.Errorf("failed to upsert linked account: %w", err)
	}
	return nil
}

// FindByWallet returns the linked account for a wallet address.
func (r *LinkedAccountRepositoryMongo) FindByWallet(ctx context.Context, walletAddress string) (*domain.LinkedAccount, error) {
	return r.findOne(ctx, bson.M{"wallet_address": walletAddress})
}

// FindByExternalAccount returns the linked account for an external account
// ID.
func (r *LinkedAccountRepositoryMongo) FindByExternalAccount(ctx context.Context, externalAccountID string) (*domain.LinkedAccount, error) {
	return r.findOne(ctx, bson.M{"external_account_id": externalAccountID})
}

func (r *LinkedAccountRepositoryMongo) findOne(ctx context.Context, filter bson.M) (*domain.LinkedAccount, error) {
	var account domain.LinkedAccount
	err := r.collection.FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		log.Error().Err(err).Msg("Error finding linked account")
		return nil, fmt.Errorf("failed to find linked account: %w", err)
	}
	return &account, nil
}

// UpdateRoles refreshes the stored balance and role computation for a
// wallet.
func (r *LinkedAccountRepositoryMongo) UpdateRoles(ctx context.Context, walletAddress string, balance decimal.Decimal, currentRole string, eligibleRoles []string) error {
	filter := bson.M{"wallet_address": walletAddress}
	update := bson.M{"$set": bson.M{
		"balance":          balance,
		"current_role":     currentRole,
		"eligible_roles":   eligibleRoles,
		"last_role_update": time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Str("wallet", walletAddress).Msg("Error updating account roles")
		return fmt.Errorf("failed to update account roles: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

var _ domain.LinkedAccountRepository = (*LinkedAccountRepositoryMongo)(nil)
