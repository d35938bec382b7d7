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

// ErrRoleNotFound is returned when no role definition matches.
var ErrRoleNotFound = errors.New("role not found")

// ErrRoleExists is returned on a duplicate role name.
var ErrRoleExists = errors.New("role with this name already exists")

// Role names match case-insensitively, so the unique index and the name
// lookups share this collation.
var roleNameCollation = &options.Collation{Locale: "en", Strength: 2}

// RoleRepositoryMongo implements domain.RoleRepository.
type RoleRepositoryMongo struct {
	collection *mongo.Collection
}

// NewRoleRepository creates the repository and ensures its indexes.
func NewRoleRepository(ctx context.Context, db *mongo.Database) (*RoleRepositoryMongo, error) {
	repo := &RoleRepositoryMongo{
		collection: db.Collection(RolesCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(roleNameCollation),
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for roles collection (might already exist)")
	}

	return repo, nil
}

// Insert stores a new role definition.
func (r *RoleRepositoryMongo) Insert(ctx context.Context, role *domain.Role) error {
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, role)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrRoleExists
		}
		log.Error().Err(err).Str("name", role.Name).Msg("Error inserting role")
		return fmt.Errorf("failed to insert role: %w", err)
	}

	log.Info().Str("name", role.Name).Str("kind", string(role.Kind)).Msg("Role definition added")
	return nil
}

// GetAll returns every role definition.
func (r *RoleRepositoryMongo) GetAll(ctx context.Context) ([]domain.Role, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		log.Error().Err(err).Msg("Error listing roles")
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer cursor.Close(ctx)

	var roles []domain.Role
	if err = cursor.All(ctx, &roles); err != nil {
		return nil, fmt.Errorf("failed to decode roles: %w", err)
	}
	return roles, nil
}

// FindByName returns the role with the given name, case-insensitively.
func (r *RoleRepositoryMongo) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	opts := options.FindOne().SetCollation(roleNameCollation)

	var role domain.Role
	err := r.collection.FindOne(ctx, bson.M{"name": name}, opts).Decode(&role)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRoleNotFound
		}
		log.Error().Err(err).Str("name", name).Msg("Error finding role by name")
		return nil, fmt.Errorf("failed to find role: %w", err)
	}
	return &role, nil
}

var _ domain.RoleRepository = (*RoleRepositoryMongo)(nil)
