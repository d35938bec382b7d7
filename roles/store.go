package roles

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/walletgate/walletgate/domain"
)

const cacheKeyAll = "roles:all"

// Store serves role definitions through a read-through cache with a fixed
// TTL. Writes do not invalidate the cache; callers either tolerate the
// staleness window or call ClearCache explicitly.
type Store struct {
	repo  domain.RoleRepository
	cache *ttlcache.Cache[string, []domain.Role]
	ttl   time.Duration
}

// NewStore creates a role store caching reads for the given TTL.
func NewStore(repo domain.RoleRepository, ttl time.Duration) *Store {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, []domain.Role](ttl),
		ttlcache.WithDisableTouchOnHit[string, []domain.Role](),
	)
	go cache.Start()

	return &Store{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

// All returns every role definition, served from cache when fresh.
func (s *Store) All(ctx context.Context) ([]domain.Role, error) {
	if item := s.cache.Get(cacheKeyAll); item != nil {
		return item.Value(), nil
	}

	defs, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.Set(cacheKeyAll, defs, s.ttl)
	log.Debug().Int("count", len(defs)).Msg("role cache refreshed")
	return defs, nil
}

// ForBalance returns all holder roles plus the amount roles whose threshold
// the balance meets. Empty for non-positive balances.
func (s *Store) ForBalance(ctx context.Context, balance decimal.Decimal) ([]domain.Role, error) {
	if balance.Sign() <= 0 {
		return []domain.Role{}, nil
	}

	defs, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	qualified := make([]domain.Role, 0, len(defs))
	for _, r := range defs {
		switch r.Kind {
		case domain.RoleKindAmount:
			if r.AmountThreshold.LessThanOrEqual(balance) {
				qualified = append(qualified, r)
			}
		default:
			qualified = append(qualified, r)
		}
	}
	return qualified, nil
}

// Add persists a new role definition. The cache is left untouched; the new
// role becomes visible after the TTL window or an explicit ClearCache.
func (s *Store) Add(ctx context.Context, role domain.Role) (*domain.Role, error) {
	if err := s.repo.Insert(ctx, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// GroupIDsFor resolves role names to their external group identifiers,
// skipping names with no definition.
func (s *Store) GroupIDsFor(ctx context.Context, names []string) ([]string, error) {
	defs, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		for _, r := range defs {
			if r.MatchesName(name) {
				ids = append(ids, r.ExternalGroupID)
				break
			}
		}
	}
	return ids, nil
}

// ClearCache drops the cached definitions so the next read hits the
// repository.
func (s *Store) ClearCache() {
	s.cache.Delete(cacheKeyAll)
}

// Stop shuts down the cache janitor.
func (s *Store) Stop() {
	s.cache.Stop()
}
