package roles

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletgate/walletgate/domain"
)

type countingRepo struct {
	defs     []domain.Role
	getCalls int
}

func (r *countingRepo) Insert(_ context.Context, role *domain.Role) error {
	r.defs = append(r.defs, *role)
	return nil
}

func (r *countingRepo) GetAll(context.Context) ([]domain.Role, error) {
	r.getCalls++
	return r.defs, nil
}

func (r *countingRepo) FindByName(_ context.Context, name string) (*domain.Role, error) {
	for i := range r.defs {
		if r.defs[i].MatchesName(name) {
			return &r.defs[i], nil
		}
	}
	return nil, assert.AnError
}

func seededRepo(t *testing.T) *countingRepo {
	t.Helper()

	repo := &countingRepo{}
	holder, err := domain.NewHolderRole("Holder", "g-holder")
	require.NoError(t, err)
	silver, err := domain.NewAmountRole("Silver", "g-silver", decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), &holder))
	require.NoError(t, repo.Insert(context.Background(), &silver))
	return repo
}

func TestStoreCachesReads(t *testing.T) {
	repo := seededRepo(t)
	store := NewStore(repo, time.Minute)
	defer store.Stop()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		defs, err := store.All(ctx)
		require.NoError(t, err)
		assert.Len(t, defs, 2)
	}
	assert.Equal(t, 1, repo.getCalls)

	store.ClearCache()
	_, err := store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.getCalls)
}

func TestStoreForBalance(t *testing.T) {
	store := NewStore(seededRepo(t), time.Minute)
	defer store.Stop()
	ctx := context.Background()

	qualified, err := store.ForBalance(ctx, decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, qualified)

	qualified, err = store.ForBalance(ctx, decimal.NewFromInt(3))
	require.NoError(t, err)
	require.Len(t, qualified, 1)
	assert.Equal(t, "Holder", qualified[0].Name)

	qualified, err = store.ForBalance(ctx, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Len(t, qualified, 2)
}

func TestStoreGroupIDsFor(t *testing.T) {
	store := NewStore(seededRepo(t), time.Minute)
	defer store.Stop()

	ids, err := store.GroupIDsFor(context.Background(), []string{"holder", "Silver", "Unknown"})
	require.NoError(t, err)
	assert.Equal(t, []string{"g-holder", "g-silver"}, ids)
}
