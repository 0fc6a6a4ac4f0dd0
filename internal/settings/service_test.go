package settings

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	inv   Inventory
	calls int
}

func (r *memoryRepo) GetInventory(ctx context.Context) (Inventory, error) {
	r.calls++
	return r.inv, nil
}

func (r *memoryRepo) UpdateInventory(ctx context.Context, in UpdateInput) error {
	r.inv = Inventory{Method: in.Method, ConsiderExpiryDate: in.ConsiderExpiryDate}
	return nil
}

func TestInventoryCacheReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := &memoryRepo{inv: Inventory{Method: MethodFEFO, ConsiderExpiryDate: true}}
	svc := NewService(repo, client, time.Minute, nil)
	ctx := context.Background()

	inv, err := svc.Inventory(ctx)
	require.NoError(t, err)
	require.Equal(t, MethodFEFO, inv.Method)
	require.True(t, inv.ConsiderExpiryDate)
	require.Equal(t, 1, repo.calls)

	// Second read must come from cache.
	inv, err = svc.Inventory(ctx)
	require.NoError(t, err)
	require.Equal(t, MethodFEFO, inv.Method)
	require.Equal(t, 1, repo.calls)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := &memoryRepo{inv: Inventory{Method: MethodFIFO}}
	svc := NewService(repo, client, time.Minute, nil)
	ctx := context.Background()

	_, err := svc.Inventory(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, UpdateInput{Method: MethodLIFO}))

	inv, err := svc.Inventory(ctx)
	require.NoError(t, err)
	require.Equal(t, MethodLIFO, inv.Method)
}

func TestUpdateRejectsUnknownMethod(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, time.Minute, nil)

	err := svc.Update(context.Background(), UpdateInput{Method: "WEIGHTED"})
	require.Error(t, err)
}
