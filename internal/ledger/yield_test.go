package ledger_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yield-indexer/internal/entity/entitytest"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/ledger"
	"github.com/yield-indexer/internal/models"
)

func TestAccrueYield(t *testing.T) {
	tests := []struct {
		name     string
		balance  *big.Int
		lastRate *big.Int
		rateNow  *big.Int
		want     *big.Int
	}{
		{"rate grew", entitytest.Wad(100), entitytest.Wad(1), big.NewInt(125e16), entitytest.Wad(20)},
		{"rate flat", entitytest.Wad(100), entitytest.Wad(1), entitytest.Wad(1), big.NewInt(0)},
		{"rate fell", entitytest.Wad(100), entitytest.Wad(2), entitytest.Wad(1), big.NewInt(0)},
		{"no baseline", entitytest.Wad(100), nil, entitytest.Wad(2), big.NewInt(0)},
		{"zero balance", big.NewInt(0), entitytest.Wad(1), entitytest.Wad(2), big.NewInt(0)},
		{"zero rate", entitytest.Wad(100), big.NewInt(0), entitytest.Wad(2), big.NewInt(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ledger.AccrueYield(tt.balance, tt.lastRate, tt.rateNow)
			assert.Equal(t, 0, tt.want.Cmp(got), "got %s", got)
		})
	}
}

func loadFuture(t *testing.T, e *entitytest.Env) *models.Future {
	t.Helper()
	f, ok, err := e.Resolver.LoadFuture(context.Background(), entitytest.PT)
	require.NoError(t, err)
	require.True(t, ok)
	return f
}

func TestUpdateYield_AccruesOnRateGrowth(t *testing.T) {
	e := entitytest.New(t)
	ctx := context.Background()
	env := entitytest.Envelope(10, 1000)
	e.Deploy(t, env)
	l := ledger.New(e.Resolver, e.Logger)
	future := loadFuture(t, e)

	e.Chain.SetBalance(entitytest.YT, entitytest.Alice, entitytest.Wad(100))
	row, err := l.UpdateYield(ctx, future, entitytest.Alice, env)
	require.NoError(t, err)
	assert.Zero(t, row.Balance.Sign(), "first touch only sets the baseline")
	assert.True(t, row.GeneratedYield)
	assert.Equal(t, ids.YieldAccountAsset(entitytest.Alice, entitytest.IBT), row.ID)
	assert.Equal(t, []string{row.ID}, future.YieldGenerators)

	e.Chain.SetIBTRate(entitytest.PT, big.NewInt(125e16))
	e.Resolver.UpdateFutureRates(ctx, future)
	row, err = l.UpdateYield(ctx, future, entitytest.Alice, env)
	require.NoError(t, err)
	assert.Equal(t, 0, entitytest.Wad(20).Cmp(row.Balance))
	assert.Equal(t, 0, big.NewInt(125e16).Cmp(row.LastRate))
}

func TestUpdateYield_UsesBalanceBeforeRefresh(t *testing.T) {
	e := entitytest.New(t)
	ctx := context.Background()
	env := entitytest.Envelope(10, 1000)
	e.Deploy(t, env)
	l := ledger.New(e.Resolver, e.Logger)
	future := loadFuture(t, e)

	_, err := l.UpdateYield(ctx, future, entitytest.Alice, env)
	require.NoError(t, err)

	// Alice receives YT in the same event the rate grows: she earned nothing
	e.Chain.SetBalance(entitytest.YT, entitytest.Alice, entitytest.Wad(100))
	e.Chain.SetIBTRate(entitytest.PT, entitytest.Wad(2))
	e.Resolver.UpdateFutureRates(ctx, future)
	row, err := l.UpdateYield(ctx, future, entitytest.Alice, env)
	require.NoError(t, err)
	assert.Zero(t, row.Balance.Sign())
	assert.True(t, row.GeneratedYield)
}

func TestYieldGenerators_OnlyGrow(t *testing.T) {
	e := entitytest.New(t)
	ctx := context.Background()
	env := entitytest.Envelope(10, 1000)
	e.Deploy(t, env)
	l := ledger.New(e.Resolver, e.Logger)
	future := loadFuture(t, e)

	row, err := l.UpdateYield(ctx, future, entitytest.Alice, env)
	require.NoError(t, err)
	assert.False(t, row.GeneratedYield)
	assert.Empty(t, future.YieldGenerators)

	_, err = l.SetYield(ctx, future, entitytest.Alice, big.NewInt(5), env)
	require.NoError(t, err)
	require.Len(t, future.YieldGenerators, 1)

	row, err = l.SetYield(ctx, future, entitytest.Alice, big.NewInt(0), env)
	require.NoError(t, err)
	assert.False(t, row.GeneratedYield)
	assert.Len(t, future.YieldGenerators, 1, "rows stay registered after yield drops to zero")
}

func TestClaimYield_ReadsRemainingYield(t *testing.T) {
	e := entitytest.New(t)
	ctx := context.Background()
	env := entitytest.Envelope(10, 1000)
	e.Deploy(t, env)
	l := ledger.New(e.Resolver, e.Logger)
	future := loadFuture(t, e)

	_, err := l.SetYield(ctx, future, entitytest.Alice, big.NewInt(500), env)
	require.NoError(t, err)

	e.Chain.SetUserYield(entitytest.PT, entitytest.Alice, big.NewInt(0))
	row, err := l.ClaimYield(ctx, future, entitytest.Alice, env)
	require.NoError(t, err)
	assert.Zero(t, row.Balance.Sign())
}

func TestSweepYield(t *testing.T) {
	e := entitytest.New(t)
	ctx := context.Background()
	env := entitytest.Envelope(10, 1000)
	e.Deploy(t, env)
	l := ledger.New(e.Resolver, e.Logger)
	future := loadFuture(t, e)

	e.Chain.SetBalance(entitytest.YT, entitytest.Alice, entitytest.Wad(100))
	e.Chain.SetBalance(entitytest.YT, entitytest.Bob, entitytest.Wad(50))
	_, err := l.UpdateYield(ctx, future, entitytest.Alice, env)
	require.NoError(t, err)
	_, err = l.UpdateYield(ctx, future, entitytest.Bob, env)
	require.NoError(t, err)

	e.Chain.SetIBTRate(entitytest.PT, entitytest.Wad(2))
	e.Resolver.UpdateFutureRates(ctx, future)
	swept, err := l.SweepYield(ctx, future, env)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	bob, ok, err := e.Resolver.Session().Load(ctx, models.KindAccountAsset, ids.YieldAccountAsset(entitytest.Bob, entitytest.IBT))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, entitytest.Wad(25).Cmp(bob.(*models.AccountAsset).Balance))
}
