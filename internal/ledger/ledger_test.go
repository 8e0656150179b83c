package ledger_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yield-indexer/internal/adapter/adaptertest"
	"github.com/yield-indexer/internal/entity/entitytest"
	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/ledger"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/storage"
)

func TestUpdateSpotBalance_OverwritesFromChain(t *testing.T) {
	e := entitytest.New(t)
	ctx := context.Background()
	env := entitytest.Envelope(10, 1000)
	l := ledger.New(e.Resolver, e.Logger)

	e.Chain.SetBalance(entitytest.PT, entitytest.Alice, big.NewInt(50))
	row, err := l.UpdateSpotBalance(ctx, entitytest.Alice, entitytest.PT, env)
	require.NoError(t, err)
	assert.Equal(t, int64(50), row.Balance.Int64())
	assert.Nil(t, row.AssetsValue)

	e.Chain.SetBalance(entitytest.PT, entitytest.Alice, big.NewInt(20))
	row, err = l.UpdateSpotBalance(ctx, entitytest.Alice, entitytest.PT, env)
	require.NoError(t, err)
	assert.Equal(t, int64(20), row.Balance.Int64())

	acc, ok, err := storage.Get[*models.Account](ctx, e.Session, models.KindAccount, ids.Address(entitytest.Alice))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{row.ID}, acc.Portfolio)
}

func TestUpdateSpotBalance_ShareBasedStoresAssets(t *testing.T) {
	e := entitytest.New(t)
	ctx := context.Background()
	env := entitytest.Envelope(10, 1000)
	e.Deploy(t, env)
	l := ledger.New(e.Resolver, e.Logger)

	e.Chain.SetVault(entitytest.IBT, &adaptertest.Vault{Asset: entitytest.Underlying, Rate: big.NewInt(2e18), TotalAssets: big.NewInt(0)})
	e.Chain.SetBalance(entitytest.IBT, entitytest.Alice, big.NewInt(7))

	row, err := l.UpdateSpotBalance(ctx, entitytest.Alice, entitytest.IBT, env)
	require.NoError(t, err)
	assert.Equal(t, int64(7), row.Balance.Int64())
	assert.Equal(t, int64(14), row.AssetsValue.Int64())
}

func TestUpdateSpotBalance_ZeroAddress(t *testing.T) {
	e := entitytest.New(t)
	l := ledger.New(e.Resolver, e.Logger)

	row, err := l.UpdateSpotBalance(context.Background(), common.Address{}, entitytest.PT, entitytest.Envelope(1, 1))
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestAccumulateFlow_SumsDeltas(t *testing.T) {
	e := entitytest.New(t)
	ctx := context.Background()
	env := entitytest.Envelope(10, 1000)
	l := ledger.New(e.Resolver, e.Logger)

	_, err := l.AccumulateFlow(ctx, "scope", entitytest.IBT, big.NewInt(10), env, ids.TagIn)
	require.NoError(t, err)
	amt, err := l.AccumulateFlow(ctx, "scope", entitytest.IBT, big.NewInt(-3), env, ids.TagIn)
	require.NoError(t, err)

	assert.Equal(t, int64(7), amt.Amount.Int64())
	assert.Equal(t, ids.TagIn, amt.Tag)
	assert.Equal(t, ids.AssetAmount("scope", entitytest.IBT, ids.TagIn), amt.ID)
}

func TestAccumulateFlow_AdditiveAcrossKeys(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("final amount is the sum of its deltas", prop.ForAll(
		func(deltas []int64, keys []bool) bool {
			e := entitytest.New(t)
			ctx := context.Background()
			env := entitytest.Envelope(1, 1)
			l := ledger.New(e.Resolver, e.Logger)

			want := map[common.Address]int64{}
			for i, d := range deltas {
				asset := entitytest.IBT
				if i < len(keys) && keys[i] {
					asset = entitytest.PT
				}
				want[asset] += d
				if _, err := l.AccumulateFlow(ctx, "tx", asset, big.NewInt(d), env); err != nil {
					return false
				}
				// commit every other call so sums cross session boundaries
				if i%2 == 1 {
					if _, err := e.Session.Commit(ctx, nil); err != nil {
						return false
					}
					e.Renew()
					l = ledger.New(e.Resolver, e.Logger)
				}
			}

			for asset, sum := range want {
				amt, err := l.AccumulateFlow(ctx, "tx", asset, big.NewInt(0), env)
				if err != nil || amt.Amount.Int64() != sum {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-1_000_000, 1_000_000)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestSpotBalance_MatchesDeltaReplay(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("re-read balances equal an independent delta replay", prop.ForAll(
		func(amounts []int64) bool {
			e := entitytest.New(t)
			ctx := context.Background()
			env := entitytest.Envelope(1, 1)
			l := ledger.New(e.Resolver, e.Logger)

			balances := map[common.Address]*big.Int{
				entitytest.Alice: big.NewInt(1_000_000),
				entitytest.Bob:   big.NewInt(1_000_000),
			}
			replay := map[common.Address]int64{entitytest.Alice: 1_000_000, entitytest.Bob: 1_000_000}

			for i, amt := range amounts {
				from, to := entitytest.Alice, entitytest.Bob
				if i%2 == 1 {
					from, to = to, from
				}
				if balances[from].Int64() < amt {
					continue
				}
				balances[from] = new(big.Int).Sub(balances[from], big.NewInt(amt))
				balances[to] = new(big.Int).Add(balances[to], big.NewInt(amt))
				replay[from] -= amt
				replay[to] += amt
				e.Chain.SetBalance(entitytest.PT, from, balances[from])
				e.Chain.SetBalance(entitytest.PT, to, balances[to])

				for _, who := range []common.Address{from, to} {
					row, err := l.UpdateSpotBalance(ctx, who, entitytest.PT, env)
					if err != nil || row.Balance.Int64() != replay[who] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(0, 500_000)),
	))

	properties.TestingRun(t)
}

func TestAdjustReserve(t *testing.T) {
	e := entitytest.New(t)
	ctx := context.Background()
	env := entitytest.Envelope(10, 1000)
	e.Deploy(t, env)
	l := ledger.New(e.Resolver, e.Logger)

	pool, ok, err := e.Resolver.LoadPool(ctx, entitytest.Pool)
	require.NoError(t, err)
	require.True(t, ok)

	leg, err := l.AdjustReserve(ctx, pool, 1, big.NewInt(15), env)
	require.NoError(t, err)
	assert.Equal(t, int64(15), leg.Amount.Int64())

	_, err = l.AdjustReserve(ctx, pool, 2, big.NewInt(1), env)
	assert.True(t, apperrors.IsInvariant(err))

	broken := *pool
	broken.Legs = [2]string{"missing", "missing"}
	_, err = l.AdjustReserve(ctx, &broken, 0, big.NewInt(1), env)
	assert.True(t, apperrors.IsInvariant(err))
}
