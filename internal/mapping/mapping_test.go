package mapping_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yield-indexer/internal/entity/entitytest"
	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/mapping"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/storage"
	"github.com/yield-indexer/internal/types"
)

type harness struct {
	*entitytest.Env
	handler *mapping.Handler
}

func newHarness(t *testing.T, strict bool) *harness {
	t.Helper()
	e := entitytest.New(t)
	return &harness{
		Env:     e,
		handler: mapping.NewHandler(e.Reader, mapping.Options{Options: e.Options, Strict: strict}, e.Logger),
	}
}

// deployed returns a harness whose factory has deployed the future and its pool
func deployed(t *testing.T, strict bool) *harness {
	t.Helper()
	h := newHarness(t, strict)
	h.apply(t, &events.PTDeployed{Envelope: at(entitytest.Factory, 1, 0), PT: entitytest.PT, PoolCreator: entitytest.Alice})
	h.apply(t, &events.CurvePoolDeployed{Envelope: at(entitytest.Factory, 2, 0), Pool: entitytest.Pool, IBT: entitytest.IBT, PT: entitytest.PT})
	return h
}

func at(contract common.Address, block uint64, logIndex uint) events.Envelope {
	env := entitytest.Envelope(block, 1_000_000+block*12)
	env.Contract = contract
	env.LogIndex = logIndex
	env.From = entitytest.Alice
	return env
}

func (h *harness) handle(ev events.Event) error {
	return h.handler.Handle(context.Background(), h.Session, ev)
}

func (h *harness) apply(t *testing.T, ev events.Event) {
	t.Helper()
	require.NoError(t, h.handle(ev))
	h.Commit(t)
}

func load[T models.Entity](t *testing.T, h *harness, kind models.Kind, id string) T {
	t.Helper()
	v, ok, err := storage.Get[T](context.Background(), storage.NewSession(h.Backend), kind, id)
	require.NoError(t, err)
	require.True(t, ok, "%s %s not stored", kind, id)
	return v
}

func wad(n int64) *big.Int { return entitytest.Wad(n) }

func TestDeployment(t *testing.T) {
	h := deployed(t, true)

	f := load[*models.Future](t, h, models.KindFuture, ids.Address(entitytest.PT))
	assert.Equal(t, ids.Address(entitytest.Factory), f.Factory)
	assert.Equal(t, []string{ids.Address(entitytest.Pool)}, f.Pools)
	assert.Equal(t, types.FutureActive, f.State)

	p := load[*models.Pool](t, h, models.KindPool, ids.Address(entitytest.Pool))
	assert.Equal(t, f.Address, p.Future)
	assert.Equal(t, [2]string{ids.Address(entitytest.IBT), ids.Address(entitytest.PT)}, p.Coins)

	factory := load[*models.Factory](t, h, models.KindFactory, ids.Address(entitytest.Factory))
	assert.Equal(t, []string{f.Address}, factory.Futures)
	assert.Equal(t, ids.Address(entitytest.Bob), factory.FeeReceiver)

	for _, addr := range []common.Address{entitytest.PT, entitytest.YT, entitytest.IBT, entitytest.Pool, entitytest.LP} {
		assert.NotNil(t, load[*models.DataSource](t, h, models.KindDataSource, ids.Address(addr)))
	}
}

func TestRegistryChange(t *testing.T) {
	h := deployed(t, true)
	h.apply(t, &events.RegistryChange{Envelope: at(entitytest.Factory, 3, 0), NewRegistry: entitytest.Registry})

	factory := load[*models.Factory](t, h, models.KindFactory, ids.Address(entitytest.Factory))
	assert.Equal(t, ids.Address(entitytest.Registry), factory.Registry)
}

func TestAddLiquidity(t *testing.T) {
	h := deployed(t, true)
	env := at(entitytest.Pool, 10, 3)
	h.apply(t, &events.AddLiquidity{
		Envelope:     env,
		Provider:     entitytest.Alice,
		TokenAmounts: [2]*big.Int{big.NewInt(15), big.NewInt(15)},
		Fee:          big.NewInt(2),
		TokenSupply:  big.NewInt(10),
	})

	txID := ids.Transaction(env.TxHash, env.LogIndex)
	tx := load[*models.Transaction](t, h, models.KindTransaction, txID)
	assert.Equal(t, types.TxAddLiquidity, tx.Type)
	assert.Equal(t, []string{
		ids.AssetAmount(txID, entitytest.IBT, ids.TagIn),
		ids.AssetAmount(txID, entitytest.PT, ids.TagIn),
	}, tx.AmountsIn)
	assert.Equal(t, []string{ids.AssetAmount(txID, entitytest.LP, ids.TagOut)}, tx.AmountsOut)
	assert.Equal(t, ids.Address(entitytest.Alice), tx.User)
	assert.Equal(t, uint64(21_000), tx.GasUsed)
	assert.Equal(t, int64(2), tx.Fee.Int64())
	assert.Equal(t, int64(1), tx.AdminFee.Int64())

	minted := load[*models.AssetAmount](t, h, models.KindAssetAmount, tx.AmountsOut[0])
	assert.Equal(t, int64(10), minted.Amount.Int64())

	p := load[*models.Pool](t, h, models.KindPool, ids.Address(entitytest.Pool))
	for _, leg := range p.Legs {
		assert.Equal(t, int64(15), load[*models.AssetAmount](t, h, models.KindAssetAmount, leg).Amount.Int64())
	}
	assert.Equal(t, int64(2), p.TotalLPFees.Int64())
	assert.Equal(t, int64(1), p.TotalLPAdminFees.Int64())
	assert.Equal(t, int64(10), p.LPTotalSupply.Int64())
	assert.Equal(t, int64(1), p.TransactionCount)

	bucket := load[*models.FutureDailyStats](t, h, models.KindFutureDailyStats, ids.DailyStats(entitytest.PT, ids.DayID(env.BlockTimestamp)))
	assert.Equal(t, int64(1), bucket.DailyAddLiquidity)
	assert.Equal(t, 1, h.Backend.Count(models.KindAPRInTime))
}

func TestRemoveLiquidity(t *testing.T) {
	h := deployed(t, true)
	h.apply(t, &events.AddLiquidity{
		Envelope: at(entitytest.Pool, 10, 0), Provider: entitytest.Alice,
		TokenAmounts: [2]*big.Int{big.NewInt(15), big.NewInt(15)}, Fee: big.NewInt(0), TokenSupply: big.NewInt(10),
	})
	env := at(entitytest.Pool, 11, 0)
	h.apply(t, &events.RemoveLiquidity{
		Envelope: env, Provider: entitytest.Alice,
		TokenAmounts: [2]*big.Int{big.NewInt(6), big.NewInt(3)}, TokenSupply: big.NewInt(6),
	})

	p := load[*models.Pool](t, h, models.KindPool, ids.Address(entitytest.Pool))
	assert.Equal(t, int64(9), load[*models.AssetAmount](t, h, models.KindAssetAmount, p.Legs[0]).Amount.Int64())
	assert.Equal(t, int64(12), load[*models.AssetAmount](t, h, models.KindAssetAmount, p.Legs[1]).Amount.Int64())

	txID := ids.Transaction(env.TxHash, env.LogIndex)
	burned := load[*models.AssetAmount](t, h, models.KindAssetAmount, ids.AssetAmount(txID, entitytest.LP, ids.TagIn))
	assert.Equal(t, int64(4), burned.Amount.Int64())
}

func TestTokenExchange_RecoversFee(t *testing.T) {
	h := deployed(t, true)
	h.apply(t, &events.AddLiquidity{
		Envelope: at(entitytest.Pool, 10, 0), Provider: entitytest.Alice,
		TokenAmounts: [2]*big.Int{wad(500), wad(500)}, Fee: big.NewInt(0), TokenSupply: wad(500),
	})

	// 0.2% fee: 99.8 PT out means 100 PT before fee
	bought := new(big.Int).Mul(big.NewInt(998), big.NewInt(1e17))
	env := at(entitytest.Pool, 11, 1)
	h.apply(t, &events.TokenExchange{
		Envelope: env, Buyer: entitytest.Bob,
		SoldID: big.NewInt(0), TokensSold: wad(100),
		BoughtID: big.NewInt(1), TokensBought: bought,
	})

	p := load[*models.Pool](t, h, models.KindPool, ids.Address(entitytest.Pool))
	assert.Equal(t, 0, wad(600).Cmp(load[*models.AssetAmount](t, h, models.KindAssetAmount, p.Legs[0]).Amount))
	assert.Equal(t, 0, new(big.Int).Sub(wad(500), bought).Cmp(load[*models.AssetAmount](t, h, models.KindAssetAmount, p.Legs[1]).Amount))
	assert.Equal(t, 0, big.NewInt(2e17).Cmp(p.TotalFees[models.CoinPT]), p.TotalFees[models.CoinPT].String())
	assert.Equal(t, 0, big.NewInt(1e17).Cmp(p.TotalAdminFees[models.CoinPT]))
	assert.Zero(t, p.TotalFees[models.CoinIBT].Sign())

	tx := load[*models.Transaction](t, h, models.KindTransaction, ids.Transaction(env.TxHash, env.LogIndex))
	assert.Equal(t, types.TxSwap, tx.Type)
	assert.Equal(t, 0, big.NewInt(2e17).Cmp(tx.Fee))

	bucket := load[*models.FutureDailyStats](t, h, models.KindFutureDailyStats, ids.DailyStats(entitytest.PT, ids.DayID(env.BlockTimestamp)))
	assert.Equal(t, int64(1), bucket.DailySwaps)
}

func TestTokenExchange_BadCoinIndex(t *testing.T) {
	bad := func() events.Event {
		return &events.TokenExchange{
			Envelope: at(entitytest.Pool, 11, 0), Buyer: entitytest.Bob,
			SoldID: big.NewInt(5), TokensSold: big.NewInt(1),
			BoughtID: big.NewInt(1), TokensBought: big.NewInt(1),
		}
	}

	t.Run("strict", func(t *testing.T) {
		h := deployed(t, true)
		err := h.handle(bad())
		require.Error(t, err)
		assert.True(t, apperrors.IsInvariant(err))
	})

	t.Run("lenient", func(t *testing.T) {
		h := deployed(t, false)
		require.NoError(t, h.handle(bad()))
		assert.Empty(t, h.Session.Dirty())
		assert.Contains(t, h.Logs.String(), "invariant violated")
	})
}

func TestRemoveLiquidityOne(t *testing.T) {
	h := deployed(t, true)
	h.apply(t, &events.AddLiquidity{
		Envelope: at(entitytest.Pool, 10, 0), Provider: entitytest.Alice,
		TokenAmounts: [2]*big.Int{wad(500), wad(500)}, Fee: big.NewInt(0), TokenSupply: wad(1000),
	})
	out := new(big.Int).Mul(big.NewInt(998), big.NewInt(1e17))
	h.apply(t, &events.RemoveLiquidityOne{
		Envelope: at(entitytest.Pool, 11, 0), Provider: entitytest.Alice,
		TokenAmount: wad(100), CoinIndex: big.NewInt(0), CoinAmount: out,
	})

	p := load[*models.Pool](t, h, models.KindPool, ids.Address(entitytest.Pool))
	assert.Equal(t, 0, new(big.Int).Sub(wad(500), out).Cmp(load[*models.AssetAmount](t, h, models.KindAssetAmount, p.Legs[0]).Amount))
	assert.Equal(t, 0, big.NewInt(2e17).Cmp(p.TotalFees[models.CoinIBT]))
	assert.Equal(t, 0, wad(900).Cmp(p.LPTotalSupply))
}

func TestPoolParameters(t *testing.T) {
	h := deployed(t, true)
	h.apply(t, &events.CommitNewParameters{
		Envelope: at(entitytest.Pool, 10, 0),
		Deadline: big.NewInt(2_000_000), AdminFee: big.NewInt(4e9), MidFee: big.NewInt(30_000_000),
	})

	p := load[*models.Pool](t, h, models.KindPool, ids.Address(entitytest.Pool))
	assert.True(t, p.HasPendingParameters())
	assert.Equal(t, int64(20_000_000), p.Fee.Int64(), "staged fees are not live yet")
	assert.Equal(t, int64(30_000_000), p.FutureFee.Int64())

	h.apply(t, &events.NewParameters{Envelope: at(entitytest.Pool, 11, 0), AdminFee: big.NewInt(4e9), MidFee: big.NewInt(30_000_000)})
	p = load[*models.Pool](t, h, models.KindPool, ids.Address(entitytest.Pool))
	assert.False(t, p.HasPendingParameters())
	assert.Equal(t, int64(30_000_000), p.Fee.Int64())
	assert.Equal(t, int64(4e9), p.AdminFee.Int64())
	assert.Nil(t, p.FutureFee)
}

func TestClaimAdminFee_PaysFeeReceiver(t *testing.T) {
	h := deployed(t, true)
	h.Chain.SetBalance(entitytest.LP, entitytest.Bob, big.NewInt(7))
	h.apply(t, &events.ClaimAdminFee{Envelope: at(entitytest.Pool, 10, 0), Admin: entitytest.Alice, Tokens: big.NewInt(7)})

	p := load[*models.Pool](t, h, models.KindPool, ids.Address(entitytest.Pool))
	assert.Equal(t, int64(7), p.TotalClaimedAdminFees.Int64())

	row := load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.AccountAsset(entitytest.Bob, entitytest.LP))
	assert.Equal(t, int64(7), row.Balance.Int64())
}

func TestMint(t *testing.T) {
	h := deployed(t, true)
	h.Chain.SetBalance(entitytest.PT, entitytest.Alice, wad(10))
	h.Chain.SetBalance(entitytest.YT, entitytest.Alice, wad(10))

	env := at(entitytest.PT, 10, 0)
	h.apply(t, &events.Mint{Envelope: env, From: entitytest.Alice, To: entitytest.Alice, Amount: wad(10)})

	txID := ids.Transaction(env.TxHash, env.LogIndex)
	tx := load[*models.Transaction](t, h, models.KindTransaction, txID)
	assert.Equal(t, types.TxDeposit, tx.Type)
	assert.Equal(t, []string{ids.AssetAmount(txID, entitytest.IBT, ids.TagIn)}, tx.AmountsIn)
	assert.Equal(t, []string{
		ids.AssetAmount(txID, entitytest.PT, ids.TagOut),
		ids.AssetAmount(txID, entitytest.YT, ids.TagOut),
	}, tx.AmountsOut)
	assert.Equal(t, 0, wad(10).Cmp(load[*models.AssetAmount](t, h, models.KindAssetAmount, tx.AmountsIn[0]).Amount))

	pt := load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.AccountAsset(entitytest.Alice, entitytest.PT))
	assert.Equal(t, 0, wad(10).Cmp(pt.Balance))

	yieldRow := load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.YieldAccountAsset(entitytest.Alice, entitytest.IBT))
	assert.True(t, yieldRow.GeneratedYield)

	f := load[*models.Future](t, h, models.KindFuture, ids.Address(entitytest.PT))
	assert.Equal(t, []string{yieldRow.ID}, f.YieldGenerators)
	assert.NotEmpty(t, f.LastAPYSnapshot)

	bucket := load[*models.FutureDailyStats](t, h, models.KindFutureDailyStats, ids.DailyStats(entitytest.PT, ids.DayID(env.BlockTimestamp)))
	assert.Equal(t, int64(1), bucket.DailyDeposits)
}

func TestRedeemAfterExpiry(t *testing.T) {
	h := deployed(t, true)
	h.apply(t, &events.RatesStoredAtExpiry{Envelope: at(entitytest.PT, 10, 0), IBTRate: wad(1), PTRate: wad(1)})

	f := load[*models.Future](t, h, models.KindFuture, ids.Address(entitytest.PT))
	assert.Equal(t, types.FutureExpired, f.State)
	assert.Equal(t, 0, wad(1).Cmp(f.ExpiryIBTRate))

	env := at(entitytest.PT, 11, 0)
	h.apply(t, &events.Redeem{Envelope: env, From: entitytest.Alice, To: entitytest.Alice, Amount: wad(4)})

	txID := ids.Transaction(env.TxHash, env.LogIndex)
	tx := load[*models.Transaction](t, h, models.KindTransaction, txID)
	assert.Equal(t, types.TxWithdraw, tx.Type)
	assert.Equal(t, []string{ids.AssetAmount(txID, entitytest.PT, ids.TagIn)}, tx.AmountsIn, "expired futures burn no YT")
	assert.Equal(t, []string{ids.AssetAmount(txID, entitytest.IBT, ids.TagOut)}, tx.AmountsOut)
}

func TestPauseSweepsYield(t *testing.T) {
	h := deployed(t, true)
	h.Chain.SetBalance(entitytest.YT, entitytest.Alice, wad(100))
	h.apply(t, &events.YieldUpdated{Envelope: at(entitytest.PT, 10, 0), User: entitytest.Alice, YieldInIBT: big.NewInt(1)})

	h.Chain.SetIBTRate(entitytest.PT, wad(2))
	h.apply(t, &events.Paused{Envelope: at(entitytest.PT, 11, 0), Account: entitytest.Alice})

	f := load[*models.Future](t, h, models.KindFuture, ids.Address(entitytest.PT))
	assert.Equal(t, types.FuturePaused, f.State)

	// the stored YT balance is still zero when the sweep runs, so the
	// yield row keeps the reported value and only the baseline moves
	row := load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.YieldAccountAsset(entitytest.Alice, entitytest.IBT))
	assert.Equal(t, 0, wad(2).Cmp(row.LastRate))

	h.apply(t, &events.Unpaused{Envelope: at(entitytest.PT, 12, 0), Account: entitytest.Alice})
	f = load[*models.Future](t, h, models.KindFuture, ids.Address(entitytest.PT))
	assert.Equal(t, types.FutureActive, f.State)
}

func TestFeeClaimed_FloorsUnclaimed(t *testing.T) {
	h := deployed(t, true)
	h.apply(t, &events.FeeClaimed{Envelope: at(entitytest.PT, 10, 0), User: entitytest.Bob, RedeemedIBTs: big.NewInt(5), ReceivedAssets: big.NewInt(5)})

	f := load[*models.Future](t, h, models.KindFuture, ids.Address(entitytest.PT))
	assert.Zero(t, f.UnclaimedFees.Sign())
	assert.Equal(t, int64(5), f.TotalCollectedFees.Int64())
	assert.Contains(t, h.Logs.String(), "fee claim exceeds")
}

func TestYieldClaimed(t *testing.T) {
	h := deployed(t, true)
	h.apply(t, &events.YieldUpdated{Envelope: at(entitytest.PT, 10, 0), User: entitytest.Alice, YieldInIBT: big.NewInt(40)})

	h.Chain.SetUserYield(entitytest.PT, entitytest.Alice, big.NewInt(0))
	h.Chain.SetBalance(entitytest.IBT, entitytest.Bob, big.NewInt(40))
	env := at(entitytest.PT, 11, 0)
	h.apply(t, &events.YieldClaimed{Envelope: env, Owner: entitytest.Alice, Receiver: entitytest.Bob, YieldInIBT: big.NewInt(40)})

	row := load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.YieldAccountAsset(entitytest.Alice, entitytest.IBT))
	assert.Zero(t, row.Balance.Sign())
	bob := load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.AccountAsset(entitytest.Bob, entitytest.IBT))
	assert.Equal(t, int64(40), bob.Balance.Int64())
	assert.Equal(t, int64(40), bob.AssetsValue.Int64())

	tx := load[*models.Transaction](t, h, models.KindTransaction, ids.Transaction(env.TxHash, env.LogIndex))
	assert.Equal(t, types.TxClaimYield, tx.Type)
}

func TestTransfer_UnknownAssetIsSkipped(t *testing.T) {
	h := deployed(t, true)
	unknown := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	require.NoError(t, h.handle(&events.Transfer{Envelope: at(unknown, 10, 0), From: entitytest.Alice, To: entitytest.Bob, Value: big.NewInt(1)}))

	assert.Empty(t, h.Session.Dirty())
	assert.Zero(t, h.Backend.Count(models.KindTransfer))
	assert.Contains(t, h.Logs.String(), "unindexed entity")
}

func TestTransfer_RefreshesBothSides(t *testing.T) {
	h := deployed(t, true)
	h.Chain.SetBalance(entitytest.PT, entitytest.Alice, big.NewInt(3))
	h.Chain.SetBalance(entitytest.PT, entitytest.Bob, big.NewInt(7))

	env := at(entitytest.PT, 10, 4)
	h.apply(t, &events.Transfer{Envelope: env, From: entitytest.Alice, To: entitytest.Bob, Value: big.NewInt(7)})

	rec := load[*models.Transfer](t, h, models.KindTransfer, ids.Transfer(env.TxHash, env.LogIndex))
	assert.Equal(t, int64(7), rec.Amount.Int64())
	assert.Equal(t, int64(3), load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.AccountAsset(entitytest.Alice, entitytest.PT)).Balance.Int64())
	assert.Equal(t, int64(7), load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.AccountAsset(entitytest.Bob, entitytest.PT)).Balance.Int64())
}

func TestTransfer_YTAccruesBeforeMove(t *testing.T) {
	h := deployed(t, true)
	h.Chain.SetBalance(entitytest.YT, entitytest.Alice, wad(100))
	h.apply(t, &events.Transfer{Envelope: at(entitytest.YT, 10, 0), From: common.Address{}, To: entitytest.Alice, Value: wad(100)})

	h.Chain.SetIBTRate(entitytest.PT, big.NewInt(125e16))
	h.Chain.SetBalance(entitytest.YT, entitytest.Alice, big.NewInt(0))
	h.Chain.SetBalance(entitytest.YT, entitytest.Bob, wad(100))
	h.apply(t, &events.Transfer{Envelope: at(entitytest.YT, 11, 0), From: entitytest.Alice, To: entitytest.Bob, Value: wad(100)})

	alice := load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.YieldAccountAsset(entitytest.Alice, entitytest.IBT))
	assert.Equal(t, 0, wad(20).Cmp(alice.Balance), alice.Balance.String())
	assert.True(t, alice.GeneratedYield)

	bob := load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.YieldAccountAsset(entitytest.Bob, entitytest.IBT))
	assert.Zero(t, bob.Balance.Sign(), "the receiver earned nothing before holding")
}

func TestLPVault(t *testing.T) {
	h := deployed(t, true)
	h.apply(t, &events.LPVaultDeployed{Envelope: at(entitytest.Factory, 5, 0), LPVault: entitytest.LPVault, PT: entitytest.PT, PoolIndex: big.NewInt(0)})

	v := load[*models.LPVault](t, h, models.KindLPVault, ids.Address(entitytest.LPVault))
	assert.Equal(t, ids.Address(entitytest.Pool), v.Pool)

	h.Chain.SetBalance(entitytest.LPVault, entitytest.Alice, big.NewInt(9))
	env := at(entitytest.LPVault, 10, 0)
	h.apply(t, &events.Deposit{Envelope: env, Sender: entitytest.Alice, Owner: entitytest.Alice, Assets: big.NewInt(9), Shares: big.NewInt(9)})

	tx := load[*models.Transaction](t, h, models.KindTransaction, ids.Transaction(env.TxHash, env.LogIndex))
	assert.Equal(t, types.TxLPVaultDeposit, tx.Type)
	assert.Equal(t, v.Address, tx.LPVault)

	share := load[*models.AccountAsset](t, h, models.KindAccountAsset, ids.AccountAsset(entitytest.Alice, entitytest.LPVault))
	assert.Equal(t, int64(9), share.Balance.Int64())
	assert.Equal(t, int64(9), share.AssetsValue.Int64())

	env = at(entitytest.LPVault, 11, 0)
	h.apply(t, &events.Withdraw{Envelope: env, Sender: entitytest.Alice, Receiver: entitytest.Bob, Owner: entitytest.Alice, Assets: big.NewInt(9), Shares: big.NewInt(9)})
	tx = load[*models.Transaction](t, h, models.KindTransaction, ids.Transaction(env.TxHash, env.LogIndex))
	assert.Equal(t, types.TxLPVaultWithdraw, tx.Type)
}

func TestOracle(t *testing.T) {
	h := deployed(t, true)
	h.Chain.SetFeed(entitytest.IBT, entitytest.USD, entitytest.Feed, big.NewInt(100_000_000), 8)

	h.apply(t, &events.FeedConfirmed{
		Envelope: at(entitytest.Registry, 10, 0),
		Asset:    entitytest.IBT, Denomination: entitytest.USD, LatestAggregator: entitytest.Feed,
	})
	asset := load[*models.Asset](t, h, models.KindAsset, ids.Address(entitytest.IBT))
	assert.Equal(t, ids.Address(entitytest.Feed), asset.Price)

	h.apply(t, &events.AnswerUpdated{Envelope: at(entitytest.Feed, 11, 0), Current: big.NewInt(105_000_000), RoundID: big.NewInt(2), UpdatedAt: big.NewInt(1_000_200)})
	price := load[*models.AssetPrice](t, h, models.KindAssetPrice, ids.Address(entitytest.Feed))
	assert.Equal(t, int64(105_000_000), price.Value.Int64())
	assert.Equal(t, uint8(8), price.Decimals)
	assert.Equal(t, uint64(1_000_200), price.UpdatedAtTimestamp)
}

func TestOracle_IgnoresOtherDenominations(t *testing.T) {
	h := deployed(t, true)
	eth := common.HexToAddress("0x000000000000000000000000000000000000eeee")
	h.apply(t, &events.FeedConfirmed{
		Envelope: at(entitytest.Registry, 10, 0),
		Asset:    entitytest.IBT, Denomination: eth, LatestAggregator: entitytest.Feed,
	})
	asset := load[*models.Asset](t, h, models.KindAsset, ids.Address(entitytest.IBT))
	assert.Empty(t, asset.Price)

	require.NoError(t, h.handle(&events.AnswerUpdated{Envelope: at(entitytest.Feed, 11, 0), Current: big.NewInt(1), RoundID: big.NewInt(1), UpdatedAt: big.NewInt(1)}))
	assert.Zero(t, h.Backend.Count(models.KindAssetPrice))
}
