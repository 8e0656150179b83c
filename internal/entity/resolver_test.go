package entity

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yield-indexer/internal/adapter"
	"github.com/yield-indexer/internal/adapter/adaptertest"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/storage"
	"github.com/yield-indexer/internal/types"
)

var (
	factoryAddr    = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	ptAddr         = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	ytAddr         = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	ibtAddr        = common.HexToAddress("0x0000000000000000000000000000000000000a03")
	underlyingAddr = common.HexToAddress("0x0000000000000000000000000000000000000a04")
	poolAddr       = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	lpAddr         = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	vaultAddr      = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	registryAddr   = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	feedAddr       = common.HexToAddress("0x0000000000000000000000000000000000000d02")
	usdAddr        = common.HexToAddress("0x0000000000000000000000000000000000000348")
	aliceAddr      = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

type fixture struct {
	chain    *adaptertest.Chain
	backend  *storage.MemoryBackend
	session  *storage.Session
	resolver *Resolver
	logs     *bytes.Buffer
	env      events.Envelope
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chain := adaptertest.NewChain()
	chain.SetToken(ptAddr, adaptertest.Token{Name: "Principal", Symbol: "PT", Decimals: 18})
	chain.SetToken(ytAddr, adaptertest.Token{Name: "Yield", Symbol: "YT", Decimals: 18})
	chain.SetToken(ibtAddr, adaptertest.Token{Name: "Vault share", Symbol: "IBT", Decimals: 18})
	chain.SetToken(underlyingAddr, adaptertest.Token{Name: "USD Coin", Symbol: "USDC", Decimals: 6})
	chain.SetToken(lpAddr, adaptertest.Token{Name: "LP", Symbol: "LP", Decimals: 18})
	chain.SetFuture(ptAddr, &adaptertest.Future{
		Underlying:      underlyingAddr,
		IBT:             ibtAddr,
		YT:              ytAddr,
		Maturity:        big.NewInt(2_000_000),
		IBTRate:         wad(1),
		PTRate:          wad(1),
		TokenizationFee: big.NewInt(1e15),
		TotalAssets:     big.NewInt(0),
	})
	chain.SetPool(poolAddr, &adaptertest.Pool{
		Fee:        big.NewInt(2),
		AdminFee:   big.NewInt(5e9),
		LPToken:    lpAddr,
		Balances:   [2]*big.Int{big.NewInt(0), big.NewInt(0)},
		LastPrices: big.NewInt(9e17),
	})
	chain.SetSupply(lpAddr, big.NewInt(0))
	chain.SetFactory(factoryAddr, aliceAddr, aliceAddr)

	logs := &bytes.Buffer{}
	logger := logging.NewLoggerWithOutput(logging.LevelDebug, logging.FormatJSON, logs)
	backend := storage.NewMemoryBackend()
	session := storage.NewSession(backend)
	resolver := NewResolver(session, adapter.NewSafeReader(chain, logger), Options{
		ChainID:      1,
		FeedRegistry: registryAddr,
		USD:          usdAddr,
	}, logger)

	return &fixture{
		chain:    chain,
		backend:  backend,
		session:  session,
		resolver: resolver,
		logs:     logs,
		env:      events.Envelope{BlockNumber: 100, BlockTimestamp: 1_000_000},
	}
}

func TestGetOrCreateAsset_ReadsMetadataOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a1, err := f.resolver.GetOrCreateAsset(ctx, ibtAddr, types.AssetIBT, f.env)
	require.NoError(t, err)
	a2, err := f.resolver.GetOrCreateAsset(ctx, ibtAddr, types.AssetIBT, f.env)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, "IBT", a1.Symbol)
	assert.Equal(t, uint8(18), a1.Decimals)
	assert.Equal(t, 1, f.chain.Calls("name"))
	assert.Equal(t, 1, f.chain.Calls("symbol"))
	assert.Equal(t, 1, f.chain.Calls("decimals"))
}

func TestGetOrCreateAsset_IdempotentAcrossSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.GetOrCreateAsset(ctx, ibtAddr, types.AssetIBT, f.env)
	require.NoError(t, err)
	_, err = f.session.Commit(ctx, nil)
	require.NoError(t, err)

	next := NewResolver(storage.NewSession(f.backend), f.resolver.Reader(), f.resolver.opts, nil)
	a, err := next.GetOrCreateAsset(ctx, ibtAddr, types.AssetIBT, f.env)
	require.NoError(t, err)
	assert.Equal(t, "IBT", a.Symbol)
	assert.Equal(t, 1, f.chain.Calls("name"), "no second read after a committed create")
	assert.Equal(t, 1, f.backend.Count(models.KindAsset))
}

func TestGetOrCreateAsset_RevertedReadsUseDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unknown := common.HexToAddress("0x0000000000000000000000000000000000000eee")

	a, err := f.resolver.GetOrCreateAsset(ctx, unknown, types.AssetUnknown, f.env)
	require.NoError(t, err)
	assert.Equal(t, adapter.UnknownString, a.Name)
	assert.Equal(t, adapter.UnknownString, a.Symbol)
	assert.Equal(t, adapter.DefaultDecimals, a.Decimals)
	assert.Empty(t, a.Price)
	assert.Contains(t, f.logs.String(), "contract read failed")
}

func TestGetOrCreateAsset_UpgradesUnknownType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.GetOrCreateAsset(ctx, ibtAddr, types.AssetUnknown, f.env)
	require.NoError(t, err)
	a, err := f.resolver.GetOrCreateAsset(ctx, ibtAddr, types.AssetIBT, f.env)
	require.NoError(t, err)
	assert.Equal(t, types.AssetIBT, a.Type)

	a, err = f.resolver.GetOrCreateAsset(ctx, ibtAddr, types.AssetLP, f.env)
	require.NoError(t, err)
	assert.Equal(t, types.AssetIBT, a.Type, "known types are never overwritten")
}

func TestGetOrCreateAsset_LinksPriceFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.chain.SetFeed(underlyingAddr, usdAddr, feedAddr, big.NewInt(100_000_000), 8)

	a, err := f.resolver.GetOrCreateAsset(ctx, underlyingAddr, types.AssetUnderlying, f.env)
	require.NoError(t, err)
	assert.Equal(t, ids.Address(feedAddr), a.Price)

	p, ok, err := f.resolver.LoadAssetPrice(ctx, feedAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.Address, p.Asset)
	assert.Equal(t, int64(100_000_000), p.Value.Int64())
	assert.Equal(t, uint8(8), p.Decimals)

	ds, ok, err := storage.Get[*models.DataSource](ctx, f.session, models.KindDataSource, ids.Address(feedAddr))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, string(types.TemplatePriceFeed), ds.Template)
}

func TestGetOrCreateFuture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	factory, err := f.resolver.GetOrCreateFactory(ctx, factoryAddr, f.env)
	require.NoError(t, err)
	fut, err := f.resolver.GetOrCreateFuture(ctx, ptAddr, factory, f.env)
	require.NoError(t, err)

	assert.Equal(t, types.FutureActive, fut.State)
	assert.Equal(t, uint64(2_000_000), fut.Expiration)
	assert.Equal(t, ids.Address(ibtAddr), fut.IBT)
	assert.Equal(t, ids.Address(ytAddr), fut.YT)
	assert.Equal(t, 0, wad(1).Cmp(fut.IBTRate))
	assert.Equal(t, []string{fut.Address}, factory.Futures)

	yt, ok, err := f.resolver.LoadAsset(ctx, ytAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.AssetYT, yt.Type)
	assert.Equal(t, fut.Address, yt.Future)
	assert.Equal(t, fut.Underlying, yt.Underlying)

	ibt, _, err := f.resolver.LoadAsset(ctx, ibtAddr)
	require.NoError(t, err)
	assert.Equal(t, fut.Underlying, ibt.Underlying)

	for addr, tmpl := range map[common.Address]types.Template{
		ptAddr:  types.TemplateFuture,
		ytAddr:  types.TemplateToken,
		ibtAddr: types.TemplateToken,
	} {
		ds, ok, err := storage.Get[*models.DataSource](ctx, f.session, models.KindDataSource, ids.Address(addr))
		require.NoError(t, err)
		require.True(t, ok, addr.Hex())
		assert.Equal(t, string(tmpl), ds.Template)
		assert.Equal(t, uint64(100), ds.StartBlock)
	}

	again, err := f.resolver.GetOrCreateFuture(ctx, ptAddr, factory, f.env)
	require.NoError(t, err)
	assert.Same(t, fut, again)
	assert.Equal(t, 1, f.chain.Calls("maturity"))
}

func TestGetOrCreatePool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	factory, err := f.resolver.GetOrCreateFactory(ctx, factoryAddr, f.env)
	require.NoError(t, err)
	fut, err := f.resolver.GetOrCreateFuture(ctx, ptAddr, factory, f.env)
	require.NoError(t, err)
	pool, err := f.resolver.GetOrCreatePool(ctx, poolAddr, ibtAddr, ptAddr, factory, f.env)
	require.NoError(t, err)

	assert.Equal(t, fut.Address, pool.Future)
	assert.Equal(t, []string{pool.Address}, fut.Pools)
	assert.Equal(t, ids.Address(lpAddr), pool.LPToken)
	assert.Equal(t, int64(2), pool.Fee.Int64())
	assert.Equal(t, int64(9e17), pool.SpotPrice.Int64())

	for i, coin := range []common.Address{ibtAddr, ptAddr} {
		leg, ok, err := storage.Get[*models.AssetAmount](ctx, f.session, models.KindAssetAmount, pool.Legs[i])
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ids.Address(coin), leg.Asset)
		assert.Zero(t, leg.Amount.Sign())
	}

	lp, ok, err := f.resolver.LoadAsset(ctx, lpAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.AssetLP, lp.Type)
}

func TestGetOrCreatePool_UnindexedFuture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pool, err := f.resolver.GetOrCreatePool(ctx, poolAddr, ibtAddr, ptAddr, nil, f.env)
	require.NoError(t, err)
	assert.Empty(t, pool.Future)
	assert.Empty(t, pool.Factory)
}

func TestGetOrCreateLPVault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.chain.SetVault(vaultAddr, &adaptertest.Vault{Asset: underlyingAddr, Rate: wad(1), TotalAssets: big.NewInt(0)})
	f.chain.SetToken(vaultAddr, adaptertest.Token{Name: "LP Vault", Symbol: "lpv", Decimals: 18})
	f.chain.SetSupply(vaultAddr, big.NewInt(0))

	factory, err := f.resolver.GetOrCreateFactory(ctx, factoryAddr, f.env)
	require.NoError(t, err)
	fut, err := f.resolver.GetOrCreateFuture(ctx, ptAddr, factory, f.env)
	require.NoError(t, err)
	pool, err := f.resolver.GetOrCreatePool(ctx, poolAddr, ibtAddr, ptAddr, factory, f.env)
	require.NoError(t, err)

	v, err := f.resolver.GetOrCreateLPVault(ctx, vaultAddr, ptAddr, big.NewInt(0), factory, f.env)
	require.NoError(t, err)
	assert.Equal(t, pool.Address, v.Pool)
	assert.Equal(t, fut.Address, v.Future)
	assert.Equal(t, []string{v.Address}, fut.LPVaults)
	assert.Equal(t, []string{v.Address}, factory.LPVaults)

	share, ok, err := f.resolver.LoadAsset(ctx, vaultAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.AssetLPVaultShare, share.Type)
}

func TestEnsureNetwork_WritesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.resolver.EnsureNetwork(ctx, 1, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "mainnet", n.Name)

	n, err = f.resolver.EnsureNetwork(ctx, 10, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.ChainID)
}

func TestUpdateFutureRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fut, err := f.resolver.GetOrCreateFuture(ctx, ptAddr, nil, f.env)
	require.NoError(t, err)
	f.chain.SetIBTRate(ptAddr, wad(2))

	f.resolver.UpdateFutureRates(ctx, fut)
	assert.Equal(t, 0, wad(2).Cmp(fut.IBTRate))
	assert.Equal(t, 1, f.chain.Calls("maturity"), "immutable facts are not re-read")
}

func TestRegisterDataSource_KeepsFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.resolver.RegisterDataSource(ctx, poolAddr, types.TemplatePool, f.env, ""))
	later := f.env
	later.BlockNumber = 500
	require.NoError(t, f.resolver.RegisterDataSource(ctx, poolAddr, types.TemplateToken, later, ""))
	require.NoError(t, f.resolver.RegisterDataSource(ctx, common.Address{}, types.TemplateToken, later, ""))

	ds, ok, err := storage.Get[*models.DataSource](ctx, f.session, models.KindDataSource, ids.Address(poolAddr))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, string(types.TemplatePool), ds.Template)
	assert.Equal(t, uint64(100), ds.StartBlock)
}
