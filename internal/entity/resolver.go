// Package entity resolves the reference entities every handler works on.
// Each GetOrCreate reads the immutable facts of a contract exactly once,
// when the entity is first created, and never again.
package entity

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-indexer/internal/adapter"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/storage"
	"github.com/yield-indexer/internal/types"
)

// Options carries the deployment constants resolution depends on
type Options struct {
	ChainID int64
	// FeedRegistry is the oracle registry queried for USD price feeds.
	// Discovery is skipped when it is the zero address.
	FeedRegistry common.Address
	// USD is the denomination pseudo-address for USD
	USD common.Address
}

// Resolver resolves entities within one event's session
type Resolver struct {
	session *storage.Session
	reader  *adapter.SafeReader
	opts    Options
	logger  *logging.Logger
}

// NewResolver binds a resolver to session
func NewResolver(session *storage.Session, reader *adapter.SafeReader, opts Options, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Resolver{
		session: session,
		reader:  reader,
		opts:    opts,
		logger:  logger.ForSubsystem("entity"),
	}
}

// Session returns the unit of work the resolver writes into
func (r *Resolver) Session() *storage.Session {
	return r.session
}

// Reader returns the contract reader used for creation reads
func (r *Resolver) Reader() *adapter.SafeReader {
	return r.reader
}

// IsZero reports whether addr is the zero address
func IsZero(addr common.Address) bool {
	return addr == (common.Address{})
}

// EnsureNetwork writes the network entity if it does not exist yet
func (r *Resolver) EnsureNetwork(ctx context.Context, chainID int64, name string) (*models.Network, error) {
	n, ok, err := storage.Get[*models.Network](ctx, r.session, models.KindNetwork, ids.NetworkID)
	if err != nil || ok {
		return n, err
	}
	n = &models.Network{ID: ids.NetworkID, ChainID: chainID, Name: name}
	r.session.Save(n)
	return n, nil
}

// GetOrCreateAccount returns the account at addr, creating it on first reference
func (r *Resolver) GetOrCreateAccount(ctx context.Context, addr common.Address, env events.Envelope) (*models.Account, error) {
	id := ids.Address(addr)
	a, ok, err := storage.Get[*models.Account](ctx, r.session, models.KindAccount, id)
	if err != nil || ok {
		return a, err
	}
	a = &models.Account{
		Address:            id,
		CreatedAtBlock:     env.BlockNumber,
		CreatedAtTimestamp: env.BlockTimestamp,
	}
	r.session.Save(a)
	return a, nil
}

// GetOrCreateAsset returns the asset at addr. On creation it reads name,
// symbol and decimals once and looks up a USD price feed.
//
// An existing asset of type UNKNOWN is upgraded when a caller knows better;
// any other type is kept.
func (r *Resolver) GetOrCreateAsset(ctx context.Context, addr common.Address, assetType types.AssetType, env events.Envelope) (*models.Asset, error) {
	id := ids.Address(addr)
	a, ok, err := storage.Get[*models.Asset](ctx, r.session, models.KindAsset, id)
	if err != nil {
		return nil, err
	}
	if ok {
		if a.Type == types.AssetUnknown && assetType != types.AssetUnknown {
			a.Type = assetType
			r.session.Save(a)
		}
		return a, nil
	}

	a = &models.Asset{
		Address:            id,
		ChainID:            r.opts.ChainID,
		Name:               r.reader.TryName(ctx, addr),
		Symbol:             r.reader.TrySymbol(ctx, addr),
		Decimals:           r.reader.TryDecimals(ctx, addr),
		Type:               assetType,
		CreatedAtBlock:     env.BlockNumber,
		CreatedAtTimestamp: env.BlockTimestamp,
	}

	if err := r.discoverPrice(ctx, a, addr, env); err != nil {
		return nil, err
	}

	r.session.Save(a)
	r.logger.WithFields(map[string]interface{}{
		logging.FieldContract: id,
		"symbol":              a.Symbol,
		"type":                string(a.Type),
	}).Debug("asset created")
	return a, nil
}

// discoverPrice links a to its USD feed when the registry knows one
func (r *Resolver) discoverPrice(ctx context.Context, a *models.Asset, addr common.Address, env events.Envelope) error {
	if IsZero(r.opts.FeedRegistry) {
		return nil
	}
	feed := r.reader.TryGetFeed(ctx, r.opts.FeedRegistry, addr, r.opts.USD)
	if IsZero(feed) {
		return nil
	}
	_, err := r.LinkPrice(ctx, a, feed, env)
	return err
}

// LinkPrice points asset a at the price feed and refreshes the feed's
// answer. The feed is registered so its updates are followed.
func (r *Resolver) LinkPrice(ctx context.Context, a *models.Asset, feed common.Address, env events.Envelope) (*models.AssetPrice, error) {
	feedID := ids.Address(feed)
	p, ok, err := storage.Get[*models.AssetPrice](ctx, r.session, models.KindAssetPrice, feedID)
	if err != nil {
		return nil, err
	}
	if !ok {
		p = &models.AssetPrice{
			Feed:     feedID,
			Decimals: r.reader.TryFeedDecimals(ctx, feed),
		}
	}
	p.Asset = a.Address
	p.Value = r.reader.TryLatestAnswer(ctx, feed)
	p.UpdatedAtBlock = env.BlockNumber
	p.UpdatedAtTimestamp = env.BlockTimestamp
	r.session.Save(p)

	a.Price = feedID
	r.session.Save(a)

	if err := r.RegisterDataSource(ctx, feed, types.TemplatePriceFeed, env, a.Address); err != nil {
		return nil, err
	}
	return p, nil
}

// GetOrCreateFactory returns the factory at addr
func (r *Resolver) GetOrCreateFactory(ctx context.Context, addr common.Address, env events.Envelope) (*models.Factory, error) {
	id := ids.Address(addr)
	f, ok, err := storage.Get[*models.Factory](ctx, r.session, models.KindFactory, id)
	if err != nil || ok {
		return f, err
	}
	f = &models.Factory{
		Address:     id,
		Admin:       ids.Address(r.reader.TryAdmin(ctx, addr)),
		FeeReceiver: ids.Address(r.reader.TryFeeReceiver(ctx, addr)),
		CreatedAt:   env.BlockTimestamp,
		CreatedAtBN: env.BlockNumber,
	}
	r.session.Save(f)
	return f, nil
}

// GetOrCreateFuture returns the future whose principal token is pt. On
// creation it reads the future's tokens, maturity and fee, creates the
// underlying, IBT, PT and YT assets and starts following PT, YT and IBT.
func (r *Resolver) GetOrCreateFuture(ctx context.Context, pt common.Address, factory *models.Factory, env events.Envelope) (*models.Future, error) {
	id := ids.Address(pt)
	f, ok, err := storage.Get[*models.Future](ctx, r.session, models.KindFuture, id)
	if err != nil || ok {
		return f, err
	}

	underlying := r.reader.TryUnderlying(ctx, pt)
	ibt := r.reader.TryIBT(ctx, pt)
	yt := r.reader.TryYT(ctx, pt)

	f = &models.Future{
		Address:            id,
		State:              types.FutureActive,
		Expiration:         r.reader.TryMaturity(ctx, pt).Uint64(),
		TokenizationFee:    r.reader.TryTokenizationFee(ctx, pt),
		Underlying:         ids.Address(underlying),
		IBT:                ids.Address(ibt),
		YT:                 ids.Address(yt),
		TotalAssets:        r.reader.TryTotalAssets(ctx, pt),
		IBTRate:            r.reader.TryIBTRate(ctx, pt),
		PTRate:             r.reader.TryPTRate(ctx, pt),
		UnclaimedFees:      new(big.Int),
		TotalCollectedFees: new(big.Int),
		CreatedAtBlock:     env.BlockNumber,
		CreatedAtTimestamp: env.BlockTimestamp,
	}
	if factory != nil {
		f.Factory = factory.Address
		if factory.AddFuture(id) {
			r.session.Save(factory)
		}
	}
	r.session.Save(f)

	if !IsZero(underlying) {
		if _, err := r.GetOrCreateAsset(ctx, underlying, types.AssetUnderlying, env); err != nil {
			return nil, err
		}
	}
	if !IsZero(ibt) {
		a, err := r.GetOrCreateAsset(ctx, ibt, types.AssetIBT, env)
		if err != nil {
			return nil, err
		}
		if a.Underlying == "" && !IsZero(underlying) {
			a.Underlying = f.Underlying
			r.session.Save(a)
		}
		if err := r.RegisterDataSource(ctx, ibt, types.TemplateToken, env, id); err != nil {
			return nil, err
		}
	}

	ptAsset, err := r.GetOrCreateAsset(ctx, pt, types.AssetPT, env)
	if err != nil {
		return nil, err
	}
	r.linkToFuture(ptAsset, f)
	if err := r.RegisterDataSource(ctx, pt, types.TemplateFuture, env, id); err != nil {
		return nil, err
	}

	if !IsZero(yt) {
		ytAsset, err := r.GetOrCreateAsset(ctx, yt, types.AssetYT, env)
		if err != nil {
			return nil, err
		}
		r.linkToFuture(ytAsset, f)
		if err := r.RegisterDataSource(ctx, yt, types.TemplateToken, env, id); err != nil {
			return nil, err
		}
	}

	r.logger.WithFields(map[string]interface{}{
		logging.FieldContract: id,
		"ibt":                 f.IBT,
		"yt":                  f.YT,
		"expiration":          f.Expiration,
	}).Info("future created")
	return f, nil
}

func (r *Resolver) linkToFuture(a *models.Asset, f *models.Future) {
	if a.Future == f.Address && a.Underlying == f.Underlying {
		return
	}
	a.Future = f.Address
	a.Underlying = f.Underlying
	r.session.Save(a)
}

// GetOrCreatePool returns the pool at addr trading ibt (coin 0) against
// pt (coin 1). Creation reads the LP token and fee rates, opens both
// reserve legs at zero and links the pool to its future when indexed.
func (r *Resolver) GetOrCreatePool(ctx context.Context, addr, ibt, pt common.Address, factory *models.Factory, env events.Envelope) (*models.Pool, error) {
	id := ids.Address(addr)
	p, ok, err := storage.Get[*models.Pool](ctx, r.session, models.KindPool, id)
	if err != nil || ok {
		return p, err
	}

	lpToken := r.reader.TryLPToken(ctx, addr)
	p = &models.Pool{
		Address:               id,
		LPToken:               ids.Address(lpToken),
		Coins:                 [2]string{ids.Address(ibt), ids.Address(pt)},
		Fee:                   r.reader.TryFee(ctx, addr),
		AdminFee:              r.reader.TryAdminFee(ctx, addr),
		LPTotalSupply:         new(big.Int),
		SpotPrice:             r.reader.TryLastPrices(ctx, addr),
		TotalFees:             [2]*big.Int{new(big.Int), new(big.Int)},
		TotalAdminFees:        [2]*big.Int{new(big.Int), new(big.Int)},
		TotalLPFees:           new(big.Int),
		TotalLPAdminFees:      new(big.Int),
		TotalClaimedAdminFees: new(big.Int),
		CreatedAtBlock:        env.BlockNumber,
		CreatedAtTimestamp:    env.BlockTimestamp,
	}

	for i, coin := range []common.Address{ibt, pt} {
		leg := &models.AssetAmount{
			ID:             ids.AssetAmount(id, coin),
			Scope:          id,
			Asset:          ids.Address(coin),
			Amount:         new(big.Int),
			CreatedAtBlock: env.BlockNumber,
			UpdatedAtBlock: env.BlockNumber,
		}
		p.Legs[i] = leg.ID
		r.session.Save(leg)
	}

	if _, err := r.GetOrCreateAsset(ctx, ibt, types.AssetIBT, env); err != nil {
		return nil, err
	}
	if _, err := r.GetOrCreateAsset(ctx, pt, types.AssetPT, env); err != nil {
		return nil, err
	}

	if !IsZero(lpToken) {
		if _, err := r.GetOrCreateAsset(ctx, lpToken, types.AssetLP, env); err != nil {
			return nil, err
		}
		p.LPTotalSupply = r.reader.TryTotalSupply(ctx, lpToken)
		if err := r.RegisterDataSource(ctx, lpToken, types.TemplateToken, env, id); err != nil {
			return nil, err
		}
	}

	if factory != nil {
		p.Factory = factory.Address
		if factory.AddPool(id) {
			r.session.Save(factory)
		}
	}

	future, ok, err := r.LoadFuture(ctx, pt)
	if err != nil {
		return nil, err
	}
	if ok {
		p.Future = future.Address
		if future.AddPool(id) {
			r.session.Save(future)
		}
	}

	r.session.Save(p)
	if err := r.RegisterDataSource(ctx, addr, types.TemplatePool, env, p.Future); err != nil {
		return nil, err
	}
	return p, nil
}

// GetOrCreateLPVault returns the LP vault at addr wrapping liquidity of the
// future pt. The vault is linked to the future's pool at poolIndex when it exists.
func (r *Resolver) GetOrCreateLPVault(ctx context.Context, addr, pt common.Address, poolIndex *big.Int, factory *models.Factory, env events.Envelope) (*models.LPVault, error) {
	id := ids.Address(addr)
	v, ok, err := storage.Get[*models.LPVault](ctx, r.session, models.KindLPVault, id)
	if err != nil || ok {
		return v, err
	}

	underlying := r.reader.TryAsset(ctx, addr)
	v = &models.LPVault{
		Address:            id,
		Future:             ids.Address(pt),
		PoolIndex:          poolIndexOrZero(poolIndex),
		Asset:              ids.Address(underlying),
		TotalAssets:        r.reader.TryTotalAssets(ctx, addr),
		TotalSupply:        r.reader.TryTotalSupply(ctx, addr),
		CreatedAtBlock:     env.BlockNumber,
		CreatedAtTimestamp: env.BlockTimestamp,
	}

	share, err := r.GetOrCreateAsset(ctx, addr, types.AssetLPVaultShare, env)
	if err != nil {
		return nil, err
	}
	if share.Future != v.Future || share.Underlying != v.Asset {
		share.Future = v.Future
		share.Underlying = v.Asset
		r.session.Save(share)
	}
	if !IsZero(underlying) {
		if _, err := r.GetOrCreateAsset(ctx, underlying, types.AssetUnknown, env); err != nil {
			return nil, err
		}
	}

	if factory != nil {
		v.Factory = factory.Address
		if factory.AddLPVault(id) {
			r.session.Save(factory)
		}
	}

	future, ok, err := r.LoadFuture(ctx, pt)
	if err != nil {
		return nil, err
	}
	if ok {
		if v.PoolIndex.IsInt64() && v.PoolIndex.Int64() < int64(len(future.Pools)) {
			v.Pool = future.Pools[v.PoolIndex.Int64()]
		}
		if future.AddLPVault(id) {
			r.session.Save(future)
		}
	}

	r.session.Save(v)
	if err := r.RegisterDataSource(ctx, addr, types.TemplateLPVault, env, v.Future); err != nil {
		return nil, err
	}
	return v, nil
}

func poolIndexOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// RegisterDataSource asks the event source to follow addr from the current
// block on. Registering an address twice keeps the first registration.
func (r *Resolver) RegisterDataSource(ctx context.Context, addr common.Address, template types.Template, env events.Envelope, parent string) error {
	if IsZero(addr) {
		return nil
	}
	id := ids.Address(addr)
	exists, err := r.session.Exists(ctx, models.KindDataSource, id)
	if err != nil || exists {
		return err
	}
	r.session.Save(&models.DataSource{
		Address:    id,
		Template:   string(template),
		StartBlock: env.BlockNumber,
		Parent:     parent,
	})
	r.logger.WithFields(map[string]interface{}{
		logging.FieldContract: id,
		"template":            string(template),
		logging.FieldBlock:    env.BlockNumber,
	}).Info("data source registered")
	return nil
}

// UpdateFutureRates re-reads the mutable state of a future: both rates and
// its total assets. Immutable facts are left alone.
func (r *Resolver) UpdateFutureRates(ctx context.Context, f *models.Future) {
	pt := common.HexToAddress(f.Address)
	f.IBTRate = r.reader.TryIBTRate(ctx, pt)
	f.PTRate = r.reader.TryPTRate(ctx, pt)
	f.TotalAssets = r.reader.TryTotalAssets(ctx, pt)
	r.session.Save(f)
}

// RefreshPool re-reads the spot price and LP supply of a pool
func (r *Resolver) RefreshPool(ctx context.Context, p *models.Pool) {
	addr := common.HexToAddress(p.Address)
	p.SpotPrice = r.reader.TryLastPrices(ctx, addr)
	if p.LPToken != "" {
		p.LPTotalSupply = r.reader.TryTotalSupply(ctx, common.HexToAddress(p.LPToken))
	}
	r.session.Save(p)
}

// RefreshLPVault re-reads the totals of an LP vault
func (r *Resolver) RefreshLPVault(ctx context.Context, v *models.LPVault) {
	addr := common.HexToAddress(v.Address)
	v.TotalAssets = r.reader.TryTotalAssets(ctx, addr)
	v.TotalSupply = r.reader.TryTotalSupply(ctx, addr)
	r.session.Save(v)
}
