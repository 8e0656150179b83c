// Package ledger maintains the two kinds of balances the indexer keeps.
//
// Spot rows (AccountAsset) are point-in-time truths: every update re-reads
// balanceOf from chain and overwrites the stored value. Flow rows
// (AssetAmount) are delta-accumulated and never re-read. The two paths have
// distinct operation names and must not be mixed.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/entity"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/fixedpoint"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/storage"
	"github.com/yield-indexer/internal/types"
)

// Ledger updates balances within one event's session
type Ledger struct {
	resolver *entity.Resolver
	session  *storage.Session
	logger   *logging.Logger
}

// New creates a ledger writing through resolver's session
func New(resolver *entity.Resolver, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Ledger{
		resolver: resolver,
		session:  resolver.Session(),
		logger:   logger.ForSubsystem("ledger"),
	}
}

// UpdateSpotBalance re-reads the balance of account in asset and stores it.
// For share-based assets the converted asset value is stored alongside.
// The row and the account are created on first touch. The zero address
// (mint and burn counterparty) has no row and yields nil.
func (l *Ledger) UpdateSpotBalance(ctx context.Context, account, asset common.Address, env events.Envelope) (*models.AccountAsset, error) {
	if entity.IsZero(account) || entity.IsZero(asset) {
		return nil, nil
	}

	a, err := l.resolver.GetOrCreateAsset(ctx, asset, types.AssetUnknown, env)
	if err != nil {
		return nil, err
	}
	row, err := l.spotRow(ctx, account, a, env)
	if err != nil {
		return nil, err
	}

	reader := l.resolver.Reader()
	row.Balance = reader.TryBalanceOf(ctx, asset, account)
	if a.Type.IsShareBased() {
		if row.Balance.Sign() == 0 {
			row.AssetsValue = new(big.Int)
		} else {
			row.AssetsValue = reader.TryConvertToAssets(ctx, asset, row.Balance)
		}
	}
	row.UpdatedAtBlock = env.BlockNumber
	row.UpdatedAtTimestamp = env.BlockTimestamp
	l.session.Save(row)
	return row, nil
}

// SpotBalance returns the last stored spot balance without reading chain
func (l *Ledger) SpotBalance(ctx context.Context, account, asset common.Address) (*big.Int, error) {
	row, ok, err := storage.Get[*models.AccountAsset](ctx, l.session, models.KindAccountAsset, ids.AccountAsset(account, asset))
	if err != nil || !ok {
		return new(big.Int), err
	}
	return fixedpoint.Copy(row.Balance), nil
}

func (l *Ledger) spotRow(ctx context.Context, account common.Address, a *models.Asset, env events.Envelope) (*models.AccountAsset, error) {
	asset := common.HexToAddress(a.Address)
	id := ids.AccountAsset(account, asset)
	row, ok, err := storage.Get[*models.AccountAsset](ctx, l.session, models.KindAccountAsset, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		row = &models.AccountAsset{
			ID:             id,
			Account:        ids.Address(account),
			Asset:          a.Address,
			Type:           a.Type,
			Balance:        new(big.Int),
			Future:         a.Future,
			CreatedAtBlock: env.BlockNumber,
		}
	} else if row.Type != a.Type {
		row.Type = a.Type
	}
	if err := l.addPosition(ctx, account, id, env); err != nil {
		return nil, err
	}
	return row, nil
}

func (l *Ledger) addPosition(ctx context.Context, account common.Address, id string, env events.Envelope) error {
	acc, err := l.resolver.GetOrCreateAccount(ctx, account, env)
	if err != nil {
		return err
	}
	if acc.AddPosition(id) {
		l.session.Save(acc)
	}
	return nil
}

// AccumulateFlow adds delta to the amount of asset inside scope, opening the
// row at zero. Repeated calls on one key sum their deltas in any order.
func (l *Ledger) AccumulateFlow(ctx context.Context, scope string, asset common.Address, delta *big.Int, env events.Envelope, tag ...string) (*models.AssetAmount, error) {
	id := ids.AssetAmount(scope, asset, tag...)
	amt, ok, err := storage.Get[*models.AssetAmount](ctx, l.session, models.KindAssetAmount, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		var t string
		if len(tag) > 0 {
			t = tag[0]
		}
		amt = &models.AssetAmount{
			ID:             id,
			Scope:          scope,
			Asset:          ids.Address(asset),
			Tag:            t,
			Amount:         new(big.Int),
			CreatedAtBlock: env.BlockNumber,
		}
	}
	amt.Amount = new(big.Int).Add(amt.AmountOrZero(), fixedpoint.Copy(delta))
	amt.UpdatedAtBlock = env.BlockNumber
	l.session.Save(amt)
	return amt, nil
}

// AdjustReserve adds delta to reserve leg coin of pool. The legs are opened
// when the pool is created, so a missing leg is an invariant violation.
func (l *Ledger) AdjustReserve(ctx context.Context, pool *models.Pool, coin int, delta *big.Int, env events.Envelope) (*models.AssetAmount, error) {
	if coin < 0 || coin > 1 {
		return nil, apperrors.NewInvariantError("pool %s has no coin %d", pool.Address, coin)
	}
	id := pool.Legs[coin]
	leg, ok, err := storage.Get[*models.AssetAmount](ctx, l.session, models.KindAssetAmount, id)
	if err != nil {
		return nil, err
	}
	if !ok || id == "" {
		return nil, apperrors.NewInvariantError("pool %s reserve leg %d (%q) is missing", pool.Address, coin, id)
	}
	leg.Amount = new(big.Int).Add(leg.AmountOrZero(), fixedpoint.Copy(delta))
	leg.UpdatedAtBlock = env.BlockNumber
	l.session.Save(leg)
	return leg, nil
}
