package entity

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/storage"
)

// Typed loads. None of them create anything.

func (r *Resolver) LoadAsset(ctx context.Context, addr common.Address) (*models.Asset, bool, error) {
	return storage.Get[*models.Asset](ctx, r.session, models.KindAsset, ids.Address(addr))
}

func (r *Resolver) LoadAssetPrice(ctx context.Context, feed common.Address) (*models.AssetPrice, bool, error) {
	return storage.Get[*models.AssetPrice](ctx, r.session, models.KindAssetPrice, ids.Address(feed))
}

func (r *Resolver) LoadFactory(ctx context.Context, addr common.Address) (*models.Factory, bool, error) {
	return storage.Get[*models.Factory](ctx, r.session, models.KindFactory, ids.Address(addr))
}

func (r *Resolver) LoadFuture(ctx context.Context, pt common.Address) (*models.Future, bool, error) {
	return storage.Get[*models.Future](ctx, r.session, models.KindFuture, ids.Address(pt))
}

// LoadFutureByID loads a future by its stored key
func (r *Resolver) LoadFutureByID(ctx context.Context, id string) (*models.Future, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	return storage.Get[*models.Future](ctx, r.session, models.KindFuture, id)
}

func (r *Resolver) LoadPool(ctx context.Context, addr common.Address) (*models.Pool, bool, error) {
	return storage.Get[*models.Pool](ctx, r.session, models.KindPool, ids.Address(addr))
}

func (r *Resolver) LoadLPVault(ctx context.Context, addr common.Address) (*models.LPVault, bool, error) {
	return storage.Get[*models.LPVault](ctx, r.session, models.KindLPVault, ids.Address(addr))
}

func (r *Resolver) LoadNetwork(ctx context.Context) (*models.Network, bool, error) {
	return storage.Get[*models.Network](ctx, r.session, models.KindNetwork, ids.NetworkID)
}
