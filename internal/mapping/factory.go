package mapping

import (
	"context"

	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/ids"
)

func (u *unit) onPTDeployed(ctx context.Context, e *events.PTDeployed) error {
	factory, err := u.GetOrCreateFactory(ctx, e.Contract, e.Envelope)
	if err != nil {
		return err
	}
	_, err = u.GetOrCreateFuture(ctx, e.PT, factory, e.Envelope)
	return err
}

func (u *unit) onCurvePoolDeployed(ctx context.Context, e *events.CurvePoolDeployed) error {
	factory, err := u.GetOrCreateFactory(ctx, e.Contract, e.Envelope)
	if err != nil {
		return err
	}
	p, err := u.GetOrCreatePool(ctx, e.Pool, e.IBT, e.PT, factory, e.Envelope)
	if err != nil {
		return err
	}
	if p.Future == "" {
		u.logger.WithField("pt", ids.Address(e.PT)).Warn("pool deployed for an unindexed future")
	}
	return nil
}

func (u *unit) onLPVaultDeployed(ctx context.Context, e *events.LPVaultDeployed) error {
	factory, err := u.GetOrCreateFactory(ctx, e.Contract, e.Envelope)
	if err != nil {
		return err
	}
	_, err = u.GetOrCreateLPVault(ctx, e.LPVault, e.PT, e.PoolIndex, factory, e.Envelope)
	return err
}

func (u *unit) onRegistryChange(ctx context.Context, e *events.RegistryChange) error {
	factory, err := u.GetOrCreateFactory(ctx, e.Contract, e.Envelope)
	if err != nil {
		return err
	}
	factory.Registry = ids.Address(e.NewRegistry)
	u.session.Save(factory)
	return nil
}
