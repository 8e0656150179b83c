package mapping

import (
	"context"

	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/types"
)

func (u *unit) lpVault(ctx context.Context, e events.Envelope) (*models.LPVault, error) {
	v, ok, err := u.LoadLPVault(ctx, e.Contract)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewMissingReferenceError(string(models.KindLPVault), ids.Address(e.Contract))
	}
	return v, nil
}

func (u *unit) touchVaultFuture(ctx context.Context, v *models.LPVault, action types.StatsAction, env events.Envelope) error {
	f, ok, err := u.LoadFutureByID(ctx, v.Future)
	if err != nil || !ok {
		return err
	}
	_, err = u.stats.Touch(ctx, f, action, env)
	return err
}

func (u *unit) onVaultDeposit(ctx context.Context, e *events.Deposit) error {
	v, err := u.lpVault(ctx, e.Envelope)
	if err != nil {
		return err
	}
	u.RefreshLPVault(ctx, v)

	asset, share := addr(v.Asset), e.Contract
	tx := newTransaction(e.Envelope, types.TxLPVaultDeposit)
	tx.LPVault = v.Address
	tx.Future = v.Future
	tx.Pool = v.Pool
	if err := u.flowIn(ctx, tx, asset, e.Assets, e.Envelope); err != nil {
		return err
	}
	if err := u.flowOut(ctx, tx, share, e.Shares, e.Envelope); err != nil {
		return err
	}
	if err := u.spot(ctx, e.Owner, e.Envelope, share); err != nil {
		return err
	}
	if err := u.spot(ctx, e.Sender, e.Envelope, asset); err != nil {
		return err
	}
	if err := u.touchVaultFuture(ctx, v, types.ActionDeposit, e.Envelope); err != nil {
		return err
	}
	return u.record(ctx, tx)
}

func (u *unit) onVaultWithdraw(ctx context.Context, e *events.Withdraw) error {
	v, err := u.lpVault(ctx, e.Envelope)
	if err != nil {
		return err
	}
	u.RefreshLPVault(ctx, v)

	asset, share := addr(v.Asset), e.Contract
	tx := newTransaction(e.Envelope, types.TxLPVaultWithdraw)
	tx.LPVault = v.Address
	tx.Future = v.Future
	tx.Pool = v.Pool
	if err := u.flowIn(ctx, tx, share, e.Shares, e.Envelope); err != nil {
		return err
	}
	if err := u.flowOut(ctx, tx, asset, e.Assets, e.Envelope); err != nil {
		return err
	}
	if err := u.spot(ctx, e.Owner, e.Envelope, share); err != nil {
		return err
	}
	if err := u.spot(ctx, e.Receiver, e.Envelope, asset); err != nil {
		return err
	}
	if err := u.touchVaultFuture(ctx, v, types.ActionWithdrawal, e.Envelope); err != nil {
		return err
	}
	return u.record(ctx, tx)
}
