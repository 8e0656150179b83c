package mapping

import (
	"context"

	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/fixedpoint"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/types"
)

// onTransfer records a raw token transfer and refreshes both sides. YT
// holders accrue their yield before the balance change takes effect.
func (u *unit) onTransfer(ctx context.Context, e *events.Transfer) error {
	asset, ok, err := u.LoadAsset(ctx, e.Contract)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewMissingReferenceError(string(models.KindAsset), ids.Address(e.Contract))
	}

	transfer := &models.Transfer{
		ID:          ids.Transfer(e.TxHash, e.LogIndex),
		Hash:        ids.Hash(e.TxHash),
		LogIndex:    e.LogIndex,
		BlockNumber: e.BlockNumber,
		Timestamp:   e.BlockTimestamp,
		Asset:       asset.Address,
		From:        ids.Address(e.From),
		To:          ids.Address(e.To),
		Amount:      fixedpoint.Copy(e.Value),
	}
	if _, err := u.session.Insert(ctx, transfer); err != nil {
		return err
	}

	if asset.Type == types.AssetYT {
		f, ok, err := u.LoadFutureByID(ctx, asset.Future)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewMissingReferenceError(string(models.KindFuture), asset.Future)
		}
		u.UpdateFutureRates(ctx, f)
		if _, err := u.ledger.UpdateYield(ctx, f, e.From, e.Envelope); err != nil {
			return err
		}
		_, err = u.ledger.UpdateYield(ctx, f, e.To, e.Envelope)
		return err
	}

	if err := u.spot(ctx, e.From, e.Envelope, e.Contract); err != nil {
		return err
	}
	return u.spot(ctx, e.To, e.Envelope, e.Contract)
}
