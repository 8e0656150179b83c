package mapping

import (
	"context"

	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/fixedpoint"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/models"
)

// onFeedConfirmed points a tracked asset at its new USD aggregator.
// Other denominations and untracked assets are ignored.
func (u *unit) onFeedConfirmed(ctx context.Context, e *events.FeedConfirmed) error {
	if e.Denomination != u.opts.USD {
		return nil
	}
	asset, ok, err := u.LoadAsset(ctx, e.Asset)
	if err != nil || !ok {
		return err
	}
	if _, err := u.LinkPrice(ctx, asset, e.LatestAggregator, e.Envelope); err != nil {
		return err
	}
	u.logger.WithFields(map[string]interface{}{
		"asset":      asset.Address,
		"aggregator": ids.Address(e.LatestAggregator),
	}).Info("price feed linked")
	return nil
}

func (u *unit) onAnswerUpdated(ctx context.Context, e *events.AnswerUpdated) error {
	price, ok, err := u.LoadAssetPrice(ctx, e.Contract)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewMissingReferenceError(string(models.KindAssetPrice), ids.Address(e.Contract))
	}
	price.Value = fixedpoint.Copy(e.Current)
	price.RoundID = fixedpoint.Copy(e.RoundID)
	price.UpdatedAtBlock = e.BlockNumber
	price.UpdatedAtTimestamp = fixedpoint.Copy(e.UpdatedAt).Uint64()
	u.session.Save(price)
	return nil
}
