package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-indexer/internal/entity"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/fixedpoint"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/storage"
	"github.com/yield-indexer/internal/types"
)

// AccrueYield returns the yield, in IBT units, that ytBalance earned while
// the IBT rate moved from lastRate to rateNow:
//
//	ytBalance * (rateNow - lastRate) / rateNow
//
// It is zero unless both rates are positive and the rate grew.
func AccrueYield(ytBalance, lastRate, rateNow *big.Int) *big.Int {
	if ytBalance == nil || ytBalance.Sign() <= 0 || lastRate == nil || lastRate.Sign() <= 0 ||
		rateNow == nil || rateNow.Sign() <= 0 || rateNow.Cmp(lastRate) <= 0 {
		return new(big.Int)
	}
	growth := new(big.Int).Sub(rateNow, lastRate)
	return fixedpoint.MulDiv(ytBalance, growth, rateNow)
}

func (l *Ledger) yieldRow(ctx context.Context, future *models.Future, account common.Address, env events.Envelope) (*models.AccountAsset, error) {
	ibt := common.HexToAddress(future.IBT)
	id := ids.YieldAccountAsset(account, ibt)
	row, ok, err := storage.Get[*models.AccountAsset](ctx, l.session, models.KindAccountAsset, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		row = &models.AccountAsset{
			ID:             id,
			Account:        ids.Address(account),
			Asset:          future.IBT,
			Type:           types.AssetYield,
			Balance:        new(big.Int),
			Future:         future.Address,
			CreatedAtBlock: env.BlockNumber,
		}
	}
	if err := l.addPosition(ctx, account, id, env); err != nil {
		return nil, err
	}
	return row, nil
}

// UpdateYield accrues the yield of a YT holder up to the future's current
// IBT rate, then refreshes the holder's YT spot balance. The accrual uses
// the YT balance stored before this refresh, which is the balance that
// earned the yield. The caller refreshes the future's rates first.
func (l *Ledger) UpdateYield(ctx context.Context, future *models.Future, account common.Address, env events.Envelope) (*models.AccountAsset, error) {
	if entity.IsZero(account) || future.YT == "" || future.IBT == "" {
		return nil, nil
	}
	yt := common.HexToAddress(future.YT)

	row, err := l.yieldRow(ctx, future, account, env)
	if err != nil {
		return nil, err
	}

	ytBefore, err := l.SpotBalance(ctx, account, yt)
	if err != nil {
		return nil, err
	}
	rateNow := fixedpoint.Copy(future.IBTRate)
	accrued := AccrueYield(ytBefore, row.LastRate, rateNow)
	row.Balance = new(big.Int).Add(row.BalanceOrZero(), accrued)
	if rateNow.Sign() > 0 {
		row.LastRate = rateNow
	}

	spot, err := l.UpdateSpotBalance(ctx, account, yt, env)
	if err != nil {
		return nil, err
	}
	ytNow := new(big.Int)
	if spot != nil {
		ytNow = spot.BalanceOrZero()
	}
	return l.finishYield(future, row, ytNow, env), nil
}

// SetYield overwrites the yield of account with the value the future
// reported, resetting the accrual baseline to the current rate
func (l *Ledger) SetYield(ctx context.Context, future *models.Future, account common.Address, yieldInIBT *big.Int, env events.Envelope) (*models.AccountAsset, error) {
	if entity.IsZero(account) || future.IBT == "" {
		return nil, nil
	}
	row, err := l.yieldRow(ctx, future, account, env)
	if err != nil {
		return nil, err
	}
	row.Balance = fixedpoint.Copy(yieldInIBT)
	if future.IBTRate != nil && future.IBTRate.Sign() > 0 {
		row.LastRate = fixedpoint.Copy(future.IBTRate)
	}
	ytNow, err := l.SpotBalance(ctx, account, common.HexToAddress(future.YT))
	if err != nil {
		return nil, err
	}
	return l.finishYield(future, row, ytNow, env), nil
}

// ClaimYield settles a claim: the stored yield becomes what the future
// still owes the holder, which is normally zero
func (l *Ledger) ClaimYield(ctx context.Context, future *models.Future, account common.Address, env events.Envelope) (*models.AccountAsset, error) {
	if entity.IsZero(account) {
		return nil, nil
	}
	owed := l.resolver.Reader().TryCurrentYieldOfUserInIBT(ctx, common.HexToAddress(future.Address), account)
	return l.SetYield(ctx, future, account, owed, env)
}

// SweepYield accrues yield for every holder the future has ever flagged
func (l *Ledger) SweepYield(ctx context.Context, future *models.Future, env events.Envelope) (int, error) {
	generators := append([]string(nil), future.YieldGenerators...)
	swept := 0
	for _, id := range generators {
		row, ok, err := storage.Get[*models.AccountAsset](ctx, l.session, models.KindAccountAsset, id)
		if err != nil {
			return swept, err
		}
		if !ok {
			l.logger.WithFields(map[string]interface{}{
				logging.FieldContract: future.Address,
				"position":            id,
			}).Warn("yield generator row missing, skipping")
			continue
		}
		if _, err := l.UpdateYield(ctx, future, common.HexToAddress(row.Account), env); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// finishYield sets the generated-yield flag and records the row on the
// future once it has ever generated yield. The registry only grows.
func (l *Ledger) finishYield(future *models.Future, row *models.AccountAsset, ytNow *big.Int, env events.Envelope) *models.AccountAsset {
	row.GeneratedYield = ytNow.Sign() > 0 || row.BalanceOrZero().Sign() > 0
	row.UpdatedAtBlock = env.BlockNumber
	row.UpdatedAtTimestamp = env.BlockTimestamp
	l.session.Save(row)

	if row.GeneratedYield && future.AddYieldGenerator(row.ID) {
		l.session.Save(future)
	}
	return row
}
