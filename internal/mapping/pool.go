package mapping

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-indexer/internal/adapter"
	"github.com/yield-indexer/internal/amm"
	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/fixedpoint"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/types"
)

// lpDecimals is the precision of pool LP tokens
const lpDecimals = 18

// coinIndex validates an event coin index
func coinIndex(p *models.Pool, v *big.Int) (int, error) {
	if v == nil || !v.IsInt64() || v.Int64() < 0 || v.Int64() > 1 {
		return 0, apperrors.NewInvariantError("pool %s has no coin %v", p.Address, v)
	}
	return int(v.Int64()), nil
}

// coinDecimals returns the decimals of coin i, defaulting when the asset is unknown
func (u *unit) coinDecimals(ctx context.Context, p *models.Pool, i int) (uint8, error) {
	a, ok, err := u.LoadAsset(ctx, addr(p.Coins[i]))
	if err != nil {
		return 0, err
	}
	if !ok {
		return adapter.DefaultDecimals, nil
	}
	return a.Decimals, nil
}

// afterPoolAction refreshes the pool and, for an indexed future, its stats
// and implied rate snapshot
func (u *unit) afterPoolAction(ctx context.Context, p *models.Pool, action types.StatsAction, env events.Envelope) error {
	p.TransactionCount++
	supply := p.LPTotalSupply
	u.RefreshPool(ctx, p)
	if supply != nil && p.LPTotalSupply.Sign() == 0 {
		// an LP token without a readable supply keeps the event-derived value
		p.LPTotalSupply = supply
	}

	f, err := u.poolFuture(ctx, p)
	if err != nil || f == nil {
		return err
	}
	u.UpdateFutureRates(ctx, f)
	if _, err := u.stats.Touch(ctx, f, action, env); err != nil {
		return err
	}
	_, err = u.stats.SnapshotPoolAPR(ctx, p, f, env)
	return err
}

func (u *unit) onAddLiquidity(ctx context.Context, e *events.AddLiquidity) error {
	p, err := u.pool(ctx, e.Contract)
	if err != nil {
		return err
	}

	tx := newTransaction(e.Envelope, types.TxAddLiquidity)
	tx.Pool = p.Address
	tx.Future = p.Future
	for i, amount := range e.TokenAmounts {
		if _, err := u.ledger.AdjustReserve(ctx, p, i, amount, e.Envelope); err != nil {
			return err
		}
		if err := u.flowIn(ctx, tx, addr(p.Coins[i]), amount, e.Envelope); err != nil {
			return err
		}
	}

	lp := addr(p.LPToken)
	minted := amm.Minted(p.LPTotalSupply, e.TokenSupply)
	if err := u.flowOut(ctx, tx, lp, minted, e.Envelope); err != nil {
		return err
	}
	p.LPTotalSupply = fixedpoint.Copy(e.TokenSupply)

	fee := fixedpoint.Copy(e.Fee)
	adminFee := amm.AdminShare(fee, p.AdminFee, lpDecimals)
	p.AddLPFees(fee, adminFee)
	tx.Fee, tx.AdminFee = fee, adminFee

	if err := u.spot(ctx, e.Provider, e.Envelope, addr(p.Coins[0]), addr(p.Coins[1]), lp); err != nil {
		return err
	}
	if err := u.afterPoolAction(ctx, p, types.ActionAddLiquidity, e.Envelope); err != nil {
		return err
	}
	return u.record(ctx, tx)
}

func (u *unit) onRemoveLiquidity(ctx context.Context, e *events.RemoveLiquidity) error {
	p, err := u.pool(ctx, e.Contract)
	if err != nil {
		return err
	}

	tx := newTransaction(e.Envelope, types.TxRemoveLiquidity)
	tx.Pool = p.Address
	tx.Future = p.Future
	for i, amount := range e.TokenAmounts {
		if _, err := u.ledger.AdjustReserve(ctx, p, i, new(big.Int).Neg(fixedpoint.Copy(amount)), e.Envelope); err != nil {
			return err
		}
		if err := u.flowOut(ctx, tx, addr(p.Coins[i]), amount, e.Envelope); err != nil {
			return err
		}
	}

	lp := addr(p.LPToken)
	if err := u.flowIn(ctx, tx, lp, amm.Burned(p.LPTotalSupply, e.TokenSupply), e.Envelope); err != nil {
		return err
	}
	p.LPTotalSupply = fixedpoint.Copy(e.TokenSupply)

	if err := u.spot(ctx, e.Provider, e.Envelope, addr(p.Coins[0]), addr(p.Coins[1]), lp); err != nil {
		return err
	}
	if err := u.afterPoolAction(ctx, p, types.ActionRemoveLiquidity, e.Envelope); err != nil {
		return err
	}
	return u.record(ctx, tx)
}

func (u *unit) onRemoveLiquidityOne(ctx context.Context, e *events.RemoveLiquidityOne) error {
	p, err := u.pool(ctx, e.Contract)
	if err != nil {
		return err
	}
	i, err := coinIndex(p, e.CoinIndex)
	if err != nil {
		return err
	}

	tx := newTransaction(e.Envelope, types.TxRemoveLiquidityOne)
	tx.Pool = p.Address
	tx.Future = p.Future
	if _, err := u.ledger.AdjustReserve(ctx, p, i, new(big.Int).Neg(fixedpoint.Copy(e.CoinAmount)), e.Envelope); err != nil {
		return err
	}
	coin, lp := addr(p.Coins[i]), addr(p.LPToken)
	if err := u.flowIn(ctx, tx, lp, e.TokenAmount, e.Envelope); err != nil {
		return err
	}
	if err := u.flowOut(ctx, tx, coin, e.CoinAmount, e.Envelope); err != nil {
		return err
	}
	p.LPTotalSupply = new(big.Int).Sub(fixedpoint.Copy(p.LPTotalSupply), fixedpoint.Copy(e.TokenAmount))
	if p.LPTotalSupply.Sign() < 0 {
		p.LPTotalSupply = new(big.Int)
	}

	decimals, err := u.coinDecimals(ctx, p, i)
	if err != nil {
		return err
	}
	fee, adminFee := amm.SwapFee(e.CoinAmount, p.Fee, p.AdminFee, decimals)
	p.AddFees(i, fee, adminFee)
	tx.Fee, tx.AdminFee = fee, adminFee

	if err := u.spot(ctx, e.Provider, e.Envelope, coin, lp); err != nil {
		return err
	}
	if err := u.afterPoolAction(ctx, p, types.ActionRemoveLiquidity, e.Envelope); err != nil {
		return err
	}
	return u.record(ctx, tx)
}

// onTokenExchange books a swap. The sold coin's reserve grows by what came
// in and the bought coin's reserve shrinks by what left; the fee is
// recovered from the bought amount and charged in the bought coin.
func (u *unit) onTokenExchange(ctx context.Context, e *events.TokenExchange) error {
	p, err := u.pool(ctx, e.Contract)
	if err != nil {
		return err
	}
	sold, err := coinIndex(p, e.SoldID)
	if err != nil {
		return err
	}
	bought, err := coinIndex(p, e.BoughtID)
	if err != nil {
		return err
	}
	if sold == bought {
		return apperrors.NewInvariantError("pool %s exchange sells and buys coin %d", p.Address, sold)
	}

	tx := newTransaction(e.Envelope, types.TxSwap)
	tx.Pool = p.Address
	tx.Future = p.Future
	if _, err := u.ledger.AdjustReserve(ctx, p, sold, e.TokensSold, e.Envelope); err != nil {
		return err
	}
	if _, err := u.ledger.AdjustReserve(ctx, p, bought, new(big.Int).Neg(fixedpoint.Copy(e.TokensBought)), e.Envelope); err != nil {
		return err
	}
	soldAsset, boughtAsset := addr(p.Coins[sold]), addr(p.Coins[bought])
	if err := u.flowIn(ctx, tx, soldAsset, e.TokensSold, e.Envelope); err != nil {
		return err
	}
	if err := u.flowOut(ctx, tx, boughtAsset, e.TokensBought, e.Envelope); err != nil {
		return err
	}

	decimals, err := u.coinDecimals(ctx, p, bought)
	if err != nil {
		return err
	}
	fee, adminFee := amm.SwapFee(e.TokensBought, p.Fee, p.AdminFee, decimals)
	p.AddFees(bought, fee, adminFee)
	tx.Fee, tx.AdminFee = fee, adminFee

	if err := u.spot(ctx, e.Buyer, e.Envelope, soldAsset, boughtAsset); err != nil {
		return err
	}
	if err := u.afterPoolAction(ctx, p, types.ActionSwap, e.Envelope); err != nil {
		return err
	}
	return u.record(ctx, tx)
}

// onCommitNewParameters stages a fee change until its deadline
func (u *unit) onCommitNewParameters(ctx context.Context, e *events.CommitNewParameters) error {
	p, err := u.pool(ctx, e.Contract)
	if err != nil {
		return err
	}
	p.FutureFee = fixedpoint.Copy(e.MidFee)
	p.FutureAdminFee = fixedpoint.Copy(e.AdminFee)
	p.AdminFeeDeadline = fixedpoint.Copy(e.Deadline).Uint64()
	u.session.Save(p)
	return nil
}

// onNewParameters applies a fee change and clears the staged one
func (u *unit) onNewParameters(ctx context.Context, e *events.NewParameters) error {
	p, err := u.pool(ctx, e.Contract)
	if err != nil {
		return err
	}
	p.Fee = fixedpoint.Copy(e.MidFee)
	p.AdminFee = fixedpoint.Copy(e.AdminFee)
	p.FutureFee = nil
	p.FutureAdminFee = nil
	p.AdminFeeDeadline = 0
	u.session.Save(p)
	return nil
}

// onClaimAdminFee books LP tokens minted to the factory's fee receiver
func (u *unit) onClaimAdminFee(ctx context.Context, e *events.ClaimAdminFee) error {
	p, err := u.pool(ctx, e.Contract)
	if err != nil {
		return err
	}
	p.TotalClaimedAdminFees = new(big.Int).Add(fixedpoint.Copy(p.TotalClaimedAdminFees), fixedpoint.Copy(e.Tokens))
	p.LPTotalSupply = new(big.Int).Add(fixedpoint.Copy(p.LPTotalSupply), fixedpoint.Copy(e.Tokens))
	u.session.Save(p)

	receiver := e.Admin
	if p.Factory != "" {
		factory, ok, err := u.LoadFactory(ctx, addr(p.Factory))
		if err != nil {
			return err
		}
		if ok && factory.FeeReceiver != "" && addr(factory.FeeReceiver) != (common.Address{}) {
			receiver = addr(factory.FeeReceiver)
		}
	}

	lp := addr(p.LPToken)
	tx := newTransaction(e.Envelope, types.TxClaimAdminFee)
	tx.Pool = p.Address
	tx.Future = p.Future
	tx.AdminFee = fixedpoint.Copy(e.Tokens)
	if err := u.flowOut(ctx, tx, lp, e.Tokens, e.Envelope); err != nil {
		return err
	}
	if err := u.spot(ctx, receiver, e.Envelope, lp); err != nil {
		return err
	}
	return u.record(ctx, tx)
}
