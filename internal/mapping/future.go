package mapping

import (
	"context"
	"math/big"

	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/fixedpoint"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/types"
)

// ptToIBT converts an amount of PT (equal to the YT minted or burned with
// it) to IBT at the future's current rates
func ptToIBT(f *models.Future, shares *big.Int) *big.Int {
	return fixedpoint.MulDiv(shares, f.PTRate, f.IBTRate)
}

// tokenizationFee is the fee charged in IBT on a deposit of ibts
func tokenizationFee(f *models.Future, ibts *big.Int) *big.Int {
	return fixedpoint.MulDiv(ibts, f.TokenizationFee, fixedpoint.One(fixedpoint.RateDecimals))
}

// onMint records a deposit: IBT (plus the tokenization fee) goes in, PT and
// YT come out to the receiver
func (u *unit) onMint(ctx context.Context, e *events.Mint) error {
	f, err := u.future(ctx, e.Contract)
	if err != nil {
		return err
	}
	u.UpdateFutureRates(ctx, f)

	ibt, pt, yt := addr(f.IBT), addr(f.Address), addr(f.YT)
	net := ptToIBT(f, e.Amount)
	fee := tokenizationFee(f, net)
	f.UnclaimedFees = new(big.Int).Add(fixedpoint.Copy(f.UnclaimedFees), fee)
	u.session.Save(f)

	tx := newTransaction(e.Envelope, types.TxDeposit)
	tx.Future = f.Address
	tx.Fee = fee
	if err := u.flowIn(ctx, tx, ibt, new(big.Int).Add(net, fee), e.Envelope); err != nil {
		return err
	}
	if err := u.flowOut(ctx, tx, pt, e.Amount, e.Envelope); err != nil {
		return err
	}
	if err := u.flowOut(ctx, tx, yt, e.Amount, e.Envelope); err != nil {
		return err
	}

	if _, err := u.ledger.UpdateYield(ctx, f, e.To, e.Envelope); err != nil {
		return err
	}
	if err := u.spot(ctx, e.To, e.Envelope, pt); err != nil {
		return err
	}
	if err := u.spot(ctx, e.From, e.Envelope, ibt, addr(f.Underlying)); err != nil {
		return err
	}
	if err := u.record(ctx, tx); err != nil {
		return err
	}

	if _, err := u.stats.Touch(ctx, f, types.ActionDeposit, e.Envelope); err != nil {
		return err
	}
	_, err = u.stats.SnapshotFutureAPY(ctx, f, e.Envelope)
	return err
}

// onRedeem records a withdrawal: PT (and YT before expiry) goes in, IBT
// comes out to the receiver
func (u *unit) onRedeem(ctx context.Context, e *events.Redeem) error {
	f, err := u.future(ctx, e.Contract)
	if err != nil {
		return err
	}
	u.UpdateFutureRates(ctx, f)

	ibt, pt, yt := addr(f.IBT), addr(f.Address), addr(f.YT)
	tx := newTransaction(e.Envelope, types.TxWithdraw)
	tx.Future = f.Address
	if err := u.flowIn(ctx, tx, pt, e.Amount, e.Envelope); err != nil {
		return err
	}
	if f.State != types.FutureExpired {
		if err := u.flowIn(ctx, tx, yt, e.Amount, e.Envelope); err != nil {
			return err
		}
	}
	if err := u.flowOut(ctx, tx, ibt, ptToIBT(f, e.Amount), e.Envelope); err != nil {
		return err
	}

	if _, err := u.ledger.UpdateYield(ctx, f, e.From, e.Envelope); err != nil {
		return err
	}
	if err := u.spot(ctx, e.From, e.Envelope, pt); err != nil {
		return err
	}
	if err := u.spot(ctx, e.To, e.Envelope, ibt, addr(f.Underlying)); err != nil {
		return err
	}
	if err := u.record(ctx, tx); err != nil {
		return err
	}

	if _, err := u.stats.Touch(ctx, f, types.ActionWithdrawal, e.Envelope); err != nil {
		return err
	}
	_, err = u.stats.SnapshotFutureAPY(ctx, f, e.Envelope)
	return err
}

func (u *unit) onYieldUpdated(ctx context.Context, e *events.YieldUpdated) error {
	f, err := u.future(ctx, e.Contract)
	if err != nil {
		return err
	}
	u.UpdateFutureRates(ctx, f)
	_, err = u.ledger.SetYield(ctx, f, e.User, e.YieldInIBT, e.Envelope)
	return err
}

func (u *unit) onYieldClaimed(ctx context.Context, e *events.YieldClaimed) error {
	f, err := u.future(ctx, e.Contract)
	if err != nil {
		return err
	}
	u.UpdateFutureRates(ctx, f)

	if _, err := u.ledger.ClaimYield(ctx, f, e.Owner, e.Envelope); err != nil {
		return err
	}
	ibt := addr(f.IBT)
	if err := u.spot(ctx, e.Receiver, e.Envelope, ibt); err != nil {
		return err
	}

	tx := newTransaction(e.Envelope, types.TxClaimYield)
	tx.Future = f.Address
	if err := u.flowOut(ctx, tx, ibt, e.YieldInIBT, e.Envelope); err != nil {
		return err
	}
	return u.record(ctx, tx)
}

// onFeeClaimed moves redeemed tokenization fees from unclaimed to collected
func (u *unit) onFeeClaimed(ctx context.Context, e *events.FeeClaimed) error {
	f, err := u.future(ctx, e.Contract)
	if err != nil {
		return err
	}

	redeemed := fixedpoint.Copy(e.RedeemedIBTs)
	unclaimed := new(big.Int).Sub(fixedpoint.Copy(f.UnclaimedFees), redeemed)
	if unclaimed.Sign() < 0 {
		u.logger.WithField("unclaimed", fixedpoint.Copy(f.UnclaimedFees).String()).
			Warn("fee claim exceeds tracked unclaimed fees")
		unclaimed = new(big.Int)
	}
	f.UnclaimedFees = unclaimed
	f.TotalCollectedFees = new(big.Int).Add(fixedpoint.Copy(f.TotalCollectedFees), redeemed)
	u.session.Save(f)

	tx := newTransaction(e.Envelope, types.TxClaimFees)
	tx.Future = f.Address
	tx.Fee = redeemed
	if err := u.flowOut(ctx, tx, addr(f.IBT), redeemed, e.Envelope); err != nil {
		return err
	}
	return u.record(ctx, tx)
}

func (u *unit) onPaused(ctx context.Context, e *events.Paused) error {
	f, err := u.future(ctx, e.Contract)
	if err != nil {
		return err
	}
	f.State = types.FuturePaused
	u.UpdateFutureRates(ctx, f)
	return u.sweep(ctx, f, e.Envelope)
}

func (u *unit) onUnpaused(ctx context.Context, e *events.Unpaused) error {
	f, err := u.future(ctx, e.Contract)
	if err != nil {
		return err
	}
	f.State = types.FutureActive
	u.session.Save(f)
	return nil
}

func (u *unit) onRatesStoredAtExpiry(ctx context.Context, e *events.RatesStoredAtExpiry) error {
	f, err := u.future(ctx, e.Contract)
	if err != nil {
		return err
	}
	f.State = types.FutureExpired
	f.ExpiryIBTRate = fixedpoint.Copy(e.IBTRate)
	f.ExpiryPTRate = fixedpoint.Copy(e.PTRate)
	u.UpdateFutureRates(ctx, f)
	return u.sweep(ctx, f, e.Envelope)
}

func (u *unit) sweep(ctx context.Context, f *models.Future, env events.Envelope) error {
	n, err := u.ledger.SweepYield(ctx, f, env)
	if err != nil {
		return err
	}
	u.logger.WithField("positions", n).Info("yield swept")
	return nil
}
