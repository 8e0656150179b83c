package stats

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/fixedpoint"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/storage"
)

var secondsPerYear = decimal.NewFromInt(SecondsPerYear)

// ImpliedAPR returns the fixed rate a PT priced at ptPrice (underlying per
// PT, 1e18 scaled) locks in until maturity:
//
//	(1/ptPrice - 1) * year / timeToMaturity
//
// It is zero for a zero price or a non-positive time to maturity.
func ImpliedAPR(ptPrice *big.Int, timeToMaturity int64) decimal.Decimal {
	if ptPrice == nil || ptPrice.Sign() <= 0 || timeToMaturity <= 0 {
		return decimal.Zero
	}
	price := fixedpoint.ToDecimal(ptPrice, fixedpoint.RateDecimals)
	discount := fixedpoint.DivDecimal(decimal.NewFromInt(1), price).Sub(decimal.NewFromInt(1))
	return discount.Mul(secondsPerYear).DivRound(decimal.NewFromInt(timeToMaturity), fixedpoint.RatioPlaces)
}

// GrowthAPY annualizes the rate growth between two readings dt seconds apart.
// It is zero when the earlier rate is zero or dt is not positive.
func GrowthAPY(prevRate, rate *big.Int, dt int64) decimal.Decimal {
	if prevRate == nil || prevRate.Sign() == 0 || rate == nil || dt <= 0 {
		return decimal.Zero
	}
	growth := fixedpoint.Ratio(new(big.Int).Sub(rate, prevRate), prevRate)
	return growth.Mul(secondsPerYear).DivRound(decimal.NewFromInt(dt), fixedpoint.RatioPlaces)
}

// SnapshotPoolAPR records the pool's implied fixed APR at the event time.
// The spot price is PT in IBT; it is converted to underlying with the
// future's IBT rate. A snapshot already taken at that timestamp is kept.
func (e *Engine) SnapshotPoolAPR(ctx context.Context, pool *models.Pool, future *models.Future, env events.Envelope) (*models.APRInTime, error) {
	addr := common.HexToAddress(pool.Address)
	id := ids.TimeSeries(addr, env.BlockTimestamp)
	if existing, ok, err := storage.Get[*models.APRInTime](ctx, e.session, models.KindAPRInTime, id); err != nil || ok {
		return existing, err
	}

	spot := fixedpoint.Copy(pool.SpotPrice)
	ibtRate := fixedpoint.Copy(future.IBTRate)
	ptPrice := fixedpoint.MulDiv(spot, ibtRate, fixedpoint.One(fixedpoint.RateDecimals))
	ttm := int64(future.Expiration) - int64(env.BlockTimestamp)

	snap := &models.APRInTime{
		ID:          id,
		Pool:        pool.Address,
		Future:      future.Address,
		Timestamp:   env.BlockTimestamp,
		BlockNumber: env.BlockNumber,
		SpotPrice:   spot,
		IBTRate:     ibtRate,
		PTRate:      fixedpoint.Copy(future.PTRate),
		APR:         ImpliedAPR(ptPrice, ttm),
	}
	if _, err := e.session.Insert(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// SnapshotFutureAPY records the future's variable APY, the annualized IBT
// rate growth since its previous snapshot. The first snapshot has zero APY.
func (e *Engine) SnapshotFutureAPY(ctx context.Context, future *models.Future, env events.Envelope) (*models.APYInTime, error) {
	addr := common.HexToAddress(future.Address)
	id := ids.TimeSeries(addr, env.BlockTimestamp)
	if existing, ok, err := storage.Get[*models.APYInTime](ctx, e.session, models.KindAPYInTime, id); err != nil || ok {
		return existing, err
	}

	rate := fixedpoint.Copy(future.IBTRate)
	apy := decimal.Zero
	if future.LastAPYSnapshot != "" {
		prev, ok, err := storage.Get[*models.APYInTime](ctx, e.session, models.KindAPYInTime, future.LastAPYSnapshot)
		if err != nil {
			return nil, err
		}
		if ok {
			apy = GrowthAPY(prev.IBTRate, rate, int64(env.BlockTimestamp)-int64(prev.Timestamp))
		} else {
			e.logger.WithFields(map[string]interface{}{
				logging.FieldContract: future.Address,
				"snapshot":            future.LastAPYSnapshot,
			}).Warn("previous APY snapshot missing")
		}
	}

	snap := &models.APYInTime{
		ID:          id,
		Future:      future.Address,
		Timestamp:   env.BlockTimestamp,
		BlockNumber: env.BlockNumber,
		IBTRate:     rate,
		PTRate:      fixedpoint.Copy(future.PTRate),
		APY:         apy,
	}
	if _, err := e.session.Insert(ctx, snap); err != nil {
		return nil, err
	}
	future.LastAPYSnapshot = id
	e.session.Save(future)
	return snap, nil
}
