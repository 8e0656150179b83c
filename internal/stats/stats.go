// Package stats maintains the per-future daily statistics buckets and the
// write-once APR/APY time series.
package stats

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/yield-indexer/internal/entity"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/fixedpoint"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/storage"
	"github.com/yield-indexer/internal/types"
)

// Windows are the trailing day counts realized APR is computed over
var Windows = []int64{7, 30, 90}

// SecondsPerYear annualizes rates observed over seconds
const SecondsPerYear = 365 * 86400

var daysPerYear = decimal.NewFromInt(365)

// Engine updates statistics inside one event's session
type Engine struct {
	resolver *entity.Resolver
	session  *storage.Session
	logger   *logging.Logger
}

// New creates an engine writing through resolver's session
func New(resolver *entity.Resolver, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Engine{
		resolver: resolver,
		session:  resolver.Session(),
		logger:   logger.ForSubsystem("stats"),
	}
}

// RealizedAPR annualizes the growth from past to current over days:
//
//	(current - past) / past * 365 / days
//
// It is zero when past is missing or zero.
func RealizedAPR(current, past *big.Int, days int64) decimal.Decimal {
	if past == nil || past.Sign() == 0 || current == nil || days <= 0 {
		return decimal.Zero
	}
	growth := fixedpoint.Ratio(new(big.Int).Sub(current, past), past)
	return growth.Mul(daysPerYear).DivRound(decimal.NewFromInt(days), fixedpoint.RatioPlaces)
}

// Touch records one action against the future's bucket for the event day.
// The bucket's mean IBT rate absorbs the current rate and the realized APR
// of every window is recomputed against the bucket that many days back.
func (e *Engine) Touch(ctx context.Context, future *models.Future, action types.StatsAction, env events.Envelope) (*models.FutureDailyStats, error) {
	pt := common.HexToAddress(future.Address)
	day := ids.DayID(env.BlockTimestamp)

	bucket, err := e.bucket(ctx, pt, day)
	if err != nil {
		return nil, err
	}

	rate := e.resolver.Reader().TryIBTRate(ctx, pt)
	bucket.DailyUpdates++
	bucket.IBTRateMA, bucket.IBTRateRemainder = fixedpoint.IncrementalMean(bucket.IBTRateMA, bucket.IBTRateRemainder, rate, bucket.DailyUpdates)
	bucket.LastIBTRate = rate

	for _, w := range Windows {
		apr, err := e.windowAPR(ctx, pt, day, w, rate)
		if err != nil {
			return nil, err
		}
		switch w {
		case 7:
			bucket.RealizedAPR7D = apr
		case 30:
			bucket.RealizedAPR30D = apr
		case 90:
			bucket.RealizedAPR90D = apr
		}
	}

	bucket.Count(action)
	bucket.UpdatedAtBlock = env.BlockNumber
	e.session.Save(bucket)
	return bucket, nil
}

func (e *Engine) bucket(ctx context.Context, pt common.Address, day int64) (*models.FutureDailyStats, error) {
	id := ids.DailyStats(pt, day)
	bucket, ok, err := storage.Get[*models.FutureDailyStats](ctx, e.session, models.KindFutureDailyStats, id)
	if err != nil || ok {
		return bucket, err
	}
	return &models.FutureDailyStats{
		ID:               id,
		Future:           ids.Address(pt),
		DayID:            day,
		Date:             uint64(day * ids.SecondsPerDay),
		IBTRateMA:        new(big.Int),
		IBTRateRemainder: new(big.Int),
		LastIBTRate:      new(big.Int),
	}, nil
}

func (e *Engine) windowAPR(ctx context.Context, pt common.Address, day, window int64, rate *big.Int) (decimal.Decimal, error) {
	past, ok, err := storage.Get[*models.FutureDailyStats](ctx, e.session, models.KindFutureDailyStats, ids.DailyStats(pt, day-window))
	if err != nil || !ok {
		return decimal.Zero, err
	}
	return RealizedAPR(rate, past.IBTRateMA, window), nil
}
