package models

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/yield-indexer/internal/types"
)

// FutureDailyStats is the per-future, per-day statistics bucket.
//
// IBTRateMA is the floor of the mean IBT rate seen that day and
// IBTRateRemainder carries the fraction, so IBTRateMA*DailyUpdates +
// IBTRateRemainder is the exact sum of observed rates.
type FutureDailyStats struct {
	ID                   string          `json:"id"`
	Future               string          `json:"future"`
	DayID                int64           `json:"dayId"`
	Date                 uint64          `json:"date"`
	IBTRateMA            *big.Int        `json:"ibtRateMA"`
	IBTRateRemainder     *big.Int        `json:"ibtRateRemainder"`
	LastIBTRate          *big.Int        `json:"lastIbtRate"`
	DailyUpdates         int64           `json:"dailyUpdates"`
	RealizedAPR7D        decimal.Decimal `json:"realizedAPR7D"`
	RealizedAPR30D       decimal.Decimal `json:"realizedAPR30D"`
	RealizedAPR90D       decimal.Decimal `json:"realizedAPR90D"`
	DailyDeposits        int64           `json:"dailyDeposits"`
	DailyWithdrawals     int64           `json:"dailyWithdrawals"`
	DailySwaps           int64           `json:"dailySwaps"`
	DailyAddLiquidity    int64           `json:"dailyAddLiquidity"`
	DailyRemoveLiquidity int64           `json:"dailyRemoveLiquidity"`
	UpdatedAtBlock       uint64          `json:"updatedAtBlock"`
}

func (s *FutureDailyStats) EntityKind() Kind { return KindFutureDailyStats }
func (s *FutureDailyStats) EntityID() string { return s.ID }

// Count bumps the counter for action
func (s *FutureDailyStats) Count(action types.StatsAction) {
	switch action {
	case types.ActionDeposit:
		s.DailyDeposits++
	case types.ActionWithdrawal:
		s.DailyWithdrawals++
	case types.ActionSwap:
		s.DailySwaps++
	case types.ActionAddLiquidity:
		s.DailyAddLiquidity++
	case types.ActionRemoveLiquidity:
		s.DailyRemoveLiquidity++
	}
}

// APRInTime is a write-once snapshot of a pool's implied fixed rate
type APRInTime struct {
	ID          string          `json:"id"`
	Pool        string          `json:"pool"`
	Future      string          `json:"future"`
	Timestamp   uint64          `json:"timestamp"`
	BlockNumber uint64          `json:"blockNumber"`
	SpotPrice   *big.Int        `json:"spotPrice"`
	IBTRate     *big.Int        `json:"ibtRate"`
	PTRate      *big.Int        `json:"ptRate"`
	APR         decimal.Decimal `json:"apr"`
}

func (a *APRInTime) EntityKind() Kind { return KindAPRInTime }
func (a *APRInTime) EntityID() string { return a.ID }
func (a *APRInTime) writeOnce()       {}

// APYInTime is a write-once snapshot of a future's variable yield
type APYInTime struct {
	ID          string          `json:"id"`
	Future      string          `json:"future"`
	Timestamp   uint64          `json:"timestamp"`
	BlockNumber uint64          `json:"blockNumber"`
	IBTRate     *big.Int        `json:"ibtRate"`
	PTRate      *big.Int        `json:"ptRate"`
	APY         decimal.Decimal `json:"apy"`
}

func (a *APYInTime) EntityKind() Kind { return KindAPYInTime }
func (a *APYInTime) EntityID() string { return a.ID }
func (a *APYInTime) writeOnce()       {}
