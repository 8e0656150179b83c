package models

import (
	"math/big"
)

// Coin indices of a two-coin pool
const (
	CoinIBT = 0
	CoinPT  = 1
)

// Pool is a two-coin AMM pool trading an IBT against a PT.
//
// Fee and AdminFee are expressed at 1e10 precision. Swap fee totals are kept
// per coin in that coin's native units; liquidity fees and admin fee claims
// are in LP token units.
type Pool struct {
	Address               string      `json:"address"`
	Factory               string      `json:"factory"`
	Future                string      `json:"future,omitempty"`
	LPToken               string      `json:"lpToken"`
	Coins                 [2]string   `json:"coins"`
	Legs                  [2]string   `json:"legs"`
	Fee                   *big.Int    `json:"fee"`
	AdminFee              *big.Int    `json:"adminFee"`
	FutureFee             *big.Int    `json:"futureFee,omitempty"`
	FutureAdminFee        *big.Int    `json:"futureAdminFee,omitempty"`
	AdminFeeDeadline      uint64      `json:"adminFeeDeadline,omitempty"`
	LPTotalSupply         *big.Int    `json:"lpTotalSupply"`
	SpotPrice             *big.Int    `json:"spotPrice"`
	TotalFees             [2]*big.Int `json:"totalFees"`
	TotalAdminFees        [2]*big.Int `json:"totalAdminFees"`
	TotalLPFees           *big.Int    `json:"totalLpFees"`
	TotalLPAdminFees      *big.Int    `json:"totalLpAdminFees"`
	TotalClaimedAdminFees *big.Int    `json:"totalClaimedAdminFees"`
	TransactionCount      int64       `json:"transactionCount"`
	CreatedAtBlock        uint64      `json:"createdAtBlock"`
	CreatedAtTimestamp    uint64      `json:"createdAtTimestamp"`
}

func (p *Pool) EntityKind() Kind { return KindPool }
func (p *Pool) EntityID() string { return p.Address }

// CoinIndex returns the index of asset among the pool coins, or -1
func (p *Pool) CoinIndex(asset string) int {
	for i, c := range p.Coins {
		if c == asset {
			return i
		}
	}
	return -1
}

// AddFees adds a fee and admin fee paid in coin i
func (p *Pool) AddFees(i int, fee, adminFee *big.Int) {
	p.TotalFees[i] = new(big.Int).Add(zero(p.TotalFees[i]), zero(fee))
	p.TotalAdminFees[i] = new(big.Int).Add(zero(p.TotalAdminFees[i]), zero(adminFee))
}

// AddLPFees adds a liquidity fee and its admin share, both in LP units
func (p *Pool) AddLPFees(fee, adminFee *big.Int) {
	p.TotalLPFees = new(big.Int).Add(zero(p.TotalLPFees), zero(fee))
	p.TotalLPAdminFees = new(big.Int).Add(zero(p.TotalLPAdminFees), zero(adminFee))
}

// HasPendingParameters reports whether a committed parameter change awaits application
func (p *Pool) HasPendingParameters() bool {
	return p.AdminFeeDeadline != 0
}
