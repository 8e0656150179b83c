// Package amm holds the fee arithmetic of the two-coin pools. Pool fee
// rates are expressed at FeePrecision implied decimals (1e10 == 100%).
package amm

import (
	"math/big"

	"github.com/yield-indexer/internal/fixedpoint"
)

// FeePrecision is the implied decimals of pool fee and admin fee rates
const FeePrecision = 10

// SwapFee recovers the fee of an exchange from the net amount bought.
//
// The event reports only what left the pool, so the pre-fee amount is
// amountWithFee = bought * 10^d / (10^d - feeScaled), the fee is the
// difference and the admin share is fee * adminFeeScaled / 10^d, where d is
// the bought coin's decimals. A fee rate of 100% or more yields zero.
func SwapFee(bought, feeRate, adminFeeRate *big.Int, decimals uint8) (fee, adminFee *big.Int) {
	if bought == nil || bought.Sign() <= 0 || feeRate == nil || feeRate.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}

	d := uint(decimals)
	one := fixedpoint.One(d)
	feeScaled := fixedpoint.ToPrecision(feeRate, FeePrecision, d)

	denominator := new(big.Int).Sub(one, feeScaled)
	if denominator.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}

	amountWithFee := fixedpoint.MulDiv(bought, one, denominator)
	fee = new(big.Int).Sub(amountWithFee, bought)
	return fee, AdminShare(fee, adminFeeRate, decimals)
}

// AdminShare returns the admin portion of fee at the given decimals
func AdminShare(fee, adminFeeRate *big.Int, decimals uint8) *big.Int {
	if fee == nil || fee.Sign() <= 0 || adminFeeRate == nil || adminFeeRate.Sign() <= 0 {
		return new(big.Int)
	}
	d := uint(decimals)
	adminScaled := fixedpoint.ToPrecision(adminFeeRate, FeePrecision, d)
	return fixedpoint.MulDiv(fee, adminScaled, fixedpoint.One(d))
}

// Minted returns how many LP tokens a liquidity change created, given the
// supply before and after. Burns yield zero.
func Minted(before, after *big.Int) *big.Int {
	diff := new(big.Int).Sub(fixedpoint.Copy(after), fixedpoint.Copy(before))
	if diff.Sign() < 0 {
		return new(big.Int)
	}
	return diff
}

// Burned returns how many LP tokens a liquidity change destroyed
func Burned(before, after *big.Int) *big.Int {
	return Minted(after, before)
}
