// Package fixedpoint holds the scaled-integer helpers shared by the ledger,
// the statistics engine and the AMM fee accounting. Nothing here touches
// floating point.
package fixedpoint

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// RateDecimals is the implied precision of on-chain rates (1e18 == 1.0)
const RateDecimals = 18

// RatioPlaces is the number of decimal places kept when dividing into a decimal
const RatioPlaces = 18

const maxCachedPow = 77

var pow10Cache [maxCachedPow + 1]*big.Int

func init() {
	p := big.NewInt(1)
	ten := big.NewInt(10)
	for i := 0; i <= maxCachedPow; i++ {
		pow10Cache[i] = new(big.Int).Set(p)
		p.Mul(p, ten)
	}
}

// Pow10 returns a fresh 10^n. Callers may mutate the result.
func Pow10(n uint) *big.Int {
	if n <= maxCachedPow {
		return new(big.Int).Set(pow10Cache[n])
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// One returns 1.0 at the given precision
func One(decimals uint) *big.Int {
	return Pow10(decimals)
}

// ToPrecision rescales value from `from` implied decimals to `to`.
// Scaling down truncates toward zero.
func ToPrecision(value *big.Int, from, to uint) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	switch {
	case to > from:
		return new(big.Int).Mul(value, Pow10(to-from))
	case to < from:
		return new(big.Int).Quo(value, Pow10(from-to))
	default:
		return new(big.Int).Set(value)
	}
}

// IncrementalMean folds value into a running mean over count samples,
// count being the sample total including value.
//
// The fractional part is carried in rem, so after N updates
// avg*N + rem equals the exact sum and avg is the floor of the true mean.
// A count below one leaves the inputs unchanged.
func IncrementalMean(avg, rem, value *big.Int, count int64) (*big.Int, *big.Int) {
	if avg == nil {
		avg = new(big.Int)
	}
	if rem == nil {
		rem = new(big.Int)
	}
	if count < 1 {
		return new(big.Int).Set(avg), new(big.Int).Set(rem)
	}

	n := big.NewInt(count)
	numerator := new(big.Int).Sub(value, avg)
	numerator.Add(numerator, rem)

	// big.Int Div/Mod are Euclidean: for n > 0 the quotient is floored
	// and the modulus is in [0, n).
	q, m := new(big.Int).DivMod(numerator, n, new(big.Int))
	return q.Add(q, avg), m
}

// ToDecimal converts a scaled integer to a decimal with the given precision
func ToDecimal(value *big.Int, decimals uint) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// Ratio returns num/den as a decimal rounded to RatioPlaces, or zero when den is zero
func Ratio(num, den *big.Int) decimal.Decimal {
	if den == nil || den.Sign() == 0 || num == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), RatioPlaces)
}

// DivDecimal divides two decimals, returning zero when the divisor is zero
func DivDecimal(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.DivRound(den, RatioPlaces)
}

// Abs returns |d|
func Abs(d decimal.Decimal) decimal.Decimal {
	return d.Abs()
}

// AbsDiff returns |a - b|
func AbsDiff(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b).Abs()
}

// ApproxEqual reports whether a and b differ by at most tolerance
func ApproxEqual(a, b, tolerance decimal.Decimal) bool {
	return AbsDiff(a, b).LessThanOrEqual(tolerance)
}

// SafeDiv returns num/den truncated toward zero, or zero when den is zero
func SafeDiv(num, den *big.Int) *big.Int {
	if num == nil || den == nil || den.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).Quo(num, den)
}

// MulDiv returns a*b/den truncated toward zero, or zero when den is zero
func MulDiv(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil {
		return new(big.Int)
	}
	return SafeDiv(new(big.Int).Mul(a, b), den)
}

// Copy returns a copy of v, treating nil as zero
func Copy(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Sum returns the sum of vs, treating nil as zero
func Sum(vs ...*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range vs {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}
