package fixed

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// Standard configs
	QuoteConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}     // quote-token amounts
	RateConfig  = DecimalConfig{DecimalPrecision: 9, Scale: 1_000_000_000} // rates, thresholds, premiums
)

const (
	// Denominator is the scale factor for all percentage-like values:
	// fee rates, liquidation thresholds, premiums, and the global fee index.
	Denominator int64 = 1_000_000_000

	// SecondsPerYear converts annualized rates into per-second accrual.
	SecondsPerYear int64 = 31_536_000
)

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MulDiv computes a * b / den using int128 intermediates with floor
// truncation. All callers pass non-negative operands; the floor therefore
// matches plain integer division and is reproducible across ports.
func MulDiv(a, b, den int64) int64 {
	if den == 0 {
		panic("fixed: division by zero")
	}

	product := getInt128()
	product.Mul(big.NewInt(a), big.NewInt(b))

	quotient := getInt128()
	quotient.Quo(product, big.NewInt(den))

	result := quotient.Int64()

	putInt128(product)
	putInt128(quotient)

	return result
}

// ApplyRate scales value by a Denominator-scaled rate, flooring.
func ApplyRate(value, rate int64) int64 {
	return MulDiv(value, rate, Denominator)
}

// IndexDelta converts elapsed seconds at an annualized rate into a fee-index
// increment (Denominator-scaled). Accrual is strictly linear between rate
// changes; there is no compounding.
func IndexDelta(rate, elapsedSeconds int64) int64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return MulDiv(rate, elapsedSeconds, SecondsPerYear)
}

// AccruedFee converts a fee-index increment into owed fee on a principal.
func AccruedFee(principal, indexDelta int64) int64 {
	if indexDelta <= 0 {
		return 0
	}
	return MulDiv(principal, indexDelta, Denominator)
}

// FromDecimalString parses a human decimal string (e.g. an oracle feed value)
// into a fixed-point int64 at the given config's scale, flooring excess
// precision.
func FromDecimalString(s string, cfg DecimalConfig) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	scaled := d.Mul(decimal.New(cfg.Scale, 0)).Truncate(0)
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("decimal %q overflows int64 at scale %d", s, cfg.Scale)
	}
	return scaled.BigInt().Int64(), nil
}

// ToDecimalString renders a fixed-point value as a human decimal string.
func ToDecimalString(v int64, cfg DecimalConfig) string {
	return decimal.New(v, -int32(cfg.DecimalPrecision)).String()
}
