package domain

import (
	"math"

	"github.com/btcsuite/btcd/btcutil"
)

// RoundUSD rounds a USD value to cents.
func RoundUSD(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundBTC rounds a BTC value to 8 decimals by passing it through a
// satoshi-precise amount.
func RoundBTC(v float64) float64 {
	amt, err := btcutil.NewAmount(v)
	if err != nil {
		// NaN/Inf never round to a spendable amount
		return 0
	}
	return amt.ToBTC()
}

// ClampNonNegative floors small negative rounding residue at zero.
func ClampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
