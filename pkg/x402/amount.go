package x402

import (
	"fmt"
	"math"
	"math/big"
)

// AssetDecimals is the decimal count of the supported stablecoin
// assets (USDC uses 6).
const AssetDecimals = 6

// USDToAtomic converts a decimal USD price to the asset's smallest
// unit, rounding to the nearest unit: $0.10 -> 100000.
func USDToAtomic(usd float64) *big.Int {
	units := math.Round(usd * math.Pow10(AssetDecimals))
	return big.NewInt(int64(units))
}

// AtomicToUSD converts an atomic-unit amount string back to decimal
// USD. Returns an error if the string is not a base-10 integer.
func AtomicToUSD(amount string) (float64, error) {
	units, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return 0, fmt.Errorf("invalid atomic amount %q", amount)
	}
	f, _ := new(big.Float).SetInt(units).Float64()
	return f / math.Pow10(AssetDecimals), nil
}

// ParseAmount parses an atomic-unit amount string. A negative amount
// is rejected; the protocol never transfers value in reverse.
func ParseAmount(amount string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", amount)
	}
	return v, nil
}
