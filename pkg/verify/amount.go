package verify

import (
	"fmt"
	"math/big"

	"github.com/Solana-ZH/orcacpi/pkg/pool/orca"
	"github.com/shopspring/decimal"
)

// ParseUIAmount converts a decimal amount such as "1000" or "0.25" into base
// units of a token with the given decimals.
func ParseUIAmount(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("amount %q must be positive", s)
	}
	base := d.Shift(int32(decimals))
	if !base.Equal(base.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	n := base.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("amount %q overflows u64", s)
	}
	return n.Uint64(), nil
}

// FormatUIAmount renders base units with the token's decimals.
func FormatUIAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return ""
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// SlippageFromBps converts basis points into a tolerance.
func SlippageFromBps(bps uint64) orca.Percentage {
	return orca.Percentage{Numerator: bps, Denominator: 10_000}
}
