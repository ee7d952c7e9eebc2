package workflow

import (
	"errors"
	"fmt"
	"math/big"

	"vaultflow/internal/config"
)

// FloatScalar is the fixed-point scale of order-book prices.
const FloatScalar = 1_000_000_000

var ErrUnrepresentable = errors.New("amount not representable in native units")

// ParseDecimal parses a decimal or fraction such as "0.001" or "1/3".
func ParseDecimal(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid decimal %q", s)
	}
	return r, nil
}

// OrderPrice converts a quote-per-base price into the pool's price
// parameter: price × FloatScalar × quoteScalar / baseScalar.
func OrderPrice(price *big.Rat, base, quote config.Coin) (uint64, error) {
	if base.Scalar == 0 || quote.Scalar == 0 {
		return 0, fmt.Errorf("coin scalars must be non-zero")
	}
	v := new(big.Rat).Mul(price, new(big.Rat).SetInt64(FloatScalar))
	v.Mul(v, new(big.Rat).SetFrac(new(big.Int).SetUint64(quote.Scalar), new(big.Int).SetUint64(base.Scalar)))
	return toNative(v, "price")
}

// OrderQuantity converts a base-unit quantity into native units.
func OrderQuantity(quantity *big.Rat, base config.Coin) (uint64, error) {
	v := new(big.Rat).Mul(quantity, new(big.Rat).SetInt(new(big.Int).SetUint64(base.Scalar)))
	return toNative(v, "quantity")
}

func toNative(v *big.Rat, what string) (uint64, error) {
	if v.Sign() <= 0 {
		return 0, fmt.Errorf("%w: %s %s must be positive", ErrUnrepresentable, what, v.FloatString(9))
	}
	if !v.IsInt() {
		return 0, fmt.Errorf("%w: %s %s is fractional", ErrUnrepresentable, what, v.FloatString(9))
	}
	n := v.Num()
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: %s %s overflows u64", ErrUnrepresentable, what, n)
	}
	return n.Uint64(), nil
}

// FormatAmount renders a native amount with the coin's decimals.
func FormatAmount(value uint64, decimals uint8) string {
	if decimals == 0 {
		return new(big.Int).SetUint64(value).String()
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(new(big.Int).SetUint64(value), denom).FloatString(int(decimals))
}
