package workflow

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultflow/internal/config"
)

var (
	deepCoin = config.Coin{Name: "deep", Scalar: 1_000_000, Decimals: 6}
	suiCoin  = config.Coin{Name: "sui", Scalar: 1_000_000_000, Decimals: 9}
)

func TestOrderPrice(t *testing.T) {
	cases := []struct {
		price string
		want  uint64
	}{
		{"0.001", 1_000_000_000},
		{"1", 1_000_000_000_000},
		{"0.000000001", 1_000},
		{"3/2", 1_500_000_000_000},
	}
	for _, tc := range cases {
		t.Run(tc.price, func(t *testing.T) {
			price, err := ParseDecimal(tc.price)
			require.NoError(t, err)
			got, err := OrderPrice(price, deepCoin, suiCoin)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestOrderPriceUnrepresentable(t *testing.T) {
	for _, price := range []*big.Rat{big.NewRat(1, 3_000_000_000_000), big.NewRat(0, 1), big.NewRat(-1, 1)} {
		_, err := OrderPrice(price, deepCoin, suiCoin)
		require.ErrorIs(t, err, ErrUnrepresentable, price.String())
	}

	huge := new(big.Rat).SetInt(new(big.Int).Lsh(big.NewInt(1), 80))
	_, err := OrderPrice(huge, deepCoin, suiCoin)
	require.ErrorIs(t, err, ErrUnrepresentable)

	_, err = OrderPrice(big.NewRat(1, 1), config.Coin{}, suiCoin)
	require.Error(t, err)
}

func TestOrderQuantity(t *testing.T) {
	got, err := OrderQuantity(big.NewRat(100, 1), deepCoin)
	require.NoError(t, err)
	require.Equal(t, uint64(100_000_000), got)

	_, err = OrderQuantity(big.NewRat(1, 10_000_000), deepCoin)
	require.ErrorIs(t, err, ErrUnrepresentable)
}

func TestParseDecimalInvalid(t *testing.T) {
	_, err := ParseDecimal("abc")
	require.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "1.500000", FormatAmount(1_500_000, 6))
	require.Equal(t, "0.000000001", FormatAmount(1, 9))
	require.Equal(t, "42", FormatAmount(42, 0))
}
