package chain

import (
	"context"
	"fmt"
	"sort"

	"vaultflow/internal/sui"
)

// Coins returns coin objects of coinType owned by owner whose balances cover amount,
// largest first.
func (s *Submitter) Coins(ctx context.Context, owner sui.Address, coinType string, amount uint64) ([]sui.Address, error) {
	if s.client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	coins, err := s.listCoins(ctx, owner, coinType)
	if err != nil {
		return nil, fmt.Errorf("list %s coins: %w", coinType, err)
	}
	sort.SliceStable(coins, func(i, j int) bool {
		return coins[i].Balance > coins[j].Balance
	})

	var (
		ids   []sui.Address
		total uint64
	)
	for _, coin := range coins {
		if total >= amount {
			break
		}
		ids = append(ids, coin.CoinObjectID)
		total += uint64(coin.Balance)
	}
	if total < amount || len(ids) == 0 {
		return nil, fmt.Errorf("insufficient %s: balance %d below %d", coinType, total, amount)
	}
	return ids, nil
}
