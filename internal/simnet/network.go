package simnet

import (
	"crypto/sha256"
	"fmt"

	"go.uber.org/zap"

	"vaultflow/internal/config"
	"vaultflow/internal/oracle"
	"vaultflow/internal/sui"
)

// DefaultPrices are the prices served by a Network, exponent -8.
func DefaultPrices() map[string]uint64 {
	return map[string]uint64{
		config.FeedSUIUSD:  350_000_000,
		config.FeedUSDCUSD: 100_000_000,
	}
}

// Network is a ready-to-use ledger with a price service and two funded
// signers: Admin holds the aggregator and config caps, Delegate does not.
type Network struct {
	Ledger   *Ledger
	Prices   *PriceService
	Admin    *sui.Keypair
	Delegate *sui.Keypair
}

// NewNetwork builds a ledger from addrs and funds both signers with every
// configured coin.
func NewNetwork(addrs config.Addresses, logger *zap.Logger) (*Network, error) {
	admin, err := deterministicKey("vaultflow-simnet-admin")
	if err != nil {
		return nil, err
	}
	delegate, err := deterministicKey("vaultflow-simnet-delegate")
	if err != nil {
		return nil, err
	}
	prices := DefaultPrices()
	ledger, err := NewLedger(Genesis{Addresses: addrs, Admin: admin.Address(), Prices: prices}, logger)
	if err != nil {
		return nil, err
	}
	n := &Network{
		Ledger:   ledger,
		Prices:   NewPriceService(ledger, prices),
		Admin:    admin,
		Delegate: delegate,
	}
	for _, owner := range []sui.Address{admin.Address(), delegate.Address()} {
		for _, name := range addrs.CoinNames() {
			coin := addrs.Coins[name]
			n.Ledger.Fund(owner, coin.Type, 1_000*coin.Scalar)
			n.Ledger.Fund(owner, coin.Type, 500*coin.Scalar)
		}
	}
	return n, nil
}

// Updater returns an oracle updater wired to the network's price service.
func (n *Network) Updater(logger *zap.Logger) *oracle.Updater {
	return oracle.NewUpdater(n.Prices, n.Ledger.OracleConfig(), logger)
}

func deterministicKey(label string) (*sui.Keypair, error) {
	seed := sha256.Sum256([]byte(label))
	key, err := sui.NewKeypairFromSeed(seed[:])
	if err != nil {
		return nil, fmt.Errorf("simnet key %s: %w", label, err)
	}
	return key, nil
}
