package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultflow/internal/chain"
	"vaultflow/internal/config"
	"vaultflow/internal/oracle"
	"vaultflow/internal/simnet"
	"vaultflow/internal/storage"
	"vaultflow/internal/storage/postgres"
	"vaultflow/internal/sui"
	"vaultflow/internal/workflow"
)

// env is a wired composer with its signers and stores.
type env struct {
	cfg      config.Config
	logger   *zap.Logger
	composer *workflow.Composer
	admin    chain.Signer
	delegate chain.Signer
	journal  storage.Journal
	sessions storage.SessionStore
	network  *simnet.Network
	closers  []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	_ = e.logger.Sync()
}

func loadEnv(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// openStores picks Postgres when a DSN is configured, the local files otherwise.
func openStores(ctx context.Context, e *env) error {
	if e.cfg.PostgresDSN == "" {
		e.journal = storage.NewJsonlJournal(e.cfg.Journal)
		e.sessions = storage.NewFileSessionStore(e.cfg.SessionPath)
		return nil
	}
	store, err := postgres.NewStore(ctx, e.cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	e.closers = append(e.closers, store.Close)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	e.journal = store
	e.sessions = &postgres.SessionStore{Store: store, Name: "default"}
	return nil
}

// newLiveEnv wires the composer to the configured fullnode and Hermes.
func newLiveEnv(ctx context.Context, cfg config.Config, logger *zap.Logger, needDelegate bool) (*env, error) {
	e := &env{cfg: cfg, logger: logger}
	if err := validateLive(cfg.Addresses); err != nil {
		return nil, err
	}
	admin, err := parseSigner("PRIVATE_KEY", cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	e.admin = admin
	if needDelegate {
		if e.delegate, err = parseSigner("PRIVATE_KEY_DELEGATE", cfg.DelegatePrivateKey); err != nil {
			return nil, err
		}
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	e.closers = append(e.closers, client.Close)
	if err := openStores(ctx, e); err != nil {
		e.Close()
		return nil, err
	}

	submitter := chain.NewSubmitter(client, chain.Config{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	updater := oracle.NewUpdater(oracle.NewHermesClient(cfg.HermesURL, cfg.HTTPTimeout), oracleConfig(cfg.Addresses), logger)
	e.composer, err = workflow.NewComposer(submitter, updater, e.journal, cfg.Addresses, workflow.Options{
		GasBudget:     cfg.GasBudget,
		SettleTimeout: cfg.SettleTimeout,
	}, logger)
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// newSimulatedEnv wires the composer to a fresh in-memory ledger.
func newSimulatedEnv(ctx context.Context, cfg config.Config, logger *zap.Logger) (*env, error) {
	e := &env{cfg: cfg, logger: logger}
	network, err := simnet.NewNetwork(cfg.Addresses, logger)
	if err != nil {
		return nil, err
	}
	e.network = network
	e.admin, e.delegate = network.Admin, network.Delegate
	if err := openStores(ctx, e); err != nil {
		e.Close()
		return nil, err
	}
	e.composer, err = workflow.NewComposer(network.Ledger, network.Updater(logger), e.journal, network.Ledger.Addresses(), workflow.Options{
		GasBudget: cfg.GasBudget,
	}, logger)
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func parseSigner(name, encoded string) (*sui.Keypair, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%s is not set", name)
	}
	key, err := sui.ParsePrivateKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return key, nil
}

func oracleConfig(a config.Addresses) oracle.Config {
	return oracle.Config{
		PythPackage:      a.PythPackage,
		PythState:        a.PythState,
		WormholePackage:  a.WormholePackage,
		WormholeState:    a.WormholeState,
		BaseUpdateFee:    a.PythUpdateFee,
		PriceInfoObjects: a.PriceInfoObjects,
	}
}

// validateLive checks the Pyth addresses that have no reference default.
func validateLive(a config.Addresses) error {
	if a.PythPackage.IsZero() || a.WormholePackage.IsZero() {
		return fmt.Errorf("pyth-package and wormhole-package must be configured")
	}
	for _, feed := range a.Feeds() {
		if _, ok := a.PriceInfoObjects[feed]; !ok {
			return fmt.Errorf("price-info-objects has no entry for feed %s", feed)
		}
	}
	return nil
}
