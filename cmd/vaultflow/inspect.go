package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultflow/internal/config"
	"vaultflow/internal/model"
	"vaultflow/internal/storage"
	"vaultflow/internal/storage/postgres"
	"vaultflow/internal/workflow"
)

func runInspect(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newLiveEnv(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer e.Close()

	session, ok, err := e.sessions.Load(ctx)
	if err != nil {
		return err
	}
	if !ok || !session.HasVault() {
		return fmt.Errorf("no vault in saved session; run the demo first")
	}

	reward, err := cfg.Addresses.Coin(cfg.Addresses.Reward)
	if err != nil {
		return err
	}
	value, err := e.composer.IncentiveValue(ctx, e.admin.Address(), session)
	if err != nil {
		return err
	}
	orders, err := e.composer.OpenOrders(ctx, e.admin.Address(), session)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(orders))
	for _, id := range orders {
		ids = append(ids, id.String())
	}
	logger.Info("vault state",
		zap.String("vault", session.Vault.String()),
		zap.Bool("registered", session.VaultRegistered),
		zap.Bool("closed", session.VaultClosed),
		zap.String("incentive", workflow.FormatAmount(value, reward.Decimals)+" "+reward.Name),
		zap.Strings("open_orders", ids),
	)
	return nil
}

func runJournal(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	limit, _ := cmd.Flags().GetInt("limit")

	records, err := readJournal(cmd.Context(), cfg, limit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		logger.Info("workflow",
			zap.String("id", rec.ID),
			zap.String("workflow", rec.Workflow),
			zap.String("status", rec.Status),
			zap.String("digest", rec.Digest),
			zap.String("error", rec.Error),
			zap.Int("created", len(rec.Created)),
			zap.String("completed_at", rec.CompletedAt),
		)
	}
	return nil
}

// readJournal returns up to limit records, oldest first.
func readJournal(ctx context.Context, cfg config.Config, limit int) ([]model.WorkflowRecord, error) {
	if cfg.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		records, err := store.Records(ctx, limit)
		if err != nil {
			return nil, err
		}
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}
		return records, nil
	}
	records, err := storage.ReadJournal(cfg.Journal)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}
