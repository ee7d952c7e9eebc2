package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultflow/internal/model"
	"vaultflow/internal/workflow"
)

func runDemo(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	simulate, _ := cmd.Flags().GetBool("simulate")
	pause, _ := cmd.Flags().GetDuration("pause")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var e *env
	if simulate {
		e, err = newSimulatedEnv(ctx, cfg, logger)
	} else {
		e, err = newLiveEnv(ctx, cfg, logger, true)
	}
	if err != nil {
		logger.Error("demo setup failed", zap.Error(err))
		return err
	}
	defer e.Close()

	params := workflow.DefaultDemoParams()
	params.Pause = pause
	if simulate {
		params.Pause = 0
		params.Now = e.network.Ledger.Now
	}

	logger.Info("demo start",
		zap.Bool("simulate", simulate),
		zap.String("rpc", cfg.RPCURL),
		zap.String("admin", e.admin.Address().String()),
		zap.String("delegate", e.delegate.Address().String()),
		zap.Duration("pause", params.Pause),
	)

	session, steps, runErr := e.composer.RunDemo(ctx, e.admin, e.delegate, model.Session{}, params)
	if !simulate {
		if err := e.sessions.Save(ctx, session); err != nil {
			logger.Warn("session save failed", zap.Error(err))
		}
	}
	if runErr != nil {
		logger.Error("demo failed", zap.Int("completed_steps", len(steps)), zap.Error(runErr))
		return runErr
	}

	logger.Info("demo complete",
		zap.Int("steps", len(steps)),
		zap.String("farm", session.Farm.String()),
		zap.String("vault", session.Vault.String()),
	)
	if cfg.ExplorerURL != "" && !simulate {
		for _, step := range steps {
			for _, digest := range step.Digests {
				if digest != "" {
					logger.Info("explorer", zap.String("step", step.Name), zap.String("url", cfg.ExplorerURL+digest))
				}
			}
		}
	}
	return nil
}
