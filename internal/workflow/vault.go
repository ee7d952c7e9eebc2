package workflow

import (
	"context"
	"fmt"

	"vaultflow/internal/bcs"
	"vaultflow/internal/chain"
	"vaultflow/internal/effects"
	"vaultflow/internal/model"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
	"vaultflow/internal/ticket"
)

// CreateVault creates an incentivized vault on the pool seeded with amounts,
// registers it into the reward sub-farm and shares it, all in one unit.
func (c *Composer) CreateVault(ctx context.Context, signer chain.Signer, s model.Session, amounts Amounts, feeds Feeds) (model.Session, model.SubmitResult, error) {
	if err := requireFarm(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	if !s.HasIncentiveFarm(c.reward.Type.String()) {
		return s, model.SubmitResult{}, fmt.Errorf("%w: no incentive farm for %s", ticket.ErrEntityState, c.reward.Name)
	}
	return c.run(ctx, unit{
		name:    "create-vault",
		signer:  signer,
		session: s,
		build: func(ctx context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			owner := signer.Address()
			px, err := c.refresh(ctx, tx, feeds.Base, feeds.Quote)
			if err != nil {
				return err
			}
			coinBase, err := c.coin(ctx, tx, owner, c.base, amounts.Base)
			if err != nil {
				return err
			}
			coinQuote, err := c.coin(ctx, tx, owner, c.quote, amounts.Quote)
			if err != nil {
				return err
			}

			var created ptb.Result
			t, err := u.Open(ticket.CreateVault, func(tx *ptb.Builder) (ptb.Argument, error) {
				created = tx.MoveCall(c.target(moduleFarm, "create_incentivized_db_vault"), c.pairTypes(),
					tx.Object(s.Farm), tx.Object(c.addrs.LotusConfig), tx.Object(c.addrs.Pool),
					coinBase, coinQuote, tx.Object(c.addrs.OracleAggregator), px[0], px[1], tx.Clock())
				return created.Nested(3), nil
			})
			if err != nil {
				return err
			}
			vault, creatorCap, tradeCap := created.Nested(0), created.Nested(1), created.Nested(2)
			tx.TransferObjects([]ptb.Argument{creatorCap}, owner)
			tx.ShareObject(tradeCap, c.vaultCapType())

			if _, err := u.Use(t, ticket.StepRegister, func(tx *ptb.Builder, tk ptb.Argument) (ptb.Result, error) {
				return tx.MoveCall(c.target(moduleFarm, "add_incentivized_db_vault_to_td_farm_with_ticket"), c.types(c.reward.Type),
					tx.Object(s.Farm), vault, tk, tx.Clock()), nil
			}); err != nil {
				return err
			}
			if err := u.Close(t, func(tx *ptb.Builder, tk ptb.Argument) error {
				tx.MoveCall(c.target(moduleFarm, "destroy_create_pool_ticket"), c.types(), tx.Object(s.Farm), tk)
				return nil
			}); err != nil {
				return err
			}
			tx.ShareObject(vault, c.vaultType())
			return nil
		},
		created: []effects.Kind{effects.Vault, effects.VaultCreatorCap, effects.VaultTradeCap},
		record: func(s model.Session, e effects.Entities) model.Session {
			return s.WithVault(e[effects.Vault], e[effects.VaultCreatorCap], e[effects.VaultTradeCap])
		},
	})
}

// drainIncentive pushes accrued reward into the vault with a top-up ticket
// and redeems it to recipient. The redeem step consumes the ticket.
func (c *Composer) drainIncentive(u *ticket.Unit, s model.Session, recipient sui.Address) error {
	t, err := u.Open(ticket.TopUp, func(tx *ptb.Builder) (ptb.Argument, error) {
		return tx.MoveCall(c.target(moduleVault, "new_top_up_ticket"), c.types(), tx.Object(s.Vault)).Arg(), nil
	})
	if err != nil {
		return err
	}
	if _, err := u.Use(t, ticket.StepPushIncentive, func(tx *ptb.Builder, tk ptb.Argument) (ptb.Result, error) {
		return tx.MoveCall(c.target(moduleFarm, "top_up_to_td_pool"), c.types(c.reward.Type),
			tx.Object(s.Farm), tx.Object(s.Vault), tk, tx.Clock()), nil
	}); err != nil {
		return err
	}
	redeemed, err := u.Use(t, ticket.StepRedeem, func(tx *ptb.Builder, tk ptb.Argument) (ptb.Result, error) {
		return tx.MoveCall(c.target(moduleVault, "pooling_redeem_incentive"), c.types(c.reward.Type), tx.Object(s.Vault), tk), nil
	})
	if err != nil {
		return err
	}
	u.Builder().TransferObjects([]ptb.Argument{redeemed.Arg()}, recipient)
	return nil
}

// CollectIncentives moves the vault's accrued reward to the signer.
func (c *Composer) CollectIncentives(ctx context.Context, signer chain.Signer, s model.Session) (model.Session, model.SubmitResult, error) {
	if err := requireVault(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	return c.run(ctx, unit{
		name:    "collect-incentives",
		signer:  signer,
		session: s,
		build: func(_ context.Context, u *ticket.Unit) error {
			return c.drainIncentive(u, s, signer.Address())
		},
	})
}

// IncentiveValue reads the vault's redeemable reward balance.
func (c *Composer) IncentiveValue(ctx context.Context, sender sui.Address, s model.Session) (uint64, error) {
	if !s.HasVault() {
		return 0, fmt.Errorf("%w: no vault in session", ticket.ErrEntityState)
	}
	results, err := c.inspect(ctx, sender, func(tx *ptb.Builder) {
		tx.MoveCall(c.target(moduleVault, "get_incentive_value"), c.types(c.reward.Type), tx.ReadOnlyObject(s.Vault))
	})
	if err != nil {
		return 0, err
	}
	if len(results) == 0 || len(results[0].ReturnValues) == 0 {
		return 0, fmt.Errorf("get_incentive_value: %w", ErrNoReturnValue)
	}
	return bcs.DecodeU64(results[0].ReturnValues[0].Bytes)
}

// RebalanceWeight recomputes the vault's farm weight from fresh reward,
// base and quote prices.
func (c *Composer) RebalanceWeight(ctx context.Context, signer chain.Signer, s model.Session, feeds Feeds) (model.Session, model.SubmitResult, error) {
	if err := requireVault(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	return c.run(ctx, unit{
		name:    "rebalance-weight",
		signer:  signer,
		session: s,
		build: func(ctx context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			px, err := c.refresh(ctx, tx, feeds.Reward, feeds.Base, feeds.Quote)
			if err != nil {
				return err
			}
			t, err := u.Open(ticket.UpdateWeight, func(tx *ptb.Builder) (ptb.Argument, error) {
				return tx.MoveCall(c.target(moduleFarm, "create_update_vault_weight_ticket"), c.types(c.reward.Type), tx.Object(s.Farm)).Arg(), nil
			})
			if err != nil {
				return err
			}
			if _, err := u.Use(t, ticket.StepApplyWeight, func(tx *ptb.Builder, tk ptb.Argument) (ptb.Result, error) {
				return tx.MoveCall(c.target(moduleFarm, "update_vault_weight_with_ticket"),
					c.types(c.reward.Type, c.base.Type, c.quote.Type),
					tx.Object(s.Farm), tx.Object(s.Vault), tx.Object(c.addrs.Pool),
					px[0], px[1], px[2], tx.Object(c.addrs.OracleAggregator), tk, tx.Clock()), nil
			}); err != nil {
				return err
			}
			return u.Close(t, func(tx *ptb.Builder, tk ptb.Argument) error {
				tx.MoveCall(c.target(moduleFarm, "destroy_update_vault_weight_ticket"), c.types(c.reward.Type), tx.Object(s.Farm), tk)
				return nil
			})
		},
	})
}

// PooledDeposit contributes amounts to the vault's shared liquidity.
func (c *Composer) PooledDeposit(ctx context.Context, signer chain.Signer, s model.Session, amounts Amounts, feeds Feeds) (model.Session, model.SubmitResult, error) {
	if err := requireVault(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	return c.run(ctx, unit{
		name:    "pooled-deposit",
		signer:  signer,
		session: s,
		build: func(ctx context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			owner := signer.Address()
			px, err := c.refresh(ctx, tx, feeds.Base, feeds.Quote, feeds.Deep)
			if err != nil {
				return err
			}
			coinBase, err := c.coin(ctx, tx, owner, c.base, amounts.Base)
			if err != nil {
				return err
			}
			coinQuote, err := c.coin(ctx, tx, owner, c.quote, amounts.Quote)
			if err != nil {
				return err
			}
			tx.MoveCall(c.target(moduleVault, "pooling_deposit"), c.pairTypes(),
				tx.Object(s.Vault), tx.Object(c.addrs.LotusConfig), coinBase, coinQuote, tx.Object(c.addrs.Pool),
				px[0], px[1], px[2], tx.Object(c.addrs.OracleAggregator), tx.Clock())
			return nil
		},
	})
}

// withdraw appends the pooled withdraw and sends both assets to recipient.
func (c *Composer) withdraw(tx *ptb.Builder, s model.Session, px []ptb.Argument, recipient sui.Address) {
	out := tx.MoveCall(c.target(moduleVault, "pooling_withdraw"), c.pairTypes(),
		tx.Object(s.Vault), tx.Object(c.addrs.LotusConfig), tx.Object(c.addrs.Pool),
		px[0], px[1], px[2], tx.Object(c.addrs.OracleAggregator), tx.Clock())
	tx.TransferObjects([]ptb.Argument{out.Nested(0), out.Nested(1)}, recipient)
}

// PooledWithdraw drains the signer's incentive share and withdraws the
// signer's pooled position.
func (c *Composer) PooledWithdraw(ctx context.Context, signer chain.Signer, s model.Session, feeds Feeds) (model.Session, model.SubmitResult, error) {
	if err := requireVault(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	return c.run(ctx, unit{
		name:    "pooled-withdraw",
		signer:  signer,
		session: s,
		build: func(ctx context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			px, err := c.refresh(ctx, tx, feeds.Base, feeds.Quote, feeds.Deep)
			if err != nil {
				return err
			}
			if err := c.drainIncentive(u, s, signer.Address()); err != nil {
				return err
			}
			c.withdraw(tx, s, px, signer.Address())
			return nil
		},
	})
}

// RedeemAll drains incentives, withdraws the creator's position, then
// closes the vault and removes it from the farm.
func (c *Composer) RedeemAll(ctx context.Context, signer chain.Signer, s model.Session, feeds Feeds) (model.Session, model.SubmitResult, error) {
	if err := requireVault(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	return c.run(ctx, unit{
		name:    "redeem-all",
		signer:  signer,
		session: s,
		build: func(ctx context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			owner := signer.Address()
			px, err := c.refresh(ctx, tx, feeds.Base, feeds.Quote, feeds.Deep)
			if err != nil {
				return err
			}
			if err := c.drainIncentive(u, s, owner); err != nil {
				return err
			}
			c.withdraw(tx, s, px, owner)

			t, err := u.Open(ticket.CloseVault, func(tx *ptb.Builder) (ptb.Argument, error) {
				return tx.MoveCall(c.target(moduleFarm, "close_vault"), c.types(),
					tx.Object(s.Farm), tx.Object(s.Vault), tx.ReadOnlyObject(s.VaultCreatorCap)).Arg(), nil
			})
			if err != nil {
				return err
			}
			if _, err := u.Use(t, ticket.StepDeregister, func(tx *ptb.Builder, tk ptb.Argument) (ptb.Result, error) {
				return tx.MoveCall(c.target(moduleFarm, "remove_farm_key_from_td_farm"), c.types(c.reward.Type),
					tx.Object(s.Farm), tx.Object(s.Vault), tk, tx.Clock()), nil
			}); err != nil {
				return err
			}
			return u.Close(t, func(tx *ptb.Builder, tk ptb.Argument) error {
				tx.MoveCall(c.target(moduleFarm, "destroy_close_vault_ticket"), c.types(), tx.Object(s.Farm), tk)
				return nil
			})
		},
	})
}

// CollectFees withdraws the performance fees under the config cap and the
// strategy fees under the creator cap for both pool assets, in one unit.
func (c *Composer) CollectFees(ctx context.Context, signer chain.Signer, s model.Session) (model.Session, model.SubmitResult, error) {
	return c.collectFees(ctx, signer, s, []sui.TypeTag{c.base.Type, c.quote.Type})
}

func (c *Composer) collectFees(ctx context.Context, signer chain.Signer, s model.Session, assets []sui.TypeTag) (model.Session, model.SubmitResult, error) {
	if !s.HasVault() || s.VaultCreatorCap.IsZero() {
		return s, model.SubmitResult{}, fmt.Errorf("%w: no vault in session", ticket.ErrEntityState)
	}
	return c.run(ctx, unit{
		name:    "collect-fees",
		signer:  signer,
		session: s,
		build: func(_ context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			var coins []ptb.Argument
			for _, asset := range assets {
				res := tx.MoveCall(c.target(moduleVault, "withdraw_collected_performance_fees"), c.types(asset),
					tx.Object(s.Vault), tx.ReadOnlyObject(c.addrs.LotusConfigCap))
				coins = append(coins, res.Arg())
			}
			for _, asset := range assets {
				res := tx.MoveCall(c.target(moduleVault, "withdraw_collected_strategy_fees"), c.types(asset),
					tx.Object(s.Vault), tx.ReadOnlyObject(s.VaultCreatorCap))
				coins = append(coins, res.Arg())
			}
			tx.TransferObjects(coins, signer.Address())
			return nil
		},
	})
}
