package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultflow/internal/chain"
	"vaultflow/internal/effects"
	"vaultflow/internal/model"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
	"vaultflow/internal/ticket"
)

// Setup is the oracle aggregator and protocol config administration.
type Setup struct {
	Coins             []string
	CoinConfig        uint64
	Version           uint64
	PerformanceFeeBps uint64
	StrategyFeeBps    uint64
	CooldownMs        uint64
	MaxDeepFeeBps     uint64
}

// DefaultSetup registers SUI, DEEP and USDC with Pyth pricing.
func DefaultSetup() Setup {
	return Setup{
		Coins:         []string{"sui", "deep", "usdc"},
		CoinConfig:    1 << 10,
		Version:       1,
		CooldownMs:    100,
		MaxDeepFeeBps: 90,
	}
}

// SetupOracleAggregator registers feed ids, decimals and pricing config per
// coin and sets the protocol config values. Requires both admin caps.
func (c *Composer) SetupOracleAggregator(ctx context.Context, signer chain.Signer, s model.Session, setup Setup) (model.Session, model.SubmitResult, error) {
	return c.run(ctx, unit{
		name:    "setup-oracle-aggregator",
		signer:  signer,
		session: s,
		build: func(_ context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			ag, agCap := tx.Object(c.addrs.OracleAggregator), tx.ReadOnlyObject(c.addrs.OracleAggregatorCap)
			for _, name := range setup.Coins {
				coin, err := c.addrs.Coin(name)
				if err != nil {
					return err
				}
				if coin.Feed == "" {
					return fmt.Errorf("%w: %s", ErrMissingFeed, name)
				}
				feed, err := hexutil.Decode(coin.Feed)
				if err != nil {
					return fmt.Errorf("feed of %s: %w", name, err)
				}
				typeArgs := []sui.TypeTag{coin.Type}
				tx.MoveCall(c.target(moduleOracle, "update_pyth_price_id"), typeArgs, ag, agCap, tx.PureBytes(feed))
				tx.MoveCall(c.target(moduleOracle, "update_coin_decimal"), typeArgs, ag, agCap, tx.PureU8(coin.Decimals))
				tx.MoveCall(c.target(moduleOracle, "update_coin_config"), typeArgs, ag, agCap, tx.PureU64(setup.CoinConfig))
			}

			cfg, cfgCap := tx.Object(c.addrs.LotusConfig), tx.ReadOnlyObject(c.addrs.LotusConfigCap)
			for _, set := range []struct {
				function string
				value    uint64
			}{
				{"update_current_version", setup.Version},
				{"update_performance_fee_bps", setup.PerformanceFeeBps},
				{"update_strategy_fee_bps", setup.StrategyFeeBps},
				{"update_cold_down_ms", setup.CooldownMs},
				{"update_max_deep_fee_bps", setup.MaxDeepFeeBps},
			} {
				tx.MoveCall(c.target(moduleConfig, set.function), nil, cfg, cfgCap, tx.PureU64(set.value))
			}
			return nil
		},
	})
}

// CreateFarm creates and shares a farm that accepts the pool's assets and
// the pool itself; the farm cap goes to the signer.
func (c *Composer) CreateFarm(ctx context.Context, signer chain.Signer, s model.Session) (model.Session, model.SubmitResult, error) {
	return c.run(ctx, unit{
		name:    "create-farm",
		signer:  signer,
		session: s,
		build: func(_ context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			created := tx.MoveCall(c.target(moduleFarm, "new"), c.types())
			farm, farmCap := created.Nested(0), created.Nested(1)
			for _, asset := range []sui.TypeTag{c.quote.Type, c.base.Type} {
				tx.MoveCall(c.target(moduleFarm, "add_allowed_deposit_asset"), c.types(asset), farm, farmCap)
			}
			tx.MoveCall(c.target(moduleFarm, "add_allowed_db_pool"), c.pairTypes(), farm, farmCap, tx.Object(c.addrs.Pool))
			tx.ShareObject(farm, c.farmType())
			tx.TransferObjects([]ptb.Argument{farmCap}, signer.Address())
			return nil
		},
		created: []effects.Kind{effects.Farm, effects.FarmCap},
		record: func(s model.Session, e effects.Entities) model.Session {
			return s.WithFarm(e[effects.Farm], e[effects.FarmCap])
		},
	})
}

// AddIncentiveFarm adds the reward-coin incentive sub-farm starting at start.
func (c *Composer) AddIncentiveFarm(ctx context.Context, signer chain.Signer, s model.Session, start time.Time) (model.Session, model.SubmitResult, error) {
	if err := requireFarm(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	reward := c.reward.Type.String()
	next, res, err := c.run(ctx, unit{
		name:    "add-incentive-farm",
		signer:  signer,
		session: s,
		build: func(_ context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			tx.MoveCall(c.target(moduleFarm, "add_td_farm"), c.types(c.reward.Type),
				tx.Object(s.Farm), tx.ReadOnlyObject(s.FarmCap), tx.PureU64(uint64(start.Unix())))
			return nil
		},
	})
	if err != nil {
		return next, res, err
	}
	return next.WithIncentiveFarm(reward), res, nil
}

// TopUpIncentiveFarm funds the reward sub-farm with amount of the reward coin.
func (c *Composer) TopUpIncentiveFarm(ctx context.Context, signer chain.Signer, s model.Session, amount uint64) (model.Session, model.SubmitResult, error) {
	if err := requireFarm(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	return c.run(ctx, unit{
		name:    "top-up-incentive-farm",
		signer:  signer,
		session: s,
		build: func(ctx context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			coin, err := c.coin(ctx, tx, signer.Address(), c.reward, amount)
			if err != nil {
				return err
			}
			tx.MoveCall(c.target(moduleFarm, "top_up_incentive_balance"), c.types(c.reward.Type),
				tx.Object(s.Farm), coin, tx.Clock())
			return nil
		},
	})
}

// SetUnlockRate sets the reward released per second by the sub-farm.
func (c *Composer) SetUnlockRate(ctx context.Context, signer chain.Signer, s model.Session, rate uint64) (model.Session, model.SubmitResult, error) {
	if err := requireFarm(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	return c.run(ctx, unit{
		name:    "set-unlock-rate",
		signer:  signer,
		session: s,
		build: func(_ context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			tx.MoveCall(c.target(moduleFarm, "set_farm_unlock_rate"), c.types(c.reward.Type),
				tx.Object(s.Farm), tx.ReadOnlyObject(s.FarmCap), tx.PureU64(rate), tx.Clock())
			return nil
		},
	})
}
