package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vaultflow/internal/chain"
	"vaultflow/internal/model"
)

// DemoParams configures the end-to-end walkthrough.
type DemoParams struct {
	Setup      Setup
	TopUp      uint64
	UnlockRate uint64
	Seed       Amounts
	Deposit    Amounts
	Order      Order
	// Pause separates consecutive steps; zero runs them back to back.
	Pause time.Duration
	// Now stamps the incentive farm start. Defaults to time.Now.
	Now func() time.Time
}

// DefaultDemoParams mirrors the reference walkthrough amounts.
func DefaultDemoParams() DemoParams {
	return DemoParams{
		Setup:      DefaultSetup(),
		TopUp:      100_000,
		UnlockRate: 10,
		Seed:       Amounts{Base: 1_000_000, Quote: 1_000_000_000},
		Deposit:    Amounts{Base: 1_000_000, Quote: 1_000_000_000},
		Order:      DemoOrder(),
		Pause:      time.Second,
		Now:        time.Now,
	}
}

// StepResult is one completed walkthrough step.
type StepResult struct {
	Name    string
	Digests []string
	Detail  string
}

type demoStep struct {
	name string
	run  func(ctx context.Context, s model.Session) (model.Session, StepResult, error)
}

// RunDemo drives the full vault lifecycle: admin setup, farm and incentive
// farm creation, vault creation, trading, a delegate's pooled deposit and
// withdrawal, redemption and fee collection. It stops at the first failing
// step and returns the session reached so far.
func (c *Composer) RunDemo(ctx context.Context, admin, delegate chain.Signer, s model.Session, p DemoParams) (model.Session, []StepResult, error) {
	if admin == nil || delegate == nil {
		return s, nil, fmt.Errorf("demo needs both admin and delegate signers")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	feeds := c.Feeds()

	submit := func(name string, fn func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error)) demoStep {
		return demoStep{name: name, run: func(ctx context.Context, s model.Session) (model.Session, StepResult, error) {
			next, res, err := fn(ctx, s)
			return next, StepResult{Name: name, Digests: []string{res.Digest}}, err
		}}
	}

	steps := []demoStep{
		submit("setup-oracle-aggregator", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.SetupOracleAggregator(ctx, admin, s, p.Setup)
		}),
		submit("create-farm", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.CreateFarm(ctx, admin, s)
		}),
		submit("add-incentive-farm", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.AddIncentiveFarm(ctx, admin, s, p.Now())
		}),
		submit("top-up-incentive-farm", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.TopUpIncentiveFarm(ctx, admin, s, p.TopUp)
		}),
		submit("create-vault", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.CreateVault(ctx, admin, s, p.Seed, feeds)
		}),
		submit("set-unlock-rate", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.SetUnlockRate(ctx, admin, s, p.UnlockRate)
		}),
		{name: "collect-incentives", run: func(ctx context.Context, s model.Session) (model.Session, StepResult, error) {
			out := StepResult{Name: "collect-incentives"}
			next, res, err := c.CollectIncentives(ctx, admin, s)
			out.Digests = append(out.Digests, res.Digest)
			if err != nil {
				return s, out, err
			}
			left, err := c.IncentiveValue(ctx, admin.Address(), next)
			if err != nil {
				return next, out, err
			}
			out.Detail = "remaining incentive " + FormatAmount(left, c.reward.Decimals)
			return next, out, nil
		}},
		submit("place-order", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.PlaceOrder(ctx, admin, s, p.Order)
		}),
		{name: "cancel-order", run: func(ctx context.Context, s model.Session) (model.Session, StepResult, error) {
			next, ids, err := c.CancelOpenOrders(ctx, admin, s)
			return next, StepResult{Name: "cancel-order", Detail: fmt.Sprintf("cancelled %d orders", len(ids))}, err
		}},
		submit("cancel-all-orders", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.CancelAllOrders(ctx, admin, s)
		}),
		submit("rebalance-weight", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.RebalanceWeight(ctx, admin, s, feeds)
		}),
		submit("pooled-deposit", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.PooledDeposit(ctx, delegate, s, p.Deposit, feeds)
		}),
		submit("pooled-withdraw", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.PooledWithdraw(ctx, delegate, s, feeds)
		}),
		submit("redeem-all", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.RedeemAll(ctx, admin, s, feeds)
		}),
		submit("collect-fees", func(ctx context.Context, s model.Session) (model.Session, model.SubmitResult, error) {
			return c.CollectFees(ctx, admin, s)
		}),
	}

	results := make([]StepResult, 0, len(steps))
	for i, step := range steps {
		if i > 0 && p.Pause > 0 {
			select {
			case <-ctx.Done():
				return s, results, ctx.Err()
			case <-time.After(p.Pause):
			}
		}
		next, res, err := step.run(ctx, s)
		if err != nil {
			return s, results, fmt.Errorf("demo step %d (%s): %w", i+1, step.name, err)
		}
		s = next
		results = append(results, res)
		c.logger.Info("demo step completed",
			zap.Int("step", i+1),
			zap.String("name", step.name),
			zap.Strings("digests", res.Digests),
			zap.String("detail", res.Detail),
		)
	}
	return s, results, nil
}
