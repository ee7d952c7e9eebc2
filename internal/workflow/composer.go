// Package workflow composes the vault product's multi-step operations into
// single atomic transactions and threads the discovered entity addresses
// through an immutable session.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaultflow/internal/chain"
	"vaultflow/internal/config"
	"vaultflow/internal/effects"
	"vaultflow/internal/model"
	"vaultflow/internal/oracle"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
	"vaultflow/internal/ticket"
)

var (
	// ErrSessionIncomplete means a unit committed but its created entities
	// could not be recovered from the object changes.
	ErrSessionIncomplete = errors.New("committed unit did not yield expected entities")
	ErrMissingFeed       = errors.New("price feed not configured for coin role")
	ErrNoReturnValue     = errors.New("inspection returned no value")
)

// Submitter is the submission and inspection boundary.
type Submitter interface {
	Submit(ctx context.Context, signer chain.Signer, tx *ptb.Transaction, budget uint64) (model.SubmitResult, error)
	Inspect(ctx context.Context, sender sui.Address, tx *ptb.Transaction) ([]model.CallResult, error)
	WaitForConfirmation(ctx context.Context, digest string, timeout time.Duration) (model.SubmitResult, error)
	Coins(ctx context.Context, owner sui.Address, coinType string, amount uint64) ([]sui.Address, error)
}

// Oracle refreshes price quotes inside a unit.
type Oracle interface {
	FetchUpdateData(ctx context.Context, feedIDs []string) (oracle.Payload, error)
	SubmitUpdate(tx *ptb.Builder, payload oracle.Payload, feedIDs []string) ([]ptb.Argument, error)
}

// Journal records workflow attempts.
type Journal interface {
	Append(ctx context.Context, rec model.WorkflowRecord) error
}

// Options tune submission.
type Options struct {
	GasBudget uint64
	// SettleTimeout bounds WaitForConfirmation after each commit; zero skips it.
	SettleTimeout time.Duration
}

// Feeds names the price feed for each coin role a workflow prices.
type Feeds struct {
	Base   string
	Quote  string
	Reward string
	Deep   string
}

// Amounts is a base/quote pair in native units.
type Amounts struct {
	Base  uint64
	Quote uint64
}

// Composer builds and submits workflows.
type Composer struct {
	submitter Submitter
	oracle    Oracle
	journal   Journal
	addrs     config.Addresses
	decoder   *effects.Decoder
	opts      Options
	logger    *zap.Logger

	base   config.Coin
	quote  config.Coin
	reward config.Coin
	deep   config.Coin
	sui    config.Coin
}

func NewComposer(submitter Submitter, prices Oracle, journal Journal, addrs config.Addresses, opts Options, logger *zap.Logger) (*Composer, error) {
	if submitter == nil {
		return nil, fmt.Errorf("submitter is nil")
	}
	if prices == nil {
		return nil, fmt.Errorf("oracle is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.GasBudget == 0 {
		return nil, fmt.Errorf("gas budget must be greater than zero")
	}
	c := &Composer{
		submitter: submitter,
		oracle:    prices,
		journal:   journal,
		addrs:     addrs,
		decoder:   effects.NewDecoder(addrs.LotusPackage),
		opts:      opts,
		logger:    logger,
	}
	roles := []struct {
		name string
		dst  *config.Coin
	}{
		{addrs.PoolBase, &c.base},
		{addrs.PoolQuote, &c.quote},
		{addrs.Reward, &c.reward},
		{"deep", &c.deep},
		{"sui", &c.sui},
	}
	for _, role := range roles {
		coin, err := addrs.Coin(role.name)
		if err != nil {
			return nil, err
		}
		*role.dst = coin
	}
	return c, nil
}

// Feeds returns the configured feed of every coin role.
func (c *Composer) Feeds() Feeds {
	return Feeds{Base: c.base.Feed, Quote: c.quote.Feed, Reward: c.reward.Feed, Deep: c.deep.Feed}
}

// unit describes one workflow submission.
type unit struct {
	name    string
	signer  chain.Signer
	session model.Session
	build   func(ctx context.Context, u *ticket.Unit) error
	// created entities are extracted after commit and folded in by record
	created []effects.Kind
	record  func(s model.Session, e effects.Entities) model.Session
}

// run builds, seals and submits the unit. On any failure the input session
// is returned unchanged.
func (c *Composer) run(ctx context.Context, w unit) (model.Session, model.SubmitResult, error) {
	rec := model.WorkflowRecord{
		ID:        uuid.NewString(),
		Workflow:  w.name,
		StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if w.signer != nil {
		rec.Signer = w.signer.Address().String()
	}
	logger := c.logger.With(zap.String("workflow", w.name), zap.String("record_id", rec.ID))

	next, res, err := c.execute(ctx, w, &rec)
	rec.Digest = res.Digest
	rec.CompletedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if err != nil {
		rec.Status = model.StatusFailure
		rec.Error = err.Error()
		logger.Error("workflow failed", zap.String("digest", res.Digest), zap.Error(err))
		c.append(ctx, rec, logger)
		return w.session, res, fmt.Errorf("%s: %w", w.name, err)
	}

	rec.Status = model.StatusSuccess
	rec.Created = res.Created()
	logger.Info("workflow committed",
		zap.String("digest", res.Digest),
		zap.Int("commands", rec.Commands),
		zap.Int("created", len(rec.Created)),
	)
	c.append(ctx, rec, logger)
	c.confirm(ctx, res.Digest, logger)
	return next, res, nil
}

func (c *Composer) execute(ctx context.Context, w unit, rec *model.WorkflowRecord) (model.Session, model.SubmitResult, error) {
	if w.signer == nil {
		return w.session, model.SubmitResult{}, fmt.Errorf("signer is nil")
	}
	u := ticket.NewUnit(w.session)
	if err := w.build(ctx, u); err != nil {
		return w.session, model.SubmitResult{}, fmt.Errorf("build: %w", err)
	}
	tx, err := u.Seal()
	if err != nil {
		return w.session, model.SubmitResult{}, err
	}
	rec.Commands = len(tx.Commands)

	res, err := c.submitter.Submit(ctx, w.signer, tx, c.opts.GasBudget)
	if err != nil {
		return w.session, res, err
	}

	next := w.session
	if len(w.created) > 0 {
		entities, err := c.decoder.Extract(res.ObjectChanges, w.created...)
		if err != nil {
			return w.session, res, fmt.Errorf("%w: %v", ErrSessionIncomplete, err)
		}
		next = w.record(next, entities)
	}
	return ticket.Apply(next, u.Effects()), res, nil
}

func (c *Composer) append(ctx context.Context, rec model.WorkflowRecord, logger *zap.Logger) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Append(ctx, rec); err != nil {
		logger.Warn("journal append failed", zap.Error(err))
	}
}

// confirm waits for the fullnode to report the digest. A commit executed
// with local execution is final, so a timeout is only logged.
func (c *Composer) confirm(ctx context.Context, digest string, logger *zap.Logger) {
	if c.opts.SettleTimeout <= 0 {
		return
	}
	if _, err := c.submitter.WaitForConfirmation(ctx, digest, c.opts.SettleTimeout); err != nil {
		logger.Warn("confirmation wait failed", zap.String("digest", digest), zap.Error(err))
	}
}

// refresh fetches and submits fresh quotes for feeds and returns one
// price-info argument per feed, in order.
func (c *Composer) refresh(ctx context.Context, tx *ptb.Builder, feeds ...string) ([]ptb.Argument, error) {
	for i, feed := range feeds {
		if feed == "" {
			return nil, fmt.Errorf("%w: quote %d", ErrMissingFeed, i)
		}
	}
	payload, err := c.oracle.FetchUpdateData(ctx, feeds)
	if err != nil {
		return nil, err
	}
	return c.oracle.SubmitUpdate(tx, payload, feeds)
}

// coin returns an argument holding exactly amount of coin owned by owner.
// SUI is split off the gas coin; other coins are merged from owned objects.
func (c *Composer) coin(ctx context.Context, tx *ptb.Builder, owner sui.Address, coin config.Coin, amount uint64) (ptb.Argument, error) {
	if coin.Type.Equal(c.sui.Type) {
		return tx.SplitCoins(ptb.GasCoin(), amount).Nested(0), nil
	}
	ids, err := c.submitter.Coins(ctx, owner, coin.Type.String(), amount)
	if err != nil {
		return ptb.Argument{}, fmt.Errorf("select %s coins: %w", coin.Name, err)
	}
	if len(ids) == 0 {
		return ptb.Argument{}, fmt.Errorf("select %s coins: none returned", coin.Name)
	}
	primary := tx.Object(ids[0])
	if len(ids) > 1 {
		sources := make([]ptb.Argument, 0, len(ids)-1)
		for _, id := range ids[1:] {
			sources = append(sources, tx.Object(id))
		}
		tx.MergeCoins(primary, sources...)
	}
	return tx.SplitCoins(primary, amount).Nested(0), nil
}

// inspect dev-inspects a read-only transaction.
func (c *Composer) inspect(ctx context.Context, sender sui.Address, build func(tx *ptb.Builder)) ([]model.CallResult, error) {
	tx := ptb.NewBuilder()
	build(tx)
	return c.submitter.Inspect(ctx, sender, tx.Transaction())
}

func requireFarm(s model.Session) error {
	if !s.HasFarm() {
		return fmt.Errorf("%w: no farm in session", ticket.ErrEntityState)
	}
	return nil
}

func requireVault(s model.Session) error {
	if err := requireFarm(s); err != nil {
		return err
	}
	if !s.HasVault() {
		return fmt.Errorf("%w: no vault in session", ticket.ErrEntityState)
	}
	if s.VaultClosed {
		return fmt.Errorf("%w: vault %s is closed", ticket.ErrEntityState, s.Vault.Short())
	}
	return nil
}
