package workflow

import (
	"context"
	"fmt"
	"math/big"

	"vaultflow/internal/bcs"
	"vaultflow/internal/chain"
	"vaultflow/internal/model"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
	"vaultflow/internal/ticket"
)

// MaxTimestamp is the order expiry used for good-till-cancelled orders.
const MaxTimestamp uint64 = 1844674407370955161

// Order-book order types and self-matching options.
const (
	OrderNoRestriction uint8 = iota
	OrderImmediateOrCancel
	OrderFillOrKill
	OrderPostOnly
)

const (
	SelfMatchingAllowed uint8 = iota
	SelfMatchingCancelTaker
	SelfMatchingCancelMaker
)

// Order is a limit order in human units. Price is quote per base.
type Order struct {
	ClientID     uint64
	Price        *big.Rat
	Quantity     *big.Rat
	OrderType    uint8
	SelfMatching uint8
	IsBid        bool
	PayWithDeep  bool
	Expire       uint64
}

// DemoOrder bids 100 base at 0.001 quote, paying fees in DEEP.
func DemoOrder() Order {
	return Order{
		ClientID:    1,
		Price:       big.NewRat(1, 1000),
		Quantity:    big.NewRat(100, 1),
		OrderType:   OrderNoRestriction,
		IsBid:       true,
		PayWithDeep: true,
		Expire:      MaxTimestamp,
	}
}

func requireTradeCap(s model.Session) error {
	if err := requireVault(s); err != nil {
		return err
	}
	if s.VaultTradeCap.IsZero() {
		return fmt.Errorf("%w: no trade cap in session", ticket.ErrEntityState)
	}
	return nil
}

// PlaceOrder places a limit order on the vault's pool with the trade cap.
// Price and quantity are converted to native units before anything is built.
func (c *Composer) PlaceOrder(ctx context.Context, signer chain.Signer, s model.Session, o Order) (model.Session, model.SubmitResult, error) {
	if err := requireTradeCap(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	if o.Price == nil || o.Quantity == nil {
		return s, model.SubmitResult{}, fmt.Errorf("%w: order price and quantity are required", ErrUnrepresentable)
	}
	price, err := OrderPrice(o.Price, c.base, c.quote)
	if err != nil {
		return s, model.SubmitResult{}, err
	}
	quantity, err := OrderQuantity(o.Quantity, c.base)
	if err != nil {
		return s, model.SubmitResult{}, err
	}
	return c.run(ctx, unit{
		name:    "place-order",
		signer:  signer,
		session: s,
		build: func(_ context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			tx.MoveCall(c.target(moduleVault, "place_limit_order"), c.pairTypes(),
				tx.Object(s.Vault), tx.ReadOnlyObject(s.VaultTradeCap), tx.Object(c.addrs.Pool),
				tx.PureU64(o.ClientID), tx.PureU8(o.OrderType), tx.PureU8(o.SelfMatching),
				tx.PureU64(price), tx.PureU64(quantity),
				tx.PureBool(o.IsBid), tx.PureBool(o.PayWithDeep), tx.PureU64(o.Expire), tx.Clock())
			return nil
		},
	})
}

// OpenOrders lists the vault's open order ids on its pool.
func (c *Composer) OpenOrders(ctx context.Context, sender sui.Address, s model.Session) ([]*big.Int, error) {
	if !s.HasVault() {
		return nil, fmt.Errorf("%w: no vault in session", ticket.ErrEntityState)
	}
	results, err := c.inspect(ctx, sender, func(tx *ptb.Builder) {
		tx.MoveCall(c.target(moduleVault, "account_open_orders"), c.pairTypes(),
			tx.ReadOnlyObject(s.Vault), tx.ReadOnlyObject(c.addrs.Pool))
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || len(results[0].ReturnValues) == 0 {
		return nil, fmt.Errorf("account_open_orders: %w", ErrNoReturnValue)
	}
	return bcs.DecodeU128Vector(results[0].ReturnValues[0].Bytes)
}

// CancelOrder cancels one open order by id.
func (c *Composer) CancelOrder(ctx context.Context, signer chain.Signer, s model.Session, id *big.Int) (model.Session, model.SubmitResult, error) {
	if err := requireTradeCap(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	if id == nil || id.Sign() < 0 || id.BitLen() > 128 {
		return s, model.SubmitResult{}, fmt.Errorf("invalid order id %v", id)
	}
	return c.run(ctx, unit{
		name:    "cancel-order",
		signer:  signer,
		session: s,
		build: func(_ context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			tx.MoveCall(c.target(moduleVault, "cancel_order"), c.pairTypes(),
				tx.Object(s.Vault), tx.ReadOnlyObject(s.VaultTradeCap), tx.Object(c.addrs.Pool),
				tx.PureU128(id), tx.Clock())
			return nil
		},
	})
}

// CancelOpenOrders inspects the open orders and cancels each one in its
// own unit. It stops at the first failure and returns the ids cancelled.
func (c *Composer) CancelOpenOrders(ctx context.Context, signer chain.Signer, s model.Session) (model.Session, []*big.Int, error) {
	ids, err := c.OpenOrders(ctx, signer.Address(), s)
	if err != nil {
		return s, nil, err
	}
	var cancelled []*big.Int
	for _, id := range ids {
		next, _, err := c.CancelOrder(ctx, signer, s, id)
		if err != nil {
			return s, cancelled, err
		}
		s = next
		cancelled = append(cancelled, id)
	}
	return s, cancelled, nil
}

// CancelAllOrders cancels every open order of the vault.
func (c *Composer) CancelAllOrders(ctx context.Context, signer chain.Signer, s model.Session) (model.Session, model.SubmitResult, error) {
	if err := requireTradeCap(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	return c.run(ctx, unit{
		name:    "cancel-all-orders",
		signer:  signer,
		session: s,
		build: func(_ context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			tx.MoveCall(c.target(moduleVault, "cancel_all_orders"), c.pairTypes(),
				tx.Object(s.Vault), tx.ReadOnlyObject(s.VaultTradeCap), tx.Object(c.addrs.Pool), tx.Clock())
			return nil
		},
	})
}

// WithdrawSettledAmounts moves settled fills from the pool back into the vault.
func (c *Composer) WithdrawSettledAmounts(ctx context.Context, signer chain.Signer, s model.Session) (model.Session, model.SubmitResult, error) {
	if err := requireVault(s); err != nil {
		return s, model.SubmitResult{}, err
	}
	return c.run(ctx, unit{
		name:    "withdraw-settled",
		signer:  signer,
		session: s,
		build: func(_ context.Context, u *ticket.Unit) error {
			tx := u.Builder()
			tx.MoveCall(c.target(moduleVault, "withdraw_settled_amounts"), c.pairTypes(),
				tx.Object(s.Vault), tx.Object(c.addrs.Pool))
			return nil
		},
	})
}
