package simnet

import (
	"fmt"
	"math/big"

	"vaultflow/internal/bcs"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

const vaultModule = "lotus_db_vault"

func (x *execution) vaultTopUpTicket(c *ptb.MoveCall) ([]*value, error) {
	vault, err := x.openVault(c.Arguments[0])
	if err != nil {
		return nil, err
	}
	t := &ticketValue{Kind: ticketTopUp, Farm: vault.Vault.Farm, Vault: vault.ID}
	return []*value{hot(&hotValue{Kind: hotTicket, Ticket: t})}, nil
}

func (x *execution) vaultRedeemIncentive(c *ptb.MoveCall) ([]*value, error) {
	vault, err := x.vault(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	t, err := x.consumeTicket(c.Arguments[1], ticketTopUp)
	if err != nil {
		return nil, err
	}
	if t.Vault != vault.ID {
		return nil, x.abortf(vaultModule, "ticket was issued for another vault")
	}
	if t.Steps == 0 {
		return nil, x.abortf(vaultModule, "incentive was not pushed with the ticket")
	}
	reward := c.TypeArguments[1]
	amount := vault.Vault.Incentives[reward.String()]
	delete(vault.Vault.Incentives, reward.String())
	return []*value{x.mintCoin(reward, amount)}, nil
}

func (x *execution) vaultIncentiveValue(c *ptb.MoveCall) ([]*value, error) {
	vault, err := x.vault(c.Arguments[0], false)
	if err != nil {
		return nil, err
	}
	amount := vault.Vault.Incentives[c.TypeArguments[1].String()]
	return []*value{pureResult(bcs.U64Bytes(amount), "u64")}, nil
}

// tradingVault checks the trade cap and pool of an order call.
func (x *execution) tradingVault(c *ptb.MoveCall, withCap bool) (*object, error) {
	vault, err := x.openVault(c.Arguments[0])
	if err != nil {
		return nil, err
	}
	poolArg := c.Arguments[1]
	if withCap {
		capObj, err := x.ref(c.Arguments[1], false)
		if err != nil {
			return nil, err
		}
		if capObj.ID != vault.Vault.TradeCap {
			return nil, x.abortf(vaultModule, "%s is not the trade cap of vault %s", capObj.ID.Short(), vault.ID.Short())
		}
		poolArg = c.Arguments[2]
	}
	pool, err := x.pool(poolArg, c.TypeArguments[1], c.TypeArguments[2])
	if err != nil {
		return nil, err
	}
	if pool.ID != vault.Vault.Pool {
		return nil, x.abortf(vaultModule, "vault %s does not trade on pool %s", vault.ID.Short(), pool.ID.Short())
	}
	return vault, nil
}

func orderID(isBid bool, price, seq uint64) *big.Int {
	id := new(big.Int).SetUint64(price)
	id.Lsh(id, 64)
	id.Or(id, new(big.Int).SetUint64(seq))
	if isBid {
		id.SetBit(id, 127, 1)
	}
	return id
}

func (x *execution) vaultPlaceOrder(c *ptb.MoveCall) ([]*value, error) {
	vault, err := x.tradingVault(c, true)
	if err != nil {
		return nil, err
	}
	clientID, err := x.u64(c.Arguments[3])
	if err != nil {
		return nil, err
	}
	orderType, err := x.u8(c.Arguments[4])
	if err != nil {
		return nil, err
	}
	selfMatch, err := x.u8(c.Arguments[5])
	if err != nil {
		return nil, err
	}
	price, err := x.u64(c.Arguments[6])
	if err != nil {
		return nil, err
	}
	quantity, err := x.u64(c.Arguments[7])
	if err != nil {
		return nil, err
	}
	isBid, err := x.boolean(c.Arguments[8])
	if err != nil {
		return nil, err
	}
	if _, err := x.boolean(c.Arguments[9]); err != nil {
		return nil, err
	}
	expire, err := x.u64(c.Arguments[10])
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[11]); err != nil {
		return nil, err
	}
	switch {
	case orderType > 3:
		return nil, x.abortf("deepbook::order_info", "invalid order type %d", orderType)
	case selfMatch > 2:
		return nil, x.abortf("deepbook::order_info", "invalid self matching option %d", selfMatch)
	case price == 0 || quantity == 0:
		return nil, x.abortf("deepbook::order_info", "order price and quantity must be positive")
	case expire <= x.now:
		return nil, x.abortf("deepbook::order_info", "order expires in the past")
	}
	vault.Vault.OrderSeq++
	vault.Vault.Orders = append(vault.Vault.Orders, order{
		ID:       orderID(isBid, price, vault.Vault.OrderSeq),
		ClientID: clientID,
		Price:    price,
		Quantity: quantity,
		IsBid:    isBid,
	})
	return nil, nil
}

func (x *execution) vaultOpenOrders(c *ptb.MoveCall) ([]*value, error) {
	vault, err := x.tradingVault(c, false)
	if err != nil {
		return nil, err
	}
	e := bcs.NewEncoder()
	e.ULEB128(uint64(len(vault.Vault.Orders)))
	for _, o := range vault.Vault.Orders {
		if err := e.U128(o.ID); err != nil {
			return nil, err
		}
	}
	return []*value{pureResult(e.Bytes(), "vector<u128>")}, nil
}

func (x *execution) vaultCancelOrder(c *ptb.MoveCall) ([]*value, error) {
	vault, err := x.tradingVault(c, true)
	if err != nil {
		return nil, err
	}
	id, err := x.u128(c.Arguments[3])
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[4]); err != nil {
		return nil, err
	}
	orders := vault.Vault.Orders
	for i, o := range orders {
		if o.ID.Cmp(id) == 0 {
			vault.Vault.Orders = append(orders[:i:i], orders[i+1:]...)
			return nil, nil
		}
	}
	return nil, x.abortf("deepbook::big_vector", "order %s not found", id)
}

func (x *execution) vaultCancelAll(c *ptb.MoveCall) ([]*value, error) {
	vault, err := x.tradingVault(c, true)
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[3]); err != nil {
		return nil, err
	}
	vault.Vault.Orders = nil
	return nil, nil
}

func (x *execution) vaultWithdrawSettled(c *ptb.MoveCall) ([]*value, error) {
	if _, err := x.tradingVault(c, false); err != nil {
		return nil, err
	}
	return nil, nil
}

// pricedVault validates the arguments shared by pooled deposit and
// withdraw. The three price infos start at px: base, quote, then DEEP.
func (x *execution) pricedVault(c *ptb.MoveCall, pool, px, ag int) (*object, error) {
	base, quote := c.TypeArguments[1], c.TypeArguments[2]
	vault, err := x.openVault(c.Arguments[0])
	if err != nil {
		return nil, err
	}
	if _, err := x.activeConfig(c.Arguments[1]); err != nil {
		return nil, err
	}
	p, err := x.pool(c.Arguments[pool], base, quote)
	if err != nil {
		return nil, err
	}
	if p.ID != vault.Vault.Pool {
		return nil, x.abortf(vaultModule, "vault %s does not trade on pool %s", vault.ID.Short(), p.ID.Short())
	}
	aggregator, err := x.aggregator(c.Arguments[ag], false)
	if err != nil {
		return nil, err
	}
	if _, err := x.priceInfo(c.Arguments[px], aggregator, base); err != nil {
		return nil, err
	}
	if _, err := x.priceInfo(c.Arguments[px+1], aggregator, quote); err != nil {
		return nil, err
	}
	deep, err := x.ref(c.Arguments[px+2], false)
	if err != nil {
		return nil, err
	}
	if deep.PriceInfo == nil || !x.refreshed[deep.ID] {
		return nil, x.abortf("oracle_ag", "deep price info %s was not updated in this transaction", deep.ID.Short())
	}
	return vault, nil
}

func (x *execution) vaultDeposit(c *ptb.MoveCall) ([]*value, error) {
	base, quote := c.TypeArguments[1], c.TypeArguments[2]
	vault, err := x.pricedVault(c, 4, 5, 8)
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[9]); err != nil {
		return nil, err
	}
	baseAmount, err := x.consumeCoin(c.Arguments[2], base)
	if err != nil {
		return nil, err
	}
	quoteAmount, err := x.consumeCoin(c.Arguments[3], quote)
	if err != nil {
		return nil, err
	}
	if baseAmount == 0 && quoteAmount == 0 {
		return nil, x.abortf(vaultModule, "deposit is empty")
	}
	vs := vault.Vault
	vs.BaseBalance += baseAmount
	vs.QuoteBalance += quoteAmount
	pos, ok := vs.Positions[x.sender]
	if !ok {
		pos = &position{}
		vs.Positions[x.sender] = pos
	}
	pos.Base += baseAmount
	pos.Quote += quoteAmount
	return nil, nil
}

func (x *execution) vaultWithdraw(c *ptb.MoveCall) ([]*value, error) {
	base, quote := c.TypeArguments[1], c.TypeArguments[2]
	vault, err := x.pricedVault(c, 2, 3, 6)
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[7]); err != nil {
		return nil, err
	}
	vs := vault.Vault
	pos, ok := vs.Positions[x.sender]
	if !ok {
		return nil, x.abortf(vaultModule, "%s has no pooled position", x.sender.Short())
	}
	cfg := x.st.objects[x.addrs().LotusConfig].LotusConfig
	baseOut := x.payout(vs, base, min(pos.Base, vs.BaseBalance), cfg)
	quoteOut := x.payout(vs, quote, min(pos.Quote, vs.QuoteBalance), cfg)
	delete(vs.Positions, x.sender)
	return []*value{x.mintCoin(base, baseOut), x.mintCoin(quote, quoteOut)}, nil
}

// payout removes amount from the vault balance, retains the fees and
// returns what is paid to the depositor.
func (x *execution) payout(vs *vaultState, of sui.TypeTag, amount uint64, cfg *lotusConfigState) uint64 {
	if of.Equal(vs.Base) {
		vs.BaseBalance -= amount
	} else {
		vs.QuoteBalance -= amount
	}
	performance := amount * cfg.PerformanceFeeBps / 10_000
	strategy := amount * cfg.StrategyFeeBps / 10_000
	vs.Performance[of.String()] += performance
	vs.Strategy[of.String()] += strategy
	return amount - performance - strategy
}

func (x *execution) vaultPerformanceFees(c *ptb.MoveCall) ([]*value, error) {
	vault, err := x.vault(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	capObj, err := x.ref(c.Arguments[1], false)
	if err != nil {
		return nil, err
	}
	if capObj.ID != x.addrs().LotusConfigCap {
		return nil, x.abortf(vaultModule, "%s is not the config cap", capObj.ID.Short())
	}
	return []*value{x.drainFees(vault.Vault.Performance, c.TypeArguments[1])}, nil
}

func (x *execution) vaultStrategyFees(c *ptb.MoveCall) ([]*value, error) {
	vault, err := x.vault(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	if err := x.creatorCap(c.Arguments[1], vault); err != nil {
		return nil, err
	}
	return []*value{x.drainFees(vault.Vault.Strategy, c.TypeArguments[1])}, nil
}

func (x *execution) drainFees(fees map[string]uint64, of sui.TypeTag) *value {
	amount := fees[of.String()]
	delete(fees, of.String())
	return x.mintCoin(of, amount)
}

// OpenOrderIDs lists a vault's open order ids.
func (l *Ledger) OpenOrderIDs(vault sui.Address) ([]*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	obj, ok := l.st.objects[vault]
	if !ok || obj.Vault == nil {
		return nil, fmt.Errorf("vault %s not found", vault.Short())
	}
	out := make([]*big.Int, 0, len(obj.Vault.Orders))
	for _, o := range obj.Vault.Orders {
		out = append(out, new(big.Int).Set(o.ID))
	}
	return out, nil
}
