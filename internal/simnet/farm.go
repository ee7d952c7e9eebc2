package simnet

import (
	"bytes"
	"fmt"
	"sort"

	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

const farmModule = "lotus_lp_farm"

func (x *execution) farm(a ptb.Argument, mutable bool) (*object, error) {
	obj, err := x.ref(a, mutable)
	if err != nil {
		return nil, err
	}
	if obj.Farm == nil {
		return nil, fmt.Errorf("%s is not a farm", obj.ID.Short())
	}
	return obj, nil
}

func (x *execution) farmWithCap(c *ptb.MoveCall) (*object, error) {
	farm, err := x.farm(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	capObj, err := x.ref(c.Arguments[1], false)
	if err != nil {
		return nil, err
	}
	if capObj.FarmCap == nil || capObj.FarmCap.Target != farm.ID {
		return nil, x.abortf(farmModule, "%s is not the cap of farm %s", capObj.ID.Short(), farm.ID.Short())
	}
	return farm, nil
}

func (x *execution) tdFarm(farm *object, reward sui.TypeTag) (*tdFarm, error) {
	td, ok := farm.Farm.TDFarms[reward.String()]
	if !ok {
		return nil, x.abortf(farmModule, "farm %s has no incentive farm for %s", farm.ID.Short(), reward)
	}
	return td, nil
}

func (x *execution) ticket(a ptb.Argument, kind ticketKind) (*ticketValue, error) {
	v, err := x.live(a)
	if err != nil {
		return nil, err
	}
	if v.kind != valueHot || v.hot.Kind != hotTicket {
		return nil, fmt.Errorf("%s is not a ticket", a)
	}
	if v.hot.Ticket.Kind != kind {
		return nil, x.abortf(farmModule, "expected a %s ticket, got %s", kind, v.hot.Ticket.Kind)
	}
	return v.hot.Ticket, nil
}

func (x *execution) consumeTicket(a ptb.Argument, kind ticketKind) (*ticketValue, error) {
	t, err := x.ticket(a, kind)
	if err != nil {
		return nil, err
	}
	if _, err := x.takeHot(a, hotTicket); err != nil {
		return nil, err
	}
	return t, nil
}

func (x *execution) farmNew(c *ptb.MoveCall) ([]*value, error) {
	lotus := x.addrs().LotusPackage
	lp := c.TypeArguments[0]
	farm := x.create(&object{
		Type: sui.StructType(lotus, farmModule, "LotusLPFarm", lp),
		Farm: &farmState{
			AllowedAssets: make(map[string]bool),
			AllowedPools:  make(map[sui.Address]bool),
			TDFarms:       make(map[string]*tdFarm),
		},
	})
	capValue := x.create(&object{
		Type:    sui.StructType(lotus, farmModule, "LotusLPFarmCap", lp),
		FarmCap: &capState{Target: farm.id},
	})
	x.st.objects[farm.id].Farm.Cap = capValue.id
	return []*value{farm, capValue}, nil
}

func (x *execution) farmAllowAsset(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farmWithCap(c)
	if err != nil {
		return nil, err
	}
	farm.Farm.AllowedAssets[c.TypeArguments[1].String()] = true
	return nil, nil
}

func (x *execution) farmAllowPool(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farmWithCap(c)
	if err != nil {
		return nil, err
	}
	pool, err := x.pool(c.Arguments[2], c.TypeArguments[1], c.TypeArguments[2])
	if err != nil {
		return nil, err
	}
	farm.Farm.AllowedPools[pool.ID] = true
	return nil, nil
}

func (x *execution) pool(a ptb.Argument, base, quote sui.TypeTag) (*object, error) {
	obj, err := x.ref(a, true)
	if err != nil {
		return nil, err
	}
	if obj.Pool == nil {
		return nil, fmt.Errorf("%s is not a pool", obj.ID.Short())
	}
	if !obj.Pool.Base.Equal(base) || !obj.Pool.Quote.Equal(quote) {
		return nil, fmt.Errorf("pool %s trades %s/%s, not %s/%s", obj.ID.Short(), obj.Pool.Base, obj.Pool.Quote, base, quote)
	}
	return obj, nil
}

func (x *execution) farmAddTD(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farmWithCap(c)
	if err != nil {
		return nil, err
	}
	start, err := x.u64(c.Arguments[2])
	if err != nil {
		return nil, err
	}
	reward := c.TypeArguments[1]
	if _, ok := farm.Farm.TDFarms[reward.String()]; ok {
		return nil, x.abortf(farmModule, "incentive farm for %s already exists", reward)
	}
	farm.Farm.TDFarms[reward.String()] = &tdFarm{
		RewardType: reward,
		StartSec:   start,
		LastMs:     start * 1000,
		Members:    make(map[sui.Address]uint64),
	}
	return nil, nil
}

func (x *execution) farmTopUpBalance(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farm(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	td, err := x.tdFarm(farm, c.TypeArguments[1])
	if err != nil {
		return nil, err
	}
	amount, err := x.consumeCoin(c.Arguments[1], c.TypeArguments[1])
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[2]); err != nil {
		return nil, err
	}
	td.Balance += amount
	return nil, nil
}

func (x *execution) farmSetUnlockRate(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farmWithCap(c)
	if err != nil {
		return nil, err
	}
	td, err := x.tdFarm(farm, c.TypeArguments[1])
	if err != nil {
		return nil, err
	}
	rate, err := x.u64(c.Arguments[2])
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[3]); err != nil {
		return nil, err
	}
	x.accrueAll(farm, td)
	td.Rate = rate
	return nil, nil
}

// unlocked is the incentive released since the last accrual.
func (x *execution) unlocked(td *tdFarm) uint64 {
	from := td.LastMs
	if start := td.StartSec * 1000; start > from {
		from = start
	}
	if x.now <= from {
		return 0
	}
	amount := td.Rate * ((x.now - from) / 1000)
	if amount > td.Balance {
		amount = td.Balance
	}
	return amount
}

// accrueAll releases unlocked incentive to every member vault by weight.
func (x *execution) accrueAll(farm *object, td *tdFarm) {
	amount := x.unlocked(td)
	td.LastMs = x.now
	if amount == 0 {
		return
	}
	var total uint64
	for _, w := range td.Members {
		total += w
	}
	if total == 0 {
		return
	}
	var paid uint64
	for id, w := range td.Members {
		vault, ok := x.st.objects[id]
		if !ok || vault.Vault == nil {
			continue
		}
		share := amount * w / total
		vault.Vault.Incentives[td.RewardType.String()] += share
		x.touched[id] = true
		paid += share
	}
	td.Balance -= paid
}

func (x *execution) vault(a ptb.Argument, mutable bool) (*object, error) {
	obj, err := x.ref(a, mutable)
	if err != nil {
		return nil, err
	}
	if obj.Vault == nil {
		return nil, fmt.Errorf("%s is not a vault", obj.ID.Short())
	}
	return obj, nil
}

func (x *execution) openVault(a ptb.Argument) (*object, error) {
	vault, err := x.vault(a, true)
	if err != nil {
		return nil, err
	}
	if vault.Vault.Closed {
		return nil, x.abortf("lotus_db_vault", "vault %s is closed", vault.ID.Short())
	}
	return vault, nil
}

func (x *execution) farmCreateVault(c *ptb.MoveCall) ([]*value, error) {
	lp, base, quote := c.TypeArguments[0], c.TypeArguments[1], c.TypeArguments[2]
	farm, err := x.farm(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	if _, err := x.activeConfig(c.Arguments[1]); err != nil {
		return nil, err
	}
	pool, err := x.pool(c.Arguments[2], base, quote)
	if err != nil {
		return nil, err
	}
	if !farm.Farm.AllowedPools[pool.ID] {
		return nil, x.abortf(farmModule, "pool %s is not allowed in farm %s", pool.ID.Short(), farm.ID.Short())
	}
	for _, asset := range []sui.TypeTag{base, quote} {
		if !farm.Farm.AllowedAssets[asset.String()] {
			return nil, x.abortf(farmModule, "asset %s is not allowed in farm %s", asset, farm.ID.Short())
		}
	}
	baseAmount, err := x.consumeCoin(c.Arguments[3], base)
	if err != nil {
		return nil, err
	}
	quoteAmount, err := x.consumeCoin(c.Arguments[4], quote)
	if err != nil {
		return nil, err
	}
	ag, err := x.aggregator(c.Arguments[5], false)
	if err != nil {
		return nil, err
	}
	pxBase, err := x.priceInfo(c.Arguments[6], ag, base)
	if err != nil {
		return nil, err
	}
	pxQuote, err := x.priceInfo(c.Arguments[7], ag, quote)
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[8]); err != nil {
		return nil, err
	}

	lotus := x.addrs().LotusPackage
	vs := &vaultState{
		Farm:         farm.ID,
		Pool:         pool.ID,
		Base:         base,
		Quote:        quote,
		BaseBalance:  baseAmount,
		QuoteBalance: quoteAmount,
		Positions:    map[sui.Address]*position{x.sender: {Base: baseAmount, Quote: quoteAmount}},
		Incentives:   make(map[string]uint64),
		Performance:  make(map[string]uint64),
		Strategy:     make(map[string]uint64),
	}
	vs.Weight = x.weight(vs, ag, pxBase, pxQuote)
	vault := x.create(&object{Type: sui.StructType(lotus, "lotus_db_vault", "LotusDBVault", lp), Vault: vs})
	creator := x.create(&object{
		Type:     sui.StructType(lotus, "lotus_db_vault", "LotusDBVaultCap"),
		VaultCap: &vaultCapState{Vault: vault.id, Creator: true},
	})
	trade := x.create(&object{
		Type:     sui.StructType(lotus, "lotus_db_vault", "LotusDBVaultCap"),
		VaultCap: &vaultCapState{Vault: vault.id},
	})
	vs.CreatorCap = creator.id
	vs.TradeCap = trade.id
	t := hot(&hotValue{Kind: hotTicket, Ticket: &ticketValue{Kind: ticketCreate, Farm: farm.ID, Vault: vault.id}})
	return []*value{vault, creator, trade, t}, nil
}

func (x *execution) weight(vs *vaultState, ag *aggregatorState, base, quote *priceInfoState) uint64 {
	b := usdValue(vs.BaseBalance, base.Price, ag.Coins[vs.Base.String()].Decimals)
	q := usdValue(vs.QuoteBalance, quote.Price, ag.Coins[vs.Quote.String()].Decimals)
	w := b.Add(b, q)
	if !w.IsUint64() {
		return ^uint64(0)
	}
	return w.Uint64()
}

func (x *execution) farmRegisterVault(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farm(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	vault, err := x.openVault(c.Arguments[1])
	if err != nil {
		return nil, err
	}
	t, err := x.ticket(c.Arguments[2], ticketCreate)
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[3]); err != nil {
		return nil, err
	}
	if t.Farm != farm.ID || t.Vault != vault.ID {
		return nil, x.abortf(farmModule, "ticket was issued for another farm or vault")
	}
	td, err := x.tdFarm(farm, c.TypeArguments[1])
	if err != nil {
		return nil, err
	}
	if _, ok := td.Members[vault.ID]; ok {
		return nil, x.abortf(farmModule, "vault %s is already registered", vault.ID.Short())
	}
	x.accrueAll(farm, td)
	td.Members[vault.ID] = vault.Vault.Weight
	t.Steps++
	return nil, nil
}

func (x *execution) farmDestroyCreateTicket(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farm(c.Arguments[0], false)
	if err != nil {
		return nil, err
	}
	t, err := x.consumeTicket(c.Arguments[1], ticketCreate)
	if err != nil {
		return nil, err
	}
	if t.Farm != farm.ID {
		return nil, x.abortf(farmModule, "ticket was issued by another farm")
	}
	if t.Steps == 0 {
		return nil, x.abortf(farmModule, "vault %s was not registered before the ticket was destroyed", t.Vault.Short())
	}
	return nil, nil
}

func (x *execution) farmWeightTicket(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farm(c.Arguments[0], false)
	if err != nil {
		return nil, err
	}
	if _, err := x.tdFarm(farm, c.TypeArguments[1]); err != nil {
		return nil, err
	}
	return []*value{hot(&hotValue{Kind: hotTicket, Ticket: &ticketValue{Kind: ticketWeight, Farm: farm.ID}})}, nil
}

func (x *execution) farmUpdateWeight(c *ptb.MoveCall) ([]*value, error) {
	reward, base, quote := c.TypeArguments[1], c.TypeArguments[2], c.TypeArguments[3]
	farm, err := x.farm(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	vault, err := x.openVault(c.Arguments[1])
	if err != nil {
		return nil, err
	}
	if _, err := x.pool(c.Arguments[2], base, quote); err != nil {
		return nil, err
	}
	ag, err := x.aggregator(c.Arguments[6], false)
	if err != nil {
		return nil, err
	}
	if _, err := x.priceInfo(c.Arguments[3], ag, reward); err != nil {
		return nil, err
	}
	pxBase, err := x.priceInfo(c.Arguments[4], ag, base)
	if err != nil {
		return nil, err
	}
	pxQuote, err := x.priceInfo(c.Arguments[5], ag, quote)
	if err != nil {
		return nil, err
	}
	t, err := x.ticket(c.Arguments[7], ticketWeight)
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[8]); err != nil {
		return nil, err
	}
	if t.Farm != farm.ID {
		return nil, x.abortf(farmModule, "ticket was issued by another farm")
	}
	td, err := x.tdFarm(farm, reward)
	if err != nil {
		return nil, err
	}
	if _, ok := td.Members[vault.ID]; !ok {
		return nil, x.abortf(farmModule, "vault %s is not registered", vault.ID.Short())
	}
	x.accrueAll(farm, td)
	vault.Vault.Weight = x.weight(vault.Vault, ag, pxBase, pxQuote)
	td.Members[vault.ID] = vault.Vault.Weight
	t.Steps++
	return nil, nil
}

func (x *execution) farmDestroyWeightTicket(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farm(c.Arguments[0], false)
	if err != nil {
		return nil, err
	}
	t, err := x.consumeTicket(c.Arguments[1], ticketWeight)
	if err != nil {
		return nil, err
	}
	if t.Farm != farm.ID {
		return nil, x.abortf(farmModule, "ticket was issued by another farm")
	}
	if t.Steps == 0 {
		return nil, x.abortf(farmModule, "no vault weight was updated with the ticket")
	}
	return nil, nil
}

func (x *execution) farmPushIncentive(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farm(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	vault, err := x.openVault(c.Arguments[1])
	if err != nil {
		return nil, err
	}
	t, err := x.ticket(c.Arguments[2], ticketTopUp)
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[3]); err != nil {
		return nil, err
	}
	if t.Vault != vault.ID {
		return nil, x.abortf(farmModule, "ticket was issued for another vault")
	}
	if vault.Vault.Farm != farm.ID {
		return nil, x.abortf(farmModule, "vault %s belongs to another farm", vault.ID.Short())
	}
	td, err := x.tdFarm(farm, c.TypeArguments[1])
	if err != nil {
		return nil, err
	}
	if _, ok := td.Members[vault.ID]; ok {
		x.accrueAll(farm, td)
	}
	t.Steps++
	return nil, nil
}

func (x *execution) farmCloseVault(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farm(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	vault, err := x.openVault(c.Arguments[1])
	if err != nil {
		return nil, err
	}
	if err := x.creatorCap(c.Arguments[2], vault); err != nil {
		return nil, err
	}
	if vault.Vault.Farm != farm.ID {
		return nil, x.abortf(farmModule, "vault %s belongs to another farm", vault.ID.Short())
	}
	t := &ticketValue{Kind: ticketClose, Farm: farm.ID, Vault: vault.ID}
	return []*value{hot(&hotValue{Kind: hotTicket, Ticket: t})}, nil
}

func (x *execution) creatorCap(a ptb.Argument, vault *object) error {
	capObj, err := x.ref(a, false)
	if err != nil {
		return err
	}
	if capObj.VaultCap == nil || !capObj.VaultCap.Creator || capObj.VaultCap.Vault != vault.ID {
		return x.abortf("lotus_db_vault", "%s is not the creator cap of vault %s", capObj.ID.Short(), vault.ID.Short())
	}
	return nil
}

func (x *execution) farmDeregisterVault(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farm(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	vault, err := x.vault(c.Arguments[1], true)
	if err != nil {
		return nil, err
	}
	t, err := x.ticket(c.Arguments[2], ticketClose)
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[3]); err != nil {
		return nil, err
	}
	if t.Farm != farm.ID || t.Vault != vault.ID {
		return nil, x.abortf(farmModule, "ticket was issued for another farm or vault")
	}
	td, err := x.tdFarm(farm, c.TypeArguments[1])
	if err != nil {
		return nil, err
	}
	if _, ok := td.Members[vault.ID]; !ok {
		return nil, x.abortf(farmModule, "vault %s is not registered", vault.ID.Short())
	}
	x.accrueAll(farm, td)
	delete(td.Members, vault.ID)
	t.Steps++
	return nil, nil
}

func (x *execution) farmDestroyCloseTicket(c *ptb.MoveCall) ([]*value, error) {
	farm, err := x.farm(c.Arguments[0], false)
	if err != nil {
		return nil, err
	}
	t, err := x.consumeTicket(c.Arguments[1], ticketClose)
	if err != nil {
		return nil, err
	}
	if t.Farm != farm.ID {
		return nil, x.abortf(farmModule, "ticket was issued by another farm")
	}
	if t.Steps == 0 {
		return nil, x.abortf(farmModule, "vault %s was not deregistered before the ticket was destroyed", t.Vault.Short())
	}
	vault, ok := x.st.objects[t.Vault]
	if !ok || vault.Vault == nil {
		return nil, fmt.Errorf("vault %s no longer exists", t.Vault.Short())
	}
	vault.Vault.Closed = true
	x.touched[vault.ID] = true
	return nil, nil
}

// IncentiveMembers lists the vaults registered in farm's incentive sub-farm
// for reward, sorted by id.
func (l *Ledger) IncentiveMembers(farm sui.Address, reward sui.TypeTag) ([]sui.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	obj, ok := l.st.objects[farm]
	if !ok || obj.Farm == nil {
		return nil, fmt.Errorf("farm %s not found", farm.Short())
	}
	td, ok := obj.Farm.TDFarms[reward.String()]
	if !ok {
		return nil, fmt.Errorf("farm %s has no incentive farm for %s", farm.Short(), reward)
	}
	out := make([]sui.Address, 0, len(td.Members))
	for id := range td.Members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out, nil
}
