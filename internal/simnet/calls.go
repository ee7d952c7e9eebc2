package simnet

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultflow/internal/config"
	"vaultflow/internal/oracle"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

type handler struct {
	pkg   func(a *config.Addresses) sui.Address
	types int
	args  int
	fn    func(x *execution, c *ptb.MoveCall) ([]*value, error)
}

func lotusPackage(a *config.Addresses) sui.Address    { return a.LotusPackage }
func pythPackage(a *config.Addresses) sui.Address     { return a.PythPackage }
func wormholePackage(a *config.Addresses) sui.Address { return a.WormholePackage }
func frameworkPackage(*config.Addresses) sui.Address  { return sui.FrameworkAddress }

var handlers = map[string]handler{
	"transfer::public_share_object": {frameworkPackage, 1, 1, (*execution).shareObject},
	"vaa::parse_and_verify":         {wormholePackage, 0, 3, (*execution).parseAndVerify},

	"pyth::create_authenticated_price_infos_using_accumulator": {pythPackage, 0, 4, (*execution).createPriceInfos},
	"pyth::update_single_price_feed":                          {pythPackage, 0, 5, (*execution).updatePriceFeed},
	"hot_potato_vector::destroy":                              {pythPackage, 1, 1, (*execution).destroyPotato},

	"oracle_ag::update_pyth_price_id": {lotusPackage, 1, 3, (*execution).setPythPriceID},
	"oracle_ag::update_coin_decimal":  {lotusPackage, 1, 3, (*execution).setCoinDecimal},
	"oracle_ag::update_coin_config":   {lotusPackage, 1, 3, (*execution).setCoinConfig},

	"lotus_config::update_current_version":     {lotusPackage, 0, 3, configSetter(func(c *lotusConfigState, v uint64) { c.Version = v })},
	"lotus_config::update_performance_fee_bps": {lotusPackage, 0, 3, configSetter(func(c *lotusConfigState, v uint64) { c.PerformanceFeeBps = v })},
	"lotus_config::update_strategy_fee_bps":    {lotusPackage, 0, 3, configSetter(func(c *lotusConfigState, v uint64) { c.StrategyFeeBps = v })},
	"lotus_config::update_cold_down_ms":        {lotusPackage, 0, 3, configSetter(func(c *lotusConfigState, v uint64) { c.CooldownMs = v })},
	"lotus_config::update_max_deep_fee_bps":    {lotusPackage, 0, 3, configSetter(func(c *lotusConfigState, v uint64) { c.MaxDeepFeeBps = v })},

	"lotus_lp_farm::new":                                              {lotusPackage, 1, 0, (*execution).farmNew},
	"lotus_lp_farm::add_allowed_deposit_asset":                        {lotusPackage, 2, 2, (*execution).farmAllowAsset},
	"lotus_lp_farm::add_allowed_db_pool":                              {lotusPackage, 3, 3, (*execution).farmAllowPool},
	"lotus_lp_farm::add_td_farm":                                      {lotusPackage, 2, 3, (*execution).farmAddTD},
	"lotus_lp_farm::top_up_incentive_balance":                         {lotusPackage, 2, 3, (*execution).farmTopUpBalance},
	"lotus_lp_farm::set_farm_unlock_rate":                             {lotusPackage, 2, 4, (*execution).farmSetUnlockRate},
	"lotus_lp_farm::create_incentivized_db_vault":                     {lotusPackage, 3, 9, (*execution).farmCreateVault},
	"lotus_lp_farm::add_incentivized_db_vault_to_td_farm_with_ticket": {lotusPackage, 2, 4, (*execution).farmRegisterVault},
	"lotus_lp_farm::destroy_create_pool_ticket":                       {lotusPackage, 1, 2, (*execution).farmDestroyCreateTicket},
	"lotus_lp_farm::create_update_vault_weight_ticket":                {lotusPackage, 2, 1, (*execution).farmWeightTicket},
	"lotus_lp_farm::update_vault_weight_with_ticket":                  {lotusPackage, 4, 9, (*execution).farmUpdateWeight},
	"lotus_lp_farm::destroy_update_vault_weight_ticket":               {lotusPackage, 2, 2, (*execution).farmDestroyWeightTicket},
	"lotus_lp_farm::top_up_to_td_pool":                                {lotusPackage, 2, 4, (*execution).farmPushIncentive},
	"lotus_lp_farm::close_vault":                                      {lotusPackage, 1, 3, (*execution).farmCloseVault},
	"lotus_lp_farm::remove_farm_key_from_td_farm":                     {lotusPackage, 2, 4, (*execution).farmDeregisterVault},
	"lotus_lp_farm::destroy_close_vault_ticket":                       {lotusPackage, 1, 2, (*execution).farmDestroyCloseTicket},

	"lotus_db_vault::new_top_up_ticket":                   {lotusPackage, 1, 1, (*execution).vaultTopUpTicket},
	"lotus_db_vault::pooling_redeem_incentive":            {lotusPackage, 2, 2, (*execution).vaultRedeemIncentive},
	"lotus_db_vault::get_incentive_value":                 {lotusPackage, 2, 1, (*execution).vaultIncentiveValue},
	"lotus_db_vault::place_limit_order":                   {lotusPackage, 3, 12, (*execution).vaultPlaceOrder},
	"lotus_db_vault::account_open_orders":                 {lotusPackage, 3, 2, (*execution).vaultOpenOrders},
	"lotus_db_vault::cancel_order":                        {lotusPackage, 3, 5, (*execution).vaultCancelOrder},
	"lotus_db_vault::cancel_all_orders":                   {lotusPackage, 3, 4, (*execution).vaultCancelAll},
	"lotus_db_vault::withdraw_settled_amounts":            {lotusPackage, 3, 2, (*execution).vaultWithdrawSettled},
	"lotus_db_vault::pooling_deposit":                     {lotusPackage, 3, 10, (*execution).vaultDeposit},
	"lotus_db_vault::pooling_withdraw":                    {lotusPackage, 3, 8, (*execution).vaultWithdraw},
	"lotus_db_vault::withdraw_collected_performance_fees": {lotusPackage, 2, 2, (*execution).vaultPerformanceFees},
	"lotus_db_vault::withdraw_collected_strategy_fees":    {lotusPackage, 2, 2, (*execution).vaultStrategyFees},
}

func (x *execution) call(c *ptb.MoveCall) ([]*value, error) {
	name := c.Target.Name()
	h, ok := handlers[name]
	if !ok {
		return nil, fmt.Errorf("function %s not found", c.Target)
	}
	if pkg := h.pkg(&x.ledger.addrs); c.Target.Package != pkg {
		return nil, fmt.Errorf("function %s not found in package %s", name, c.Target.Package.Short())
	}
	if len(c.TypeArguments) != h.types {
		return nil, fmt.Errorf("%s: expected %d type arguments, got %d", name, h.types, len(c.TypeArguments))
	}
	if len(c.Arguments) != h.args {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", name, h.args, len(c.Arguments))
	}
	return h.fn(x, c)
}

func (x *execution) addrs() *config.Addresses {
	return &x.ledger.addrs
}

func (x *execution) shareObject(c *ptb.MoveCall) ([]*value, error) {
	obj, err := x.take(c.Arguments[0])
	if err != nil {
		return nil, err
	}
	if obj.Owner.Kind != ownerPending {
		return nil, x.abortf("0x2::transfer::share_object", "object %s was not created in this transaction", obj.ID.Short())
	}
	if !obj.Type.Equal(c.TypeArguments[0]) {
		return nil, fmt.Errorf("share: object %s has type %s, not %s", obj.ID.Short(), obj.Type, c.TypeArguments[0])
	}
	obj.Owner = sui.Owner{Kind: sui.OwnerShared}
	return nil, nil
}

func (x *execution) clock(a ptb.Argument) error {
	obj, err := x.ref(a, false)
	if err != nil {
		return err
	}
	if obj.ID != sui.ClockObjectID {
		return fmt.Errorf("%s is not the clock", obj.ID.Short())
	}
	return nil
}

// Pyth and Wormhole.

// simVAAMagic prefixes the ledger's stand-in for a guardian-signed VAA.
var simVAAMagic = []byte("SIMV")

func (x *execution) parseAndVerify(c *ptb.MoveCall) ([]*value, error) {
	state, err := x.ref(c.Arguments[0], false)
	if err != nil {
		return nil, err
	}
	if state.ID != x.addrs().WormholeState {
		return nil, x.abortf("wormhole::vaa", "wrong wormhole state %s", state.ID.Short())
	}
	raw, err := x.bytes(c.Arguments[1])
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[2]); err != nil {
		return nil, err
	}
	if len(raw) != len(simVAAMagic)+8 || string(raw[:len(simVAAMagic)]) != string(simVAAMagic) {
		return nil, x.abortf("wormhole::vaa", "invalid vaa signature")
	}
	return []*value{hot(&hotValue{Kind: hotVAA, VAA: raw})}, nil
}

func (x *execution) createPriceInfos(c *ptb.MoveCall) ([]*value, error) {
	state, err := x.ref(c.Arguments[0], false)
	if err != nil {
		return nil, err
	}
	if state.ID != x.addrs().PythState {
		return nil, x.abortf("pyth::pyth", "wrong pyth state %s", state.ID.Short())
	}
	msg, err := x.bytes(c.Arguments[1])
	if err != nil {
		return nil, err
	}
	verified, err := x.takeHot(c.Arguments[2], hotVAA)
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[3]); err != nil {
		return nil, err
	}
	vaa, err := oracle.ExtractVAA(msg)
	if err != nil {
		return nil, x.abortf("pyth::accumulator", "%v", err)
	}
	if string(vaa) != string(verified.VAA) {
		return nil, x.abortf("pyth::accumulator", "message vaa does not match the verified vaa")
	}
	updates, err := decodeUpdates(msg[updatesOffset(msg, vaa):])
	if err != nil {
		return nil, x.abortf("pyth::accumulator", "%v", err)
	}
	return []*value{hot(&hotValue{Kind: hotPotato, Updates: updates})}, nil
}

// updatesOffset is where the per-feed updates start, after the header and vaa.
func updatesOffset(msg, vaa []byte) int {
	return 7 + int(msg[6]) + 1 + 2 + len(vaa)
}

const updateLen = 32 + 8 + 8

func encodeUpdate(feed []byte, price, publishMs uint64) []byte {
	out := make([]byte, 0, updateLen)
	out = append(out, feed...)
	out = binary.BigEndian.AppendUint64(out, price)
	return binary.BigEndian.AppendUint64(out, publishMs)
}

func decodeUpdates(raw []byte) (map[string]priceUpdate, error) {
	if len(raw)%updateLen != 0 {
		return nil, fmt.Errorf("malformed price updates: %d bytes", len(raw))
	}
	out := make(map[string]priceUpdate, len(raw)/updateLen)
	for off := 0; off < len(raw); off += updateLen {
		feed := hexutil.Encode(raw[off : off+32])
		out[feed] = priceUpdate{
			Price:     binary.BigEndian.Uint64(raw[off+32:]),
			PublishMs: binary.BigEndian.Uint64(raw[off+40:]),
		}
	}
	return out, nil
}

func (x *execution) updatePriceFeed(c *ptb.MoveCall) ([]*value, error) {
	if _, err := x.ref(c.Arguments[0], false); err != nil {
		return nil, err
	}
	potato, err := x.takeHot(c.Arguments[1], hotPotato)
	if err != nil {
		return nil, err
	}
	info, err := x.ref(c.Arguments[2], true)
	if err != nil {
		return nil, err
	}
	if info.PriceInfo == nil {
		return nil, fmt.Errorf("%s is not a price info object", info.ID.Short())
	}
	fee, err := x.consumeCoin(c.Arguments[3], sui.MustParseTypeTag("0x2::sui::SUI"))
	if err != nil {
		return nil, err
	}
	if err := x.clock(c.Arguments[4]); err != nil {
		return nil, err
	}
	if fee < x.addrs().PythUpdateFee {
		return nil, x.abortf("pyth::pyth", "insufficient update fee: %d < %d", fee, x.addrs().PythUpdateFee)
	}
	update, ok := potato.Updates[info.PriceInfo.Feed]
	if !ok {
		return nil, x.abortf("pyth::pyth", "no update for feed %s", info.PriceInfo.Feed)
	}
	if update.PublishMs+uint64(MaxPriceAge.Milliseconds()) < x.now {
		return nil, x.abortf("pyth::pyth", "stale price update for feed %s", info.PriceInfo.Feed)
	}
	if update.PublishMs >= info.PriceInfo.PublishMs {
		info.PriceInfo.Price = update.Price
		info.PriceInfo.PublishMs = update.PublishMs
	}
	x.refreshed[info.ID] = true
	return []*value{hot(potato)}, nil
}

func (x *execution) destroyPotato(c *ptb.MoveCall) ([]*value, error) {
	if _, err := x.takeHot(c.Arguments[0], hotPotato); err != nil {
		return nil, err
	}
	return nil, nil
}

// priceInfo borrows a price info object that was refreshed earlier in the
// transaction and checks it serves the feed registered for coin.
func (x *execution) priceInfo(a ptb.Argument, ag *aggregatorState, coin sui.TypeTag) (*priceInfoState, error) {
	obj, err := x.ref(a, false)
	if err != nil {
		return nil, err
	}
	if obj.PriceInfo == nil {
		return nil, fmt.Errorf("%s is not a price info object", obj.ID.Short())
	}
	if !x.refreshed[obj.ID] {
		return nil, x.abortf("oracle_ag", "price info %s was not updated in this transaction", obj.ID.Short())
	}
	cfg, err := x.aggregatorCoin(ag, coin)
	if err != nil {
		return nil, err
	}
	if cfg.Feed != obj.PriceInfo.Feed {
		return nil, x.abortf("oracle_ag", "price info %s serves %s, expected %s for %s", obj.ID.Short(), obj.PriceInfo.Feed, cfg.Feed, coin)
	}
	return obj.PriceInfo, nil
}

// Oracle aggregator and config administration.

func (x *execution) aggregator(a ptb.Argument, mutable bool) (*aggregatorState, error) {
	obj, err := x.ref(a, mutable)
	if err != nil {
		return nil, err
	}
	if obj.Aggregator == nil {
		return nil, fmt.Errorf("%s is not the oracle aggregator", obj.ID.Short())
	}
	return obj.Aggregator, nil
}

func (x *execution) aggregatorCoin(ag *aggregatorState, coin sui.TypeTag) (*aggregatorCoin, error) {
	cfg, ok := ag.Coins[coin.String()]
	if !ok || !cfg.HasFeed {
		return nil, x.abortf("oracle_ag", "coin %s has no pyth price id", coin)
	}
	return cfg, nil
}

func (x *execution) adminAggregator(c *ptb.MoveCall) (*aggregatorCoin, error) {
	ag, err := x.aggregator(c.Arguments[0], true)
	if err != nil {
		return nil, err
	}
	capObj, err := x.ref(c.Arguments[1], false)
	if err != nil {
		return nil, err
	}
	if capObj.ID != x.addrs().OracleAggregatorCap {
		return nil, x.abortf("oracle_ag", "%s is not the aggregator cap", capObj.ID.Short())
	}
	key := c.TypeArguments[0].String()
	coin, ok := ag.Coins[key]
	if !ok {
		coin = &aggregatorCoin{}
		ag.Coins[key] = coin
	}
	return coin, nil
}

func (x *execution) setPythPriceID(c *ptb.MoveCall) ([]*value, error) {
	coin, err := x.adminAggregator(c)
	if err != nil {
		return nil, err
	}
	id, err := x.bytes(c.Arguments[2])
	if err != nil {
		return nil, err
	}
	if len(id) != 32 {
		return nil, x.abortf("oracle_ag", "pyth price id must be 32 bytes, got %d", len(id))
	}
	coin.Feed = hexutil.Encode(id)
	coin.HasFeed = true
	return nil, nil
}

func (x *execution) setCoinDecimal(c *ptb.MoveCall) ([]*value, error) {
	coin, err := x.adminAggregator(c)
	if err != nil {
		return nil, err
	}
	if coin.Decimals, err = x.u8(c.Arguments[2]); err != nil {
		return nil, err
	}
	return nil, nil
}

func (x *execution) setCoinConfig(c *ptb.MoveCall) ([]*value, error) {
	coin, err := x.adminAggregator(c)
	if err != nil {
		return nil, err
	}
	if coin.Config, err = x.u64(c.Arguments[2]); err != nil {
		return nil, err
	}
	return nil, nil
}

func configSetter(set func(*lotusConfigState, uint64)) func(*execution, *ptb.MoveCall) ([]*value, error) {
	return func(x *execution, c *ptb.MoveCall) ([]*value, error) {
		cfg, err := x.lotusConfig(c.Arguments[0], true)
		if err != nil {
			return nil, err
		}
		capObj, err := x.ref(c.Arguments[1], false)
		if err != nil {
			return nil, err
		}
		if capObj.ID != x.addrs().LotusConfigCap {
			return nil, x.abortf("lotus_config", "%s is not the config cap", capObj.ID.Short())
		}
		v, err := x.u64(c.Arguments[2])
		if err != nil {
			return nil, err
		}
		set(cfg, v)
		return nil, nil
	}
}

func (x *execution) lotusConfig(a ptb.Argument, mutable bool) (*lotusConfigState, error) {
	obj, err := x.ref(a, mutable)
	if err != nil {
		return nil, err
	}
	if obj.LotusConfig == nil {
		return nil, fmt.Errorf("%s is not the lotus config", obj.ID.Short())
	}
	return obj.LotusConfig, nil
}

// activeConfig requires the config to have been versioned by setup.
func (x *execution) activeConfig(a ptb.Argument) (*lotusConfigState, error) {
	cfg, err := x.lotusConfig(a, false)
	if err != nil {
		return nil, err
	}
	if cfg.Version == 0 {
		return nil, x.abortf("lotus_config", "config version is not set")
	}
	return cfg, nil
}

// usdValue prices amount of coin in 1e-8 USD using the aggregator decimals.
func usdValue(amount uint64, price uint64, decimals uint8) *big.Int {
	v := new(big.Int).Mul(new(big.Int).SetUint64(amount), new(big.Int).SetUint64(price))
	return v.Quo(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}
