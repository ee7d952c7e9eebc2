// Package simnet is an in-memory Sui ledger that executes the Lotus, Pyth
// and DeepBook calls issued by the workflows. It stands in for a fullnode
// in tests and in `vaultflow demo --simulate`.
package simnet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"vaultflow/internal/chain"
	"vaultflow/internal/config"
	"vaultflow/internal/model"
	"vaultflow/internal/oracle"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

// MaxPriceAge is how old a price update may be when it is applied.
const MaxPriceAge = 60 * time.Second

const (
	referenceGasPrice = 1000
	blockInterval     = time.Second
)

// Genesis seeds a ledger.
type Genesis struct {
	Addresses config.Addresses
	// Admin owns the oracle aggregator cap and the lotus config cap.
	Admin sui.Address
	// Prices maps feed id to a price with exponent -8.
	Prices map[string]uint64
	Start  time.Time
}

// Ledger is a single-process ledger. All methods are safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	st       *state
	addrs    config.Addresses
	oracle   oracle.Config
	nowMs    uint64
	txs      map[string]model.SubmitResult
	executed []string
	logger   *zap.Logger
}

func NewLedger(g Genesis, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if g.Start.IsZero() {
		g.Start = time.UnixMilli(1_735_689_600_000)
	}
	l := &Ledger{
		st:     newState(),
		addrs:  g.Addresses,
		nowMs:  uint64(g.Start.UnixMilli()),
		txs:    make(map[string]model.SubmitResult),
		logger: logger,
	}
	if err := l.genesis(g); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) genesis(g Genesis) error {
	a := &l.addrs
	if a.LotusPackage.IsZero() {
		return fmt.Errorf("genesis: lotus package is required")
	}
	if a.PythPackage.IsZero() {
		a.PythPackage = l.st.newID()
	}
	if a.WormholePackage.IsZero() {
		a.WormholePackage = l.st.newID()
	}
	for _, id := range []*sui.Address{&a.OracleAggregator, &a.OracleAggregatorCap, &a.LotusConfig, &a.LotusConfigCap, &a.Pool, &a.PythState, &a.WormholeState} {
		if id.IsZero() {
			*id = l.st.newID()
		}
	}

	base, err := a.Coin(a.PoolBase)
	if err != nil {
		return fmt.Errorf("genesis: pool base: %w", err)
	}
	quote, err := a.Coin(a.PoolQuote)
	if err != nil {
		return fmt.Errorf("genesis: pool quote: %w", err)
	}

	shared := sui.Owner{Kind: sui.OwnerShared, InitialSharedVersion: 1}
	admin := sui.Owner{Kind: sui.OwnerAddress, Address: g.Admin}
	l.put(&object{ID: sui.ClockObjectID, Type: sui.StructType(sui.FrameworkAddress, "clock", "Clock"), Owner: shared})
	l.put(&object{
		ID:         a.OracleAggregator,
		Type:       sui.StructType(a.LotusPackage, "oracle_ag", "OracleAggregator"),
		Owner:      shared,
		Aggregator: &aggregatorState{Coins: make(map[string]*aggregatorCoin)},
	})
	l.put(&object{ID: a.OracleAggregatorCap, Type: sui.StructType(a.LotusPackage, "oracle_ag", "OracleAggregatorCap"), Owner: admin})
	l.put(&object{
		ID:          a.LotusConfig,
		Type:        sui.StructType(a.LotusPackage, "lotus_config", "LotusConfig"),
		Owner:       shared,
		LotusConfig: &lotusConfigState{},
	})
	l.put(&object{ID: a.LotusConfigCap, Type: sui.StructType(a.LotusPackage, "lotus_config", "LotusConfigCap"), Owner: admin})
	l.put(&object{
		ID:    a.Pool,
		Type:  sui.StructType(a.DeepBookPackage, "pool", "Pool", base.Type, quote.Type),
		Owner: shared,
		Pool:  &poolState{Base: base.Type, Quote: quote.Type},
	})
	l.put(&object{ID: a.PythState, Type: sui.StructType(a.PythPackage, "state", "State"), Owner: shared})
	l.put(&object{ID: a.WormholeState, Type: sui.StructType(a.WormholePackage, "state", "State"), Owner: shared})

	feeds := make(map[string]struct{})
	for _, feed := range a.Feeds() {
		feeds[oracle.NormalizeFeedID(feed)] = struct{}{}
	}
	for feed := range g.Prices {
		feeds[oracle.NormalizeFeedID(feed)] = struct{}{}
	}
	infos := make(map[string]sui.Address, len(feeds))
	for feed := range feeds {
		id, ok := a.PriceInfoObjects[feed]
		if !ok || id.IsZero() {
			id = l.st.newID()
		}
		infos[feed] = id
		l.put(&object{
			ID:        id,
			Type:      sui.StructType(a.PythPackage, "price_info", "PriceInfoObject"),
			Owner:     shared,
			PriceInfo: &priceInfoState{Feed: feed},
		})
	}
	a.PriceInfoObjects = infos

	l.oracle = oracle.Config{
		PythPackage:      a.PythPackage,
		PythState:        a.PythState,
		WormholePackage:  a.WormholePackage,
		WormholeState:    a.WormholeState,
		BaseUpdateFee:    a.PythUpdateFee,
		PriceInfoObjects: infos,
	}
	return nil
}

func (l *Ledger) put(obj *object) {
	if obj.Version == 0 {
		obj.Version = 1
	}
	l.st.objects[obj.ID] = obj
}

// Addresses returns the address table with every genesis object filled in.
func (l *Ledger) Addresses() config.Addresses {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addrs
}

// OracleConfig addresses the ledger's Pyth and Wormhole objects.
func (l *Ledger) OracleConfig() oracle.Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.oracle
}

// Now is the ledger clock.
func (l *Ledger) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.UnixMilli(int64(l.nowMs))
}

// Advance moves the ledger clock forward.
func (l *Ledger) Advance(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nowMs += uint64(d.Milliseconds())
}

// Fund mints a coin of coinType to owner and returns the coin id.
func (l *Ledger) Fund(owner sui.Address, of sui.TypeTag, amount uint64) sui.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.st.newID()
	l.put(&object{
		ID:    id,
		Type:  coinType(of),
		Owner: sui.Owner{Kind: sui.OwnerAddress, Address: owner},
		Coin:  &coinState{CoinType: of, Balance: amount},
	})
	return id
}

// Balance sums owner's coins of coinType.
func (l *Ledger) Balance(owner sui.Address, of sui.TypeTag) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total uint64
	for _, obj := range l.st.objects {
		if obj.Coin != nil && obj.Owner.Kind == sui.OwnerAddress && obj.Owner.Address == owner && obj.Coin.CoinType.Equal(of) {
			total += obj.Coin.Balance
		}
	}
	return total
}

// Versions snapshots every object's version; equal snapshots mean no commit happened.
func (l *Ledger) Versions() map[sui.Address]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[sui.Address]uint64, len(l.st.objects))
	for id, obj := range l.st.objects {
		out[id] = obj.Version
	}
	return out
}

// Owner reports an object's owner.
func (l *Ledger) Owner(id sui.Address) (sui.Owner, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	obj, ok := l.st.objects[id]
	if !ok {
		return sui.Owner{}, false
	}
	return obj.Owner, true
}

// SetFees sets the vault fee rates directly, bypassing the config cap.
func (l *Ledger) SetFees(performanceBps, strategyBps uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cfg := l.st.objects[l.addrs.LotusConfig].LotusConfig
	cfg.PerformanceFeeBps = performanceBps
	cfg.StrategyFeeBps = strategyBps
}

// Executed lists committed and aborted digests in submission order.
func (l *Ledger) Executed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.executed...)
}

// Submit executes tx atomically. An aborted transaction leaves no state
// change and returns its failure result wrapped in chain.ErrExecutionFailed.
func (l *Ledger) Submit(ctx context.Context, signer chain.Signer, tx *ptb.Transaction, budget uint64) (model.SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return model.SubmitResult{}, fmt.Errorf("%w: %v", chain.ErrSubmission, err)
	}
	if signer == nil {
		return model.SubmitResult{}, fmt.Errorf("%w: signer is nil", chain.ErrSubmission)
	}
	if tx == nil {
		return model.SubmitResult{}, fmt.Errorf("%w: transaction is nil", chain.ErrSubmission)
	}
	sender := signer.Address()

	l.mu.Lock()
	defer l.mu.Unlock()

	gas, err := l.gasCoin(sender, budget)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("%w: %v", chain.ErrSubmission, err)
	}
	if err := l.resolve(tx); err != nil {
		return model.SubmitResult{}, fmt.Errorf("%w: resolve: %v", chain.ErrSubmission, err)
	}
	txBytes, err := ptb.TransactionData{
		Tx:     tx,
		Sender: sender,
		Gas: ptb.GasData{
			Payment: []sui.ObjectRef{l.ref(gas)},
			Owner:   sender,
			Price:   referenceGasPrice,
			Budget:  budget,
		},
	}.MarshalBCS()
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("%w: encode: %v", chain.ErrSubmission, err)
	}
	if _, err := signer.SignTransaction(txBytes); err != nil {
		return model.SubmitResult{}, fmt.Errorf("%w: sign: %v", chain.ErrSubmission, err)
	}
	digest := sui.TransactionDigest(txBytes).String()

	l.nowMs += uint64(blockInterval.Milliseconds())
	x := newExecution(l, l.st.clone(), sender, gas)
	err = x.run(tx)

	result := model.SubmitResult{Digest: digest}
	if err != nil {
		result.Status = model.StatusFailure
		result.Error = err.Error()
	} else {
		result.Status = model.StatusSuccess
		result.ObjectChanges = l.commit(x)
	}
	l.txs[digest] = result
	l.executed = append(l.executed, digest)
	l.logger.Debug("simnet transaction",
		zap.String("digest", digest),
		zap.String("status", result.Status),
		zap.String("error", result.Error),
		zap.Int("commands", len(tx.Commands)),
		zap.Int("object_changes", len(result.ObjectChanges)),
	)
	if err != nil {
		return result, fmt.Errorf("%w: %s", chain.ErrExecutionFailed, result.Error)
	}
	return result, nil
}

// Inspect executes tx against a throwaway copy and returns per-command
// return values.
func (l *Ledger) Inspect(ctx context.Context, sender sui.Address, tx *ptb.Transaction) ([]model.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrInspection, err)
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: transaction is nil", chain.ErrInspection)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.resolve(tx); err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrInspection, err)
	}
	x := newExecution(l, l.st.clone(), sender, sui.Address{})
	if err := x.run(tx); err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrInspection, err)
	}
	return x.returns, nil
}

// WaitForConfirmation returns the recorded result of digest.
func (l *Ledger) WaitForConfirmation(ctx context.Context, digest string, timeout time.Duration) (model.SubmitResult, error) {
	if timeout <= 0 {
		return model.SubmitResult{Digest: digest}, nil
	}
	if err := ctx.Err(); err != nil {
		return model.SubmitResult{}, fmt.Errorf("wait for %s: %w", digest, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	result, ok := l.txs[digest]
	if !ok {
		return model.SubmitResult{}, fmt.Errorf("wait for %s: transaction not found", digest)
	}
	return result, nil
}

// Coins selects owner's coins of coinType, largest first, until amount is covered.
func (l *Ledger) Coins(ctx context.Context, owner sui.Address, coinType string, amount uint64) ([]sui.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	of, err := sui.ParseTypeTag(coinType)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	coins := l.coinsOf(owner, of)
	var (
		out   []sui.Address
		total uint64
	)
	for _, obj := range coins {
		if total >= amount && len(out) > 0 {
			break
		}
		out = append(out, obj.ID)
		total += obj.Coin.Balance
	}
	if total < amount || len(out) == 0 {
		return nil, fmt.Errorf("insufficient %s balance for %s: have %d, need %d", coinType, owner.Short(), total, amount)
	}
	return out, nil
}

func (l *Ledger) coinsOf(owner sui.Address, of sui.TypeTag) []*object {
	var coins []*object
	for _, obj := range l.st.objects {
		if obj.Coin != nil && obj.Owner.Kind == sui.OwnerAddress && obj.Owner.Address == owner && obj.Coin.CoinType.Equal(of) {
			coins = append(coins, obj)
		}
	}
	sort.Slice(coins, func(i, j int) bool {
		if coins[i].Coin.Balance != coins[j].Coin.Balance {
			return coins[i].Coin.Balance > coins[j].Coin.Balance
		}
		return coins[i].ID.String() < coins[j].ID.String()
	})
	return coins
}

func (l *Ledger) gasCoin(sender sui.Address, budget uint64) (sui.Address, error) {
	coins := l.coinsOf(sender, sui.MustParseTypeTag("0x2::sui::SUI"))
	if len(coins) == 0 {
		return sui.Address{}, fmt.Errorf("no gas coin owned by %s", sender.Short())
	}
	if coins[0].Coin.Balance < budget {
		return sui.Address{}, fmt.Errorf("insufficient gas: largest coin %d < budget %d", coins[0].Coin.Balance, budget)
	}
	return coins[0].ID, nil
}

func (l *Ledger) ref(id sui.Address) sui.ObjectRef {
	obj := l.st.objects[id]
	return sui.ObjectRef{ObjectID: id, Version: obj.Version, Digest: objectDigest(obj)}
}

// resolve fills object inputs the way the fullnode resolver does.
func (l *Ledger) resolve(tx *ptb.Transaction) error {
	for i := range tx.Inputs {
		in := tx.Inputs[i].Object
		if in == nil {
			continue
		}
		obj, ok := l.st.objects[in.ID]
		if !ok {
			return fmt.Errorf("object %s not found", in.ID.Short())
		}
		if obj.Owner.IsShared() {
			in.Arg = &ptb.ObjectArg{Kind: ptb.ObjectShared, InitialSharedVersion: obj.Owner.InitialSharedVersion, Mutable: in.Mutable}
			continue
		}
		in.Arg = &ptb.ObjectArg{Kind: ptb.ObjectImmOrOwned, Ref: l.ref(in.ID)}
	}
	return nil
}

func objectDigest(obj *object) sui.Digest {
	seed := append(append([]byte{}, obj.ID[:]...), byte(obj.Version), byte(obj.Version>>8), byte(obj.Version>>16))
	return sui.TransactionDigest(seed)
}

// commit installs the execution's state and returns the object changes.
func (l *Ledger) commit(x *execution) []model.ObjectChange {
	before := l.st
	after := x.st
	version := uint64(0)
	for id := range x.touched {
		if obj, ok := before.objects[id]; ok && obj.Version > version {
			version = obj.Version
		}
	}
	if obj, ok := before.objects[x.gas]; ok && obj.Version > version {
		version = obj.Version
	}
	version++
	x.touched[x.gas] = true

	var changes []model.ObjectChange
	for id, obj := range after.objects {
		prev, existed := before.objects[id]
		switch {
		case !existed:
			obj.Version = version
			if obj.Owner.IsShared() {
				obj.Owner.InitialSharedVersion = version
			}
			changes = append(changes, change(model.ChangeCreated, obj))
		case x.touched[id]:
			obj.Version = version
			kind := model.ChangeMutated
			if prev.Owner != obj.Owner {
				kind = model.ChangeTransferred
			}
			changes = append(changes, change(kind, obj))
		}
	}
	for id, obj := range before.objects {
		if _, ok := after.objects[id]; !ok {
			changes = append(changes, model.ObjectChange{Type: model.ChangeDeleted, ObjectID: id, ObjectType: obj.Type.String()})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Type != changes[j].Type {
			return changes[i].Type < changes[j].Type
		}
		return changes[i].ObjectID.String() < changes[j].ObjectID.String()
	})
	l.st = after
	return changes
}

func change(kind model.ObjectChangeType, obj *object) model.ObjectChange {
	return model.ObjectChange{
		Type:       kind,
		ObjectID:   obj.ID,
		ObjectType: obj.Type.String(),
		Owner:      obj.Owner,
		Version:    obj.Version,
	}
}
