package simnet

import (
	"errors"
	"fmt"
	"math/big"

	"vaultflow/internal/bcs"
	"vaultflow/internal/model"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

type valueKind int

const (
	valuePure valueKind = iota
	valueObject
	valueHot
)

type hotKind int

const (
	hotTicket hotKind = iota
	hotPotato
	hotVAA
)

func (k hotKind) String() string {
	switch k {
	case hotTicket:
		return "ticket"
	case hotPotato:
		return "price info hot potato"
	default:
		return "verified vaa"
	}
}

type ticketKind string

const (
	ticketCreate ticketKind = "create_pool"
	ticketWeight ticketKind = "update_vault_weight"
	ticketClose  ticketKind = "close_vault"
	ticketTopUp  ticketKind = "top_up"
)

type ticketValue struct {
	Kind  ticketKind
	Farm  sui.Address
	Vault sui.Address
	Steps int
}

type priceUpdate struct {
	Price     uint64
	PublishMs uint64
}

type hotValue struct {
	Kind    hotKind
	Ticket  *ticketValue
	Updates map[string]priceUpdate
	VAA     []byte
}

type value struct {
	kind  valueKind
	pure  []byte
	typ   string
	id    sui.Address
	hot   *hotValue
	input bool
	moved bool
}

// moveAbort is a ledger abort with a module-qualified location.
type moveAbort struct {
	location string
	reason   string
}

func (a *moveAbort) Error() string {
	return fmt.Sprintf("MoveAbort in %s: %s", a.location, a.reason)
}

type execution struct {
	ledger    *Ledger
	st        *state
	sender    sui.Address
	gas       sui.Address
	now       uint64
	inputs    []*value
	results   [][]*value
	touched   map[sui.Address]bool
	refreshed map[sui.Address]bool
	returns   []model.CallResult
	command   int
}

func newExecution(l *Ledger, st *state, sender, gas sui.Address) *execution {
	return &execution{
		ledger:    l,
		st:        st,
		sender:    sender,
		gas:       gas,
		now:       l.nowMs,
		touched:   make(map[sui.Address]bool),
		refreshed: make(map[sui.Address]bool),
	}
}

func (x *execution) abortf(location, format string, args ...any) error {
	return &moveAbort{location: location, reason: fmt.Sprintf(format, args...)}
}

func (x *execution) run(tx *ptb.Transaction) error {
	if err := x.loadInputs(tx.Inputs); err != nil {
		return err
	}
	for i, cmd := range tx.Commands {
		x.command = i
		out, err := x.exec(cmd)
		if err != nil {
			var abort *moveAbort
			if errors.As(err, &abort) {
				return fmt.Errorf("command %d: %w", i, err)
			}
			return fmt.Errorf("command %d: %v", i, err)
		}
		x.results = append(x.results, out)
		x.returns = append(x.returns, returnValues(out))
	}
	return x.checkUnused()
}

func (x *execution) loadInputs(inputs []ptb.Input) error {
	x.inputs = make([]*value, len(inputs))
	for i, in := range inputs {
		if in.Object == nil {
			x.inputs[i] = &value{kind: valuePure, pure: in.Pure, input: true}
			continue
		}
		obj, ok := x.st.objects[in.Object.ID]
		if !ok {
			return fmt.Errorf("input %d: object %s not found", i, in.Object.ID.Short())
		}
		switch obj.Owner.Kind {
		case sui.OwnerAddress:
			if obj.Owner.Address != x.sender {
				return fmt.Errorf("input %d: object %s is owned by %s, not the sender", i, obj.ID.Short(), obj.Owner.Address.Short())
			}
		case sui.OwnerObject:
			return fmt.Errorf("input %d: object %s is a child object", i, obj.ID.Short())
		case sui.OwnerImmutable:
			if in.Object.Mutable {
				return fmt.Errorf("input %d: immutable object %s passed as mutable", i, obj.ID.Short())
			}
		}
		x.inputs[i] = &value{kind: valueObject, id: obj.ID, input: true}
	}
	return nil
}

func returnValues(out []*value) model.CallResult {
	var res model.CallResult
	for _, v := range out {
		if v.kind == valuePure && v.typ != "" {
			res.ReturnValues = append(res.ReturnValues, model.ReturnValue{Bytes: v.pure, Type: v.typ})
		}
	}
	return res
}

// checkUnused rejects values without drop left at the end of the transaction.
func (x *execution) checkUnused() error {
	for i, out := range x.results {
		for j, v := range out {
			if v.moved {
				continue
			}
			switch v.kind {
			case valueHot:
				return fmt.Errorf("UnusedValueWithoutDrop: result %d value %d (%s)", i, j, v.hot.Kind)
			case valueObject:
				if obj, ok := x.st.objects[v.id]; ok && obj.Owner.Kind == ownerPending {
					return fmt.Errorf("UnusedValueWithoutDrop: result %d value %d (%s)", i, j, obj.Type)
				}
			}
		}
	}
	return nil
}

func (x *execution) exec(cmd ptb.Command) ([]*value, error) {
	switch cmd.Kind {
	case ptb.CommandMoveCall:
		if cmd.MoveCall == nil {
			return nil, fmt.Errorf("move call command without call")
		}
		return x.call(cmd.MoveCall)
	case ptb.CommandTransferObjects:
		return nil, x.transfer(cmd.Objects, cmd.Recipient)
	case ptb.CommandSplitCoins:
		return x.split(cmd.Coin, cmd.Amounts)
	case ptb.CommandMergeCoins:
		return nil, x.merge(cmd.Coin, cmd.Sources)
	default:
		return nil, fmt.Errorf("unsupported command kind %d", cmd.Kind)
	}
}

func (x *execution) arg(a ptb.Argument) (*value, error) {
	switch a.Kind {
	case ptb.ArgGasCoin:
		if x.gas.IsZero() {
			return nil, fmt.Errorf("gas coin is not available")
		}
		return &value{kind: valueObject, id: x.gas, input: true}, nil
	case ptb.ArgInput:
		if int(a.Index) >= len(x.inputs) {
			return nil, fmt.Errorf("input %d out of range", a.Index)
		}
		return x.inputs[a.Index], nil
	case ptb.ArgResult, ptb.ArgNestedResult:
		if int(a.Index) >= len(x.results) {
			return nil, fmt.Errorf("%s refers to a later command", a)
		}
		out := x.results[a.Index]
		sub := int(a.Sub)
		if a.Kind == ptb.ArgResult {
			if len(out) != 1 {
				return nil, fmt.Errorf("%s: command returned %d values", a, len(out))
			}
			sub = 0
		}
		if sub >= len(out) {
			return nil, fmt.Errorf("%s out of range", a)
		}
		return out[sub], nil
	}
	return nil, fmt.Errorf("unknown argument kind %d", a.Kind)
}

func (x *execution) live(a ptb.Argument) (*value, error) {
	v, err := x.arg(a)
	if err != nil {
		return nil, err
	}
	if v.moved {
		return nil, fmt.Errorf("%s was already moved", a)
	}
	return v, nil
}

// ref borrows an object argument; a mutable borrow marks it touched.
func (x *execution) ref(a ptb.Argument, mutable bool) (*object, error) {
	v, err := x.live(a)
	if err != nil {
		return nil, err
	}
	if v.kind != valueObject {
		return nil, fmt.Errorf("%s is not an object", a)
	}
	obj, ok := x.st.objects[v.id]
	if !ok {
		return nil, fmt.Errorf("%s: object %s no longer exists", a, v.id.Short())
	}
	if mutable {
		if obj.Owner.Kind == sui.OwnerImmutable {
			return nil, fmt.Errorf("%s: object %s is immutable", a, v.id.Short())
		}
		x.touched[obj.ID] = true
	}
	return obj, nil
}

// take moves an object argument by value.
func (x *execution) take(a ptb.Argument) (*object, error) {
	v, err := x.live(a)
	if err != nil {
		return nil, err
	}
	if v.kind != valueObject {
		return nil, fmt.Errorf("%s is not an object", a)
	}
	obj, ok := x.st.objects[v.id]
	if !ok {
		return nil, fmt.Errorf("%s: object %s no longer exists", a, v.id.Short())
	}
	if obj.Owner.IsShared() {
		return nil, fmt.Errorf("%s: shared object %s cannot be taken by value", a, v.id.Short())
	}
	if obj.Owner.Kind == sui.OwnerImmutable {
		return nil, fmt.Errorf("%s: immutable object %s cannot be taken by value", a, v.id.Short())
	}
	if a.Kind == ptb.ArgGasCoin {
		return nil, fmt.Errorf("gas coin cannot be taken by value")
	}
	v.moved = true
	x.touched[obj.ID] = true
	return obj, nil
}

func (x *execution) takeHot(a ptb.Argument, kind hotKind) (*hotValue, error) {
	v, err := x.live(a)
	if err != nil {
		return nil, err
	}
	if v.kind != valueHot || v.hot.Kind != kind {
		return nil, fmt.Errorf("%s is not a %s", a, kind)
	}
	v.moved = true
	return v.hot, nil
}

func (x *execution) pure(a ptb.Argument) (*bcs.Decoder, error) {
	v, err := x.live(a)
	if err != nil {
		return nil, err
	}
	if v.kind != valuePure {
		return nil, fmt.Errorf("%s is not a pure value", a)
	}
	return bcs.NewDecoder(v.pure), nil
}

func (x *execution) u64(a ptb.Argument) (uint64, error) {
	d, err := x.pure(a)
	if err != nil {
		return 0, err
	}
	return d.U64()
}

func (x *execution) u8(a ptb.Argument) (uint8, error) {
	d, err := x.pure(a)
	if err != nil {
		return 0, err
	}
	return d.U8()
}

func (x *execution) boolean(a ptb.Argument) (bool, error) {
	d, err := x.pure(a)
	if err != nil {
		return false, err
	}
	return d.Bool()
}

func (x *execution) u128(a ptb.Argument) (*big.Int, error) {
	d, err := x.pure(a)
	if err != nil {
		return nil, err
	}
	return d.U128()
}

func (x *execution) bytes(a ptb.Argument) ([]byte, error) {
	d, err := x.pure(a)
	if err != nil {
		return nil, err
	}
	return d.ByteVector()
}

func (x *execution) address(a ptb.Argument) (sui.Address, error) {
	d, err := x.pure(a)
	if err != nil {
		return sui.Address{}, err
	}
	raw, err := d.FixedBytes(sui.AddressLength)
	if err != nil {
		return sui.Address{}, err
	}
	var addr sui.Address
	copy(addr[:], raw)
	return addr, nil
}

// create adds an object that must be placed before the transaction ends.
func (x *execution) create(obj *object) *value {
	obj.ID = x.st.newID()
	obj.Owner = sui.Owner{Kind: ownerPending}
	x.st.objects[obj.ID] = obj
	x.touched[obj.ID] = true
	return &value{kind: valueObject, id: obj.ID}
}

func (x *execution) mintCoin(of sui.TypeTag, amount uint64) *value {
	return x.create(&object{Type: coinType(of), Coin: &coinState{CoinType: of, Balance: amount}})
}

func hot(h *hotValue) *value {
	return &value{kind: valueHot, hot: h}
}

func pureResult(data []byte, typ string) *value {
	return &value{kind: valuePure, pure: data, typ: typ}
}

func (x *execution) transfer(objects []ptb.Argument, recipient ptb.Argument) error {
	to, err := x.address(recipient)
	if err != nil {
		return fmt.Errorf("transfer recipient: %w", err)
	}
	for _, a := range objects {
		v, err := x.live(a)
		if err != nil {
			return err
		}
		if v.kind == valueHot {
			return fmt.Errorf("%s (%s) has no key ability and cannot be transferred", a, v.hot.Kind)
		}
		obj, err := x.take(a)
		if err != nil {
			return err
		}
		obj.Owner = sui.Owner{Kind: sui.OwnerAddress, Address: to}
	}
	return nil
}

func (x *execution) split(coinArg ptb.Argument, amounts []ptb.Argument) ([]*value, error) {
	coin, err := x.ref(coinArg, true)
	if err != nil {
		return nil, err
	}
	if coin.Coin == nil {
		return nil, fmt.Errorf("split: %s is not a coin", coin.ID.Short())
	}
	out := make([]*value, 0, len(amounts))
	for _, a := range amounts {
		amount, err := x.u64(a)
		if err != nil {
			return nil, err
		}
		if coin.Coin.Balance < amount {
			return nil, x.abortf("0x2::balance::split", "insufficient balance: %d < %d", coin.Coin.Balance, amount)
		}
		coin.Coin.Balance -= amount
		out = append(out, x.mintCoin(coin.Coin.CoinType, amount))
	}
	return out, nil
}

func (x *execution) merge(dstArg ptb.Argument, sources []ptb.Argument) error {
	dst, err := x.ref(dstArg, true)
	if err != nil {
		return err
	}
	if dst.Coin == nil {
		return fmt.Errorf("merge: %s is not a coin", dst.ID.Short())
	}
	for _, a := range sources {
		src, err := x.take(a)
		if err != nil {
			return err
		}
		if src.Coin == nil || !src.Coin.CoinType.Equal(dst.Coin.CoinType) {
			return fmt.Errorf("merge: %s is not a %s coin", src.ID.Short(), dst.Coin.CoinType)
		}
		dst.Coin.Balance += src.Coin.Balance
		delete(x.st.objects, src.ID)
	}
	return nil
}

// consumeCoin takes a coin of the given type by value and destroys it.
func (x *execution) consumeCoin(a ptb.Argument, of sui.TypeTag) (uint64, error) {
	coin, err := x.take(a)
	if err != nil {
		return 0, err
	}
	if coin.Coin == nil || !coin.Coin.CoinType.Equal(of) {
		return 0, fmt.Errorf("%s is not a %s coin", coin.ID.Short(), of)
	}
	delete(x.st.objects, coin.ID)
	return coin.Coin.Balance, nil
}
