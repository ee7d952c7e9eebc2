// Package ptb builds Sui programmable transaction blocks: an ordered list of
// commands over shared inputs, executed as one atomic unit.
package ptb

import (
	"fmt"
	"math/big"
	"strings"

	"vaultflow/internal/bcs"
	"vaultflow/internal/sui"
)

// ArgumentKind tags an Argument in BCS order.
type ArgumentKind uint8

const (
	ArgGasCoin ArgumentKind = iota
	ArgInput
	ArgResult
	ArgNestedResult
)

// Argument refers to an input, the gas coin, or the output of a prior command.
type Argument struct {
	Kind  ArgumentKind
	Index uint16
	Sub   uint16
}

// GasCoin is the argument for the transaction's gas payment coin.
func GasCoin() Argument {
	return Argument{Kind: ArgGasCoin}
}

func (a Argument) String() string {
	switch a.Kind {
	case ArgGasCoin:
		return "GasCoin"
	case ArgInput:
		return fmt.Sprintf("Input(%d)", a.Index)
	case ArgResult:
		return fmt.Sprintf("Result(%d)", a.Index)
	default:
		return fmt.Sprintf("NestedResult(%d,%d)", a.Index, a.Sub)
	}
}

// Result is the output handle of a command.
type Result struct {
	index uint16
}

// Arg refers to the whole result of a single-value command.
func (r Result) Arg() Argument {
	return Argument{Kind: ArgResult, Index: r.index}
}

// Nested refers to the i-th value returned by a command.
func (r Result) Nested(i int) Argument {
	return Argument{Kind: ArgNestedResult, Index: r.index, Sub: uint16(i)}
}

// Index is the command position that produced the result.
func (r Result) Index() int {
	return int(r.index)
}

// Target is a fully qualified Move function.
type Target struct {
	Package  sui.Address
	Module   string
	Function string
}

func NewTarget(pkg sui.Address, module, function string) Target {
	return Target{Package: pkg, Module: module, Function: function}
}

// ParseTarget parses `0xpkg::module::function`.
func ParseTarget(input string) (Target, error) {
	parts := strings.Split(input, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return Target{}, fmt.Errorf("invalid move call target %q", input)
	}
	pkg, err := sui.ParseAddress(parts[0])
	if err != nil {
		return Target{}, err
	}
	return Target{Package: pkg, Module: parts[1], Function: parts[2]}, nil
}

func (t Target) String() string {
	return t.Package.Short() + "::" + t.Module + "::" + t.Function
}

// Name is `module::function`, the package-independent call name.
func (t Target) Name() string {
	return t.Module + "::" + t.Function
}

// Input is a pure value or an object reference awaiting resolution.
type Input struct {
	Pure   []byte
	Object *ObjectInput
}

// ObjectInput names an object; Arg is filled by the resolver.
type ObjectInput struct {
	ID      sui.Address
	Mutable bool
	Arg     *ObjectArg
}

// ObjectArgKind tags ObjectArg variants in BCS order.
type ObjectArgKind uint8

const (
	ObjectImmOrOwned ObjectArgKind = iota
	ObjectShared
	ObjectReceiving
)

// ObjectArg is a resolved object input.
type ObjectArg struct {
	Kind                 ObjectArgKind
	Ref                  sui.ObjectRef
	InitialSharedVersion uint64
	Mutable              bool
}

// CommandKind tags commands in BCS order.
type CommandKind uint8

const (
	CommandMoveCall CommandKind = iota
	CommandTransferObjects
	CommandSplitCoins
	CommandMergeCoins
	CommandPublish
	CommandMakeMoveVec
	CommandUpgrade
)

// MoveCall is a call to a Move function.
type MoveCall struct {
	Target        Target
	TypeArguments []sui.TypeTag
	Arguments     []Argument
}

// Command is one step of the programmable transaction.
type Command struct {
	Kind     CommandKind
	MoveCall *MoveCall

	// TransferObjects
	Objects   []Argument
	Recipient Argument

	// SplitCoins and MergeCoins
	Coin    Argument
	Amounts []Argument
	Sources []Argument
}

// Transaction is a built programmable transaction.
type Transaction struct {
	Inputs   []Input
	Commands []Command
}

// Builder accumulates inputs and commands. Object inputs are deduplicated.
type Builder struct {
	inputs   []Input
	objects  map[sui.Address]uint16
	commands []Command
}

func NewBuilder() *Builder {
	return &Builder{objects: make(map[sui.Address]uint16)}
}

func (b *Builder) input(in Input) Argument {
	b.inputs = append(b.inputs, in)
	return Argument{Kind: ArgInput, Index: uint16(len(b.inputs) - 1)}
}

// Pure adds raw BCS bytes as a pure input.
func (b *Builder) Pure(data []byte) Argument {
	return b.input(Input{Pure: append([]byte(nil), data...)})
}

func (b *Builder) PureU8(v uint8) Argument {
	return b.Pure([]byte{v})
}

func (b *Builder) PureU64(v uint64) Argument {
	return b.Pure(bcs.U64Bytes(v))
}

func (b *Builder) PureBool(v bool) Argument {
	if v {
		return b.Pure([]byte{1})
	}
	return b.Pure([]byte{0})
}

// PureU128 panics on values outside the u128 range; callers pass validated ids.
func (b *Builder) PureU128(v *big.Int) Argument {
	e := bcs.NewEncoder()
	if err := e.U128(v); err != nil {
		panic(err)
	}
	return b.Pure(e.Bytes())
}

func (b *Builder) PureAddress(addr sui.Address) Argument {
	return b.Pure(addr[:])
}

// PureBytes adds a vector<u8> input.
func (b *Builder) PureBytes(data []byte) Argument {
	e := bcs.NewEncoder()
	e.ByteVector(data)
	return b.Pure(e.Bytes())
}

// Object adds a mutable object input.
func (b *Builder) Object(id sui.Address) Argument {
	return b.object(id, true)
}

// ReadOnlyObject adds an object input used by immutable reference only.
func (b *Builder) ReadOnlyObject(id sui.Address) Argument {
	return b.object(id, false)
}

func (b *Builder) object(id sui.Address, mutable bool) Argument {
	if idx, ok := b.objects[id]; ok {
		if mutable {
			b.inputs[idx].Object.Mutable = true
		}
		return Argument{Kind: ArgInput, Index: idx}
	}
	arg := b.input(Input{Object: &ObjectInput{ID: id, Mutable: mutable}})
	b.objects[id] = arg.Index
	return arg
}

// Clock adds the shared system clock.
func (b *Builder) Clock() Argument {
	return b.ReadOnlyObject(sui.ClockObjectID)
}

func (b *Builder) command(cmd Command) Result {
	b.commands = append(b.commands, cmd)
	return Result{index: uint16(len(b.commands) - 1)}
}

// MoveCall appends a Move function call.
func (b *Builder) MoveCall(target Target, typeArgs []sui.TypeTag, args ...Argument) Result {
	return b.command(Command{
		Kind: CommandMoveCall,
		MoveCall: &MoveCall{
			Target:        target,
			TypeArguments: append([]sui.TypeTag(nil), typeArgs...),
			Arguments:     append([]Argument(nil), args...),
		},
	})
}

// TransferObjects sends objects to a recipient address.
func (b *Builder) TransferObjects(objects []Argument, recipient sui.Address) {
	b.command(Command{
		Kind:      CommandTransferObjects,
		Objects:   append([]Argument(nil), objects...),
		Recipient: b.PureAddress(recipient),
	})
}

// SplitCoins splits amounts off a coin; result i is the i-th new coin.
func (b *Builder) SplitCoins(coin Argument, amounts ...uint64) Result {
	args := make([]Argument, 0, len(amounts))
	for _, amount := range amounts {
		args = append(args, b.PureU64(amount))
	}
	return b.command(Command{Kind: CommandSplitCoins, Coin: coin, Amounts: args})
}

// MergeCoins merges sources into the destination coin.
func (b *Builder) MergeCoins(destination Argument, sources ...Argument) {
	b.command(Command{Kind: CommandMergeCoins, Coin: destination, Sources: append([]Argument(nil), sources...)})
}

// ShareObject calls 0x2::transfer::public_share_object for objType.
func (b *Builder) ShareObject(object Argument, objType sui.TypeTag) {
	b.MoveCall(NewTarget(sui.FrameworkAddress, "transfer", "public_share_object"), []sui.TypeTag{objType}, object)
}

// Len reports the number of commands so far.
func (b *Builder) Len() int {
	return len(b.commands)
}

// Command returns the command at position i.
func (b *Builder) Command(i int) (Command, bool) {
	if i < 0 || i >= len(b.commands) {
		return Command{}, false
	}
	return b.commands[i], true
}

// Transaction returns a deep copy of the built transaction.
func (b *Builder) Transaction() *Transaction {
	tx := &Transaction{
		Inputs:   make([]Input, len(b.inputs)),
		Commands: make([]Command, len(b.commands)),
	}
	for i, in := range b.inputs {
		tx.Inputs[i] = in.clone()
	}
	copy(tx.Commands, b.commands)
	return tx
}

func (in Input) clone() Input {
	out := Input{}
	if in.Pure != nil {
		out.Pure = append([]byte(nil), in.Pure...)
	}
	if in.Object != nil {
		obj := *in.Object
		if in.Object.Arg != nil {
			arg := *in.Object.Arg
			obj.Arg = &arg
		}
		out.Object = &obj
	}
	return out
}

// ObjectIDs lists the object inputs in input order.
func (tx *Transaction) ObjectIDs() []sui.Address {
	ids := make([]sui.Address, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if in.Object != nil {
			ids = append(ids, in.Object.ID)
		}
	}
	return ids
}

// MoveCalls returns the Move call commands in order.
func (tx *Transaction) MoveCalls() []MoveCall {
	calls := make([]MoveCall, 0, len(tx.Commands))
	for _, cmd := range tx.Commands {
		if cmd.Kind == CommandMoveCall && cmd.MoveCall != nil {
			calls = append(calls, *cmd.MoveCall)
		}
	}
	return calls
}
