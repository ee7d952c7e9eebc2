package ptb

import (
	"errors"
	"fmt"

	"vaultflow/internal/bcs"
	"vaultflow/internal/sui"
)

var ErrUnresolvedInput = errors.New("object input not resolved")

// GasData is the gas payment section of transaction data.
type GasData struct {
	Payment []sui.ObjectRef
	Owner   sui.Address
	Price   uint64
	Budget  uint64
}

// TransactionData is the signable envelope of a programmable transaction.
type TransactionData struct {
	Tx     *Transaction
	Sender sui.Address
	Gas    GasData
}

// MarshalBCS encodes TransactionData::V1 with no expiration.
func (d TransactionData) MarshalBCS() ([]byte, error) {
	e := bcs.NewEncoder()
	e.ULEB128(0) // TransactionData::V1
	if err := encodeKind(e, d.Tx); err != nil {
		return nil, err
	}
	e.FixedBytes(d.Sender[:])
	e.ULEB128(uint64(len(d.Gas.Payment)))
	for _, ref := range d.Gas.Payment {
		ref.EncodeBCS(e)
	}
	e.FixedBytes(d.Gas.Owner[:])
	e.U64(d.Gas.Price)
	e.U64(d.Gas.Budget)
	e.ULEB128(0) // TransactionExpiration::None
	if err := e.Err(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// MarshalKindBCS encodes only the TransactionKind, as used by dev-inspect.
func (tx *Transaction) MarshalKindBCS() ([]byte, error) {
	e := bcs.NewEncoder()
	if err := encodeKind(e, tx); err != nil {
		return nil, err
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func encodeKind(e *bcs.Encoder, tx *Transaction) error {
	if tx == nil {
		return fmt.Errorf("transaction is nil")
	}
	e.ULEB128(0) // TransactionKind::ProgrammableTransaction

	e.ULEB128(uint64(len(tx.Inputs)))
	for i, in := range tx.Inputs {
		if err := encodeInput(e, in); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}

	e.ULEB128(uint64(len(tx.Commands)))
	for i, cmd := range tx.Commands {
		if err := encodeCommand(e, cmd); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}
	return nil
}

func encodeInput(e *bcs.Encoder, in Input) error {
	if in.Object == nil {
		e.ULEB128(0) // CallArg::Pure
		e.ByteVector(in.Pure)
		return nil
	}
	if in.Object.Arg == nil {
		return fmt.Errorf("%w: %s", ErrUnresolvedInput, in.Object.ID)
	}
	arg := in.Object.Arg
	e.ULEB128(1) // CallArg::Object
	e.ULEB128(uint64(arg.Kind))
	switch arg.Kind {
	case ObjectImmOrOwned, ObjectReceiving:
		arg.Ref.EncodeBCS(e)
	case ObjectShared:
		e.FixedBytes(arg.Ref.ObjectID[:])
		e.U64(arg.InitialSharedVersion)
		e.Bool(arg.Mutable)
	default:
		return fmt.Errorf("unknown object arg kind %d", arg.Kind)
	}
	return nil
}

func encodeArgument(e *bcs.Encoder, a Argument) {
	e.ULEB128(uint64(a.Kind))
	switch a.Kind {
	case ArgInput, ArgResult:
		e.U16(a.Index)
	case ArgNestedResult:
		e.U16(a.Index)
		e.U16(a.Sub)
	}
}

func encodeArguments(e *bcs.Encoder, args []Argument) {
	e.ULEB128(uint64(len(args)))
	for _, a := range args {
		encodeArgument(e, a)
	}
}

func encodeCommand(e *bcs.Encoder, cmd Command) error {
	e.ULEB128(uint64(cmd.Kind))
	switch cmd.Kind {
	case CommandMoveCall:
		call := cmd.MoveCall
		if call == nil {
			return fmt.Errorf("move call command without call")
		}
		e.FixedBytes(call.Target.Package[:])
		e.String(call.Target.Module)
		e.String(call.Target.Function)
		e.ULEB128(uint64(len(call.TypeArguments)))
		for _, tag := range call.TypeArguments {
			if err := tag.EncodeBCS(e); err != nil {
				return err
			}
		}
		encodeArguments(e, call.Arguments)
	case CommandTransferObjects:
		encodeArguments(e, cmd.Objects)
		encodeArgument(e, cmd.Recipient)
	case CommandSplitCoins:
		encodeArgument(e, cmd.Coin)
		encodeArguments(e, cmd.Amounts)
	case CommandMergeCoins:
		encodeArgument(e, cmd.Coin)
		encodeArguments(e, cmd.Sources)
	default:
		return fmt.Errorf("unsupported command kind %d", cmd.Kind)
	}
	return nil
}
