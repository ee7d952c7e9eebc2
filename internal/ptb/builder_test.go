package ptb

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"vaultflow/internal/sui"
)

var testPackage = sui.MustParseAddress("0xe8c606b96e6b84e7f2c4c25924cbfc6a30114ef3662f8daf5f9a0087c441ecde")

func TestBuilderDeduplicatesObjects(t *testing.T) {
	b := NewBuilder()
	vault := sui.MustParseAddress("0x262b")

	first := b.ReadOnlyObject(vault)
	second := b.Object(vault)
	if first != second {
		t.Fatalf("object inputs not deduplicated: %s != %s", first, second)
	}

	tx := b.Transaction()
	if len(tx.Inputs) != 1 {
		t.Fatalf("inputs = %d, want 1", len(tx.Inputs))
	}
	if !tx.Inputs[0].Object.Mutable {
		t.Fatalf("mutable use should upgrade the shared input")
	}
}

func TestBuilderResultsAndNested(t *testing.T) {
	b := NewBuilder()
	target := NewTarget(testPackage, "lotus_lp_farm", "new")
	res := b.MoveCall(target, nil)
	b.TransferObjects([]Argument{res.Nested(1)}, sui.MustParseAddress("0x10"))

	tx := b.Transaction()
	if len(tx.Commands) != 2 {
		t.Fatalf("commands = %d", len(tx.Commands))
	}
	transfer := tx.Commands[1]
	if transfer.Kind != CommandTransferObjects {
		t.Fatalf("kind = %d", transfer.Kind)
	}
	want := Argument{Kind: ArgNestedResult, Index: 0, Sub: 1}
	if transfer.Objects[0] != want {
		t.Fatalf("nested arg = %s", transfer.Objects[0])
	}
	if res.Arg() != (Argument{Kind: ArgResult, Index: 0}) {
		t.Fatalf("result arg = %s", res.Arg())
	}
}

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("0x2::transfer::public_share_object")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if target.Package != sui.FrameworkAddress || target.Name() != "transfer::public_share_object" {
		t.Fatalf("target mismatch: %s", target)
	}
	if target.String() != "0x2::transfer::public_share_object" {
		t.Fatalf("string = %s", target)
	}
	if _, err := ParseTarget("0x2::transfer"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTransactionIsSnapshot(t *testing.T) {
	b := NewBuilder()
	b.PureU64(1)
	tx := b.Transaction()
	b.PureU64(2)
	if len(tx.Inputs) != 1 {
		t.Fatalf("snapshot changed after further building")
	}
}

func TestMarshalRequiresResolvedObjects(t *testing.T) {
	b := NewBuilder()
	b.Object(sui.MustParseAddress("0x99"))
	_, err := TransactionData{Tx: b.Transaction()}.MarshalBCS()
	if !errors.Is(err, ErrUnresolvedInput) {
		t.Fatalf("expected unresolved input error, got %v", err)
	}
}

func TestMarshalKindLayout(t *testing.T) {
	b := NewBuilder()
	amount := b.PureU64(5)
	b.SplitCoins(GasCoin(), 5)
	_ = amount

	raw, err := b.Transaction().MarshalKindBCS()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := []byte{
		0x00,       // ProgrammableTransaction
		0x02,       // two inputs
		0x00, 0x08, // Pure, 8 bytes
		5, 0, 0, 0, 0, 0, 0, 0,
		0x00, 0x08,
		5, 0, 0, 0, 0, 0, 0, 0,
		0x01,       // one command
		0x02,       // SplitCoins
		0x00,       // GasCoin
		0x01,       // one amount
		0x01, 1, 0, // Input(1)
	}
	if !bytes.Equal(raw, want) {
		t.Fatalf("kind bytes mismatch:\n got %x\nwant %x", raw, want)
	}
}

func TestMarshalSharedObjectAndU128(t *testing.T) {
	b := NewBuilder()
	pool := b.Object(sui.MustParseAddress("0x48"))
	id := b.PureU128(big.NewInt(1))
	b.MoveCall(NewTarget(testPackage, "lotus_db_vault", "cancel_order"), nil, pool, id)

	tx := b.Transaction()
	tx.Inputs[0].Object.Arg = &ObjectArg{
		Kind:                 ObjectShared,
		Ref:                  sui.ObjectRef{ObjectID: tx.Inputs[0].Object.ID},
		InitialSharedVersion: 7,
		Mutable:              true,
	}
	raw, err := tx.MarshalKindBCS()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("empty encoding")
	}
	if !bytes.Contains(raw, []byte{0x01, 0x01}) {
		t.Fatalf("missing shared object tag: %x", raw)
	}
}
