package bcs

import (
	"bytes"
	"math/big"
	"testing"
)

func TestULEB128(t *testing.T) {
	cases := []struct {
		value uint64
		want  []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}

	for _, tc := range cases {
		e := NewEncoder()
		e.ULEB128(tc.value)
		if !bytes.Equal(e.Bytes(), tc.want) {
			t.Fatalf("uleb128(%d) = %x, want %x", tc.value, e.Bytes(), tc.want)
		}
		got, err := NewDecoder(tc.want).ULEB128()
		if err != nil {
			t.Fatalf("decode uleb128(%d): %v", tc.value, err)
		}
		if got != tc.value {
			t.Fatalf("decode uleb128 = %d, want %d", got, tc.value)
		}
	}
}

func TestU64LittleEndian(t *testing.T) {
	got := U64Bytes(1_000_000_000)
	want := []byte{0x00, 0xca, 0x9a, 0x3b, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("u64 bytes = %x, want %x", got, want)
	}

	v, err := DecodeU64(got)
	if err != nil {
		t.Fatalf("decode u64: %v", err)
	}
	if v != 1_000_000_000 {
		t.Fatalf("decode u64 = %d", v)
	}
}

func TestDecodeU64RejectsTrailing(t *testing.T) {
	if _, err := DecodeU64(make([]byte, 9)); err == nil {
		t.Fatalf("expected error for trailing bytes")
	}
	if _, err := DecodeU64(make([]byte, 7)); err == nil {
		t.Fatalf("expected error for short input")
	}
}

func TestU128Vector(t *testing.T) {
	e := NewEncoder()
	e.ULEB128(2)
	one := big.NewInt(1)
	large, _ := new(big.Int).SetString("170141183460469231731687303715884105727", 10)
	if err := e.U128(one); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := e.U128(large); err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeU128Vector(e.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Cmp(one) != 0 || got[1].Cmp(large) != 0 {
		t.Fatalf("decoded mismatch: %v", got)
	}
}

func TestU128Overflow(t *testing.T) {
	e := NewEncoder()
	tooBig := new(big.Int).Lsh(big.NewInt(1), 128)
	if err := e.U128(tooBig); err == nil {
		t.Fatalf("expected overflow error")
	}
	if err := e.U128(big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative error")
	}
}

func TestByteVector(t *testing.T) {
	e := NewEncoder()
	e.ByteVector([]byte{0xde, 0xad})
	if !bytes.Equal(e.Bytes(), []byte{0x02, 0xde, 0xad}) {
		t.Fatalf("byte vector = %x", e.Bytes())
	}
	got, err := NewDecoder(e.Bytes()).ByteVector()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, []byte{0xde, 0xad}) {
		t.Fatalf("decoded = %x", got)
	}
}

func TestPrimitiveLayout(t *testing.T) {
	e := NewEncoder()
	e.U8(7)
	e.Bool(true)
	e.U16(0x0102)
	e.U32(0x01020304)
	e.String("ab")
	if err := e.Err(); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x07, 0x01, 0x02, 0x01, 0x04, 0x03, 0x02, 0x01, 0x02, 'a', 'b'}
	if !bytes.Equal(e.Bytes(), want) {
		t.Fatalf("layout = %x, want %x", e.Bytes(), want)
	}

	d := NewDecoder(want)
	if v, err := d.U8(); err != nil || v != 7 {
		t.Fatalf("u8 = %d, %v", v, err)
	}
	if v, err := d.Bool(); err != nil || !v {
		t.Fatalf("bool = %v, %v", v, err)
	}
	if v, err := d.U16(); err != nil || v != 0x0102 {
		t.Fatalf("u16 = %x, %v", v, err)
	}
}

func TestDecoderRejectsInvalidBool(t *testing.T) {
	if _, err := NewDecoder([]byte{2}).Bool(); err == nil {
		t.Fatalf("expected error for bool byte 2")
	}
	if _, err := NewDecoder(nil).U64(); err != ErrShortBuffer {
		t.Fatalf("short u64 error = %v, want ErrShortBuffer", err)
	}
}
