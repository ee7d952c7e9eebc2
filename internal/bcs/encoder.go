// Package bcs streams Binary Canonical Serialization values for Sui
// programmable transactions. Primitive values go through go-bcs; this
// package adds the enum tags and fixed layouts the transaction format needs.
package bcs

import (
	"fmt"
	"math/big"

	gobcs "github.com/fardream/go-bcs/bcs"
)

// Encoder appends BCS values to an in-memory buffer. The first failure is
// kept and reported by Err.
type Encoder struct {
	buf []byte
	err error
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Err reports the first value that failed to encode.
func (e *Encoder) Err() error {
	return e.err
}

func (e *Encoder) put(v any) {
	if e.err != nil {
		return
	}
	b, err := gobcs.Marshal(v)
	if err != nil {
		e.err = fmt.Errorf("bcs: encode %T: %w", v, err)
		return
	}
	e.buf = append(e.buf, b...)
}

func (e *Encoder) U8(v uint8)   { e.put(v) }
func (e *Encoder) Bool(v bool)  { e.put(v) }
func (e *Encoder) U16(v uint16) { e.put(v) }
func (e *Encoder) U32(v uint32) { e.put(v) }
func (e *Encoder) U64(v uint64) { e.put(v) }

// U128 writes v as 16 little-endian bytes. v must be non-negative and fit.
func (e *Encoder) U128(v *big.Int) error {
	return e.fixedInt(v, 16)
}

func (e *Encoder) U256(v *big.Int) error {
	return e.fixedInt(v, 32)
}

func (e *Encoder) fixedInt(v *big.Int, size int) error {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 || v.BitLen() > size*8 {
		return fmt.Errorf("value %s does not fit in u%d", v, size*8)
	}
	be := v.FillBytes(make([]byte, size))
	for i := size - 1; i >= 0; i-- {
		e.buf = append(e.buf, be[i])
	}
	return nil
}

// ULEB128 writes a length or enum tag.
func (e *Encoder) ULEB128(v uint64) {
	e.buf = append(e.buf, gobcs.ULEB128Encode(v)...)
}

// FixedBytes writes raw bytes without a length prefix.
func (e *Encoder) FixedBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// ByteVector writes a length-prefixed vector<u8>.
func (e *Encoder) ByteVector(b []byte) {
	if b == nil {
		b = []byte{}
	}
	e.put(b)
}

func (e *Encoder) String(s string) {
	e.put(s)
}

// Option writes the presence tag of an Option<T>; the caller writes T when present.
func (e *Encoder) Option(present bool) {
	e.Bool(present)
}

// U64Bytes encodes a single u64 value, as used for pure transaction inputs.
func U64Bytes(v uint64) []byte {
	e := NewEncoder()
	e.U64(v)
	return e.Bytes()
}
