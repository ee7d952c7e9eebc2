package bcs

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	gobcs "github.com/fardream/go-bcs/bcs"
)

var ErrShortBuffer = errors.New("bcs: unexpected end of input")

// Decoder reads BCS values from a byte slice.
type Decoder struct {
	data []byte
	pos  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Remaining reports the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, ErrShortBuffer
	}
	out := d.data[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

// read decodes one value of v's fixed width at the cursor.
func (d *Decoder) read(v any, width int) error {
	if d.Remaining() < width {
		return ErrShortBuffer
	}
	n, err := gobcs.Unmarshal(d.data[d.pos:d.pos+width], v)
	if err != nil {
		return fmt.Errorf("bcs: decode %T: %w", v, err)
	}
	d.pos += n
	return nil
}

func (d *Decoder) U8() (uint8, error) {
	var v uint8
	err := d.read(&v, 1)
	return v, err
}

func (d *Decoder) Bool() (bool, error) {
	if d.Remaining() >= 1 && d.data[d.pos] > 1 {
		return false, fmt.Errorf("bcs: invalid bool byte %d", d.data[d.pos])
	}
	var v bool
	err := d.read(&v, 1)
	return v, err
}

func (d *Decoder) U16() (uint16, error) {
	var v uint16
	err := d.read(&v, 2)
	return v, err
}

func (d *Decoder) U64() (uint64, error) {
	var v uint64
	err := d.read(&v, 8)
	return v, err
}

func (d *Decoder) U128() (*big.Int, error) {
	b, err := d.take(16)
	if err != nil {
		return nil, err
	}
	be := make([]byte, 16)
	for i := range b {
		be[15-i] = b[i]
	}
	return new(big.Int).SetBytes(be), nil
}

func (d *Decoder) ULEB128() (uint64, error) {
	if d.Remaining() == 0 {
		return 0, ErrShortBuffer
	}
	v, n, err := gobcs.ULEB128Decode[uint64](bytes.NewReader(d.data[d.pos:]))
	if err != nil {
		return 0, fmt.Errorf("bcs: uleb128: %w", err)
	}
	d.pos += n
	return v, nil
}

func (d *Decoder) FixedBytes(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (d *Decoder) ByteVector() ([]byte, error) {
	start := d.pos
	n, err := d.ULEB128()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.Remaining()) {
		return nil, ErrShortBuffer
	}
	width := d.pos - start + int(n)
	d.pos = start
	var out []byte
	if err := d.read(&out, width); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeU64 parses a single u64 value and rejects trailing bytes.
func DecodeU64(data []byte) (uint64, error) {
	d := NewDecoder(data)
	v, err := d.U64()
	if err != nil {
		return 0, err
	}
	if d.Remaining() != 0 {
		return 0, fmt.Errorf("bcs: %d trailing bytes after u64", d.Remaining())
	}
	return v, nil
}

// DecodeU128Vector parses a vector<u128>.
func DecodeU128Vector(data []byte) ([]*big.Int, error) {
	d := NewDecoder(data)
	n, err := d.ULEB128()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.Remaining()/16) {
		return nil, ErrShortBuffer
	}
	var raw [][16]byte
	if _, err := gobcs.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("bcs: decode vector<u128>: %w", err)
	}
	out := make([]*big.Int, 0, len(raw))
	for _, le := range raw {
		be := make([]byte, 16)
		for i := range le {
			be[15-i] = le[i]
		}
		out = append(out, new(big.Int).SetBytes(be))
	}
	return out, nil
}
