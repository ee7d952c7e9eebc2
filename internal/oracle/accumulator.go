package oracle

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var accumulatorMagic = []byte("PNAU")

var ErrNotAccumulator = errors.New("not an accumulator update message")

// ExtractVAA returns the wormhole VAA embedded in an accumulator update message.
//
//	magic(4) major(1) minor(1) trailingSize(1) trailing(n) updateType(1) vaaSize(2, BE) vaa
func ExtractVAA(msg []byte) ([]byte, error) {
	if len(msg) < 7 || string(msg[:4]) != string(accumulatorMagic) {
		return nil, ErrNotAccumulator
	}
	sizeOffset := 7 + int(msg[6]) + 1
	if len(msg) < sizeOffset+2 {
		return nil, fmt.Errorf("accumulator message truncated in header: %d bytes", len(msg))
	}
	size := int(binary.BigEndian.Uint16(msg[sizeOffset:]))
	start := sizeOffset + 2
	if len(msg) < start+size {
		return nil, fmt.Errorf("accumulator message truncated: vaa needs %d bytes, have %d", size, len(msg)-start)
	}
	return msg[start : start+size], nil
}

// BuildAccumulator assembles an accumulator message around vaa and the
// trailing per-feed payload. It is the inverse of ExtractVAA.
func BuildAccumulator(vaa, updates []byte) []byte {
	out := make([]byte, 0, len(accumulatorMagic)+6+len(vaa)+len(updates))
	out = append(out, accumulatorMagic...)
	out = append(out, 1, 0, 0, 0)
	out = binary.BigEndian.AppendUint16(out, uint16(len(vaa)))
	out = append(out, vaa...)
	return append(out, updates...)
}
