// Package sui holds the Sui primitives the client needs: addresses, object
// references, Move type tags and ed25519 signing.
package sui

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressLength is the byte length of Sui addresses and object ids.
const AddressLength = 32

// Address is a Sui account address or object id.
type Address [AddressLength]byte

var (
	// ClockObjectID is the shared system clock.
	ClockObjectID = MustParseAddress("0x6")
	// FrameworkAddress hosts the sui framework package.
	FrameworkAddress = MustParseAddress("0x2")
)

// ParseAddress accepts 0x-prefixed hex of up to 64 digits; short forms are left-padded.
func ParseAddress(input string) (Address, error) {
	var addr Address
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" || len(s) > AddressLength*2 {
		return addr, fmt.Errorf("invalid address: %q", input)
	}
	if len(s) < AddressLength*2 {
		s = strings.Repeat("0", AddressLength*2-len(s)) + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", input, err)
	}
	copy(addr[:], raw)
	return addr, nil
}

func MustParseAddress(input string) Address {
	addr, err := ParseAddress(input)
	if err != nil {
		panic(err)
	}
	return addr
}

// ParseAddresses converts a list of strings, skipping blanks.
func ParseAddresses(inputs []string) ([]Address, error) {
	out := make([]Address, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		addr, err := ParseAddress(input)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func (a Address) String() string {
	return hexutil.Encode(a[:])
}

// Short trims leading zeros, the form used for framework packages in type strings.
func (a Address) Short() string {
	s := strings.TrimLeft(hex.EncodeToString(a[:]), "0")
	if s == "" {
		s = "0"
	}
	return "0x" + s
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
