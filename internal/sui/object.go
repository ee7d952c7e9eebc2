package sui

import (
	"fmt"

	"github.com/btcsuite/btcutil/base58"

	"vaultflow/internal/bcs"
)

// DigestLength is the byte length of object and transaction digests.
const DigestLength = 32

// Digest is a base58-rendered 32-byte digest.
type Digest [DigestLength]byte

func ParseDigest(input string) (Digest, error) {
	var d Digest
	raw := base58.Decode(input)
	if len(raw) != DigestLength {
		return d, fmt.Errorf("invalid digest %q: decoded %d bytes", input, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

func (d Digest) String() string {
	return base58.Encode(d[:])
}

// ObjectRef pins an owned or immutable object at a version.
type ObjectRef struct {
	ObjectID Address
	Version  uint64
	Digest   Digest
}

func (r ObjectRef) EncodeBCS(e *bcs.Encoder) {
	e.FixedBytes(r.ObjectID[:])
	e.U64(r.Version)
	e.ByteVector(r.Digest[:])
}

// OwnerKind classifies object ownership as reported by the fullnode.
type OwnerKind string

const (
	OwnerAddress   OwnerKind = "AddressOwner"
	OwnerObject    OwnerKind = "ObjectOwner"
	OwnerShared    OwnerKind = "Shared"
	OwnerImmutable OwnerKind = "Immutable"
)

// Owner is the decoded ownership of an object.
type Owner struct {
	Kind                 OwnerKind
	Address              Address
	InitialSharedVersion uint64
}

func (o Owner) IsShared() bool {
	return o.Kind == OwnerShared
}

func (o Owner) String() string {
	switch o.Kind {
	case OwnerAddress, OwnerObject:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Address)
	case OwnerShared:
		return fmt.Sprintf("Shared(%d)", o.InitialSharedVersion)
	default:
		return string(o.Kind)
	}
}
