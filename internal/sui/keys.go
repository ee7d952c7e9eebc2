package sui

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

const (
	privateKeyHRP = "suiprivkey"
	flagEd25519   = 0x00
)

// transactionIntent is the intent prefix for transaction data: scope, version, app id.
var transactionIntent = []byte{0, 0, 0}

var ErrUnsupportedScheme = errors.New("unsupported key scheme")

// Keypair is an ed25519 signer.
type Keypair struct {
	private ed25519.PrivateKey
	address Address
}

// NewKeypairFromSeed builds a keypair from a 32-byte ed25519 seed.
func NewKeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	private := ed25519.NewKeyFromSeed(seed)
	public := private.Public().(ed25519.PublicKey)
	return &Keypair{private: private, address: DeriveAddress(public)}, nil
}

// ParsePrivateKey decodes a `suiprivkey1...` bech32 string.
func ParsePrivateKey(encoded string) (*Keypair, error) {
	hrp, data, err := bech32.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if hrp != privateKeyHRP {
		return nil, fmt.Errorf("unexpected private key prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("convert private key bits: %w", err)
	}
	if len(raw) != 1+ed25519.SeedSize {
		return nil, fmt.Errorf("private key payload must be %d bytes, got %d", 1+ed25519.SeedSize, len(raw))
	}
	if raw[0] != flagEd25519 {
		return nil, fmt.Errorf("%w: flag 0x%02x", ErrUnsupportedScheme, raw[0])
	}
	return NewKeypairFromSeed(raw[1:])
}

// EncodePrivateKey renders the keypair in `suiprivkey` form.
func (k *Keypair) EncodePrivateKey() (string, error) {
	payload := append([]byte{flagEd25519}, k.private.Seed()...)
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(privateKeyHRP, data)
}

// DeriveAddress hashes the scheme flag and public key with blake2b-256.
func DeriveAddress(public ed25519.PublicKey) Address {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{flagEd25519})
	h.Write(public)
	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}

func (k *Keypair) Address() Address {
	return k.address
}

func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.private.Public().(ed25519.PublicKey)
}

// SignTransaction signs BCS transaction data and returns the serialized
// signature (flag || sig || pubkey) in base64.
func (k *Keypair) SignTransaction(txBytes []byte) (string, error) {
	digest := TransactionSigningDigest(txBytes)
	sig := ed25519.Sign(k.private, digest[:])

	out := make([]byte, 0, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	out = append(out, flagEd25519)
	out = append(out, sig...)
	out = append(out, k.PublicKey()...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// TransactionSigningDigest is blake2b-256 over the intent message.
func TransactionSigningDigest(txBytes []byte) [32]byte {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)
	return blake2b.Sum256(msg)
}

// TransactionDigest is the chain-side digest of transaction data.
func TransactionDigest(txBytes []byte) Digest {
	msg := append([]byte("TransactionData::"), txBytes...)
	return Digest(blake2b.Sum256(msg))
}
