package sui

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"vaultflow/internal/bcs"
)

func TestParseAddressPadsShortForm(t *testing.T) {
	addr, err := ParseAddress("0x2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr != FrameworkAddress {
		t.Fatalf("framework mismatch: %s", addr)
	}
	if addr.Short() != "0x2" {
		t.Fatalf("short = %s", addr.Short())
	}
	want := "0x0000000000000000000000000000000000000000000000000000000000000002"
	if addr.String() != want {
		t.Fatalf("string = %s", addr.String())
	}
}

func TestParseAddressInvalid(t *testing.T) {
	for _, input := range []string{"", "0x", "0xzz", "0x" + string(bytes.Repeat([]byte("a"), 65))} {
		if _, err := ParseAddress(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestParseTypeTagNested(t *testing.T) {
	tag, err := ParseTypeTag("0xabc::lotus_lp_farm::LotusLPFarm<0xabc::lp_token::LP_TOKEN>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !tag.IsStruct("lotus_lp_farm", "LotusLPFarm") {
		t.Fatalf("struct mismatch: %s", tag)
	}
	if len(tag.Struct.TypeParams) != 1 || !tag.Struct.TypeParams[0].IsStruct("lp_token", "LP_TOKEN") {
		t.Fatalf("type params mismatch: %s", tag)
	}

	round, err := ParseTypeTag(tag.String())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !round.Equal(tag) {
		t.Fatalf("round trip mismatch: %s != %s", round, tag)
	}
}

func TestParseTypeTagPrimitivesAndVectors(t *testing.T) {
	tag, err := ParseTypeTag("vector<vector<u8>>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tag.Kind != TypeVector || tag.Elem.Kind != TypeVector || tag.Elem.Elem.Kind != TypeU8 {
		t.Fatalf("vector mismatch: %s", tag)
	}

	if _, err := ParseTypeTag("0x2::coin"); err == nil {
		t.Fatalf("expected error for incomplete tag")
	}
	if _, err := ParseTypeTag("u64 extra"); err == nil {
		t.Fatalf("expected error for trailing input")
	}
}

func TestTypeTagBCS(t *testing.T) {
	tag := MustParseTypeTag("0x2::sui::SUI")
	e := bcs.NewEncoder()
	if err := tag.EncodeBCS(e); err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := []byte{byte(TypeStruct)}
	want = append(want, FrameworkAddress[:]...)
	want = append(want, 3, 's', 'u', 'i', 3, 'S', 'U', 'I', 0)
	if !bytes.Equal(e.Bytes(), want) {
		t.Fatalf("bcs mismatch:\n got %x\nwant %x", e.Bytes(), want)
	}
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, ed25519.SeedSize)
	kp, err := NewKeypairFromSeed(seed)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	encoded, err := kp.EncodePrivateKey()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded[:len(privateKeyHRP)+1] != privateKeyHRP+"1" {
		t.Fatalf("unexpected prefix: %s", encoded)
	}

	parsed, err := ParsePrivateKey(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Address() != kp.Address() {
		t.Fatalf("address mismatch: %s != %s", parsed.Address(), kp.Address())
	}
}

func TestSignTransactionVerifies(t *testing.T) {
	kp, err := NewKeypairFromSeed(bytes.Repeat([]byte{1}, ed25519.SeedSize))
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	txBytes := []byte("transaction-bytes")
	encoded, err := kp.SignTransaction(txBytes)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(raw) != 1+ed25519.SignatureSize+ed25519.PublicKeySize || raw[0] != flagEd25519 {
		t.Fatalf("unexpected signature layout: %d bytes", len(raw))
	}
	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	digest := TransactionSigningDigest(txBytes)
	if !ed25519.Verify(pub, digest[:], sig) {
		t.Fatalf("signature does not verify")
	}
	if DeriveAddress(pub) != kp.Address() {
		t.Fatalf("address derivation mismatch")
	}
}

func TestDigestRoundTrip(t *testing.T) {
	var d Digest
	for i := range d {
		d[i] = byte(i + 1)
	}
	parsed, err := ParseDigest(d.String())
	if err != nil {
		t.Fatalf("parse digest: %v", err)
	}
	if parsed != d {
		t.Fatalf("digest mismatch")
	}
	if _, err := ParseDigest("abc"); err == nil {
		t.Fatalf("expected error for short digest")
	}
}
