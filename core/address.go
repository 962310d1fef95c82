package core

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// Scheme tags which key family (or the smart-function variant) an Address
// was derived from.
type Scheme byte

const (
	SchemeEd25519 Scheme = iota
	SchemeSecp256k1
	SchemeP256
	SchemeSmartFunction
)

func (s Scheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeSecp256k1:
		return "secp256k1"
	case SchemeP256:
		return "p256"
	case SchemeSmartFunction:
		return "smart_function"
	default:
		return "unknown"
	}
}

// Address is a tagged variant over three key schemes plus the
// smart-function variant. Equality and ordering are on the raw 21 bytes
// (scheme tag followed by the 20-byte hash).
type Address struct {
	Scheme Scheme
	Hash   [20]byte
}

// Bytes returns the 21-byte scheme-tagged representation.
func (a Address) Bytes() []byte {
	out := make([]byte, 21)
	out[0] = byte(a.Scheme)
	copy(out[1:], a.Hash[:])
	return out
}

func (a Address) Equal(other Address) bool {
	return bytes.Equal(a.Bytes(), other.Bytes())
}

// Compare returns -1, 0, or 1 comparing the raw scheme-tagged bytes.
func (a Address) Compare(other Address) int {
	return bytes.Compare(a.Bytes(), other.Bytes())
}

func (a Address) IsZero() bool {
	return a.Hash == [20]byte{}
}

const addressChecksumLen = 4

func addressChecksum(payload []byte) []byte {
	sum := crypto.Keccak256(payload)
	return sum[:addressChecksumLen]
}

// String renders the canonical Base58Check form: base58(scheme_tag || hash
// || checksum(scheme_tag || hash)).
func (a Address) String() string {
	payload := a.Bytes()
	full := append(append([]byte{}, payload...), addressChecksum(payload)...)
	return base58.Encode(full)
}

// ParseAddress decodes the canonical Base58Check string form, verifying the
// checksum.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, Wrap(KindInvalidAddress, err, "base58 decode address")
	}
	if len(raw) != 21+addressChecksumLen {
		return Address{}, New(KindInvalidAddress, "address has wrong length %d", len(raw))
	}
	payload, checksum := raw[:21], raw[21:]
	want := addressChecksum(payload)
	if !bytes.Equal(checksum, want) {
		return Address{}, New(KindInvalidAddress, "address checksum mismatch")
	}
	var a Address
	a.Scheme = Scheme(payload[0])
	copy(a.Hash[:], payload[1:])
	return a, nil
}

// DeriveSmartFunctionAddress computes address = H(creator || nonce ||
// code)[:20], tagged with SchemeSmartFunction. nonce is encoded big-endian
// so address derivation is insensitive to host integer width.
func DeriveSmartFunctionAddress(creator Address, nonce uint64, code []byte) Address {
	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	h := H(creator.Bytes(), nonceBuf[:], code)
	var a Address
	a.Scheme = SchemeSmartFunction
	copy(a.Hash[:], h[:20])
	return a
}

// AddressFromPublicKeyHash builds a user-account Address from a key scheme
// and the Keccak256-derived 20-byte hash of the encoded public key.
func AddressFromPublicKeyHash(scheme Scheme, pubKeyBytes []byte) Address {
	h := crypto.Keccak256(pubKeyBytes)
	var a Address
	a.Scheme = scheme
	copy(a.Hash[:], h[12:])
	return a
}
