package core

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
)

// Hash is a 32-byte content hash, used for operation hashes, ticket hashes,
// and smart-function address derivation preimages.
type Hash [32]byte

// H hashes the concatenation of parts with Keccak256. Field order is
// significant: callers are responsible for passing length-prefixed or
// otherwise unambiguous field encodings so distinct inputs never collide.
func H(parts ...[]byte) Hash {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return Hash(crypto.Keccak256Hash(buf))
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

func (h Hash) IsZero() bool { return h == Hash{} }

// HashFromHex parses a hex-encoded hash, with or without the 0x prefix.
func HashFromHex(s string) (Hash, error) {
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, Wrap(KindDecodeError, err, "decode hash hex")
	}
	if len(b) != 32 {
		return Hash{}, New(KindDecodeError, "hash must be 32 bytes, got %d", len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
