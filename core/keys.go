package core

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"math/big"

	decredec "github.com/decred/dcrd/dcrec/secp256k1/v4"
	decredecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/crypto"
)

// PublicKey is a scheme-tagged signer identity, carrying the raw
// scheme-specific encoding of the key.
type PublicKey struct {
	Scheme Scheme
	Bytes  []byte
}

// Address derives the canonical user-account address for this key.
func (p PublicKey) Address() Address {
	return AddressFromPublicKeyHash(p.Scheme, p.Bytes)
}

// Signature is a scheme-tagged signature over an operation hash.
type Signature struct {
	Scheme Scheme
	Bytes  []byte
}

// Signer produces signatures for a given scheme; used by tests and CLI
// tooling that need to construct SignedOperations.
type Signer interface {
	Scheme() Scheme
	PublicKey() PublicKey
	Sign(hash Hash) (Signature, error)
}

// Verify checks that sig is a valid signature over hash under pub. Schemes
// must match between pub and sig or verification fails closed.
func Verify(pub PublicKey, hash Hash, sig Signature) bool {
	if pub.Scheme != sig.Scheme {
		return false
	}
	switch pub.Scheme {
	case SchemeEd25519:
		return verifyEd25519(pub.Bytes, hash, sig.Bytes)
	case SchemeSecp256k1:
		return verifySecp256k1(pub.Bytes, hash, sig.Bytes)
	case SchemeP256:
		return verifyP256(pub.Bytes, hash, sig.Bytes)
	default:
		return false
	}
}

// --- Ed25519 ---

type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

func NewEd25519Signer() (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, Wrap(KindStorageError, err, "generate ed25519 key")
	}
	return &Ed25519Signer{priv: priv}, nil
}

func (s *Ed25519Signer) Scheme() Scheme { return SchemeEd25519 }

func (s *Ed25519Signer) PublicKey() PublicKey {
	pub := s.priv.Public().(ed25519.PublicKey)
	return PublicKey{Scheme: SchemeEd25519, Bytes: append([]byte{}, pub...)}
}

func (s *Ed25519Signer) Sign(hash Hash) (Signature, error) {
	return Signature{Scheme: SchemeEd25519, Bytes: ed25519.Sign(s.priv, hash.Bytes())}, nil
}

func verifyEd25519(pubBytes []byte, hash Hash, sigBytes []byte) bool {
	if len(pubBytes) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubBytes), hash.Bytes(), sigBytes)
}

// --- Secp256k1 ---
//
// Verification is cross-checked against two independent implementations
// (go-ethereum's and decred's) so a bug specific to either library cannot
// silently forge acceptance; both must agree for a signature to be valid.

type Secp256k1Signer struct {
	priv *ecdsa.PrivateKey
}

func NewSecp256k1Signer() (*Secp256k1Signer, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, Wrap(KindStorageError, err, "generate secp256k1 key")
	}
	return &Secp256k1Signer{priv: priv}, nil
}

func (s *Secp256k1Signer) Scheme() Scheme { return SchemeSecp256k1 }

func (s *Secp256k1Signer) PublicKey() PublicKey {
	return PublicKey{Scheme: SchemeSecp256k1, Bytes: crypto.CompressPubkey(&s.priv.PublicKey)}
}

func (s *Secp256k1Signer) Sign(hash Hash) (Signature, error) {
	sig, err := crypto.Sign(hash.Bytes(), s.priv)
	if err != nil {
		return Signature{}, Wrap(KindInvalidSignature, err, "sign secp256k1")
	}
	// Drop the recovery id byte; verification is by public key, not recovery.
	return Signature{Scheme: SchemeSecp256k1, Bytes: sig[:64]}, nil
}

func verifySecp256k1(pubBytes []byte, hash Hash, sigBytes []byte) bool {
	if len(sigBytes) != 64 {
		return false
	}
	okEth := crypto.VerifySignature(pubBytes, hash.Bytes(), sigBytes)
	if !okEth {
		return false
	}
	pub, err := decredec.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	r := new(big.Int).SetBytes(sigBytes[:32])
	sVal := new(big.Int).SetBytes(sigBytes[32:64])
	sig := decredecdsa.NewSignature(modNScalar(r), modNScalar(sVal))
	return sig.Verify(hash.Bytes(), pub)
}

func modNScalar(v *big.Int) *decredec.ModNScalar {
	var s decredec.ModNScalar
	b := v.Bytes()
	var buf [32]byte
	copy(buf[32-len(b):], b)
	s.SetBytes(&buf)
	return &s
}

// --- P-256 ---

type P256Signer struct {
	priv *ecdsa.PrivateKey
}

func NewP256Signer() (*P256Signer, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, Wrap(KindStorageError, err, "generate p256 key")
	}
	return &P256Signer{priv: priv}, nil
}

func (s *P256Signer) Scheme() Scheme { return SchemeP256 }

func (s *P256Signer) PublicKey() PublicKey {
	return PublicKey{Scheme: SchemeP256, Bytes: elliptic.MarshalCompressed(elliptic.P256(), s.priv.X, s.priv.Y)}
}

func (s *P256Signer) Sign(hash Hash) (Signature, error) {
	r, sVal, err := ecdsa.Sign(rand.Reader, s.priv, hash.Bytes())
	if err != nil {
		return Signature{}, Wrap(KindInvalidSignature, err, "sign p256")
	}
	buf := make([]byte, 64)
	r.FillBytes(buf[:32])
	sVal.FillBytes(buf[32:])
	return Signature{Scheme: SchemeP256, Bytes: buf}, nil
}

func verifyP256(pubBytes []byte, hash Hash, sigBytes []byte) bool {
	if len(sigBytes) != 64 {
		return false
	}
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), pubBytes)
	if x == nil {
		return false
	}
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	r := new(big.Int).SetBytes(sigBytes[:32])
	sVal := new(big.Int).SetBytes(sigBytes[32:64])
	return ecdsa.Verify(pub, hash.Bytes(), r, sVal)
}
