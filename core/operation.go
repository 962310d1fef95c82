package core

import (
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// OperationContent is the sum type `DeployFunction | RunFunction` (spec §3).
type OperationContent interface {
	isOperationContent()
}

type DeployFunction struct {
	Code          string
	InitialCredit uint64
}

func (DeployFunction) isOperationContent() {}

type RunFunction struct {
	URI      string
	Method   string
	Headers  map[string]string
	Body     []byte
	GasLimit uint64
}

func (RunFunction) isOperationContent() {}

// Operation is a user-submitted unit of work: signer key, expected next
// nonce, and a deploy-or-run payload.
type Operation struct {
	PublicKey PublicKey
	Nonce     uint64
	Content   OperationContent
}

// Hash returns H(canonical_encoding(op)), used as the receipt key and
// replay guard.
func (op Operation) Hash() (Hash, error) {
	enc, err := EncodeOperation(op)
	if err != nil {
		return Hash{}, err
	}
	return H(enc), nil
}

// SignedOperation pairs a signature with the operation it covers.
type SignedOperation struct {
	Signature Signature
	Operation Operation
}

// Verify checks the signature against the operation's hash and returns the
// signer's derived address on success.
func (so SignedOperation) Verify() (Address, Hash, error) {
	hash, err := so.Operation.Hash()
	if err != nil {
		return Address{}, Hash{}, err
	}
	if !Verify(so.Operation.PublicKey, hash, so.Signature) {
		return Address{}, hash, New(KindInvalidSignature, "signature does not verify operation hash")
	}
	return so.Operation.PublicKey.Address(), hash, nil
}

const (
	contentTagDeploy byte = 0
	contentTagRun    byte = 1
)

const operationWireVersion byte = 1

type operationWire struct {
	Version      byte
	PubKeyScheme byte
	PubKeyBytes  []byte
	Nonce        uint64
	ContentTag   byte

	DeployCode          string
	DeployInitialCredit uint64

	RunURI      string
	RunMethod   string
	RunHdrKeys  []string
	RunHdrVals  []string
	RunBody     []byte
	RunGasLimit uint64
}

// EncodeOperation produces the canonical, deterministic encoding of op: a
// version tag followed by fields in declared order (public key, nonce,
// content tag, content fields), per spec §6. Header maps are sorted by key
// so the encoding never depends on map iteration order.
func EncodeOperation(op Operation) ([]byte, error) {
	w := operationWire{
		Version:      operationWireVersion,
		PubKeyScheme: byte(op.PublicKey.Scheme),
		PubKeyBytes:  op.PublicKey.Bytes,
		Nonce:        op.Nonce,
	}
	switch c := op.Content.(type) {
	case DeployFunction:
		w.ContentTag = contentTagDeploy
		w.DeployCode = c.Code
		w.DeployInitialCredit = c.InitialCredit
	case RunFunction:
		w.ContentTag = contentTagRun
		w.RunURI = c.URI
		w.RunMethod = c.Method
		w.RunBody = c.Body
		w.RunGasLimit = c.GasLimit
		keys := make([]string, 0, len(c.Headers))
		for k := range c.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.RunHdrKeys = keys
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = c.Headers[k]
		}
		w.RunHdrVals = vals
	default:
		return nil, New(KindDecodeError, "unknown operation content type")
	}
	b, err := rlp.EncodeToBytes(w)
	if err != nil {
		return nil, Wrap(KindDecodeError, err, "encode operation")
	}
	return b, nil
}

// DecodeOperation is the inverse of EncodeOperation.
func DecodeOperation(b []byte) (Operation, error) {
	var w operationWire
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return Operation{}, Wrap(KindDecodeError, err, "decode operation")
	}
	if w.Version != operationWireVersion {
		return Operation{}, New(KindDecodeError, "unsupported operation wire version %d", w.Version)
	}
	op := Operation{
		PublicKey: PublicKey{Scheme: Scheme(w.PubKeyScheme), Bytes: w.PubKeyBytes},
		Nonce:     w.Nonce,
	}
	switch w.ContentTag {
	case contentTagDeploy:
		op.Content = DeployFunction{Code: w.DeployCode, InitialCredit: w.DeployInitialCredit}
	case contentTagRun:
		headers := make(map[string]string, len(w.RunHdrKeys))
		for i, k := range w.RunHdrKeys {
			if i < len(w.RunHdrVals) {
				headers[k] = w.RunHdrVals[i]
			}
		}
		op.Content = RunFunction{
			URI:      w.RunURI,
			Method:   w.RunMethod,
			Headers:  headers,
			Body:     w.RunBody,
			GasLimit: w.RunGasLimit,
		}
	default:
		return Operation{}, New(KindDecodeError, "unknown content tag %d", w.ContentTag)
	}
	return op, nil
}

type signedOperationWire struct {
	SigScheme byte
	SigBytes  []byte
	OpEncoded []byte
}

// EncodeSignedOperation wraps a canonical operation encoding with its
// signature for wire transport.
func EncodeSignedOperation(so SignedOperation) ([]byte, error) {
	opEnc, err := EncodeOperation(so.Operation)
	if err != nil {
		return nil, err
	}
	w := signedOperationWire{
		SigScheme: byte(so.Signature.Scheme),
		SigBytes:  so.Signature.Bytes,
		OpEncoded: opEnc,
	}
	b, err := rlp.EncodeToBytes(w)
	if err != nil {
		return nil, Wrap(KindDecodeError, err, "encode signed operation")
	}
	return b, nil
}

// DecodeSignedOperation is the inverse of EncodeSignedOperation.
func DecodeSignedOperation(b []byte) (SignedOperation, error) {
	var w signedOperationWire
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return SignedOperation{}, Wrap(KindDecodeError, err, "decode signed operation")
	}
	op, err := DecodeOperation(w.OpEncoded)
	if err != nil {
		return SignedOperation{}, err
	}
	return SignedOperation{
		Signature: Signature{Scheme: Scheme(w.SigScheme), Bytes: w.SigBytes},
		Operation: op,
	}, nil
}
