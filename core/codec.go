package core

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// Canonical encoding uses go-ethereum's RLP: deterministic, self-delimiting,
// and already exercised elsewhere in the pack for exactly this property
// (teacher's ledger hashes sorted-key state the same way: a fixed field
// order feeding one hash function). RLP's own length prefixes satisfy
// spec §6's "self-delimiting" requirement without a hand-rolled framing
// layer.

type accountWire struct {
	Nonce   uint64
	Balance uint64
	HasCode bool
	Code    string
}

func EncodeAccount(a Account) ([]byte, error) {
	w := accountWire{Nonce: a.Nonce, Balance: a.Balance}
	if a.Code != nil {
		w.HasCode = true
		w.Code = a.Code.Source
	}
	b, err := rlp.EncodeToBytes(w)
	if err != nil {
		return nil, Wrap(KindDecodeError, err, "encode account")
	}
	return b, nil
}

func DecodeAccount(b []byte) (Account, error) {
	var w accountWire
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return Account{}, Wrap(KindDecodeError, err, "decode account")
	}
	a := Account{Nonce: w.Nonce, Balance: w.Balance}
	if w.HasCode {
		a.Code = &ParsedCode{Source: w.Code}
	}
	return a, nil
}

// rollupFrameTagTargetted is the leading tag byte (§6) identifying a
// Targetted external-message frame.
const rollupFrameTagTargetted byte = 0x01

type targettedFrameWire struct {
	RollupAddress []byte
	Payload       []byte
}

// EncodeTargettedFrame wraps payload as a Targetted { rollup_address,
// payload } frame with the leading 0x01 tag.
func EncodeTargettedFrame(rollupAddress [20]byte, payload []byte) ([]byte, error) {
	body, err := rlp.EncodeToBytes(targettedFrameWire{RollupAddress: rollupAddress[:], Payload: payload})
	if err != nil {
		return nil, Wrap(KindDecodeError, err, "encode targetted frame")
	}
	return append([]byte{rollupFrameTagTargetted}, body...), nil
}

// DecodeTargettedFrame returns the rollup address and payload from a framed
// message, or ok=false if the leading tag does not mark a Targetted frame.
func DecodeTargettedFrame(raw []byte) (rollupAddress [20]byte, payload []byte, ok bool, err error) {
	if len(raw) == 0 || raw[0] != rollupFrameTagTargetted {
		return [20]byte{}, nil, false, nil
	}
	var w targettedFrameWire
	if err := rlp.DecodeBytes(raw[1:], &w); err != nil {
		return [20]byte{}, nil, false, Wrap(KindDecodeError, err, "decode targetted frame")
	}
	if len(w.RollupAddress) != 20 {
		return [20]byte{}, nil, false, New(KindDecodeError, "rollup address must be 20 bytes")
	}
	copy(rollupAddress[:], w.RollupAddress)
	return rollupAddress, w.Payload, true, nil
}
