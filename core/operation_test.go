package core

import "testing"

func TestEncodeDecodeOperationRoundTrip(t *testing.T) {
	signer, _ := NewEd25519Signer()
	op := Operation{
		PublicKey: signer.PublicKey(),
		Nonce:     3,
		Content: RunFunction{
			URI:      "jstz://KT1abc/",
			Method:   "POST",
			Headers:  map[string]string{"Content-Type": "application/json", "X-Custom": "1"},
			Body:     []byte(`{"hello":"world"}`),
			GasLimit: 5000,
		},
	}

	enc, err := EncodeOperation(op)
	if err != nil {
		t.Fatalf("EncodeOperation: %v", err)
	}
	dec, err := DecodeOperation(enc)
	if err != nil {
		t.Fatalf("DecodeOperation: %v", err)
	}
	run, ok := dec.Content.(RunFunction)
	if !ok {
		t.Fatalf("expected RunFunction content, got %T", dec.Content)
	}
	if run.URI != "jstz://KT1abc/" || run.Headers["Content-Type"] != "application/json" {
		t.Fatalf("round trip lost fields: %+v", run)
	}
}

func TestOperationHashInsensitiveToHeaderOrder(t *testing.T) {
	signer, _ := NewEd25519Signer()
	base := Operation{
		PublicKey: signer.PublicKey(),
		Nonce:     1,
		Content: RunFunction{
			URI:     "jstz://KT1abc/",
			Method:  "GET",
			Headers: map[string]string{"A": "1", "B": "2", "C": "3"},
		},
	}
	reordered := base
	reordered.Content = RunFunction{
		URI:     "jstz://KT1abc/",
		Method:  "GET",
		Headers: map[string]string{"C": "3", "A": "1", "B": "2"},
	}

	h1, err := base.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := reordered.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("operation hash must not depend on header map iteration order")
	}
}

func TestSignedOperationVerifyRoundTrip(t *testing.T) {
	signer, _ := NewSecp256k1Signer()
	op := Operation{
		PublicKey: signer.PublicKey(),
		Nonce:     1,
		Content:   DeployFunction{Code: "export default () => new Response();", InitialCredit: 0},
	}
	hash, err := op.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	sig, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	so := SignedOperation{Signature: sig, Operation: op}

	signerAddr, verifiedHash, err := so.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verifiedHash != hash {
		t.Fatalf("verify returned a different hash than Operation.Hash()")
	}
	if !signerAddr.Equal(signer.PublicKey().Address()) {
		t.Fatalf("verify returned the wrong signer address")
	}
}

func TestSignedOperationVerifyRejectsTamperedNonce(t *testing.T) {
	signer, _ := NewEd25519Signer()
	op := Operation{PublicKey: signer.PublicKey(), Nonce: 1, Content: DeployFunction{Code: "x"}}
	hash, _ := op.Hash()
	sig, _ := signer.Sign(hash)

	op.Nonce = 2
	so := SignedOperation{Signature: sig, Operation: op}
	if _, _, err := so.Verify(); !Is(err, KindInvalidSignature) {
		t.Fatalf("expected InvalidSignature after tampering, got %v", err)
	}
}

func TestEncodeDecodeSignedOperationRoundTrip(t *testing.T) {
	signer, _ := NewP256Signer()
	op := Operation{PublicKey: signer.PublicKey(), Nonce: 9, Content: DeployFunction{Code: "export default () => {}"}}
	hash, _ := op.Hash()
	sig, _ := signer.Sign(hash)
	so := SignedOperation{Signature: sig, Operation: op}

	raw, err := EncodeSignedOperation(so)
	if err != nil {
		t.Fatalf("EncodeSignedOperation: %v", err)
	}
	decoded, err := DecodeSignedOperation(raw)
	if err != nil {
		t.Fatalf("DecodeSignedOperation: %v", err)
	}
	if decoded.Operation.Nonce != 9 {
		t.Fatalf("expected nonce 9, got %d", decoded.Operation.Nonce)
	}
	if _, _, err := decoded.Verify(); err != nil {
		t.Fatalf("decoded signed operation should still verify: %v", err)
	}
}
