package core

import "testing"

func TestAddressRoundTrip(t *testing.T) {
	signer, err := NewEd25519Signer()
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	addr := signer.PublicKey().Address()

	s := addr.String()
	parsed, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if !parsed.Equal(addr) {
		t.Fatalf("round trip mismatch: got %s want %s", parsed, addr)
	}
}

func TestParseAddressRejectsBadChecksum(t *testing.T) {
	signer, _ := NewEd25519Signer()
	addr := signer.PublicKey().Address()
	s := addr.String()

	// Flip the last rune so the trailing checksum bytes no longer match.
	mutated := []rune(s)
	mutated[len(mutated)-1]++
	if _, err := ParseAddress(string(mutated)); err == nil {
		t.Fatalf("expected checksum failure")
	}
}

func TestDeriveSmartFunctionAddressDeterministic(t *testing.T) {
	signer, _ := NewEd25519Signer()
	creator := signer.PublicKey().Address()
	code := []byte("export default () => new Response('ok');")

	a1 := DeriveSmartFunctionAddress(creator, 1, code)
	a2 := DeriveSmartFunctionAddress(creator, 1, code)
	if !a1.Equal(a2) {
		t.Fatalf("derivation is not deterministic")
	}
	if a1.Scheme != SchemeSmartFunction {
		t.Fatalf("expected SchemeSmartFunction tag")
	}

	a3 := DeriveSmartFunctionAddress(creator, 2, code)
	if a1.Equal(a3) {
		t.Fatalf("different nonces must derive different addresses")
	}
}
