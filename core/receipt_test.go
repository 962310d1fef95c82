package core

import "testing"

func TestEncodeDecodeReceiptDeployResult(t *testing.T) {
	addr := testAddress(t)
	r := Receipt{OperationHash: H([]byte("op1")), Result: DeployResult{Address: addr}}

	enc, err := EncodeReceipt(r)
	if err != nil {
		t.Fatalf("EncodeReceipt: %v", err)
	}
	dec, err := DecodeReceipt(enc)
	if err != nil {
		t.Fatalf("DecodeReceipt: %v", err)
	}
	dr, ok := dec.Result.(DeployResult)
	if !ok {
		t.Fatalf("expected DeployResult, got %T", dec.Result)
	}
	if !dr.Address.Equal(addr) {
		t.Fatalf("deploy address lost in round trip")
	}
	if dec.OperationHash != r.OperationHash {
		t.Fatalf("operation hash lost in round trip")
	}
	if !dec.Success() {
		t.Fatalf("deploy result should report success")
	}
}

func TestEncodeDecodeReceiptRunResult(t *testing.T) {
	r := Receipt{
		OperationHash: H([]byte("op2")),
		Result: RunResult{
			Status:  200,
			Headers: map[string]string{"Content-Type": "text/plain", "X-Trace": "1"},
			Body:    []byte("hello"),
		},
	}

	enc, err := EncodeReceipt(r)
	if err != nil {
		t.Fatalf("EncodeReceipt: %v", err)
	}
	dec, err := DecodeReceipt(enc)
	if err != nil {
		t.Fatalf("DecodeReceipt: %v", err)
	}
	rr, ok := dec.Result.(RunResult)
	if !ok {
		t.Fatalf("expected RunResult, got %T", dec.Result)
	}
	if rr.Status != 200 || string(rr.Body) != "hello" || rr.Headers["X-Trace"] != "1" {
		t.Fatalf("run result fields lost: %+v", rr)
	}
	if !dec.Success() {
		t.Fatalf("run result should report success")
	}
}

func TestEncodeDecodeReceiptFailureResult(t *testing.T) {
	r := Receipt{
		OperationHash: H([]byte("op3")),
		Result:        FailureResult{Kind: KindInsufficientFunds, Message: "not enough balance"},
	}

	enc, err := EncodeReceipt(r)
	if err != nil {
		t.Fatalf("EncodeReceipt: %v", err)
	}
	dec, err := DecodeReceipt(enc)
	if err != nil {
		t.Fatalf("DecodeReceipt: %v", err)
	}
	fr, ok := dec.Result.(FailureResult)
	if !ok {
		t.Fatalf("expected FailureResult, got %T", dec.Result)
	}
	if fr.Kind != KindInsufficientFunds || fr.Message != "not enough balance" {
		t.Fatalf("failure result fields lost: %+v", fr)
	}
	if dec.Success() {
		t.Fatalf("failure result must not report success")
	}
}

func TestReceiptStorePutGetExists(t *testing.T) {
	tx := NewTransaction(newMemStore(), nil)
	store := NewReceiptStore(tx)
	opHash := H([]byte("op4"))

	if ok, err := store.Exists(opHash); err != nil || ok {
		t.Fatalf("expected receipt to not exist yet, ok=%v err=%v", ok, err)
	}

	want := Receipt{OperationHash: opHash, Result: RunResult{Status: 204}}
	if err := store.Put(want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if ok, err := store.Exists(opHash); err != nil || !ok {
		t.Fatalf("expected receipt to exist, ok=%v err=%v", ok, err)
	}

	got, ok, err := store.Get(opHash)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	rr, ok := got.Result.(RunResult)
	if !ok || rr.Status != 204 {
		t.Fatalf("unexpected stored receipt: %+v", got)
	}
}

func TestReceiptStoreGetMissingReturnsFalse(t *testing.T) {
	tx := NewTransaction(newMemStore(), nil)
	store := NewReceiptStore(tx)

	_, ok, err := store.Get(H([]byte("never stored")))
	if err != nil {
		t.Fatalf("Get on missing receipt should not error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing receipt")
	}
}
