package core

import "testing"

func signAndEncode(t *testing.T, signer Signer, op Operation) []byte {
	t.Helper()
	hash, err := op.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	sig, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	raw, err := EncodeSignedOperation(SignedOperation{Signature: sig, Operation: op})
	if err != nil {
		t.Fatalf("EncodeSignedOperation: %v", err)
	}
	return raw
}

func TestPipelineDeployThenRunRoundTrip(t *testing.T) {
	store := newMemStore()
	outbox := NewOutboxQueue(10)
	pipeline := NewPipeline(store, outbox, testKernelConfig())

	signer, err := NewEd25519Signer()
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}

	deployOp := Operation{
		PublicKey: signer.PublicKey(),
		Nonce:     1,
		Content:   DeployFunction{Code: `export default (req) => new Response("hello from " + req.url, {status: 200})`},
	}
	if err := pipeline.ProcessExternal(signAndEncode(t, signer, deployOp)); err != nil {
		t.Fatalf("ProcessExternal(deploy): %v", err)
	}

	deployHash, _ := deployOp.Hash()
	tx := NewTransaction(store, outbox)
	receipt, ok, err := NewReceiptStore(tx).Get(deployHash)
	tx.Rollback()
	if err != nil || !ok {
		t.Fatalf("expected deploy receipt to exist, ok=%v err=%v", ok, err)
	}
	deployResult, isDeploy := receipt.Result.(DeployResult)
	if !isDeploy {
		t.Fatalf("expected DeployResult, got %T: %+v", receipt.Result, receipt.Result)
	}
	fnAddr := deployResult.Address

	runOp := Operation{
		PublicKey: signer.PublicKey(),
		Nonce:     2,
		Content: RunFunction{
			URI:    "jstz://" + fnAddr.String() + "/",
			Method: "GET",
		},
	}
	if err := pipeline.ProcessExternal(signAndEncode(t, signer, runOp)); err != nil {
		t.Fatalf("ProcessExternal(run): %v", err)
	}

	runHash, _ := runOp.Hash()
	tx2 := NewTransaction(store, outbox)
	runReceipt, ok, err := NewReceiptStore(tx2).Get(runHash)
	tx2.Rollback()
	if err != nil || !ok {
		t.Fatalf("expected run receipt to exist, ok=%v err=%v", ok, err)
	}
	runResult, isRun := runReceipt.Result.(RunResult)
	if !isRun {
		t.Fatalf("expected RunResult, got %T: %+v", runReceipt.Result, runReceipt.Result)
	}
	if runResult.Status != 200 {
		t.Fatalf("expected status 200, got %d", runResult.Status)
	}
}

func TestPipelineReplaySameOperationIsDroppedSilently(t *testing.T) {
	store := newMemStore()
	outbox := NewOutboxQueue(10)
	pipeline := NewPipeline(store, outbox, testKernelConfig())

	signer, _ := NewEd25519Signer()
	op := Operation{
		PublicKey: signer.PublicKey(),
		Nonce:     1,
		Content:   DeployFunction{Code: `export default () => new Response("ok")`},
	}
	raw := signAndEncode(t, signer, op)

	if err := pipeline.ProcessExternal(raw); err != nil {
		t.Fatalf("first ProcessExternal: %v", err)
	}
	if err := pipeline.ProcessExternal(raw); err != nil {
		t.Fatalf("replayed ProcessExternal should return nil (dropped), got %v", err)
	}

	opHash, _ := op.Hash()
	tx := NewTransaction(store, outbox)
	accounts := NewAccountRegistry(tx)
	nonce, _ := accounts.Nonce(signer.PublicKey().Address())
	tx.Rollback()
	if nonce != 1 {
		t.Fatalf("replay must not re-increment nonce, expected 1 got %d", nonce)
	}
	_ = opHash
}

func TestPipelineInsufficientFundsRollsBackButNonceIncrementPersists(t *testing.T) {
	store := newMemStore()
	outbox := NewOutboxQueue(10)
	pipeline := NewPipeline(store, outbox, testKernelConfig())

	creator, _ := NewEd25519Signer()
	deployOp := Operation{
		PublicKey: creator.PublicKey(),
		Nonce:     1,
		Content:   DeployFunction{Code: `export default () => new Response("ok")`},
	}
	if err := pipeline.ProcessExternal(signAndEncode(t, creator, deployOp)); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	// Second deploy, attempting an initial credit the creator cannot afford.
	// AddBalance/Transfer-style operations are expected to fail inside
	// CreateSmartFunction and roll back the nested frame, but the caller's
	// nonce increment (applied before dispatch) must still be committed.
	badDeployOp := Operation{
		PublicKey: creator.PublicKey(),
		Nonce:     2,
		Content:   DeployFunction{Code: `export default () => new Response("ok")`, InitialCredit: 1},
	}
	if err := pipeline.ProcessExternal(signAndEncode(t, creator, badDeployOp)); err != nil {
		t.Fatalf("ProcessExternal(underfunded deploy): %v", err)
	}

	badHash, _ := badDeployOp.Hash()
	tx := NewTransaction(store, outbox)
	receipt, ok, err := NewReceiptStore(tx).Get(badHash)
	accounts := NewAccountRegistry(tx)
	nonce, nonceErr := accounts.Nonce(creator.PublicKey().Address())
	tx.Rollback()

	if err != nil || !ok {
		t.Fatalf("expected a failure receipt to be recorded, ok=%v err=%v", ok, err)
	}
	if _, isFailure := receipt.Result.(FailureResult); !isFailure {
		t.Fatalf("expected FailureResult for underfunded deploy, got %T", receipt.Result)
	}
	if nonceErr != nil || nonce != 2 {
		t.Fatalf("nonce increment must persist despite rollback, expected 2 got %d err=%v", nonce, nonceErr)
	}
}

func TestPipelineInvalidNonceProducesFailureReceiptWithoutIncrementing(t *testing.T) {
	store := newMemStore()
	outbox := NewOutboxQueue(10)
	pipeline := NewPipeline(store, outbox, testKernelConfig())

	signer, _ := NewEd25519Signer()
	op := Operation{
		PublicKey: signer.PublicKey(),
		Nonce:     5,
		Content:   DeployFunction{Code: `export default () => new Response("ok")`},
	}
	if err := pipeline.ProcessExternal(signAndEncode(t, signer, op)); err != nil {
		t.Fatalf("ProcessExternal: %v", err)
	}

	opHash, _ := op.Hash()
	tx := NewTransaction(store, outbox)
	receipt, ok, err := NewReceiptStore(tx).Get(opHash)
	nonce, _ := NewAccountRegistry(tx).Nonce(signer.PublicKey().Address())
	tx.Rollback()

	if err != nil || !ok {
		t.Fatalf("expected failure receipt for bad nonce, ok=%v err=%v", ok, err)
	}
	fr, isFailure := receipt.Result.(FailureResult)
	if !isFailure || fr.Kind != KindInvalidNonce {
		t.Fatalf("expected InvalidNonce failure, got %+v", receipt.Result)
	}
	if nonce != 0 {
		t.Fatalf("nonce must not change on a rejected operation, got %d", nonce)
	}
}

func TestPipelineNestedFetchCallsCommitInProgramOrder(t *testing.T) {
	store := newMemStore()
	outbox := NewOutboxQueue(10)
	pipeline := NewPipeline(store, outbox, testKernelConfig())

	creator, _ := NewEd25519Signer()

	calleeCode := `export default () => { Kv.set("visited", true); return new Response("callee-ok", {status: 200}) }`
	deployCallee := Operation{
		PublicKey: creator.PublicKey(),
		Nonce:     1,
		Content:   DeployFunction{Code: calleeCode},
	}
	if err := pipeline.ProcessExternal(signAndEncode(t, creator, deployCallee)); err != nil {
		t.Fatalf("deploy callee: %v", err)
	}
	calleeHash, _ := deployCallee.Hash()
	tx := NewTransaction(store, outbox)
	calleeReceipt, _, _ := NewReceiptStore(tx).Get(calleeHash)
	tx.Rollback()
	calleeAddr := calleeReceipt.Result.(DeployResult).Address

	callerCode := `export default async (req) => {
		const resp = await fetch("jstz://` + calleeAddr.String() + `/");
		const text = await resp.text();
		return new Response("caller saw: " + text, {status: resp.status});
	}`
	deployCaller := Operation{
		PublicKey: creator.PublicKey(),
		Nonce:     2,
		Content:   DeployFunction{Code: callerCode},
	}
	if err := pipeline.ProcessExternal(signAndEncode(t, creator, deployCaller)); err != nil {
		t.Fatalf("deploy caller: %v", err)
	}
	callerHash, _ := deployCaller.Hash()
	tx2 := NewTransaction(store, outbox)
	callerReceipt, _, _ := NewReceiptStore(tx2).Get(callerHash)
	tx2.Rollback()
	callerAddr := callerReceipt.Result.(DeployResult).Address

	runOp := Operation{
		PublicKey: creator.PublicKey(),
		Nonce:     3,
		Content:   RunFunction{URI: "jstz://" + callerAddr.String() + "/", Method: "GET"},
	}
	if err := pipeline.ProcessExternal(signAndEncode(t, creator, runOp)); err != nil {
		t.Fatalf("ProcessExternal(run caller): %v", err)
	}

	runHash, _ := runOp.Hash()
	tx3 := NewTransaction(store, outbox)
	runReceipt, ok, err := NewReceiptStore(tx3).Get(runHash)
	tx3.Rollback()
	if err != nil || !ok {
		t.Fatalf("expected run receipt, ok=%v err=%v", ok, err)
	}
	rr, isRun := runReceipt.Result.(RunResult)
	if !isRun || rr.Status != 200 {
		t.Fatalf("expected successful run result, got %+v", runReceipt.Result)
	}
	if v, ok, _ := store.Get(kvPath(calleeAddr, "visited")); !ok || string(v) != "true" {
		t.Fatalf("expected the callee's Kv write to be committed, got %q ok=%v", v, ok)
	}
}
