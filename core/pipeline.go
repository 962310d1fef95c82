package core

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Pipeline implements spec §4.3: pre-execution validation followed by
// dispatch on operation content, against a shared durable store and
// per-level outbox.
type Pipeline struct {
	hrt      HostRuntime
	outbox   *OutboxQueue
	config   *KernelConfig
	registry *RuntimeRegistry
	log      *logrus.Entry
}

func NewPipeline(hrt HostRuntime, outbox *OutboxQueue, cfg *KernelConfig) *Pipeline {
	return &Pipeline{hrt: hrt, outbox: outbox, config: cfg, log: logrus.WithField("component", "pipeline")}
}

// WithRegistry attaches a RuntimeRegistry for ExecutionHost lifecycle
// bookkeeping (component G's debug/introspection surface). Optional: a nil
// registry (the NewPipeline default) just skips the bookkeeping calls.
func (p *Pipeline) WithRegistry(r *RuntimeRegistry) *Pipeline {
	p.registry = r
	return p
}

// ProcessExternal runs one SignedOperation's raw bytes through the full
// pipeline. A nil return means the step is fully handled (including the
// degenerate "dropped silently" cases); a non-nil return is a fatal
// storage-level error the caller should treat as unrecoverable for this
// step, per spec §7's propagation policy.
func (p *Pipeline) ProcessExternal(raw []byte) error {
	so, err := DecodeSignedOperation(raw)
	if err != nil {
		p.log.WithError(err).Debug("dropping operation: decode failure")
		return nil
	}

	opHash, err := so.Operation.Hash()
	if err != nil {
		p.log.WithError(err).Debug("dropping operation: cannot hash")
		return nil
	}

	tx := NewTransaction(p.hrt, p.outbox)
	receipts := NewReceiptStore(tx)

	exists, err := receipts.Exists(opHash)
	if err != nil {
		return err
	}
	if exists {
		tx.Rollback()
		p.log.WithField("op", opHash.Hex()).Debug("dropping operation: replay")
		return nil
	}

	signer, _, verifyErr := so.Verify()
	if verifyErr != nil {
		if err := receipts.Put(Receipt{OperationHash: opHash, Result: FailureResult{Kind: KindInvalidSignature, Message: verifyErr.Error()}}); err != nil {
			return err
		}
		return tx.Commit()
	}

	accounts := NewAccountRegistry(tx)
	nonce, err := accounts.Nonce(signer)
	if err != nil {
		return err
	}
	if so.Operation.Nonce != nonce+1 {
		if err := receipts.Put(Receipt{OperationHash: opHash, Result: FailureResult{
			Kind:    KindInvalidNonce,
			Message: "expected next nonce to match account sequence",
		}}); err != nil {
			return err
		}
		return tx.Commit()
	}
	if err := accounts.IncrementNonce(signer); err != nil {
		return err
	}

	tx.Begin()
	var result ReceiptResult
	switch content := so.Operation.Content.(type) {
	case DeployFunction:
		result = p.executeDeploy(tx, signer, so.Operation.Nonce, content)
	case RunFunction:
		result = p.executeRun(tx, opHash, content)
	default:
		result = FailureResult{Kind: KindDecodeError, Message: "unknown operation content"}
	}

	if _, failed := result.(FailureResult); failed {
		tx.Rollback()
	} else if err := tx.Commit(); err != nil {
		return err
	}

	if err := NewReceiptStore(tx).Put(Receipt{OperationHash: opHash, Result: result}); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Pipeline) executeDeploy(tx *Transaction, creator Address, creationNonce uint64, content DeployFunction) ReceiptResult {
	if err := ValidateModule(content.Code); err != nil {
		return FailureResult{Kind: KindParseError, Message: err.Error()}
	}
	accounts := NewAccountRegistry(tx)
	addr, err := accounts.CreateSmartFunction(creator, creationNonce, content.InitialCredit, ParsedCode{Source: content.Code})
	if err != nil {
		return FailureResult{Kind: KindOf(err), Message: err.Error()}
	}
	return DeployResult{Address: addr}
}

func (p *Pipeline) executeRun(tx *Transaction, opHash Hash, content RunFunction) ReceiptResult {
	scheme, rest, ok := strings.Cut(content.URI, "://")
	if !ok || scheme != "jstz" {
		return FailureResult{Kind: KindInvalidScheme, Message: "run uri must use the jstz scheme"}
	}
	hostPart, _, _ := strings.Cut(rest, "/")
	target, err := ParseAddress(hostPart)
	if err != nil {
		return FailureResult{Kind: KindInvalidUri, Message: err.Error()}
	}

	accounts := NewAccountRegistry(tx)
	acc, err := accounts.Get(target)
	if err != nil {
		return FailureResult{Kind: KindOf(err), Message: err.Error()}
	}
	if acc.Code == nil {
		return FailureResult{Kind: KindAccountDoesNotExist, Message: "target has no deployed code"}
	}

	gasLimit := p.config.ClampGasLimit(content.GasLimit)
	gas := NewGasMeter(gasLimit)
	host := NewExecutionHost(p.hrt, tx, target, opHash, gas, p.config)
	req := NewRequest(content.Method, content.URI, content.Headers, content.Body)

	if p.registry != nil {
		p.registry.Start(host.RequestID, target, opHash)
	}
	resp, runErr := host.Run(acc.Code.Source, req)
	if p.registry != nil {
		p.registry.Complete(host.RequestID, runErr != nil)
	}
	if runErr != nil {
		return FailureResult{Kind: KindOf(runErr), Message: runErr.Error()}
	}
	return RunResult{Status: resp.Status, Headers: resp.Headers.ToMap(), Body: resp.BodyBytes()}
}
