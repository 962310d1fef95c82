package core

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// ReceiptResult is the sum type of a receipt's outcome payload.
type ReceiptResult interface {
	isReceiptResult()
}

// DeployResult carries the derived address of a successfully deployed
// smart function.
type DeployResult struct {
	Address Address
}

func (DeployResult) isReceiptResult() {}

// RunResult carries the HTTP-style response of a successful RunFunction.
type RunResult struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

func (RunResult) isReceiptResult() {}

// FailureResult carries a taxonomy tag and message for a failed operation.
type FailureResult struct {
	Kind    Kind
	Message string
}

func (FailureResult) isReceiptResult() {}

// Receipt is the recorded outcome of an operation, keyed by its hash (spec
// §3, §6). Written exactly once per processed operation.
type Receipt struct {
	OperationHash Hash
	Result        ReceiptResult
}

func (r Receipt) Success() bool {
	_, failed := r.Result.(FailureResult)
	return !failed
}

func receiptPath(opHash Hash) Path {
	return Path(fmt.Sprintf("/jstz_receipt/%s", opHash.Hex()))
}

const (
	receiptTagDeploy  byte = 0
	receiptTagRun     byte = 1
	receiptTagFailure byte = 2
)

type receiptWire struct {
	OperationHash []byte
	Tag           byte

	DeployAddressScheme byte
	DeployAddressHash   []byte

	RunStatus     uint64
	RunHdrKeys    []string
	RunHdrVals    []string
	RunBody       []byte

	FailureKind    string
	FailureMessage string
}

func EncodeReceipt(r Receipt) ([]byte, error) {
	w := receiptWire{OperationHash: r.OperationHash.Bytes()}
	switch res := r.Result.(type) {
	case DeployResult:
		w.Tag = receiptTagDeploy
		w.DeployAddressScheme = byte(res.Address.Scheme)
		w.DeployAddressHash = res.Address.Hash[:]
	case RunResult:
		w.Tag = receiptTagRun
		w.RunStatus = uint64(res.Status)
		w.RunBody = res.Body
		keys := make([]string, 0, len(res.Headers))
		for k := range res.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.RunHdrKeys = keys
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = res.Headers[k]
		}
		w.RunHdrVals = vals
	case FailureResult:
		w.Tag = receiptTagFailure
		w.FailureKind = string(res.Kind)
		w.FailureMessage = res.Message
	default:
		return nil, New(KindDecodeError, "unknown receipt result type")
	}
	b, err := rlp.EncodeToBytes(w)
	if err != nil {
		return nil, Wrap(KindDecodeError, err, "encode receipt")
	}
	return b, nil
}

func DecodeReceipt(b []byte) (Receipt, error) {
	var w receiptWire
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return Receipt{}, Wrap(KindDecodeError, err, "decode receipt")
	}
	if len(w.OperationHash) != 32 {
		return Receipt{}, New(KindDecodeError, "receipt operation hash must be 32 bytes")
	}
	var opHash Hash
	copy(opHash[:], w.OperationHash)
	r := Receipt{OperationHash: opHash}
	switch w.Tag {
	case receiptTagDeploy:
		var addr Address
		addr.Scheme = Scheme(w.DeployAddressScheme)
		copy(addr.Hash[:], w.DeployAddressHash)
		r.Result = DeployResult{Address: addr}
	case receiptTagRun:
		headers := make(map[string]string, len(w.RunHdrKeys))
		for i, k := range w.RunHdrKeys {
			if i < len(w.RunHdrVals) {
				headers[k] = w.RunHdrVals[i]
			}
		}
		r.Result = RunResult{Status: int(w.RunStatus), Headers: headers, Body: w.RunBody}
	case receiptTagFailure:
		r.Result = FailureResult{Kind: Kind(w.FailureKind), Message: w.FailureMessage}
	default:
		return Receipt{}, New(KindDecodeError, "unknown receipt tag %d", w.Tag)
	}
	return r, nil
}

// ReceiptStore reads and writes receipts against a Transaction.
type ReceiptStore struct {
	tx *Transaction
}

func NewReceiptStore(tx *Transaction) *ReceiptStore {
	return &ReceiptStore{tx: tx}
}

func (s *ReceiptStore) Exists(opHash Hash) (bool, error) {
	return s.tx.ContainsKey(receiptPath(opHash))
}

func (s *ReceiptStore) Get(opHash Hash) (Receipt, bool, error) {
	raw, ok, err := s.tx.Get(receiptPath(opHash))
	if err != nil || !ok {
		return Receipt{}, ok, err
	}
	r, err := DecodeReceipt(raw)
	return r, true, err
}

func (s *ReceiptStore) Put(r Receipt) error {
	raw, err := EncodeReceipt(r)
	if err != nil {
		return err
	}
	return s.tx.Insert(receiptPath(r.OperationHash), raw)
}
