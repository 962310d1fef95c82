package core

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// HostCall identifies a host built-in invocation for gas pricing purposes.
type HostCall string

const (
	CallKvSet             HostCall = "kv.set"
	CallKvGet             HostCall = "kv.get"
	CallKvDelete          HostCall = "kv.delete"
	CallKvHas             HostCall = "kv.has"
	CallLedgerBalance     HostCall = "ledger.balance"
	CallLedgerTransfer    HostCall = "ledger.transfer"
	CallSmartFunctionCall HostCall = "smart_function.call"
	CallSmartFunctionNew  HostCall = "smart_function.create"
	CallFetch             HostCall = "fetch"
	CallWithdraw          HostCall = "withdraw"
)

// DefaultHostCallCost is charged for any host call with no explicit entry
// in gasTable, mirroring the teacher's DefaultGasCost fallback.
const DefaultHostCallCost uint64 = 1000

var gasTable = map[HostCall]uint64{
	CallKvGet:             200,
	CallKvHas:             200,
	CallKvSet:             500,
	CallKvDelete:          300,
	CallLedgerBalance:     100,
	CallLedgerTransfer:    800,
	CallSmartFunctionCall: 5000,
	CallSmartFunctionNew:  20000,
	CallFetch:             5000,
	CallWithdraw:          10000,
}

var warnedOnce sync.Map // HostCall -> struct{}

// GasCost returns the price of call, logging once per process if call has
// no catalogued entry and falling back to DefaultHostCallCost.
func GasCost(call HostCall) uint64 {
	if cost, ok := gasTable[call]; ok {
		return cost
	}
	if _, already := warnedOnce.LoadOrStore(call, struct{}{}); !already {
		logrus.WithField("call", call).Warn("gas table miss, using default cost")
	}
	return DefaultHostCallCost
}

// GasMeter tracks remaining gas for one RunFunction invocation, including
// everything it does transitively through nested fetch calls.
type GasMeter struct {
	remaining uint64
}

func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{remaining: limit}
}

func (g *GasMeter) Remaining() uint64 {
	return g.remaining
}

// Consume deducts the price of call from the remaining budget, failing with
// GasLimitExceeded if it would go negative.
func (g *GasMeter) Consume(call HostCall) error {
	cost := GasCost(call)
	if cost > g.remaining {
		g.remaining = 0
		return New(KindGasLimitExceeded, "gas exhausted on %s", call)
	}
	g.remaining -= cost
	return nil
}

// ConsumeAmount deducts an explicit amount, used for coarse interpreter
// step accounting inside the JS engine's interrupt hook.
func (g *GasMeter) ConsumeAmount(amount uint64) error {
	if amount > g.remaining {
		g.remaining = 0
		return New(KindGasLimitExceeded, "gas exhausted")
	}
	g.remaining -= amount
	return nil
}

// AllHostCalls lists every HostCall the host bindings can charge for.
func AllHostCalls() []HostCall {
	return []HostCall{
		CallKvSet, CallKvGet, CallKvDelete, CallKvHas,
		CallLedgerBalance, CallLedgerTransfer,
		CallSmartFunctionCall, CallSmartFunctionNew,
		CallFetch, CallWithdraw,
	}
}

// GasTableLint reports every HostCall with no explicit gasTable entry, for
// the jstzd gas-table lint command.
func GasTableLint() []HostCall {
	var missing []HostCall
	for _, call := range AllHostCalls() {
		if _, ok := gasTable[call]; !ok {
			missing = append(missing, call)
		}
	}
	return missing
}
