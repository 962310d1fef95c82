package core

import (
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// WallClockWatchdog bounds a single RunFunction invocation, used only as
// the MAY-have safety net spec §4.3 describes; the gas meter is the
// primary budget.
const WallClockWatchdog = 5 * time.Second

// gasWatchdogTick is how often Run charges the gas meter for CPU time spent
// inside the VM outside of any host built-in. Host built-ins already meter
// themselves per call (core/vm_kv_api.go and friends); this is the only
// meter a script that never touches a host built-in ever pays against, so a
// tight computational loop still exhausts content.GasLimit instead of
// running until the wall-clock watchdog trips.
const gasWatchdogTick = 1 * time.Millisecond

// gasWatchdogStepCost is the coarse price of one gasWatchdogTick of
// uninterrupted VM execution, in the same units as HostCall pricing.
const gasWatchdogStepCost = 1000

// ExecutionHost is the per-operation JS runtime instance (component G). It
// owns a fresh goja.Runtime, the transaction/account state the host
// built-ins read and write, and gas accounting. The binding pattern here —
// one Go object assembled per built-in and installed as a global — mirrors
// the teacher's registerHost/import-object idiom in virtual_machine.go,
// retargeted from wasmer's ImportObject to goja's native-function globals.
type ExecutionHost struct {
	VM      *goja.Runtime
	HRT     HostRuntime
	Tx      *Transaction
	Accounts *AccountRegistry
	Tickets  *TicketTable

	Self          Address
	OperationHash Hash
	RequestID     string

	Gas    *GasMeter
	Config *KernelConfig

	log *logrus.Entry
}

// NewExecutionHost constructs a fresh runtime instance bound to tx. fetch
// dispatch (core/fetch_router.go) is implemented directly as methods on
// ExecutionHost rather than a separate router object, since every route it
// takes needs the full host context (tx, gas, self address) anyway.
func NewExecutionHost(hrt HostRuntime, tx *Transaction, self Address, opHash Hash, gas *GasMeter, cfg *KernelConfig) *ExecutionHost {
	h := &ExecutionHost{
		VM:       goja.New(),
		HRT:      hrt,
		Tx:       tx,
		Accounts: NewAccountRegistry(tx),
		Tickets:  NewTicketTable(tx),
		Self:     self,
		OperationHash: opHash,
		RequestID: randomRequestID(),
		Gas:      gas,
		Config:   cfg,
		log: logrus.WithFields(logrus.Fields{
			"component": "execution_host",
			"self":      self.String(),
			"op":        opHash.Hex(),
		}),
	}
	h.bindBuiltins()
	return h
}

func randomRequestID() string {
	return uuid.NewString()
}

func (h *ExecutionHost) bindBuiltins() {
	h.VM.Set("console", newConsoleObject(h.VM, h.log))
	h.VM.Set("Response", newResponseConstructor(h.VM))
	h.VM.Set("Request", newRequestConstructor(h.VM))
	h.VM.Set("Kv", newKvAPI(h))
	h.VM.Set("Ledger", newLedgerAPI(h))
	h.VM.Set("SmartFunction", newSmartFunctionAPI(h))
	h.VM.Set("fetch", h.jsFetch)
}

// stripDefaultExport rewrites the single `export default <expr>` statement
// jstz smart functions are written with into a plain var assignment, since
// goja has no ES module loader. This is the one JS-syntax liberty the host
// takes; everything else is evaluated as a normal script.
func stripDefaultExport(src string) string {
	const marker = "export default"
	idx := strings.Index(src, marker)
	if idx < 0 {
		return src
	}
	return src[:idx] + "var __jstz_default =" + src[idx+len(marker):]
}

// ValidateModule reports whether src parses as a JS module under the
// host's relaxed (export-default-only) module model, satisfying
// ParsedCode's "always validates on construction" invariant.
func ValidateModule(src string) error {
	if _, err := goja.Compile("module", stripDefaultExport(src), false); err != nil {
		return New(KindParseError, "code does not parse: %v", err)
	}
	return nil
}

// Run drives req through the smart function's default export to
// completion, per spec §4.4: evaluate the module, invoke the default
// handler, drain to quiescence, and marshal the result into a Response.
func (h *ExecutionHost) Run(code string, req *Request) (*Response, error) {
	stopGas := h.startGasWatchdog()
	defer stopGas()

	timer := time.AfterFunc(WallClockWatchdog, func() {
		h.VM.Interrupt("wall clock watchdog tripped")
	})
	defer timer.Stop()

	if _, err := h.VM.RunString(stripDefaultExport(code)); err != nil {
		return nil, h.tagExecutionError(err, "evaluate smart function module")
	}

	defaultFn, ok := goja.AssertFunction(h.VM.Get("__jstz_default"))
	if !ok {
		return nil, New(KindInvalidHttpRequest, "module has no default export function")
	}

	result, err := defaultFn(goja.Undefined(), h.VM.ToValue(requestToJS(h.VM, req)))
	if err != nil {
		return nil, h.tagExecutionError(err, "invoke default export")
	}

	resolved, err := pollUntilQuiescent(result)
	if err != nil {
		if h.Gas.Remaining() == 0 {
			return nil, Wrap(KindGasLimitExceeded, err, "settle default export")
		}
		return nil, err
	}
	return responseFromJS(resolved)
}

// startGasWatchdog charges h.Gas for wall-clock ticks spent inside the VM
// and interrupts the runtime the moment the budget runs out, independent of
// whether the running script ever calls a host built-in. Returns a stop
// func that must be called once Run is done with the VM, successfully or
// not, so the goroutine doesn't charge gas against a VM nobody is running
// anymore.
func (h *ExecutionHost) startGasWatchdog() func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(gasWatchdogTick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := h.Gas.ConsumeAmount(gasWatchdogStepCost); err != nil {
					h.VM.Interrupt(err.Error())
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// tagExecutionError classifies a failure out of RunString/the default
// export call. A drained gas meter means either this watchdog or a host
// built-in's own Consume call caused the failure, so it is reported as
// GasLimitExceeded regardless of which one tripped; anything else is an
// ordinary script error.
func (h *ExecutionHost) tagExecutionError(err error, context string) error {
	if h.Gas.Remaining() == 0 {
		return Wrap(KindGasLimitExceeded, err, context)
	}
	return Wrap(KindInvalidHttpRequest, err, context)
}

// pollUntilQuiescent resolves v if it is a Promise. Every host built-in in
// this package settles its promises synchronously (storage is in-process,
// per spec §5), so by the time the handler call returns there is nothing
// left to pump; a still-pending promise means the script awaited something
// with no resolver, which is a host-runtime contract violation.
func pollUntilQuiescent(v goja.Value) (goja.Value, error) {
	promise, ok := v.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result(), nil
	case goja.PromiseStateRejected:
		return nil, Wrap(KindInvalidHttpRequest, New(KindInvalidHttpRequest, "%v", promise.Result()), "rejected promise")
	default:
		return nil, New(KindGasLimitExceeded, "default export did not settle synchronously")
	}
}
