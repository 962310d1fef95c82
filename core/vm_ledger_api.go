package core

import "github.com/dop251/goja"

// newLedgerAPI binds balance transfer and self-address lookup (component
// L), grounded on original_source's api/ledger.rs Ledger native object.
func newLedgerAPI(h *ExecutionHost) *goja.Object {
	obj := h.VM.NewObject()

	obj.Set("selfAddress", func(call goja.FunctionCall) goja.Value {
		return h.VM.ToValue(h.Self.String())
	})

	obj.Set("balance", func(call goja.FunctionCall) goja.Value {
		if err := h.Gas.Consume(CallLedgerBalance); err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		addr, err := ParseAddress(call.Argument(0).String())
		if err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		bal, err := h.Accounts.Balance(addr)
		if err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		return h.VM.ToValue(bal)
	})

	obj.Set("transfer", func(call goja.FunctionCall) goja.Value {
		if err := h.Gas.Consume(CallLedgerTransfer); err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		dst, err := ParseAddress(call.Argument(0).String())
		if err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		amount := call.Argument(1).ToInteger()
		if amount < 0 {
			panic(h.VM.ToValue("transfer amount must be nonnegative"))
		}
		if err := h.Accounts.Transfer(h.Self, dst, uint64(amount)); err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		return goja.Undefined()
	})

	return obj
}
