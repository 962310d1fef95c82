package core

import "github.com/dop251/goja"

// newSmartFunctionAPI binds dynamic smart-function creation and the
// fetch-aliasing call() method, grounded on original_source's
// runtime/v1/api/smart_function.rs.
func newSmartFunctionAPI(h *ExecutionHost) *goja.Object {
	obj := h.VM.NewObject()

	obj.Set("create", func(call goja.FunctionCall) goja.Value {
		if err := h.Gas.Consume(CallSmartFunctionNew); err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		promise, resolve, reject := h.VM.NewPromise()

		code := call.Argument(0).String()
		initialBalance := uint64(0)
		if len(call.Arguments) > 1 && !goja.IsUndefined(call.Arguments[1]) {
			initialBalance = uint64(call.Argument(1).ToInteger())
		}

		if err := ValidateModule(code); err != nil {
			reject(h.VM.ToValue(err.Error()))
			return h.VM.ToValue(promise)
		}

		nonce, err := h.Accounts.Nonce(h.Self)
		if err != nil {
			reject(h.VM.ToValue(err.Error()))
			return h.VM.ToValue(promise)
		}

		addr, err := h.Accounts.CreateSmartFunction(h.Self, nonce, initialBalance, ParsedCode{Source: code})
		if err != nil {
			reject(h.VM.ToValue(err.Error()))
			return h.VM.ToValue(promise)
		}
		if err := h.Accounts.IncrementNonce(h.Self); err != nil {
			reject(h.VM.ToValue(err.Error()))
			return h.VM.ToValue(promise)
		}

		resolve(h.VM.ToValue(addr.String()))
		return h.VM.ToValue(promise)
	})

	obj.Set("call", func(call goja.FunctionCall) goja.Value {
		return h.jsFetch(call)
	})

	return obj
}
