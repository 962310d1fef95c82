package core

import (
	"fmt"

	"github.com/dop251/goja"
)

func kvPath(owner Address, key string) Path {
	return Path(fmt.Sprintf("/jstz_kv/%s/%s", owner.String(), key))
}

func jsonStringify(vm *goja.Runtime, v goja.Value) (string, error) {
	jsonObj := vm.Get("JSON").ToObject(vm)
	stringify, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return "", New(KindInvalidHttpRequest, "JSON.stringify unavailable")
	}
	res, err := stringify(goja.Undefined(), v)
	if err != nil {
		return "", Wrap(KindInvalidHttpRequest, err, "JSON.stringify")
	}
	return res.String(), nil
}

func jsonParse(vm *goja.Runtime, s string) (goja.Value, error) {
	jsonObj := vm.Get("JSON").ToObject(vm)
	parse, ok := goja.AssertFunction(jsonObj.Get("parse"))
	if !ok {
		return nil, New(KindInvalidHttpRequest, "JSON.parse unavailable")
	}
	res, err := parse(goja.Undefined(), vm.ToValue(s))
	if err != nil {
		return nil, Wrap(KindInvalidHttpRequest, err, "JSON.parse")
	}
	return res, nil
}

// newKvAPI binds the per-function namespaced key-value store (component K)
// to the current transaction, per the surface in spec §6.
func newKvAPI(h *ExecutionHost) *goja.Object {
	obj := h.VM.NewObject()

	obj.Set("set", func(call goja.FunctionCall) goja.Value {
		if err := h.Gas.Consume(CallKvSet); err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		key := call.Argument(0).String()
		encoded, err := jsonStringify(h.VM, call.Argument(1))
		if err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		if err := h.Tx.Insert(kvPath(h.Self, key), []byte(encoded)); err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		return goja.Undefined()
	})

	obj.Set("get", func(call goja.FunctionCall) goja.Value {
		if err := h.Gas.Consume(CallKvGet); err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		key := call.Argument(0).String()
		raw, ok, err := h.Tx.Get(kvPath(h.Self, key))
		if err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		if !ok {
			return goja.Null()
		}
		v, err := jsonParse(h.VM, string(raw))
		if err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		return v
	})

	obj.Set("delete", func(call goja.FunctionCall) goja.Value {
		if err := h.Gas.Consume(CallKvDelete); err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		key := call.Argument(0).String()
		if err := h.Tx.Remove(kvPath(h.Self, key)); err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		return goja.Undefined()
	})

	obj.Set("has", func(call goja.FunctionCall) goja.Value {
		if err := h.Gas.Consume(CallKvHas); err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		key := call.Argument(0).String()
		ok, err := h.Tx.ContainsKey(kvPath(h.Self, key))
		if err != nil {
			panic(h.VM.ToValue(err.Error()))
		}
		return h.VM.ToValue(ok)
	})

	return obj
}
