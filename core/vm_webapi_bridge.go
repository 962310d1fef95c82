package core

import (
	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
)

// newConsoleObject binds a minimal console.log/warn/error surface, the one
// piece of the stdlib subset every smart function in practice reaches for.
func newConsoleObject(vm *goja.Runtime, log *logrus.Entry) *goja.Object {
	obj := vm.NewObject()
	logFn := func(level logrus.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = a.Export()
			}
			log.Log(level, args...)
			return goja.Undefined()
		}
	}
	obj.Set("log", logFn(logrus.InfoLevel))
	obj.Set("info", logFn(logrus.InfoLevel))
	obj.Set("warn", logFn(logrus.WarnLevel))
	obj.Set("error", logFn(logrus.ErrorLevel))
	obj.Set("debug", logFn(logrus.DebugLevel))
	return obj
}

// jsResponseMarker tags objects built by newResponseConstructor so
// responseFromJS can recognize a real Response versus a bare plain object.
const jsResponseMarker = "__jstzResponse"

func newResponseConstructor(vm *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		obj := call.This
		var body string
		if len(call.Arguments) > 0 && !goja.IsUndefined(call.Arguments[0]) && !goja.IsNull(call.Arguments[0]) {
			body = call.Arguments[0].String()
		}
		status := int64(200)
		headers := map[string]interface{}{}
		if len(call.Arguments) > 1 {
			if init, ok := call.Arguments[1].Export().(map[string]interface{}); ok {
				if s, ok := init["status"]; ok {
					if f, ok := s.(int64); ok {
						status = f
					} else if f, ok := s.(float64); ok {
						status = int64(f)
					}
				}
				if h, ok := init["headers"].(map[string]interface{}); ok {
					headers = h
				}
			}
		}
		obj.Set(jsResponseMarker, true)
		obj.Set("status", status)
		obj.Set("headers", headers)
		obj.Set("body", body)
		obj.Set("text", func(goja.FunctionCall) goja.Value { return vm.ToValue(body) })
		obj.Set("ok", status >= 200 && status < 300)
		return obj
	}
}

func newRequestConstructor(vm *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		obj := call.This
		url := ""
		if len(call.Arguments) > 0 {
			url = call.Arguments[0].String()
		}
		method := "GET"
		headers := map[string]interface{}{}
		var body string
		if len(call.Arguments) > 1 {
			if init, ok := call.Arguments[1].Export().(map[string]interface{}); ok {
				if m, ok := init["method"].(string); ok {
					method = m
				}
				if h, ok := init["headers"].(map[string]interface{}); ok {
					headers = h
				}
				if b, ok := init["body"].(string); ok {
					body = b
				}
			}
		}
		obj.Set("url", url)
		obj.Set("method", method)
		obj.Set("headers", headers)
		obj.Set("body", body)
		obj.Set("text", func(goja.FunctionCall) goja.Value { return vm.ToValue(body) })
		return obj
	}
}

// requestToJS builds the plain-object shape handed to a smart function's
// default export.
func requestToJS(vm *goja.Runtime, req *Request) map[string]interface{} {
	headers := map[string]interface{}{}
	for k, v := range req.Headers.ToMap() {
		headers[k] = v
	}
	bodyText := ""
	if req.Body != nil {
		if b, err := req.Body.Text(); err == nil {
			bodyText = b
		}
	}
	return map[string]interface{}{
		"url":     req.URI,
		"method":  req.Method,
		"headers": headers,
		"body":    bodyText,
		"text":    func(goja.FunctionCall) goja.Value { return vm.ToValue(bodyText) },
	}
}

// responseFromJS interprets a handler's return value as a Response. A
// Response built via the `new Response(...)` constructor round-trips
// exactly; any other returned value is coerced into a 200 with the
// stringified value as the body, so handlers that just `return "ok"` still
// produce a usable receipt.
func responseFromJS(v goja.Value) (*Response, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return NewResponse(204, nil, nil), nil
	}
	exported := v.Export()
	m, ok := exported.(map[string]interface{})
	if !ok {
		return NewResponse(200, nil, []byte(v.String())), nil
	}
	status := 200
	if s, ok := m["status"]; ok {
		switch sv := s.(type) {
		case int64:
			status = int(sv)
		case float64:
			status = int(sv)
		}
	}
	headers := map[string]string{}
	if h, ok := m["headers"].(map[string]interface{}); ok {
		for k, val := range h {
			headers[k] = stringifyJSValue(val)
		}
	}
	body := ""
	if b, ok := m["body"]; ok {
		body = stringifyJSValue(b)
	}
	return NewResponse(status, headers, []byte(body)), nil
}

func stringifyJSValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
