package core

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

const (
	headerTransfer = "X-JSTZ-Transfer"
	headerAmount   = "X-JSTZ-Amount"
	headerReferer  = "Referer"

	withdrawHost = "jstz"
	withdrawPath = "/withdraw"
)

type withdrawRequestBody struct {
	Receiver string `json:"receiver"`
	Amount   uint64 `json:"amount"`
}

// jsFetch is the global `fetch` binding (component H). It accepts either a
// URL string plus an optional init object, or a Request-shaped object, and
// returns a Promise<Response>.
func (h *ExecutionHost) jsFetch(call goja.FunctionCall) goja.Value {
	promise, resolve, reject := h.VM.NewPromise()

	req, err := parseFetchArgs(call)
	if err != nil {
		reject(h.VM.ToValue(err.Error()))
		return h.VM.ToValue(promise)
	}

	if req.Headers.Has(headerAmount) {
		reject(h.VM.ToValue(New(KindInvalidHeaderValue, "%s must not be set by caller", headerAmount).Error()))
		return h.VM.ToValue(promise)
	}
	if req.Headers.Has(headerReferer) {
		reject(h.VM.ToValue(New(KindRefererShouldNotBeSet, "referer is host-controlled").Error()))
		return h.VM.ToValue(promise)
	}

	if err := h.Gas.Consume(CallFetch); err != nil {
		reject(h.VM.ToValue(err.Error()))
		return h.VM.ToValue(promise)
	}

	resp, err := h.dispatchFetch(req)
	if err != nil {
		reject(h.VM.ToValue(err.Error()))
		return h.VM.ToValue(promise)
	}
	resolve(h.VM.ToValue(responseToJSObject(h.VM, resp)))
	return h.VM.ToValue(promise)
}

func parseFetchArgs(call goja.FunctionCall) (*Request, error) {
	first := call.Argument(0)
	if m, ok := first.Export().(map[string]interface{}); ok {
		url, _ := m["url"].(string)
		method, _ := m["method"].(string)
		if method == "" {
			method = "GET"
		}
		body, _ := m["body"].(string)
		headers := map[string]string{}
		if hm, ok := m["headers"].(map[string]interface{}); ok {
			for k, v := range hm {
				headers[k] = stringifyJSValue(v)
			}
		}
		return NewRequest(method, url, headers, []byte(body)), nil
	}

	url := first.String()
	method := "GET"
	headers := map[string]string{}
	var body []byte
	if len(call.Arguments) > 1 {
		if init, ok := call.Arguments[1].Export().(map[string]interface{}); ok {
			if mv, ok := init["method"].(string); ok {
				method = mv
			}
			if hm, ok := init["headers"].(map[string]interface{}); ok {
				for k, v := range hm {
					headers[k] = stringifyJSValue(v)
				}
			}
			if bv, ok := init["body"].(string); ok {
				body = []byte(bv)
			}
		}
	}
	return NewRequest(method, url, headers, body), nil
}

func responseToJSObject(vm *goja.Runtime, resp *Response) map[string]interface{} {
	body := string(resp.BodyBytes())
	return map[string]interface{}{
		jsResponseMarker: true,
		"status":         int64(resp.Status),
		"headers":        headersToInterfaceMap(resp.Headers),
		"body":           body,
		"text":           func(goja.FunctionCall) goja.Value { return vm.ToValue(body) },
		"ok":             resp.IsSuccess(),
	}
}

func headersToInterfaceMap(h *Headers) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range h.ToMap() {
		out[k] = v
	}
	return out
}

// dispatchFetch implements the URL-form dispatch table from spec §4.4.
func (h *ExecutionHost) dispatchFetch(req *Request) (*Response, error) {
	scheme, rest, ok := strings.Cut(req.URI, "://")
	if !ok || scheme != "jstz" {
		return nil, New(KindInvalidScheme, "unsupported fetch scheme in %q", req.URI)
	}
	hostPart, path, _ := strings.Cut(rest, "/")
	path = "/" + path

	if hostPart == withdrawHost && path == withdrawPath {
		return h.handleWithdraw(req)
	}

	target, err := ParseAddress(hostPart)
	if err != nil {
		return nil, Wrap(KindInvalidHost, err, "fetch target is not a valid address")
	}
	return h.handleInterFunctionCall(target, req)
}

func (h *ExecutionHost) handleWithdraw(req *Request) (*Response, error) {
	bodyBytes, err := req.Body.Bytes()
	if err != nil {
		return nil, Wrap(KindInvalidHttpRequestBody, err, "withdraw body")
	}
	var body withdrawRequestBody
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return nil, Wrap(KindInvalidHttpRequestBody, err, "decode withdraw body")
	}
	receiver, err := ParseAddress(body.Receiver)
	if err != nil {
		return nil, Wrap(KindInvalidAddress, err, "withdraw receiver")
	}
	if err := h.Gas.Consume(CallWithdraw); err != nil {
		return nil, err
	}
	if err := h.Accounts.SubBalance(h.Self, body.Amount); err != nil {
		return nil, err
	}
	msg := NewWithdrawalMessage(
		RoutingInfo{Receiver: receiver, ProxyL1Contract: h.Config.WithdrawalContract},
		TicketInfo{ID: 0, Ticketer: h.Config.NativeTicketer},
		body.Amount,
	)
	if err := h.Tx.QueueOutbox(msg); err != nil {
		return nil, err
	}
	return NewResponse(200, nil, nil), nil
}

// handleInterFunctionCall implements the nested-transaction, referer, and
// transfer-header protocol for calls between smart functions.
func (h *ExecutionHost) handleInterFunctionCall(target Address, req *Request) (*Response, error) {
	targetAccount, err := h.Accounts.Get(target)
	if err != nil {
		return nil, err
	}
	if targetAccount.Code == nil {
		return nil, New(KindAccountDoesNotExist, "smart function %s has no code", target)
	}

	if req.Headers.Has(headerTransfer) {
		amount, err := strconv.ParseUint(req.Headers.values[canonicalHeaderKey(headerTransfer)][0], 10, 64)
		if err != nil {
			return nil, New(KindInvalidHeaderValue, "%s must be a nonnegative integer", headerTransfer)
		}
		if err := h.Accounts.Transfer(h.Self, target, amount); err != nil {
			return nil, err
		}
		req.Headers.Delete(headerTransfer)
		req.Headers.Set(headerAmount, strconv.FormatUint(amount, 10))
	}
	req.Headers.Set(headerReferer, h.Self.String())

	h.Tx.Begin()
	nested := NewExecutionHost(h.HRT, h.Tx, target, h.OperationHash, h.Gas, h.Config)
	resp, runErr := nested.Run(targetAccount.Code.Source, req)
	if runErr != nil {
		h.Tx.Rollback()
		return nil, runErr
	}
	if resp.IsSuccess() {
		if err := h.Tx.Commit(); err != nil {
			return nil, err
		}
	} else {
		h.Tx.Rollback()
	}
	return resp, nil
}
