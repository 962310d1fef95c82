package core

import "strings"

// Headers is a case-insensitive multimap, matching the Web platform subset
// of the Headers interface that Request/Response expose.
type Headers struct {
	values map[string][]string
	order  []string
}

func NewHeaders() *Headers {
	return &Headers{values: make(map[string][]string)}
}

func canonicalHeaderKey(k string) string {
	return strings.ToLower(k)
}

func (h *Headers) Set(key, value string) {
	k := canonicalHeaderKey(key)
	if _, ok := h.values[k]; !ok {
		h.order = append(h.order, k)
	}
	h.values[k] = []string{value}
}

func (h *Headers) Append(key, value string) {
	k := canonicalHeaderKey(key)
	if _, ok := h.values[k]; !ok {
		h.order = append(h.order, k)
	}
	h.values[k] = append(h.values[k], value)
}

func (h *Headers) Get(key string) (string, bool) {
	vs, ok := h.values[canonicalHeaderKey(key)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (h *Headers) Has(key string) bool {
	_, ok := h.values[canonicalHeaderKey(key)]
	return ok
}

func (h *Headers) Delete(key string) {
	k := canonicalHeaderKey(key)
	delete(h.values, k)
	for i, existing := range h.order {
		if existing == k {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// ToMap flattens Headers to a single string per key, matching the wire
// shape carried on Operation.RunFunction.Headers.
func (h *Headers) ToMap() map[string]string {
	out := make(map[string]string, len(h.order))
	for _, k := range h.order {
		if v, ok := h.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

func HeadersFromMap(m map[string]string) *Headers {
	h := NewHeaders()
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

// Body is a flat has-a component shared by Request, Response, and any
// future File-like type, per spec §9 ("model as a flat has-a composition").
type Body struct {
	data []byte
	used bool
}

func NewBody(data []byte) *Body {
	return &Body{data: data}
}

func (b *Body) Bytes() ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	if b.used {
		return nil, New(KindInvalidHttpRequestBody, "body already consumed")
	}
	b.used = true
	return b.data, nil
}

func (b *Body) Text() (string, error) {
	d, err := b.Bytes()
	if err != nil {
		return "", err
	}
	return string(d), nil
}

// Request is the execution host's request object: a method, URI, headers,
// and body, reused both for top-level RunFunction dispatch and for
// in-engine fetch() calls.
type Request struct {
	Method  string
	URI     string
	Headers *Headers
	Body    *Body
}

func NewRequest(method, uri string, headers map[string]string, body []byte) *Request {
	return &Request{
		Method:  method,
		URI:     uri,
		Headers: HeadersFromMap(headers),
		Body:    NewBody(body),
	}
}

// Response is the execution host's response object.
type Response struct {
	Status  int
	Headers *Headers
	Body    *Body
}

func NewResponse(status int, headers map[string]string, body []byte) *Response {
	return &Response{
		Status:  status,
		Headers: HeadersFromMap(headers),
		Body:    NewBody(body),
	}
}

func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 400
}

func (r *Response) BodyBytes() []byte {
	if r.Body == nil {
		return nil
	}
	b, err := r.Body.Bytes()
	if err != nil {
		return nil
	}
	return b
}
