package jsonrpc2sock

import (
	"iter"
)

// Request represents a JSON-RPC 2.0 request or notification.
//
// A request whose [ID] is zero is a notification and expects no response.
//
// Requests that arrived in, or are to be sent as, one batch are linked through Next in batch
// order. A lone request and a one element batch look the same to consumers.
type Request struct {
	Jsonrpc string
	Method  string
	Params  Params
	ID      ID
	Next    *Request
}

// NewRequest builds a new request for method with the given id and positional params.
// Jsonrpc is preset to [ProtocolVersion].
func NewRequest(id ID, method string, params ...any) *Request {
	return &Request{Jsonrpc: ProtocolVersion, ID: id, Method: method, Params: NewParams(params...)}
}

// NewNotification builds a new request without an id.
func NewNotification(method string, params ...any) *Request {
	return &Request{Jsonrpc: ProtocolVersion, Method: method, Params: NewParams(params...)}
}

// IsNotification returns true if this request has no id.
func (r *Request) IsNotification() bool {
	return r.ID.IsZero()
}

// ResponseWithError constructs a response for the current request with its error member set.
// If e is an [Error] it is used directly; other errors become a [CodeServerError] whose message
// is the error text.
func (r *Request) ResponseWithError(e error) *Response {
	return &Response{Jsonrpc: ProtocolVersion, ID: r.ID, Error: asError(e)}
}

// ResponseWithResult constructs a response for the current request with its result member set.
func (r *Request) ResponseWithResult(result any) *Response {
	return &Response{Jsonrpc: ProtocolVersion, ID: r.ID, Result: NewResult(result)}
}

// NewRequestChain links reqs through Next in order and returns the head.
// Nil entries are skipped. It returns nil when no request remains.
func NewRequestChain(reqs ...*Request) *Request {
	var head, tail *Request

	for _, m := range reqs {
		if m == nil {
			continue
		}

		if head == nil {
			head = m
		} else {
			tail.Next = m
		}

		tail = m
	}

	if tail != nil {
		tail.Next = nil
	}

	return head
}

// All iterates over the chain starting at r.
func (r *Request) All() iter.Seq[*Request] {
	return func(yield func(*Request) bool) {
		for m := r; m != nil; m = m.Next {
			if !yield(m) {
				return
			}
		}
	}
}

// Len returns the number of requests in the chain starting at r.
func (r *Request) Len() int {
	return chainLen(r.All())
}

// Slice returns the chain starting at r as a slice. Next links are left in place.
func (r *Request) Slice() []*Request {
	return chainSlice(r.Len(), r.All())
}
