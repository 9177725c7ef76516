package jsonrpc2sock

import (
	"iter"
)

// Response represents a JSON-RPC 2.0 response object.
//
// A response carries either a [Result] or an [Error]. If both are set, encoders write only the
// error. The [ID] mirrors the request it answers; a zero ID is written as `null`.
//
// Responses that arrived in, or are to be sent as, one batch are linked through Next.
//
// See: https://www.jsonrpc.org/specification#response_object
type Response struct {
	Jsonrpc string
	Result  Result
	Error   Error
	ID      ID
	Next    *Response
}

// NewResponseWithResult creates a successful response for id.
//
// Example:
//
//	resp := jsonrpc2sock.NewResponseWithResult(jsonrpc2sock.NewID("1"), "pong")
//	// Encodes to: {"jsonrpc":"2.0","id":1,"result":"pong"}
func NewResponseWithResult(id ID, r any) *Response {
	return &Response{Jsonrpc: ProtocolVersion, ID: id, Result: NewResult(r)}
}

// NewResponseWithError creates an error response for id.
//
// If e is already an [Error], it is used directly. Otherwise it becomes a [CodeServerError]
// with the error text as message.
//
// Example:
//
//	resp := jsonrpc2sock.NewResponseWithError(jsonrpc2sock.NewID("1"), jsonrpc2sock.ErrMethodNotFound)
//	// Encodes to: {"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}
func NewResponseWithError(id ID, e error) *Response {
	return &Response{Jsonrpc: ProtocolVersion, ID: id, Error: asError(e)}
}

// NewResponseError creates an error response with a null id, for frames whose id could not be
// determined.
func NewResponseError(e error) *Response {
	return &Response{Jsonrpc: ProtocolVersion, Error: asError(e)}
}

// IsError returns true if the response carries an [Error].
func (r *Response) IsError() bool {
	return !r.Error.IsZero()
}

// NewResponseChain links resps through Next in order and returns the head.
// Nil entries are skipped. It returns nil when no response remains.
func NewResponseChain(resps ...*Response) *Response {
	var head, tail *Response

	for _, m := range resps {
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
func (r *Response) All() iter.Seq[*Response] {
	return func(yield func(*Response) bool) {
		for m := r; m != nil; m = m.Next {
			if !yield(m) {
				return
			}
		}
	}
}

// Len returns the number of responses in the chain starting at r.
func (r *Response) Len() int {
	return chainLen(r.All())
}

// Slice returns the chain starting at r as a slice. Next links are left in place.
func (r *Response) Slice() []*Response {
	return chainSlice(r.Len(), r.All())
}
