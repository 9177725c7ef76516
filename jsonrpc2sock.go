// Package jsonrpc2sock implements JSON-RPC 2.0 message framing and encoding for streaming sockets.
//
// # Overview
//
// A stream socket delivers bytes, not messages. A single read may carry half of a request,
// exactly one request, or the tail of one request glued to the head of the next. This package
// turns such a stream into whole JSON-RPC frames and turns requests and responses back into
// wire bytes.
//
// # Components
//
//   - [FrameScanner] finds the boundary of one complete top-level JSON object or array inside a
//     growing buffer. It resumes from where the previous call stopped and never rescans bytes.
//   - [DecodeRequests] and [DecodeResponses] turn one frame into a [*Request] or [*Response]
//     chain. A JSON array (batch) becomes a chain linked through the Next field.
//   - [EncodeRequests] and [EncodeResponses] write a chain back out as one object or an array.
//   - [ID] implements the id correlation convention: ids are carried as text and written as JSON
//     integers whenever the text parses as one.
//   - [FrameReader], [Session], [Server] and [Caller] wire the above onto [net.Conn] style
//     transports.
//
// Pluggable JSON Libraries: replace the standard `encoding/json` by overriding the package level
// variables [Marshal] and [Unmarshal] at startup.
//
// # Server (TCP Example)
//
//	mux := jsonrpc2sock.NewMethodMux()
//	_ = mux.RegisterFunc("subtract", func(ctx context.Context, req *jsonrpc2sock.Request) (any, error) {
//		var a, b int
//		if err := req.Params.Unmarshal(0, &a); err != nil {
//			return nil, jsonrpc2sock.ErrInvalidParams
//		}
//		if err := req.Params.Unmarshal(1, &b); err != nil {
//			return nil, jsonrpc2sock.ErrInvalidParams
//		}
//		return a - b, nil
//	})
//
//	server := jsonrpc2sock.NewServer(mux)
//	if err := server.ListenAndServe(ctx, "tcp:127.0.0.1:9090"); err != nil && !errors.Is(err, net.ErrClosed) {
//		log.Println(err)
//	}
//
// # Caller (TCP Example)
//
//	caller, err := jsonrpc2sock.DialCaller(ctx, "tcp:127.0.0.1:9090")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer caller.Close()
//
//	resp, err := caller.Call(ctx, "subtract", 42, 23)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	var result int
//	_ = resp.Result.Unmarshal(&result) // 19
//
// [jsonrpc2 protocol]: https://www.jsonrpc.org/specification
package jsonrpc2sock

import (
	"encoding/json"
)

var nullValue = json.RawMessage("null") // Represents the JSON `null` value.

// Marshal defines the function used for marshaling Go values that have no dedicated fast path
// in the encoders (arbitrary structs, maps, slices). By default, it uses [encoding/json.Marshal].
// Applications can replace this variable *at startup* with a compatible function, for example
// from `github.com/bytedance/sonic`.
//
// Example (using sonic):
//
//	func init() {
//	    jsonrpc2sock.Marshal = sonic.ConfigDefault.Marshal
//	}
var Marshal = json.Marshal

// Unmarshal defines the function used for unmarshalling frames and the values carried in
// [Params], [Result] and [ErrorData]. By default, it uses [encoding/json.Unmarshal].
// Applications can replace this variable *at startup*.
//
// The replacement must honour [json.RawMessage] and [json.Unmarshaler].
var Unmarshal = json.Unmarshal
