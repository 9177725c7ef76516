package jsonrpc2sock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrDecoding is returned when a complete frame does not hold valid JSON-RPC messages.
	// It is fatal for the frame but not for the connection.
	ErrDecoding = errors.New("jsonrpc2sock: decoding error")

	// ErrMissingField is wrapped by [ErrDecoding] when a required member is absent.
	ErrMissingField = errors.New("jsonrpc2sock: missing required member")
)

// PackageDecoder turns one complete frame into a message chain.
//
// It is the seam between a transport and the codec: implementations must not retain data after
// Decode returns.
type PackageDecoder[T any] interface {
	Decode(ctx context.Context, data []byte) (T, error)
}

// requestWire is the on-the-wire shape of a request. Members are kept raw so presence can be told
// apart from zero values.
type requestWire struct {
	Jsonrpc json.RawMessage `json:"jsonrpc"`
	Method  json.RawMessage `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type responseWire struct {
	Jsonrpc json.RawMessage `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

type errorWire struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// RequestDecoder decodes frames into [*Request] chains.
//
// By default every request must carry jsonrpc, id and method members. With AllowNotifications
// set, the id member may be omitted and the request is decoded as a notification.
type RequestDecoder struct {
	AllowNotifications bool
}

// ResponseDecoder decodes frames into [*Response] chains.
type ResponseDecoder struct{}

// DecodeRequests decodes one frame into a request chain using the default [RequestDecoder].
//
// A JSON array yields one request per element, in order, linked through Next. Any other value
// is decoded as a single request. An empty array yields nil and no error. One invalid element
// fails the whole frame.
//
// Example:
//
//	req, err := jsonrpc2sock.DecodeRequests([]byte(`{"jsonrpc":"2.0","id":1,"method":"sum","params":[1,2]}`))
//	// req.ID.String() == "1", req.Method == "sum", req.Params.Len() == 2
func DecodeRequests(data []byte) (*Request, error) {
	return RequestDecoder{}.decode(data)
}

// DecodeResponses decodes one frame into a response chain. See [DecodeRequests] for batch
// handling.
func DecodeResponses(data []byte) (*Response, error) {
	return ResponseDecoder{}.decode(data)
}

// Decode implements [PackageDecoder].
func (d RequestDecoder) Decode(ctx context.Context, data []byte) (*Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return d.decode(data)
}

func (d RequestDecoder) decode(data []byte) (*Request, error) {
	elems, err := splitBatch(data)
	if err != nil {
		return nil, err
	}

	reqs := make([]*Request, 0, len(elems))

	for _, e := range elems {
		req, err := d.decodeOne(e)
		if err != nil {
			return nil, err
		}

		reqs = append(reqs, req)
	}

	return NewRequestChain(reqs...), nil
}

func (d RequestDecoder) decodeOne(raw []byte) (*Request, error) {
	var w requestWire

	if err := Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w (%w)", ErrDecoding, err)
	}

	req := &Request{}

	var err error

	if req.Jsonrpc, err = decodeString("jsonrpc", w.Jsonrpc); err != nil {
		return nil, err
	}

	if req.Method, err = decodeString("method", w.Method); err != nil {
		return nil, err
	}

	switch {
	case len(w.ID) > 0:
		if err := req.ID.UnmarshalJSON(w.ID); err != nil {
			return nil, err
		}
	case !d.AllowNotifications:
		return nil, missingField("id")
	}

	if req.Params, err = decodeParams(w.Params); err != nil {
		return nil, err
	}

	return req, nil
}

// Decode implements [PackageDecoder].
func (d ResponseDecoder) Decode(ctx context.Context, data []byte) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return d.decode(data)
}

func (d ResponseDecoder) decode(data []byte) (*Response, error) {
	elems, err := splitBatch(data)
	if err != nil {
		return nil, err
	}

	resps := make([]*Response, 0, len(elems))

	for _, e := range elems {
		resp, err := d.decodeOne(e)
		if err != nil {
			return nil, err
		}

		resps = append(resps, resp)
	}

	return NewResponseChain(resps...), nil
}

// decodeOne decodes a single response object. A present result member wins over error, even
// when it is null.
func (d ResponseDecoder) decodeOne(raw []byte) (*Response, error) {
	var w responseWire

	if err := Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w (%w)", ErrDecoding, err)
	}

	resp := &Response{}

	var err error

	if resp.Jsonrpc, err = decodeString("jsonrpc", w.Jsonrpc); err != nil {
		return nil, err
	}

	if len(w.ID) > 0 {
		if err := resp.ID.UnmarshalJSON(w.ID); err != nil {
			return nil, err
		}
	}

	switch {
	case len(w.Result) > 0:
		resp.Result = NewResult(w.Result)
	case len(w.Error) > 0:
		if resp.Error, err = decodeError(w.Error); err != nil {
			return nil, err
		}
	default:
		return nil, missingField("result")
	}

	return resp, nil
}

func decodeError(raw json.RawMessage) (Error, error) {
	if HintType(raw) != TypeObject {
		return Error{}, fmt.Errorf("%w: error member must be an object", ErrDecoding)
	}

	var w errorWire

	if err := Unmarshal(raw, &w); err != nil {
		return Error{}, fmt.Errorf("%w (%w)", ErrDecoding, err)
	}

	e := NewError(w.Code, w.Message)

	if len(w.Data) > 0 {
		d := NewErrorData(w.Data)
		e.data = &d
	}

	return e, nil
}

// splitBatch returns the elements of a batch frame, or the frame itself when it is not an array.
func splitBatch(data []byte) ([]json.RawMessage, error) {
	switch HintType(data) {
	case TypeEmpty:
		return nil, fmt.Errorf("%w: empty frame", ErrDecoding)
	case TypeArray:
		var elems []json.RawMessage
		if err := Unmarshal(data, &elems); err != nil {
			return nil, fmt.Errorf("%w (%w)", ErrDecoding, err)
		}

		return elems, nil
	}

	return []json.RawMessage{data}, nil
}

func decodeString(name string, raw json.RawMessage) (string, error) {
	switch HintType(raw) {
	case TypeEmpty:
		return "", missingField(name)
	case TypeString:
		var s string
		if err := Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w (%w)", ErrDecoding, err)
		}

		return s, nil
	}

	return "", fmt.Errorf("%w: %s must be a string", ErrDecoding, name)
}

func missingField(name string) error {
	return fmt.Errorf("%w (%w: %s)", ErrDecoding, ErrMissingField, name)
}
