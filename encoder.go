package jsonrpc2sock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	ErrEncoding = errors.New("jsonrpc2sock: encoding error")

	// ErrNilMessage is returned when asked to encode a nil message.
	ErrNilMessage = errors.New("jsonrpc2sock: nil message")
)

// PackageEncoder writes a message chain as one frame.
type PackageEncoder[T any] interface {
	Encode(w io.Writer, v T) (int, error)
}

// RequestEncoder writes [*Request] chains. See [EncodeRequests].
type RequestEncoder struct{}

// ResponseEncoder writes [*Response] chains. See [EncodeResponses].
type ResponseEncoder struct{}

// Encode implements [PackageEncoder].
func (RequestEncoder) Encode(w io.Writer, r *Request) (int, error) {
	return EncodeRequests(w, r)
}

// Encode implements [PackageEncoder].
func (ResponseEncoder) Encode(w io.Writer, r *Response) (int, error) {
	return EncodeResponses(w, r)
}

// EncodeRequests writes r to w as a single frame and returns the number of bytes written.
//
// A chain of one request is written as an object, a longer chain as an array in chain order.
// Members are written as jsonrpc, method, params, id. Empty method and params are omitted and so
// is a zero id.
//
// Example:
//
//	req := jsonrpc2sock.NewRequest(jsonrpc2sock.NewID("1"), "sum", 1, 2)
//	_, _ = jsonrpc2sock.EncodeRequests(conn, req)
//	// {"jsonrpc":"2.0","method":"sum","params":[1,2],"id":1}
func EncodeRequests(w io.Writer, r *Request) (int, error) {
	buf, err := AppendRequests(nil, r)
	if err != nil {
		return 0, err
	}

	return w.Write(buf)
}

// EncodeResponses writes r to w as a single frame and returns the number of bytes written.
//
// Members are written as jsonrpc, id, then error or result. A zero id is written as null. When
// both error and result are set only the error is written; when neither is, result is null.
func EncodeResponses(w io.Writer, r *Response) (int, error) {
	buf, err := AppendResponses(nil, r)
	if err != nil {
		return 0, err
	}

	return w.Write(buf)
}

// AppendRequests appends the frame for r to dst. See [EncodeRequests].
func AppendRequests(dst []byte, r *Request) ([]byte, error) {
	if r == nil {
		return nil, ErrNilMessage
	}

	if r.Next == nil {
		return appendRequest(dst, r)
	}

	var err error

	dst = append(dst, '[')

	for m := range r.All() {
		if m != r {
			dst = append(dst, ',')
		}

		if dst, err = appendRequest(dst, m); err != nil {
			return nil, err
		}
	}

	return append(dst, ']'), nil
}

// AppendResponses appends the frame for r to dst. See [EncodeResponses].
func AppendResponses(dst []byte, r *Response) ([]byte, error) {
	if r == nil {
		return nil, ErrNilMessage
	}

	if r.Next == nil {
		return appendResponse(dst, r)
	}

	var err error

	dst = append(dst, '[')

	for m := range r.All() {
		if m != r {
			dst = append(dst, ',')
		}

		if dst, err = appendResponse(dst, m); err != nil {
			return nil, err
		}
	}

	return append(dst, ']'), nil
}

func appendRequest(dst []byte, r *Request) ([]byte, error) {
	dst = append(dst, `{"jsonrpc":`...)
	dst = appendString(dst, versionOrDefault(r.Jsonrpc))

	if r.Method != "" {
		dst = append(dst, `,"method":`...)
		dst = appendString(dst, r.Method)
	}

	if len(r.Params) > 0 {
		var err error

		dst = append(dst, `,"params":[`...)

		for i, p := range r.Params {
			if i > 0 {
				dst = append(dst, ',')
			}

			if dst, err = appendValue(dst, p); err != nil {
				return nil, err
			}
		}

		dst = append(dst, ']')
	}

	if !r.ID.IsZero() {
		dst = append(dst, `,"id":`...)
		dst = r.ID.appendWire(dst)
	}

	return append(dst, '}'), nil
}

func appendResponse(dst []byte, r *Response) ([]byte, error) {
	var err error

	dst = append(dst, `{"jsonrpc":`...)
	dst = appendString(dst, versionOrDefault(r.Jsonrpc))
	dst = append(dst, `,"id":`...)
	dst = r.ID.appendWire(dst)

	switch {
	case !r.Error.IsZero():
		dst = append(dst, `,"error":`...)
		dst, err = r.Error.appendWire(dst)
	case !r.Result.IsZero():
		dst = append(dst, `,"result":`...)
		dst, err = r.Result.appendWire(dst)
	default:
		dst = append(dst, `,"result":null`...)
	}

	if err != nil {
		return nil, err
	}

	return append(dst, '}'), nil
}

// appendString appends s as a quoted JSON string.
func appendString(dst []byte, s string) []byte {
	// Marshalling a string cannot fail.
	b, _ := json.Marshal(s)

	return append(dst, b...)
}

// appendValue appends v by its runtime kind. Values without a fast path go through [Marshal].
func appendValue(dst []byte, v any) ([]byte, error) {
	switch vt := v.(type) {
	case nil:
		return append(dst, nullValue...), nil
	case json.RawMessage:
		if len(vt) == 0 {
			return append(dst, nullValue...), nil
		}

		return append(dst, vt...), nil
	case string:
		return appendString(dst, vt), nil
	case bool:
		return strconv.AppendBool(dst, vt), nil
	case int:
		return strconv.AppendInt(dst, int64(vt), 10), nil
	case int8:
		return strconv.AppendInt(dst, int64(vt), 10), nil
	case int16:
		return strconv.AppendInt(dst, int64(vt), 10), nil
	case int32:
		return strconv.AppendInt(dst, int64(vt), 10), nil
	case int64:
		return strconv.AppendInt(dst, vt, 10), nil
	case uint:
		return strconv.AppendUint(dst, uint64(vt), 10), nil
	case uint8:
		return strconv.AppendUint(dst, uint64(vt), 10), nil
	case uint16:
		return strconv.AppendUint(dst, uint64(vt), 10), nil
	case uint32:
		return strconv.AppendUint(dst, uint64(vt), 10), nil
	case uint64:
		return strconv.AppendUint(dst, vt, 10), nil
	case ID:
		return vt.appendWire(dst), nil
	}

	// Floats, json.Number and everything else. Marshal rejects NaN, infinities and malformed
	// numbers.
	b, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w (%w)", ErrEncoding, err)
	}

	return append(dst, b...), nil
}
