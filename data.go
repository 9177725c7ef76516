package jsonrpc2sock

import (
	"encoding/json"
	"errors"
)

var (
	ErrEmptyData     = errors.New("jsonrpc2sock: data is empty")
	ErrNotRawMessage = errors.New("jsonrpc2sock: value is not a raw message")
)

// Data generically wraps one untyped JSON value.
//
// Values produced by decoding are always [json.RawMessage]; no type coercion happens until
// [Data.Unmarshal] is called against a concrete target. Values set by the application are
// written according to their runtime kind when encoded.
type Data struct {
	value   any
	present bool
}

// NewData returns a [Data] holding v. A nil v is present and written as JSON `null`.
func NewData(v any) Data {
	return Data{value: v, present: true}
}

// RawMessage returns [json.RawMessage] stored internally if present.
//
// RawMessage may only be valid after decoding, or if a [json.RawMessage] was stored directly.
func (d *Data) RawMessage() json.RawMessage {
	if raw, ok := d.value.(json.RawMessage); ok {
		return raw
	}

	return nil
}

// Value returns the underlying value.
func (d *Data) Value() any {
	return d.value
}

// Unmarshal unmarshals the internal [json.RawMessage] into v.
//
// If the internal value is nil, [ErrEmptyData] is returned and v is untouched.
// If there is no internal [json.RawMessage], [ErrNotRawMessage] is returned.
func (d *Data) Unmarshal(v any) error {
	switch vt := d.value.(type) {
	case json.RawMessage:
		return Unmarshal(vt, v)
	case nil:
		return ErrEmptyData
	}

	return ErrNotRawMessage
}

// IsZero returns true if the value was never set.
func (d *Data) IsZero() bool {
	return !d.present
}

func (d *Data) appendWire(dst []byte) ([]byte, error) {
	return appendValue(dst, d.value)
}

// Result represents the "result" member of a response.
type Result = Data

// NewResult returns a [Result] holding v.
func NewResult(v any) Result {
	return NewData(v)
}

// ErrorData represents the "data" member of an error object.
type ErrorData = Data

// NewErrorData returns an [ErrorData] holding v.
func NewErrorData(v any) ErrorData {
	return NewData(v)
}
