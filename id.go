package jsonrpc2sock

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrIDNotANumber is returned by [ID.Int64] when the id text does not parse as an integer.
var ErrIDNotANumber = errors.New("jsonrpc2sock: ID is not a number")

// ID represents a JSON-RPC 2.0 request or response id.
//
// An ID is always carried as text. Its wire form follows one rule, shared by every encoder and
// decoder in this package:
//   - If the text parses as a 32-bit integer, and failing that as a 64-bit integer, it is written
//     as a JSON number.
//   - Otherwise it is written as a JSON string.
//   - A zero ID (see [ID.IsZero]) is absent. Requests omit the member; responses write `null`.
//
// Upon unmarshalling JSON, strings keep their text, numbers keep their literal text and `null`
// yields a zero ID. So a request id of `1` decodes to the text "1" and re-encodes as the number 1.
//
// See: https://www.jsonrpc.org/specification#request_object
type ID struct {
	text    string
	present bool
}

// NewID returns an [ID] carrying text.
//
// Example:
//
//	jsonrpc2sock.NewID("1")   // written as 1
//	jsonrpc2sock.NewID("abc") // written as "abc"
func NewID(text string) ID {
	return ID{text: text, present: true}
}

// NewIntID returns an [ID] carrying the decimal text of v.
func NewIntID[V ~int | ~int32 | ~int64 | ~uint32](v V) ID {
	return NewID(strconv.FormatInt(int64(v), 10))
}

// IsZero returns true if no id is present.
// On a request this marks a notification.
func (id ID) IsZero() bool {
	return !id.present
}

// String returns the id text. A zero ID returns an empty string.
func (id ID) String() string {
	return id.text
}

// Int64 parses the id text as an integer, applying the same 32-bit then 64-bit order used on the
// wire.
func (id ID) Int64() (int64, error) {
	if !id.present {
		return 0, ErrIDNotANumber
	}

	if v, err := strconv.ParseInt(id.text, 10, 32); err == nil {
		return v, nil
	}

	if v, err := strconv.ParseInt(id.text, 10, 64); err == nil {
		return v, nil
	}

	return 0, ErrIDNotANumber
}

// IsNumber returns true if the id is written as a JSON number.
func (id ID) IsNumber() bool {
	_, err := id.Int64()

	return err == nil
}

// Equal compares two ids by text. Zero ids are never equal to anything.
func (id ID) Equal(t ID) bool {
	if id.IsZero() || t.IsZero() {
		return false
	}

	return id.text == t.text
}

// Key returns the value used to correlate responses with outstanding requests.
// The key is built from the wire form, so "01" and "1" correlate the same way they serialize.
func (id ID) Key() string {
	if n, err := id.Int64(); err == nil {
		return strconv.FormatInt(n, 10)
	}

	return id.text
}

// appendWire appends the wire form of id to dst.
func (id ID) appendWire(dst []byte) []byte {
	if !id.present {
		return append(dst, nullValue...)
	}

	if n, err := id.Int64(); err == nil {
		return strconv.AppendInt(dst, n, 10)
	}

	return appendString(dst, id.text)
}

// MarshalJSON implements the [json.Marshaler] interface.
func (id ID) MarshalJSON() ([]byte, error) {
	return id.appendWire(nil), nil
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
// Booleans, objects and arrays are rejected.
func (id *ID) UnmarshalJSON(data []byte) error {
	switch HintType(data) {
	case TypeNull:
		*id = ID{}
	case TypeString:
		var str string
		if err := Unmarshal(data, &str); err != nil {
			return fmt.Errorf("%w (%w)", ErrDecoding, err)
		}

		*id = NewID(str)
	case TypeNumber:
		var num json.Number
		if err := Unmarshal(data, &num); err != nil {
			return fmt.Errorf("%w (%w)", ErrDecoding, err)
		}

		*id = NewID(num.String())
	default:
		return fmt.Errorf("%w: invalid type for ID", ErrDecoding)
	}

	return nil
}
