package jsonrpc2sock

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidParameters indicates a params member that is neither an array nor null.
var ErrInvalidParameters = errors.New("jsonrpc2sock: params must be an array")

// ErrParamIndex is returned by [Params.Unmarshal] when the requested position does not exist.
var ErrParamIndex = errors.New("jsonrpc2sock: params index out of range")

// Params represents the positional params member of a [Request].
//
// Decoded params hold one [json.RawMessage] per element, in wire order. Params built by the
// application may hold any values; each is written by its runtime kind.
type Params []any

// NewParams returns [Params] holding values in order.
func NewParams(values ...any) Params {
	return Params(values)
}

// Len returns the number of parameters.
func (p Params) Len() int {
	return len(p)
}

// Unmarshal unmarshals the parameter at position i into v.
func (p Params) Unmarshal(i int, v any) error {
	if i < 0 || i >= len(p) {
		return fmt.Errorf("%w: %d", ErrParamIndex, i)
	}

	d := NewData(p[i])

	return d.Unmarshal(v)
}

// decodeParams maps a raw params member to [Params]. Absent and null yield no parameters.
func decodeParams(raw []byte) (Params, error) {
	switch HintType(raw) {
	case TypeEmpty, TypeNull:
		return nil, nil
	case TypeArray:
		var elems []json.RawMessage
		if err := Unmarshal(raw, &elems); err != nil {
			return nil, fmt.Errorf("%w (%w)", ErrDecoding, err)
		}

		params := make(Params, len(elems))
		for i, e := range elems {
			params[i] = e
		}

		return params, nil
	}

	return nil, errInvalidParamDecode
}

var errInvalidParamDecode = fmt.Errorf("%w (%w)", ErrDecoding, ErrInvalidParameters)
