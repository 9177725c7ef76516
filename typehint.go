package jsonrpc2sock

import (
	"encoding/json"
)

// TypeHint provides a quick classification of the likely top-level JSON type contained within a
// [json.RawMessage], based solely on its first non-whitespace character.
//
// Note: This is only a hint and does not guarantee the [json.RawMessage] contains valid JSON of
// that type.
type TypeHint int

const (
	TypeUnknown TypeHint = iota // Could not determine type from the first character.
	TypeArray                   // Likely a JSON array (starts with '[').
	TypeObject                  // Likely a JSON object (starts with '{').
	TypeBool                    // Likely a JSON boolean (starts with 't' or 'f').
	TypeNumber                  // Likely a JSON number (starts with '-', '0'-'9').
	TypeString                  // Likely a JSON string (starts with '"').
	TypeNull                    // Likely the JSON null value (starts with 'n').

	// TypeEmpty is returned when the [json.RawMessage], after trimming whitespace,
	// has zero length.
	TypeEmpty
)

// isSpace reports whether c is insignificant JSON whitespace.
func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// skipSpace returns the offset of the first non-whitespace byte in m at or after off.
func skipSpace(m []byte, off int) int {
	for off < len(m) && isSpace(m[off]) {
		off++
	}

	return off
}

// HintType examines the first non-whitespace byte of a [json.RawMessage]
// to provide a [TypeHint] about the potential JSON data type it represents.
//
// This function provides a fast check but does not validate the entire JSON structure.
func HintType(m json.RawMessage) TypeHint {
	i := skipSpace(m, 0)
	if i == len(m) {
		return TypeEmpty
	}

	switch m[i] {
	case '[':
		return TypeArray
	case '{':
		return TypeObject
	case 't', 'f':
		return TypeBool
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return TypeNumber
	case '"':
		return TypeString
	case 'n':
		return TypeNull
	}

	return TypeUnknown
}
