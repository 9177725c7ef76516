package jsonrpc2sock

import (
	"errors"
	"strconv"
)

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// CodeServerError is used for errors returned by a method that are not already an [Error].
	CodeServerError = 500
)

var (
	ErrParse          = NewError(CodeParseError, "Parse error")
	ErrInvalidRequest = NewError(CodeInvalidRequest, "Invalid Request")
	ErrMethodNotFound = NewError(CodeMethodNotFound, "Method not found")
	ErrInvalidParams  = NewError(CodeInvalidParams, "Invalid params")
	ErrInternalError  = NewError(CodeInternalError, "Internal error")
)

// Error represents a JSON-RPC 2.0 error object.
//
// [Error] supports the go error interface and may be returned from a [Handler] to control the
// error object sent to the caller.
type Error struct {
	data    *ErrorData
	message string
	code    int64
	present bool
}

// NewError returns a new [Error] with its code and message set.
func NewError(code int64, msg string) Error {
	return Error{present: true, code: code, message: msg}
}

// NewErrorWithData is the same as [NewError] but also sets the data member.
func NewErrorWithData(code int64, msg string, data any) Error {
	d := NewErrorData(data)

	return Error{present: true, code: code, message: msg, data: &d}
}

// asError maps an application error onto the wire. A wrapped [Error] or [*Error] is used as is;
// anything else becomes a [CodeServerError] carrying the error text as its message.
func asError(e error) Error {
	var je Error

	if errors.As(e, &je) {
		return je
	}

	var jp *Error

	if errors.As(e, &jp) && jp != nil {
		return *jp
	}

	return NewError(CodeServerError, e.Error())
}

// Code returns the error code.
func (e *Error) Code() int64 {
	return e.code
}

// Message returns the error message.
func (e *Error) Message() string {
	return e.message
}

// Data returns the data member. It is zero when the member was absent.
func (e *Error) Data() *ErrorData {
	if e.data == nil {
		return &ErrorData{}
	}

	return e.data
}

// WithData returns a copy of the current [Error] with its data member set to data.
func (e Error) WithData(data any) Error {
	return NewErrorWithData(e.code, e.message, data)
}

// Is returns true if t is an [Error] with the same code.
func (e Error) Is(t error) bool {
	switch jerr := t.(type) {
	case Error:
		return e.code == jerr.code
	case *Error:
		return e.code == jerr.code
	}

	return false
}

// IsZero returns true if the error is empty.
func (e *Error) IsZero() bool {
	return !e.present
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.message
}

func (e *Error) appendWire(dst []byte) ([]byte, error) {
	dst = append(dst, `{"code":`...)
	dst = strconv.AppendInt(dst, e.code, 10)
	dst = append(dst, `,"message":`...)
	dst = appendString(dst, e.message)

	if e.data != nil && !e.data.IsZero() {
		var err error

		dst = append(dst, `,"data":`...)
		if dst, err = e.data.appendWire(dst); err != nil {
			return nil, err
		}
	}

	return append(dst, '}'), nil
}

// MarshalJSON implements [json.Marshaler].
func (e Error) MarshalJSON() ([]byte, error) {
	return e.appendWire(nil)
}
