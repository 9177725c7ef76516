package jsonrpc2sock

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrFraming is returned when the stream cannot hold a JSON-RPC frame at the current position:
	// a frame starts with something other than '{' or '[', or nesting closes more than it opened.
	// It is fatal for the connection. The stream is never resynchronized.
	ErrFraming = errors.New("jsonrpc2sock: invalid frame")

	// ErrFrameTooLarge is returned when a frame grows past the configured limit without completing.
	ErrFrameTooLarge = errors.New("jsonrpc2sock: frame larger than configured limit")
)

const (
	objectDelims = "{}\""
	arrayDelims  = "[]\""
	stringDelims = "\"\\"
)

// ScanState is the resumable state of a frame scan over one logical byte stream.
//
// The zero value expects the start of a new frame. All offsets are relative to the first byte of
// the frame that has not been consumed yet, which is what the transport keeps buffered.
type ScanState struct {
	// Depth is the number of currently open delimiters of the selected kind.
	Depth int
	// Open and Close are the delimiter pair selected by the first byte of the frame.
	// Both are zero until a frame has started.
	Open, Close byte
	// Watermark is the offset up to which the stream has already been examined.
	Watermark int
	// InString is set while inside a JSON string literal, where delimiters are not counted.
	InString bool
	// Escaped is set when the previous byte inside a string was a backslash.
	Escaped bool
}

// Started returns true once the first byte of a frame has been seen.
func (s ScanState) Started() bool {
	return s.Open != 0
}

// Scan resumes scanning buf from s.Watermark.
//
// buf must hold the same leading bytes that were passed on the previous call, possibly followed
// by more. The outcome is one of:
//   - n == 0, err == nil: no complete frame yet. next records how far buf was examined.
//   - n > 0: buf[:n] is exactly one frame (leading whitespace included). next is the zero state.
//   - err != nil: wraps [ErrFraming]. next is the zero state.
func (s ScanState) Scan(buf []byte) (next ScanState, n int, err error) {
	i := s.Watermark

	if !s.Started() {
		i = skipSpace(buf, i)
		if i == len(buf) {
			s.Watermark = i
			return s, 0, nil
		}

		switch buf[i] {
		case '{':
			s.Open, s.Close = '{', '}'
		case '[':
			s.Open, s.Close = '[', ']'
		default:
			return ScanState{}, 0, fmt.Errorf("%w: unexpected %q at offset %d", ErrFraming, buf[i], i)
		}

		s.Depth = 1
		i++
	}

	delims := objectDelims
	if s.Open == '[' {
		delims = arrayDelims
	}

	for i < len(buf) {
		if s.InString {
			if s.Escaped {
				s.Escaped = false
				i++

				continue
			}

			j := bytes.IndexAny(buf[i:], stringDelims)
			if j < 0 {
				i = len(buf)
				break
			}

			i += j

			if buf[i] == '\\' {
				s.Escaped = true
			} else {
				s.InString = false
			}

			i++

			continue
		}

		j := bytes.IndexAny(buf[i:], delims)
		if j < 0 {
			i = len(buf)
			break
		}

		i += j

		switch buf[i] {
		case '"':
			s.InString = true
		case s.Open:
			s.Depth++
		case s.Close:
			s.Depth--

			if s.Depth < 0 {
				return ScanState{}, 0, fmt.Errorf("%w: unbalanced %q at offset %d", ErrFraming, buf[i], i)
			}

			if s.Depth == 0 {
				return ScanState{}, i + 1, nil
			}
		}

		i++
	}

	s.Watermark = i

	return s, 0, nil
}

// FrameScanner finds complete top-level JSON values in a growing buffer.
//
// One FrameScanner belongs to one connection and must be called sequentially; it has no locking.
// Call [FrameScanner.Scan] once per read event with everything that is buffered but not yet
// consumed. Bytes examined by an earlier call are not examined again.
type FrameScanner struct {
	state ScanState
	limit int
}

// NewFrameScanner returns a [*FrameScanner] with no size limit.
func NewFrameScanner() *FrameScanner {
	return &FrameScanner{}
}

// SetLimit configures the maximum frame size in bytes. Exceeding it fails the scan with
// [ErrFrameTooLarge]. A limit of 0 or less disables the check.
func (f *FrameScanner) SetLimit(n int) {
	f.limit = n
}

// State returns a copy of the in-progress state.
func (f *FrameScanner) State() ScanState {
	return f.state
}

// Reset discards any in-progress state. It must be called when the connection is reset.
func (f *FrameScanner) Reset() {
	f.state = ScanState{}
}

// Scan examines buf for one complete frame.
//
// It returns n > 0 when buf[:n] is a complete frame; the caller then consumes n bytes and the
// scanner is ready for the next frame. It returns 0 and a nil error when more bytes are needed.
// Errors are fatal for the stream and leave the scanner reset.
func (f *FrameScanner) Scan(buf []byte) (int, error) {
	next, n, err := f.state.Scan(buf)
	f.state = next

	if err != nil {
		return 0, err
	}

	if f.limit > 0 && (n > f.limit || (n == 0 && next.Started() && next.Watermark > f.limit)) {
		f.Reset()
		return 0, ErrFrameTooLarge
	}

	return n, nil
}

// Split implements [bufio.SplitFunc], returning one frame per token.
// Whitespace left over at EOF is dropped. A partial frame at EOF is [io.ErrUnexpectedEOF].
func (f *FrameScanner) Split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	n, err := f.Scan(data)
	if err != nil {
		return 0, nil, err
	}

	if n > 0 {
		return n, data[:n], nil
	}

	if atEOF {
		started := f.state.Started()
		f.Reset()

		if started {
			return 0, nil, io.ErrUnexpectedEOF
		}

		return len(data), nil, nil
	}

	return 0, nil, nil
}

// NewSplitFunc returns a [bufio.SplitFunc] backed by a new [FrameScanner] with the given limit.
// The returned function holds state and must only be used by a single [bufio.Scanner].
//
// Example:
//
//	sc := bufio.NewScanner(conn)
//	sc.Split(jsonrpc2sock.NewSplitFunc(0))
//	for sc.Scan() {
//		reqs, err := jsonrpc2sock.DecodeRequests(sc.Bytes())
//		// ...
//	}
func NewSplitFunc(limit int) bufio.SplitFunc {
	f := NewFrameScanner()
	f.SetLimit(limit)

	return f.Split
}
