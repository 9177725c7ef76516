package jsonrpc2sock

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"
)

// DefaultReadSize is the initial buffer size of a [FrameReader] and the minimum it grows by.
const DefaultReadSize = 4096

// FrameReader reads complete frames from a stream using a [FrameScanner].
//
// Every read event appends to an internal buffer which is then scanned from where the previous
// scan stopped. Consumed bytes are compacted away before the next read.
//
// It supports optional frame size limits via [FrameReader.SetLimit] and idle timeouts via
// [FrameReader.SetIdleTimeout]. A FrameReader is not safe for concurrent use.
type FrameReader struct {
	r       io.Reader
	scanner *FrameScanner
	buf     []byte
	start   int           // First unconsumed byte
	end     int           // End of buffered data
	err     error         // Sticky error, returned once buffered frames are drained
	t       time.Duration // Idle timeout duration (0 means no timeout)

	// A previous read was interrupted through the read deadline
	interrupted bool
}

// NewFrameReader creates and returns a new [*FrameReader] reading from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, scanner: NewFrameScanner(), buf: make([]byte, DefaultReadSize)}
}

// SetLimit configures the maximum size in bytes of a single frame. A frame growing past it
// fails [FrameReader.ReadFrame] with [ErrFrameTooLarge].
// A limit of 0 or less disables the limit.
//
// Example:
//
//	fr := jsonrpc2sock.NewFrameReader(conn)
//	fr.SetLimit(1024 * 1024) // Limit frames to 1 MiB
func (f *FrameReader) SetLimit(n int) {
	f.scanner.SetLimit(n)
}

// SetIdleTimeout configures an idle timeout for [FrameReader.ReadFrame].
// If no data is received for the duration d, the ongoing read is interrupted.
//
// Timeout mechanism depends on the underlying [io.Reader]:
//   - If the reader implements [DeadlineReader] (like [net.Conn]), its SetReadDeadline method is used.
//   - If the reader implements [io.Closer] but not [DeadlineReader], its Close method is called
//     upon timeout to interrupt the blocking read.
//   - If the reader implements neither, timeouts are not supported.
//
// A duration of 0 or less disables the idle timeout.
func (f *FrameReader) SetIdleTimeout(d time.Duration) {
	f.t = d
}

// ReadFrame returns the next complete frame, without leading whitespace.
//
// The returned slice aliases the internal buffer and is only valid until the next call.
//
// Errors wrapping [ErrFraming] or [ErrFrameTooLarge] are fatal: the stream cannot be
// resynchronized and every later call returns the same error. A stream ending inside a frame
// returns [io.ErrUnexpectedEOF]; a stream ending between frames returns [io.EOF].
func (f *FrameReader) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		frame, err := f.next()
		if frame != nil || err != nil {
			return frame, err
		}

		if f.err != nil {
			if errors.Is(f.err, io.EOF) && f.scanner.State().Started() {
				return nil, io.ErrUnexpectedEOF
			}

			return nil, f.err
		}

		f.err = f.fill(ctx)
	}
}

// next scans buffered data for one frame.
func (f *FrameReader) next() ([]byte, error) {
	if f.start == f.end {
		return nil, nil
	}

	n, err := f.scanner.Scan(f.buf[f.start:f.end])
	if err != nil {
		f.err = err
		f.start, f.end = 0, 0

		return nil, err
	}

	if n > 0 {
		frame := f.buf[f.start : f.start+n]
		f.start += n

		return frame[skipSpace(frame, 0):], nil
	}

	// Whitespace between frames is dropped right away so it cannot accumulate.
	if st := f.scanner.State(); !st.Started() {
		f.start += st.Watermark
		f.scanner.Reset()
	}

	return nil, nil
}

// fill compacts the buffer and performs one read.
func (f *FrameReader) fill(ctx context.Context) error {
	if f.start > 0 {
		f.end = copy(f.buf, f.buf[f.start:f.end])
		f.start = 0
	}

	if f.end == len(f.buf) {
		f.buf = slices.Grow(f.buf, max(len(f.buf), DefaultReadSize))
		f.buf = f.buf[:cap(f.buf)]
	}

	n, err := f.read(ctx, f.buf[f.end:])
	f.end += n

	return err
}

func (f *FrameReader) read(ctx context.Context, p []byte) (int, error) {
	if c, ok := f.r.(io.Closer); ok {
		return f.cancelRead(ctx, c, p)
	}

	// No way to interrupt a blocking read.
	return f.r.Read(p)
}

// cancelRead performs one read that is interrupted by context cancellation or the idle
// timeout, utilizing DeadlineReader or io.Closer.
func (f *FrameReader) cancelRead(ctx context.Context, cReader io.Closer, p []byte) (int, error) {
	var dctx context.Context

	var stop context.CancelFunc

	deadLiner, haveDeadline := cReader.(DeadlineReader)

	// Clear the deadline left by a previous interrupted read. A failure is left for Read to
	// report, since a closed peer must still surface as io.EOF.
	if haveDeadline && f.interrupted {
		_ = deadLiner.SetReadDeadline(time.Time{})
		f.interrupted = false
	}

	if f.t > 0 {
		dctx, stop = context.WithTimeout(ctx, f.t)
	} else {
		dctx, stop = context.WithCancel(ctx)
	}

	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)

	after := context.AfterFunc(dctx, func() {
		defer wg.Done()

		if haveDeadline {
			_ = deadLiner.SetReadDeadline(time.Now())
			return
		}

		_ = cReader.Close()
	})

	n, readErr := f.r.Read(p)

	if !after() {
		wg.Wait()

		f.interrupted = haveDeadline
	}

	contextErr := dctx.Err()

	if readErr != nil {
		if contextErr != nil {
			return n, errors.Join(readErr, contextErr)
		}

		return n, readErr
	}

	if n > 0 {
		return n, nil
	}

	return n, contextErr
}

// Close closes the underlying [io.Reader] if it implements [io.Closer].
func (f *FrameReader) Close() error {
	if c, ok := f.r.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
