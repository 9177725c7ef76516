package jsonrpc2sock

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// FrameWriter writes complete frames to a stream. Concurrent writers are serialized so frames
// are never interleaved.
//
// Writes can be interrupted by context cancellation and an optional idle timeout, see
// [FrameWriter.SetIdleTimeout].
type FrameWriter struct {
	w  io.Writer
	t  time.Duration
	mu sync.Mutex
}

// NewFrameWriter returns a new [*FrameWriter] writing to w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// SetIdleTimeout sets a timeout for a single frame write.
//
// If the underlying [io.Writer] supports [DeadlineWriter] its write deadline is used. Otherwise,
// if it supports [io.Closer], the writer is closed when the timeout is reached. If neither is
// supported, timeouts are not implemented.
func (f *FrameWriter) SetIdleTimeout(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.t = d
}

// WriteFrame writes p as one frame.
func (f *FrameWriter) WriteFrame(ctx context.Context, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if d, ok := f.w.(DeadlineWriter); ok {
		return f.deadlineWrite(ctx, d, p)
	}

	if c, ok := f.w.(io.Closer); ok {
		return f.closeWrite(ctx, c, p)
	}

	// No way to cancel
	return f.w.Write(p)
}

func (f *FrameWriter) deadlineWrite(ctx context.Context, dWriter DeadlineWriter, p []byte) (int, error) {
	dctx, stop := context.WithCancel(ctx)
	defer stop()

	// Zero time clears any previous deadline
	timeout := time.Time{}

	if f.t > 0 {
		timeout = time.Now().Add(f.t)
	}

	if err := dWriter.SetWriteDeadline(timeout); err != nil {
		return 0, err
	}

	after := context.AfterFunc(dctx, func() {
		_ = dWriter.SetWriteDeadline(time.Now())
	})

	n, err := f.w.Write(p)

	if !after() && err != nil {
		return n, errors.Join(err, ctx.Err())
	}

	return n, err
}

func (f *FrameWriter) closeWrite(ctx context.Context, cWriter io.Closer, p []byte) (int, error) {
	var dctx context.Context

	var stop context.CancelFunc

	if f.t > 0 {
		dctx, stop = context.WithTimeout(ctx, f.t)
	} else {
		dctx, stop = context.WithCancel(ctx)
	}

	defer stop()

	after := context.AfterFunc(dctx, func() {
		_ = cWriter.Close()
	})

	n, err := f.w.Write(p)

	if !after() && err != nil {
		return n, errors.Join(err, dctx.Err())
	}

	return n, err
}

// Close closes the underlying writer if it supports [io.Closer].
func (f *FrameWriter) Close() error {
	if c, ok := f.w.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// writeEncoded encodes v with enc and writes it as one frame. Nothing is written when encoding
// fails.
func writeEncoded[T any](ctx context.Context, fw *FrameWriter, enc PackageEncoder[T], v T) error {
	var buf bytes.Buffer

	if _, err := enc.Encode(&buf, v); err != nil {
		return err
	}

	_, err := fw.WriteFrame(ctx, buf.Bytes())

	return err
}
