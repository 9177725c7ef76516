package jsonrpc2sock

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Session serves JSON-RPC requests arriving on one stream connection.
//
// Frames are read with a [FrameReader], decoded with Decoder, dispatched to Handler and the
// responses written back with Encoder through a [FrameWriter].
//
// Behavior per frame:
//   - A notification is handled but never answered.
//   - A batch is answered with one response chain in request order. Notifications are left out
//     and nothing is written when no response remains. An empty batch is ignored.
//   - A frame that fails to decode is answered with [ErrInvalidRequest] ([ErrParse] for
//     malformed JSON) and a null id. The session continues.
//   - A framing error ends the session after [Callbacks.OnFramingError].
//
// All requests handled by a session carry the context key [CtxSession].
type Session struct {
	Callbacks Callbacks
	Handler   Handler
	// Decoder defaults to a [RequestDecoder] accepting notifications.
	Decoder PackageDecoder[*Request]
	// Encoder defaults to [ResponseEncoder].
	Encoder PackageEncoder[*Response]
	// Logger receives diagnostics. Defaults to [slog.Default].
	Logger *slog.Logger
	reader *FrameReader
	writer *FrameWriter
	closer io.Closer
	// Run batches in serial without go-routine fan out
	SerialBatch bool
	// Don't run frames in a separate go-routine
	NoRoutines bool
	// Wait for any pending requests instead of immediately signaling for a cancel when Run is
	// about to return
	WaitOnClose bool
	// Maximum number of requests of one batch running at the same time. 0 means no limit.
	BatchConcurrency int
}

// NewSession returns a new [*Session] serving rw with handler.
func NewSession(rw io.ReadWriter, handler Handler) *Session {
	s := &Session{
		Handler: handler,
		Decoder: RequestDecoder{AllowNotifications: true},
		Encoder: ResponseEncoder{},
		reader:  NewFrameReader(rw),
		writer:  NewFrameWriter(rw),
	}

	if c, ok := rw.(io.Closer); ok {
		s.closer = c
	}

	s.Callbacks.OnHandlerPanic = DefaultOnHandlerPanic
	s.Callbacks.OnFramingError = DefaultOnFramingError

	return s
}

// SetLimit configures the maximum frame size. See [FrameReader.SetLimit].
func (s *Session) SetLimit(n int) {
	s.reader.SetLimit(n)
}

// SetIdleTimeout configures the idle timeout for reads and writes.
func (s *Session) SetIdleTimeout(d time.Duration) {
	s.reader.SetIdleTimeout(d)
	s.writer.SetIdleTimeout(d)
}

func (s *Session) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}

	return slog.Default()
}

// Close closes the underlying connection if it supports [io.Closer].
func (s *Session) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}

	return nil
}

// Run serves the connection until ctx is cancelled, the stream ends or a framing error occurs.
// The connection is closed before Run returns.
func (s *Session) Run(ctx context.Context) (err error) {
	var wg sync.WaitGroup

	sctx, stop := context.WithCancel(context.WithValue(ctx, CtxSession, s))

	defer func() {
		if s.WaitOnClose {
			wg.Wait()
			stop()
		} else {
			stop()
			wg.Wait()
		}

		err = errors.Join(err, ctx.Err(), s.Close())

		s.Callbacks.runOnExit(ctx, err)
	}()

	for {
		var frame []byte

		frame, err = s.reader.ReadFrame(sctx)
		if err != nil {
			if errors.Is(err, ErrFraming) || errors.Is(err, ErrFrameTooLarge) {
				s.Callbacks.runOnFramingError(sctx, err)
			}

			return err
		}

		// The frame aliases the read buffer, so decoding happens before the next read.
		reqs := s.decode(sctx, frame)
		if reqs == nil {
			continue
		}

		if s.NoRoutines {
			s.serve(sctx, reqs)
			continue
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			s.serve(sctx, reqs)
		}()
	}
}

// decode decodes frame, answering decode failures itself. It returns nil when there is
// nothing to dispatch.
func (s *Session) decode(ctx context.Context, frame []byte) *Request {
	reqs, err := s.Decoder.Decode(ctx, frame)
	if err == nil {
		return reqs
	}

	s.Callbacks.runOnDecodingError(ctx, frame, err)
	s.logger().DebugContext(ctx, "Invalid JSON-RPC frame", "error", err, "size", len(frame))

	var syntaxErr *json.SyntaxError

	rpcErr := ErrInvalidRequest
	if errors.As(err, &syntaxErr) {
		rpcErr = ErrParse
	}

	s.write(ctx, NewResponseError(rpcErr.WithData(err.Error())))

	return nil
}

// serve dispatches a request chain and writes back the response chain, if any.
func (s *Session) serve(ctx context.Context, reqs *Request) {
	var resps []*Response

	switch {
	case reqs.Next == nil:
		resps = []*Response{s.handle(ctx, reqs)}
	case s.SerialBatch:
		for req := range reqs.All() {
			resps = append(resps, s.handle(ctx, req))
		}
	default:
		batch := reqs.Slice()
		resps = make([]*Response, len(batch))

		var g errgroup.Group

		if s.BatchConcurrency > 0 {
			g.SetLimit(s.BatchConcurrency)
		}

		for i, req := range batch {
			g.Go(func() error {
				resps[i] = s.handle(ctx, req)
				return nil
			})
		}

		_ = g.Wait()
	}

	if chain := NewResponseChain(resps...); chain != nil {
		s.write(ctx, chain)
	}
}

// handle runs the handler for a single request. It returns nil for notifications.
func (s *Session) handle(ctx context.Context, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			s.Callbacks.runOnHandlerPanic(ctx, req, r)

			resp = nil
			if !req.IsNotification() {
				resp = req.ResponseWithError(ErrInternalError)
			}
		}
	}()

	result, err := s.Handler.Handle(ctx, req)

	if req.IsNotification() {
		return nil
	}

	if err != nil {
		return req.ResponseWithError(err)
	}

	if r, ok := result.(*Response); ok && r != nil {
		return r
	}

	// A result that cannot be encoded is answered on its own instead of failing the whole frame.
	raw, err := appendValue(nil, result)
	if err != nil {
		s.logger().DebugContext(ctx, "Failed to encode JSON-RPC result", "method", req.Method, "error", err)

		return req.ResponseWithError(ErrInternalError.WithData(err.Error()))
	}

	return req.ResponseWithResult(json.RawMessage(raw))
}

func (s *Session) write(ctx context.Context, resp *Response) {
	err := writeEncoded(ctx, s.writer, s.Encoder, resp)

	switch {
	case err == nil:
	case errors.Is(err, ErrEncoding):
		s.Callbacks.runOnEncodingError(ctx, resp, err)
	default:
		s.logger().DebugContext(ctx, "Failed to write JSON-RPC response", "error", err)
	}
}
