package jsonrpc2sock

import (
	"context"
	"log/slog"
)

// DefaultOnHandlerPanic logs recovered handler panics with `slog`.
// It is assigned to [Callbacks.OnHandlerPanic] by [NewSession].
var DefaultOnHandlerPanic = func(ctx context.Context, req *Request, rec any) {
	slog.ErrorContext(ctx, "Panic recovered in JSON-RPC handler", "method", req.Method, "id", req.ID.String(), "params", len(req.Params), "panic_value", rec)
}

// DefaultOnFramingError logs fatal stream errors with `slog`.
// It is assigned to [Callbacks.OnFramingError] by [NewSession].
var DefaultOnFramingError = func(ctx context.Context, err error) {
	slog.WarnContext(ctx, "Closing JSON-RPC session on framing error", "error", err)
}

// Callbacks are hooks into the lifecycle of a [Session].
//
// Assign them before [Session.Run] is called, typically from a [Binder]. Unless
// [Session.NoRoutines] is set, they may be called concurrently.
//
// Example:
//
//	server.Binder = jsonrpc2sock.NewFuncBinder(func(ctx context.Context, s *jsonrpc2sock.Session, stop context.CancelCauseFunc) {
//		s.Callbacks.OnExit = func(ctx context.Context, err error) {
//			slog.InfoContext(ctx, "Session closed", "error", err)
//		}
//	})
type Callbacks struct {
	// OnExit is called when [Session.Run] is about to return, with the reason it is returning.
	OnExit func(ctx context.Context, err error)

	// OnFramingError is called when the stream cannot be framed anymore ([ErrFraming] or
	// [ErrFrameTooLarge]). The session ends right after.
	OnFramingError func(ctx context.Context, err error)

	// OnDecodingError is called when a complete frame does not decode. raw is only valid for the
	// duration of the call. The session answers with an error response and continues.
	OnDecodingError func(ctx context.Context, raw []byte, err error)

	// OnEncodingError is called when a response chain cannot be encoded. Nothing is sent.
	OnEncodingError func(ctx context.Context, resp *Response, err error)

	// OnHandlerPanic is called with the value recovered from a panicking [Handler].
	OnHandlerPanic func(ctx context.Context, req *Request, rec any)
}

func (c *Callbacks) runOnExit(ctx context.Context, e error) {
	if c.OnExit != nil {
		c.OnExit(ctx, e)
	}
}

func (c *Callbacks) runOnFramingError(ctx context.Context, e error) {
	if c.OnFramingError != nil {
		c.OnFramingError(ctx, e)
	}
}

func (c *Callbacks) runOnDecodingError(ctx context.Context, m []byte, e error) {
	if c.OnDecodingError != nil {
		c.OnDecodingError(ctx, m, e)
	}
}

func (c *Callbacks) runOnEncodingError(ctx context.Context, r *Response, e error) {
	if c.OnEncodingError != nil {
		c.OnEncodingError(ctx, r, e)
	}
}

func (c *Callbacks) runOnHandlerPanic(ctx context.Context, r *Request, recovery any) {
	if c.OnHandlerPanic != nil {
		c.OnHandlerPanic(ctx, r, recovery)
	}
}
