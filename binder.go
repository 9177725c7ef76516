package jsonrpc2sock

import (
	"context"
)

// Binder configures a [*Session] before it starts. [Server] calls it once per accepted
// connection.
//
// stop ends the session with the given cause.
type Binder interface {
	Bind(ctx context.Context, s *Session, stop context.CancelCauseFunc)
}

// NewFuncBinder returns a [Binder] that runs binder.
//
//nolint:ireturn // Helper function
func NewFuncBinder(binder func(context.Context, *Session, context.CancelCauseFunc)) Binder {
	return &funcBinder{funcBind: binder}
}

type funcBinder struct {
	funcBind func(context.Context, *Session, context.CancelCauseFunc)
}

func (fb *funcBinder) Bind(ctx context.Context, s *Session, stop context.CancelCauseFunc) {
	fb.funcBind(ctx, s, stop)
}
