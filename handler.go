package jsonrpc2sock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// ErrMethodAlreadyExists is returned by [MethodMux.Register] when the method name is taken.
var ErrMethodAlreadyExists = errors.New("jsonrpc2sock: method already exists in mux")

// Handler processes one decoded [*Request].
//
// The returned result is carried in the response "result" member and written by its runtime
// kind. A nil result is written as `null`.
//
// Errors:
//   - An error that is, or wraps, an [Error] is sent as is.
//   - Any other error becomes code [CodeServerError] with the error text as message.
//   - A panic is recovered and answered with [ErrInternalError].
//
// For notifications ([Request.IsNotification]) both return values are discarded.
type Handler interface {
	Handle(ctx context.Context, req *Request) (result any, err error)
}

// HandlerFunc is the function form of [Handler].
type HandlerFunc func(context.Context, *Request) (any, error)

// NewFuncHandler wraps f as a [Handler].
//
// Example:
//
//	ping := jsonrpc2sock.NewFuncHandler(func(ctx context.Context, req *jsonrpc2sock.Request) (any, error) {
//		return "pong", nil
//	})
//
//nolint:ireturn // Helper function intentionally returns the interface type.
func NewFuncHandler(f HandlerFunc) Handler {
	return &funcHandler{funcHandle: f}
}

type funcHandler struct {
	funcHandle HandlerFunc
}

func (fh *funcHandler) Handle(ctx context.Context, req *Request) (any, error) {
	return fh.funcHandle(ctx, req)
}

// MethodMux routes requests to a [Handler] by exact, case-sensitive method name.
//
// Unknown methods go to the default handler when one is set and are answered with
// [ErrMethodNotFound] otherwise. MethodMux is safe for concurrent use, including registration
// while requests are being served.
type MethodMux struct {
	defaultHandler atomic.Pointer[Handler]
	mux            sync.Map // map[string]Handler
}

// NewMethodMux creates and returns a new, empty [*MethodMux].
func NewMethodMux() *MethodMux {
	return &MethodMux{}
}

// Register adds handler for method. It returns [ErrMethodAlreadyExists] if method is taken.
// Use [MethodMux.Replace] to overwrite.
func (mm *MethodMux) Register(method string, handler Handler) error {
	if _, loaded := mm.mux.LoadOrStore(method, handler); loaded {
		return fmt.Errorf("method '%s': %w", method, ErrMethodAlreadyExists)
	}

	return nil
}

// RegisterFunc is [MethodMux.Register] for a plain function.
//
// Example:
//
//	mux := jsonrpc2sock.NewMethodMux()
//	err := mux.RegisterFunc("sum", func(ctx context.Context, req *jsonrpc2sock.Request) (any, error) {
//		var a, b int
//		if err := req.Params.Unmarshal(0, &a); err != nil {
//			return nil, jsonrpc2sock.ErrInvalidParams.WithData(err.Error())
//		}
//		if err := req.Params.Unmarshal(1, &b); err != nil {
//			return nil, jsonrpc2sock.ErrInvalidParams.WithData(err.Error())
//		}
//		return a + b, nil
//	})
func (mm *MethodMux) RegisterFunc(method string, f HandlerFunc) error {
	return mm.Register(method, NewFuncHandler(f))
}

// Replace registers handler for method, overwriting any existing one.
func (mm *MethodMux) Replace(method string, handler Handler) {
	mm.mux.Store(method, handler)
}

// ReplaceFunc is [MethodMux.Replace] for a plain function.
func (mm *MethodMux) ReplaceFunc(method string, f HandlerFunc) {
	mm.Replace(method, NewFuncHandler(f))
}

// Delete removes the handler for method, if any.
func (mm *MethodMux) Delete(method string) {
	mm.mux.Delete(method)
}

// Methods returns the registered method names in sorted order.
func (mm *MethodMux) Methods() []string {
	var methods []string

	//nolint:errcheck // Keys are always strings.
	mm.mux.Range(func(key, _ any) bool { methods = append(methods, key.(string)); return true })

	slices.Sort(methods)

	return methods
}

// SetDefault sets the handler used for unknown methods. nil removes it.
func (mm *MethodMux) SetDefault(handler Handler) {
	if handler == nil {
		mm.defaultHandler.Store(nil)
		return
	}

	mm.defaultHandler.Store(&handler)
}

// SetDefaultFunc is [MethodMux.SetDefault] for a plain function. nil removes the default.
func (mm *MethodMux) SetDefaultFunc(f HandlerFunc) {
	if f == nil {
		mm.SetDefault(nil)
		return
	}

	mm.SetDefault(NewFuncHandler(f))
}

// Handle implements [Handler].
func (mm *MethodMux) Handle(ctx context.Context, req *Request) (any, error) {
	if value, ok := mm.mux.Load(req.Method); ok {
		//nolint:forcetypeassert // Only Handlers are stored.
		return value.(Handler).Handle(ctx, req)
	}

	if def := mm.defaultHandler.Load(); def != nil {
		return (*def).Handle(ctx, req)
	}

	return nil, ErrMethodNotFound
}
