package jsonrpc2sock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrCallerClosed is returned by calls on a [Caller] whose connection is gone.
	ErrCallerClosed = errors.New("jsonrpc2sock: caller is closed")

	// ErrDuplicateID is returned by [Caller.CallBatch] when two requests share an id, or an id is
	// already outstanding.
	ErrDuplicateID = errors.New("jsonrpc2sock: duplicate request id")
)

// NotificationFunc receives requests sent by the peer on a [Caller] connection.
type NotificationFunc func(ctx context.Context, req *Request)

// Caller makes JSON-RPC calls over one stream connection.
//
// Any number of calls may be in flight at once. Writes are serialized and responses are matched
// to their calls by [ID.Key], so the server may answer in any order. Frames sent by the peer that
// hold requests instead of responses are handed to the function set with
// [Caller.OnNotification].
//
// Caller is goroutine-safe. Use [NewCaller] or [DialCaller] to create instances.
type Caller struct {
	// IDs generates the ids of requests made through [Caller.Call].
	// Set it before making calls. Defaults to [NewSequentialIDs].
	IDs IDGenerator
	// Logger receives diagnostics. Defaults to [slog.Default].
	Logger *slog.Logger

	reader   *FrameReader
	writer   *FrameWriter
	closer   io.Closer
	onNotify atomic.Pointer[NotificationFunc]
	pending  map[string]*waiter
	done     chan struct{}
	err      error
	stop     context.CancelFunc
	wg       sync.WaitGroup
	timeout  atomic.Int64
	mu       sync.Mutex
}

// waiter collects the responses of one outgoing frame.
type waiter struct {
	ch chan *Response
}

// send never blocks. Every id is delivered once, so the channel only fills up when the peer
// also sent an error without id.
func (w *waiter) send(resp *Response) {
	select {
	case w.ch <- resp:
	default:
	}
}

// NewCaller returns a new [*Caller] over rw and starts reading responses.
//
// Closing rw is the only way to interrupt the reading go-routine. Call [Caller.Close] to release
// the connection and the go-routine.
func NewCaller(rw io.ReadWriteCloser) *Caller {
	ctx, stop := context.WithCancel(context.Background())

	c := &Caller{
		IDs:     NewSequentialIDs(),
		reader:  NewFrameReader(rw),
		writer:  NewFrameWriter(rw),
		pending: make(map[string]*waiter),
		done:    make(chan struct{}),
		stop:    stop,
		closer:  rw,
	}

	c.wg.Add(1)

	go c.readLoop(ctx)

	return c
}

// DialCaller connects to destURI and returns a [*Caller] for the connection.
//
// Supported schemes: tcp, tcp4, tcp6, unix
//
// Example uris: 'tcp:127.0.0.1:9090', 'unix:///tmp/mysocket'
func DialCaller(ctx context.Context, destURI string) (*Caller, error) {
	network, addr, err := parseURI(destURI)
	if err != nil {
		return nil, err
	}

	conn, err := new(net.Dialer).DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	return NewCaller(conn), nil
}

// SetDefaultTimeout applies a timeout to every call that does not finish within d.
// A duration of 0 or less disables the default timeout.
func (c *Caller) SetDefaultTimeout(d time.Duration) {
	c.timeout.Store(int64(d))
}

// SetLimit configures the maximum size of an incoming frame. See [FrameReader.SetLimit].
// It must be called before the first response arrives.
func (c *Caller) SetLimit(n int) {
	c.reader.SetLimit(n)
}

// OnNotification sets the function receiving requests sent by the peer. nil removes it.
// The function runs on the reading go-routine and should not block.
func (c *Caller) OnNotification(f NotificationFunc) {
	if f == nil {
		c.onNotify.Store(nil)
		return
	}

	c.onNotify.Store(&f)
}

// NextID returns the next id from [Caller.IDs].
func (c *Caller) NextID() ID {
	return c.IDs.NextID()
}

func (c *Caller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return slog.Default()
}

// Err returns why the caller stopped, or nil while it is running.
func (c *Caller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// Close closes the connection, fails outstanding calls with [ErrCallerClosed] and waits for the
// reading go-routine to exit.
func (c *Caller) Close() error {
	c.stop()

	err := c.closer.Close()

	c.wg.Wait()

	return err
}

// Call sends a request for method with positional params and waits for its response.
//
// Example:
//
//	resp, err := caller.Call(ctx, "subtract", 42, 23)
//	if err != nil {
//		return err
//	}
//	if resp.IsError() {
//		return resp.Error
//	}
//	var diff int
//	err = resp.Result.Unmarshal(&diff)
func (c *Caller) Call(ctx context.Context, method string, params ...any) (*Response, error) {
	return c.CallBatch(ctx, NewRequest(c.NextID(), method, params...))
}

// Notify sends a notification for method. It does not wait for anything but the write.
func (c *Caller) Notify(ctx context.Context, method string, params ...any) error {
	_, err := c.CallBatch(ctx, NewNotification(method, params...))

	return err
}

// CallBatch sends the request chain reqs as one frame and waits for the responses of all
// requests that carry an id.
//
// The returned chain follows the order of reqs, leaving out notifications. It is nil when reqs
// holds only notifications. If the peer answers with a single error response that has no id,
// that error is returned.
func (c *Caller) CallBatch(ctx context.Context, reqs *Request) (*Response, error) {
	if reqs == nil {
		return nil, ErrNilMessage
	}

	if d := time.Duration(c.timeout.Load()); d > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var keys []string

	for req := range reqs.All() {
		if !req.IsNotification() {
			keys = append(keys, req.ID.Key())
		}
	}

	w := &waiter{ch: make(chan *Response, len(keys))}

	if err := c.register(w, keys); err != nil {
		return nil, err
	}

	defer c.forget(keys)

	if err := writeEncoded(ctx, c.writer, PackageEncoder[*Request](RequestEncoder{}), reqs); err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return nil, nil
	}

	got := make(map[string]*Response, len(keys))

	for len(got) < len(keys) {
		select {
		case resp := <-w.ch:
			if resp.ID.IsZero() {
				return nil, resp.Error
			}

			got[resp.ID.Key()] = resp
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, c.Err()
		}
	}

	resps := make([]*Response, 0, len(keys))
	for _, k := range keys {
		resps = append(resps, got[k])
	}

	return NewResponseChain(resps...), nil
}

func (c *Caller) register(w *waiter, keys []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}

	for i, k := range keys {
		if _, ok := c.pending[k]; ok {
			// Undo the keys of this batch registered so far
			for _, prev := range keys[:i] {
				delete(c.pending, prev)
			}

			return fmt.Errorf("%w: %s", ErrDuplicateID, k)
		}

		c.pending[k] = w
	}

	return nil
}

func (c *Caller) forget(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.pending, k)
	}
}

func (c *Caller) readLoop(ctx context.Context) {
	defer c.wg.Done()

	var err error

	for {
		var frame []byte

		frame, err = c.reader.ReadFrame(ctx)
		if err != nil {
			break
		}

		c.dispatch(ctx, frame)
	}

	c.mu.Lock()
	c.err = errors.Join(ErrCallerClosed, err)
	c.mu.Unlock()

	close(c.done)
}

func (c *Caller) dispatch(ctx context.Context, frame []byte) {
	resps, err := ResponseDecoder{}.Decode(ctx, frame)
	if err != nil {
		reqs, rerr := RequestDecoder{AllowNotifications: true}.Decode(ctx, frame)
		if rerr != nil {
			c.logger().WarnContext(ctx, "Dropping undecodable JSON-RPC frame", "error", err)
			return
		}

		if f := c.onNotify.Load(); f != nil {
			for req := range reqs.All() {
				(*f)(ctx, req)
			}
		}

		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for resp := range resps.All() {
		if resp.ID.IsZero() {
			if resp.IsError() {
				c.deliverUncorrelated(ctx, resp)
			}

			continue
		}

		w, ok := c.pending[resp.ID.Key()]
		if !ok {
			c.logger().WarnContext(ctx, "Dropping JSON-RPC response for unknown id", "id", resp.ID.String())
			continue
		}

		delete(c.pending, resp.ID.Key())

		w.send(resp)
	}
}

// deliverUncorrelated hands a response without id to the only waiting call, if there is exactly
// one. Otherwise it cannot be attributed and is dropped. c.mu must be held.
func (c *Caller) deliverUncorrelated(ctx context.Context, resp *Response) {
	var only *waiter

	for _, w := range c.pending {
		if only != nil && only != w {
			only = nil
			break
		}

		only = w
	}

	if only == nil {
		c.logger().WarnContext(ctx, "Dropping JSON-RPC response without id", "error", resp.Error.Message())
		return
	}

	only.send(resp)
}
