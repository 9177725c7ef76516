package jsonrpc2sock

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ContextKey is used as keys for context values.
type ContextKey int

const (
	// Key for the underlying net.Conn.
	CtxNetConn ContextKey = iota
	// Key for the [*Session] serving the request.
	CtxSession
)

// ErrUnknownScheme is returned for listen or dial URIs with an unsupported scheme.
var ErrUnknownScheme = errors.New("jsonrpc2sock: unknown scheme in uri")

// Server accepts stream connections and serves each with its own [*Session] and go-routine.
//
// Requests carry the context key [CtxNetConn] with the accepted [net.Conn].
type Server struct {
	handler Handler
	// Binder, if set, configures every new session.
	Binder Binder
	// Logger is handed to every session. Defaults to [slog.Default].
	Logger *slog.Logger
	// Maximum frame size in bytes. 0 means no limit.
	MaxFrameSize int
	// Idle timeout applied to reads and writes. 0 means no timeout.
	IdleTimeout time.Duration
	// Maximum number of connections served at once. Accepting pauses while at the limit.
	// 0 means no limit.
	MaxConnections int
}

// NewServer returns a new [*Server] that serves connections with handler.
func NewServer(handler Handler) *Server {
	return &Server{handler: handler}
}

// ListenAndServe listens on listenURI, serving it until ctx is cancelled.
//
// Supported schemes: tcp, tcp4, tcp6, unix
//
// Example uris: 'tcp:127.0.0.1:9090', 'tcp::9090', 'unix:///tmp/mysocket'
func (s *Server) ListenAndServe(ctx context.Context, listenURI string) error {
	network, addr, err := parseURI(listenURI)
	if err != nil {
		return err
	}

	ln, err := new(net.ListenConfig).Listen(ctx, network, addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

// parseURI splits a 'scheme:address' uri into a network and address.
func parseURI(uri string) (network, addr string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}

	switch u.Scheme {
	case "tcp", "tcp4", "tcp6":
		return u.Scheme, strings.TrimPrefix(strings.TrimPrefix(uri, u.Scheme+":"), "//"), nil
	case "unix":
		return u.Scheme, u.Path, nil
	}

	return "", "", ErrUnknownScheme
}

// Serve accepts connections on ln until ctx is cancelled, then waits for open sessions to end.
//
// It is safe to call Serve multiple times with different listeners.
//
// The listener will be closed when the context is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var g errgroup.Group

	if s.MaxConnections > 0 {
		g.SetLimit(s.MaxConnections)
	}

	defer func() { _ = g.Wait() }()

	sctx, stop := context.WithCancel(ctx)
	defer stop()

	context.AfterFunc(sctx, func() { ln.Close() })

	for {
		conn, err := ln.Accept()
		if err != nil {
			return errors.Join(err, ctx.Err())
		}

		g.Go(func() error {
			s.serveConn(sctx, conn)
			return nil
		})
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	session := NewSession(conn, s.handler)
	session.Logger = s.Logger
	session.SetLimit(s.MaxFrameSize)
	session.SetIdleTimeout(s.IdleTimeout)

	cctx, stop := context.WithCancelCause(context.WithValue(ctx, CtxNetConn, conn))
	defer stop(nil)

	if s.Binder != nil {
		s.Binder.Bind(cctx, session, stop)
	}

	err := session.Run(cctx)

	session.logger().DebugContext(ctx, "JSON-RPC session ended", "remote", conn.RemoteAddr().String(), "error", err)
}
