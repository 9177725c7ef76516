package jsonrpc2sock

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// sessionCaller connects a caller to a session over a pipe.
func sessionCaller(t *testing.T) *Caller {
	t.Helper()

	server, client := net.Pipe()

	session := NewSession(server, testMux())

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = session.Run(context.Background())
	}()

	caller := NewCaller(client)

	t.Cleanup(func() {
		_ = caller.Close()
		<-done
	})

	return caller
}

// peerCaller connects a caller to a hand-written peer. serve owns the peer side of the pipe and
// must return once reading fails.
func peerCaller(t *testing.T, serve func(fr *FrameReader, conn net.Conn)) *Caller {
	t.Helper()

	server, client := net.Pipe()

	done := make(chan struct{})

	go func() {
		defer close(done)

		serve(NewFrameReader(server), server)
	}()

	caller := NewCaller(client)

	t.Cleanup(func() {
		_ = caller.Close()
		_ = server.Close()
		<-done
	})

	return caller
}

func pendingCalls(c *Caller) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

func TestCaller_Call(t *testing.T) {
	t.Parallel()

	caller := sessionCaller(t)

	resp, err := caller.Call(context.Background(), "subtract", 42, 23)
	require.NoError(t, err)
	require.False(t, resp.IsError())

	var diff int

	require.NoError(t, resp.Result.Unmarshal(&diff))
	assert.Equal(t, 19, diff)

	resp, err = caller.Call(context.Background(), "fail")
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.Equal(t, int64(CodeServerError), resp.Error.Code())
	assert.Equal(t, "This is a test failure", resp.Error.Message())

	resp, err = caller.Call(context.Background(), "nope")
	require.NoError(t, err)
	require.ErrorIs(t, resp.Error, ErrMethodNotFound)

	resp, err = caller.Call(context.Background(), "unencodable")
	require.NoError(t, err)
	require.ErrorIs(t, resp.Error, ErrInternalError)

	require.NoError(t, caller.Notify(context.Background(), "subtract", 1, 1))

	assert.Zero(t, pendingCalls(caller))
}

func TestCaller_Concurrent(t *testing.T) {
	t.Parallel()

	caller := sessionCaller(t)
	caller.IDs = UUIDGenerator{}

	var g errgroup.Group

	for i := range 32 {
		g.Go(func() error {
			resp, err := caller.Call(context.Background(), "sleep", 32-i, "n")
			if err != nil {
				return err
			}

			var got string
			if err := resp.Result.Unmarshal(&got); err != nil {
				return err
			}

			assert.Equal(t, "n", got)

			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Zero(t, pendingCalls(caller))
}

func TestCaller_CallBatch(t *testing.T) {
	t.Parallel()

	caller := sessionCaller(t)

	t.Run("ordered", func(t *testing.T) {
		reqs := NewRequestChain(
			NewRequest(NewID("slow"), "sleep", 50, "a"),
			NewNotification("subtract", 1, 1),
			NewRequest(NewID("fast"), "sleep", 0, "b"),
			NewRequest(NewIntID(3), "nope"),
		)

		resps, err := caller.CallBatch(context.Background(), reqs)
		require.NoError(t, err)
		require.Equal(t, 3, resps.Len())

		got := resps.Slice()
		assert.Equal(t, "slow", got[0].ID.String())
		assert.Equal(t, `"a"`, string(got[0].Result.RawMessage()))
		assert.Equal(t, "fast", got[1].ID.String())
		assert.Equal(t, `"b"`, string(got[1].Result.RawMessage()))
		assert.Equal(t, "3", got[2].ID.String())
		require.ErrorIs(t, got[2].Error, ErrMethodNotFound)
	})

	t.Run("notifications only", func(t *testing.T) {
		resps, err := caller.CallBatch(context.Background(), NewRequestChain(NewNotification("a"), NewNotification("b")))
		require.NoError(t, err)
		assert.Nil(t, resps)
	})

	t.Run("duplicate id", func(t *testing.T) {
		reqs := NewRequestChain(NewRequest(NewID("1"), "a"), NewRequest(NewIntID(1), "b"))

		_, err := caller.CallBatch(context.Background(), reqs)
		require.ErrorIs(t, err, ErrDuplicateID)
		assert.Zero(t, pendingCalls(caller))
	})

	t.Run("nil", func(t *testing.T) {
		_, err := caller.CallBatch(context.Background(), nil)
		require.ErrorIs(t, err, ErrNilMessage)
	})
}

func TestCaller_OutOfOrder(t *testing.T) {
	t.Parallel()

	caller := peerCaller(t, func(fr *FrameReader, conn net.Conn) {
		var reqs []*Request

		for len(reqs) < 2 {
			frame, err := fr.ReadFrame(context.Background())
			if err != nil {
				return
			}

			req, err := DecodeRequests(frame)
			if err != nil {
				return
			}

			reqs = append(reqs, req)
		}

		// Answer the last request first
		for i := len(reqs) - 1; i >= 0; i-- {
			if _, err := EncodeResponses(conn, reqs[i].ResponseWithResult(reqs[i].Method)); err != nil {
				return
			}
		}

		_, _ = fr.ReadFrame(context.Background())
	})

	var g errgroup.Group

	for _, method := range []string{"first", "second"} {
		g.Go(func() error {
			resp, err := caller.Call(context.Background(), method)
			if err != nil {
				return err
			}

			assert.Equal(t, `"`+method+`"`, string(resp.Result.RawMessage()))

			return nil
		})
	}

	require.NoError(t, g.Wait())
}

func TestCaller_OnNotification(t *testing.T) {
	t.Parallel()

	caller := peerCaller(t, func(fr *FrameReader, conn net.Conn) {
		frame, err := fr.ReadFrame(context.Background())
		if err != nil {
			return
		}

		req, err := DecodeRequests(frame)
		if err != nil {
			return
		}

		// A notification from the peer arrives before the answer
		_, _ = EncodeRequests(conn, NewNotification("progress", 50))
		_, _ = EncodeRequests(conn, NewRequestChain(NewNotification("a"), NewNotification("b")))
		_, _ = EncodeResponses(conn, req.ResponseWithResult("done"))

		_, _ = fr.ReadFrame(context.Background())
	})

	var methods []string

	caller.OnNotification(func(_ context.Context, req *Request) {
		methods = append(methods, req.Method)
	})

	resp, err := caller.Call(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, `"done"`, string(resp.Result.RawMessage()))

	// Notifications run on the reading go-routine before the response is delivered
	assert.Equal(t, []string{"progress", "a", "b"}, methods)
}

func TestCaller_Responses(t *testing.T) {
	t.Parallel()

	t.Run("unknown id is dropped", func(t *testing.T) {
		t.Parallel()

		caller := peerCaller(t, func(fr *FrameReader, conn net.Conn) {
			frame, err := fr.ReadFrame(context.Background())
			if err != nil {
				return
			}

			req, err := DecodeRequests(frame)
			if err != nil {
				return
			}

			_, _ = EncodeResponses(conn, NewResponseWithResult(NewID("unknown"), "stray"))
			_, _ = conn.Write([]byte(`{"not":"rpc"}`))
			_, _ = EncodeResponses(conn, req.ResponseWithResult("mine"))

			_, _ = fr.ReadFrame(context.Background())
		})

		resp, err := caller.Call(context.Background(), "m")
		require.NoError(t, err)
		assert.Equal(t, `"mine"`, string(resp.Result.RawMessage()))
	})

	t.Run("error without id", func(t *testing.T) {
		t.Parallel()

		caller := peerCaller(t, func(fr *FrameReader, conn net.Conn) {
			if _, err := fr.ReadFrame(context.Background()); err != nil {
				return
			}

			_, _ = conn.Write([]byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`))

			_, _ = fr.ReadFrame(context.Background())
		})

		_, err := caller.Call(context.Background(), "m")
		require.ErrorIs(t, err, ErrParse)
		assert.Zero(t, pendingCalls(caller))
	})

	t.Run("numeric string id correlates", func(t *testing.T) {
		t.Parallel()

		caller := peerCaller(t, func(fr *FrameReader, conn net.Conn) {
			frame, err := fr.ReadFrame(context.Background())
			if err != nil {
				return
			}

			req, err := DecodeRequests(frame)
			if err != nil {
				return
			}

			// Some peers echo numeric ids back as strings
			_, _ = conn.Write([]byte(`{"jsonrpc":"2.0","id":"` + req.ID.String() + `","result":1}`))

			_, _ = fr.ReadFrame(context.Background())
		})

		resp, err := caller.Call(context.Background(), "m")
		require.NoError(t, err)
		assert.Equal(t, `1`, string(resp.Result.RawMessage()))
	})
}

func TestCaller_Timeout(t *testing.T) {
	t.Parallel()

	caller := peerCaller(t, func(fr *FrameReader, _ net.Conn) {
		// Read everything, answer nothing
		for {
			if _, err := fr.ReadFrame(context.Background()); err != nil {
				return
			}
		}
	})

	caller.SetDefaultTimeout(50 * time.Millisecond)

	_, err := caller.Call(context.Background(), "m")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, pendingCalls(caller))

	caller.SetDefaultTimeout(0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = caller.Call(ctx, "m")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, pendingCalls(caller))
}

func TestCaller_PeerCloses(t *testing.T) {
	t.Parallel()

	caller := peerCaller(t, func(fr *FrameReader, conn net.Conn) {
		_, _ = fr.ReadFrame(context.Background())
		_ = conn.Close()
	})

	_, err := caller.Call(context.Background(), "m")
	require.ErrorIs(t, err, ErrCallerClosed)

	_, err = caller.Call(context.Background(), "m")
	require.ErrorIs(t, err, ErrCallerClosed)
	require.ErrorIs(t, caller.Err(), ErrCallerClosed)
}

func TestCaller_Close(t *testing.T) {
	t.Parallel()

	received := make(chan struct{}, 1)

	caller := peerCaller(t, func(fr *FrameReader, _ net.Conn) {
		for {
			if _, err := fr.ReadFrame(context.Background()); err != nil {
				return
			}

			received <- struct{}{}
		}
	})

	assert.NoError(t, caller.Err())

	errs := make(chan error, 1)

	go func() {
		_, err := caller.Call(context.Background(), "m")
		errs <- err
	}()

	<-received
	assert.Equal(t, 1, pendingCalls(caller))

	require.NoError(t, caller.Close())
	require.ErrorIs(t, <-errs, ErrCallerClosed)
}

func TestCaller_ClosePlainStream(t *testing.T) {
	t.Parallel()

	pr, _ := io.Pipe()

	// Not a net.Conn: Close only has the stream's own Close to stop the reading go-routine
	rwc := struct {
		io.Reader
		io.Writer
		io.Closer
	}{pr, io.Discard, pr}

	caller := NewCaller(rwc)

	require.NoError(t, caller.Close())
	require.ErrorIs(t, caller.Err(), ErrCallerClosed)
}
