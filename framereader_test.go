package jsonrpc2sock

import (
	"context"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAllFrames(t *testing.T, fr *FrameReader) ([]string, error) {
	t.Helper()

	var frames []string

	for {
		frame, err := fr.ReadFrame(context.Background())
		if err != nil {
			return frames, err
		}

		frames = append(frames, string(frame))
	}
}

func TestFrameReader_ReadFrame(t *testing.T) {
	t.Parallel()

	//nolint:govet // Test table readability
	tests := []struct {
		name   string
		reader io.Reader
		want   []string
		err    error
	}{
		{
			name:   "whole stream",
			reader: strings.NewReader(testStream),
			want:   testStreamFrames,
			err:    io.EOF,
		},
		{
			name:   "one byte at a time",
			reader: iotest.OneByteReader(strings.NewReader(testStream)),
			want:   testStreamFrames,
			err:    io.EOF,
		},
		{
			name:   "half reads",
			reader: iotest.HalfReader(strings.NewReader(testStream)),
			want:   testStreamFrames,
			err:    io.EOF,
		},
		{
			name:   "data with EOF",
			reader: iotest.DataErrReader(strings.NewReader(`{"a":1}`)),
			want:   []string{`{"a":1}`},
			err:    io.EOF,
		},
		{
			name:   "trailing whitespace",
			reader: strings.NewReader("{}\n \n"),
			want:   []string{`{}`},
			err:    io.EOF,
		},
		{
			name:   "empty stream",
			reader: strings.NewReader(""),
			err:    io.EOF,
		},
		{
			name:   "partial frame",
			reader: strings.NewReader(`{"a":1} {"b"`),
			want:   []string{`{"a":1}`},
			err:    io.ErrUnexpectedEOF,
		},
		{
			name:   "framing error",
			reader: strings.NewReader(`{"a":1} nope {"b":2}`),
			want:   []string{`{"a":1}`},
			err:    ErrFraming,
		},
		{
			name:   "read error",
			reader: iotest.TimeoutReader(strings.NewReader(`{"a":1}{"b":2}`)),
			want:   []string{`{"a":1}`, `{"b":2}`},
			err:    iotest.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			frames, err := readAllFrames(t, NewFrameReader(tt.reader))
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.want, frames)
		})
	}
}

func TestFrameReader_StickyError(t *testing.T) {
	t.Parallel()

	fr := NewFrameReader(strings.NewReader(`] {"a":1}`))

	_, err := fr.ReadFrame(context.Background())
	require.ErrorIs(t, err, ErrFraming)

	_, err = fr.ReadFrame(context.Background())
	require.ErrorIs(t, err, ErrFraming)
}

func TestFrameReader_LargeFrame(t *testing.T) {
	t.Parallel()

	big := `{"s":"` + strings.Repeat("x", DefaultReadSize*3) + `"}`

	frames, err := readAllFrames(t, NewFrameReader(strings.NewReader(big+big)))
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{big, big}, frames)
}

func TestFrameReader_SetLimit(t *testing.T) {
	t.Parallel()

	fr := NewFrameReader(strings.NewReader(`{"a":1}{"abcdefghijklmnop":1}`))
	fr.SetLimit(10)

	frame, err := fr.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(frame))

	_, err = fr.ReadFrame(context.Background())
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFrameReader_IdleTimeout(t *testing.T) {
	t.Parallel()

	t.Run("deadline reader", func(t *testing.T) {
		t.Parallel()

		server, client := net.Pipe()

		t.Cleanup(func() {
			_ = server.Close()
			_ = client.Close()
		})

		fr := NewFrameReader(server)
		fr.SetIdleTimeout(50 * time.Millisecond)

		_, err := fr.ReadFrame(context.Background())
		require.ErrorIs(t, err, os.ErrDeadlineExceeded)
	})

	t.Run("closer", func(t *testing.T) {
		t.Parallel()

		pr, pw := io.Pipe()

		t.Cleanup(func() {
			_ = pw.Close()
		})

		fr := NewFrameReader(pr)
		fr.SetIdleTimeout(50 * time.Millisecond)

		_, err := fr.ReadFrame(context.Background())
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.ErrorIs(t, err, io.ErrClosedPipe)
	})

	t.Run("timeout resets on data", func(t *testing.T) {
		t.Parallel()

		server, client := net.Pipe()

		t.Cleanup(func() {
			_ = server.Close()
			_ = client.Close()
		})

		fr := NewFrameReader(server)
		fr.SetIdleTimeout(200 * time.Millisecond)

		go func() {
			for _, part := range []string{`{"a"`, `:`, `1}`} {
				time.Sleep(50 * time.Millisecond)

				if _, err := client.Write([]byte(part)); err != nil {
					return
				}
			}
		}()

		frame, err := fr.ReadFrame(context.Background())
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(frame))
	})
}

func TestFrameReader_PeerCloses(t *testing.T) {
	t.Parallel()

	server, client := net.Pipe()

	t.Cleanup(func() {
		_ = server.Close()
	})

	go func() {
		_, _ = client.Write([]byte(`{"a":1}`))
		_ = client.Close()
	}()

	fr := NewFrameReader(server)
	fr.SetIdleTimeout(time.Second)

	frame, err := fr.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(frame))

	// Let the close land before the next read starts
	time.Sleep(20 * time.Millisecond)

	_, err = fr.ReadFrame(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestFrameReader_ContextCancel(t *testing.T) {
	t.Parallel()

	server, client := net.Pipe()

	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())

	time.AfterFunc(50*time.Millisecond, cancel)

	fr := NewFrameReader(server)

	_, err := fr.ReadFrame(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFrameReader_Close(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()

	fr := NewFrameReader(pr)
	require.NoError(t, fr.Close())

	_, err := pw.Write([]byte("{}"))
	require.ErrorIs(t, err, io.ErrClosedPipe)

	assert.NoError(t, NewFrameReader(strings.NewReader("")).Close())
}
