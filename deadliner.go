package jsonrpc2sock

import (
	"io"
	"time"
)

// DeadlineReader is an [io.ReadCloser] whose blocking reads can be interrupted with a deadline.
// [net.Conn] implements it.
type DeadlineReader interface {
	io.ReadCloser
	SetReadDeadline(t time.Time) error
}

// DeadlineWriter is an [io.WriteCloser] whose blocking writes can be interrupted with a deadline.
// [net.Conn] implements it.
type DeadlineWriter interface {
	io.WriteCloser
	SetWriteDeadline(t time.Time) error
}
