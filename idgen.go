package jsonrpc2sock

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces ids for outgoing requests. Implementations must be safe for concurrent
// use and should not repeat ids while requests are outstanding.
type IDGenerator interface {
	NextID() ID
}

// SequentialIDs generates increasing integer ids, written as JSON numbers.
type SequentialIDs struct {
	n atomic.Uint32
}

// NewSequentialIDs returns a [*SequentialIDs] starting at a random value.
func NewSequentialIDs() *SequentialIDs {
	s := &SequentialIDs{}
	//nolint:gosec // Only avoids always starting at 0
	s.n.Store(rand.Uint32() >> 1)

	return s
}

// NextID implements [IDGenerator].
func (s *SequentialIDs) NextID() ID {
	return NewIntID(s.n.Add(1))
}

// UUIDGenerator generates random version 4 UUID ids, written as JSON strings.
type UUIDGenerator struct{}

// NextID implements [IDGenerator].
func (UUIDGenerator) NextID() ID {
	return NewID(uuid.NewString())
}
