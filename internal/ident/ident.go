// Package ident provides the clock and id-generation capabilities
// injected into the store and the MCP runtime. Both are interfaces so
// tests can substitute deterministic implementations.
package ident

import (
	"sync"
	"time"
)

// Clock supplies the current time. Production code uses SystemClock;
// tests use a manual clock to drive TTL eviction deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator produces monotonic 64-bit identifiers.
type IDGenerator interface {
	NextID() int64
}

// MonotonicIDGenerator derives ids from unix milliseconds, bumping by
// one when two calls land on the same millisecond. Safe for concurrent
// use.
type MonotonicIDGenerator struct {
	mu   sync.Mutex
	last int64
}

// NewMonotonicIDGenerator returns a generator seeded from the clock.
func NewMonotonicIDGenerator() *MonotonicIDGenerator {
	return &MonotonicIDGenerator{}
}

func (g *MonotonicIDGenerator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := time.Now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}
