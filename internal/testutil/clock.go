package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock is a manually advanced clock. Safe for concurrent use.
type StubClock struct {
	mu sync.RWMutex
	t  time.Time
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{t: t}
}

// FixedClock starts at 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// sequence is a mutex-guarded counter shared by the stub generators.
type sequence struct {
	mu sync.Mutex
	n  uint64
}

func (s *sequence) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

// StubIDGenerator returns "id-1", "id-2", ... in call order.
type StubIDGenerator struct{ seq sequence }

func NewStubIDGenerator() *StubIDGenerator { return &StubIDGenerator{} }

func (g *StubIDGenerator) New() string { return fmt.Sprintf("id-%d", g.seq.next()) }

// StubTokens returns the call count as 16 hex characters, matching the
// shape of real key tokens.
type StubTokens struct{ seq sequence }

func NewStubTokens() *StubTokens { return &StubTokens{} }

func (g *StubTokens) Token() string { return fmt.Sprintf("%016x", g.seq.next()) }
