// Package clockutil injects time into the lock manager so tests can
// assert on wait durations deterministically. It is a narrowed port of
// clock.go (ClockIface/RealClock/MockClock): only Now() is needed,
// since lockmgr has no timers to fire, but the Real/Mock split and the
// testify/mock.Mock embedding are kept as-is.
package clockutil

import (
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// Clock abstracts time.Now so lockmgr's writer-wait logging is testable.
type Clock interface {
	Now() time.Time
}

// Real is the production Clock, a thin wrapper over time.Now.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

var _ Clock = Real{}

// Mock is a frozen, manually-advanced clock for tests that need
// reproducible "how long did the writer wait" assertions.
type Mock struct {
	mu      sync.RWMutex
	current time.Time

	mock.Mock
}

// NewFrozen returns a Mock frozen at the current wall-clock time.
func NewFrozen() *Mock {
	return &Mock{current: time.Now()}
}

// Advance moves the mock clock forward by d.
func (m *Mock) Advance(d time.Duration) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
	return m
}

func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

var _ Clock = &Mock{}
