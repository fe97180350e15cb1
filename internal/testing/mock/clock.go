package mock

import (
	"sync"
	"time"
)

// Clock stamps deliveries. Tests swap in a MockClock to get stable
// ReceivedAt values.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a Clock under test control. With a non-zero step every call
// to Now moves the clock forward, so consecutive deliveries get distinct,
// predictable stamps.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewMockClock creates a clock frozen at t, or at the current time when t is
// zero.
func NewMockClock(t time.Time) *MockClock {
	return NewSteppingClock(t, 0)
}

// NewSteppingClock creates a clock that starts at t and advances by step
// after each reading.
func NewSteppingClock(t time.Time, step time.Duration) *MockClock {
	if t.IsZero() {
		t = time.Now()
	}
	return &MockClock{current: t, step: step}
}

// Now returns the clock's time, then applies the step.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.current
	m.current = m.current.Add(m.step)
	return now
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// Set moves the clock to t.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}
