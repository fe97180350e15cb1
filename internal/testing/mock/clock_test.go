package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	after := time.Now()

	assert.False(t, got.Before(before) || got.After(after), "RealClock.Now() outside [%v, %v]", before, after)
}

func TestMockClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now(), "a frozen clock does not move on its own")

	clock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clock.Now())

	later := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestSteppingClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewSteppingClock(start, time.Millisecond)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Millisecond), clock.Now())
	assert.Equal(t, start.Add(2*time.Millisecond), clock.Now())
}

func TestMockClock_ZeroTime(t *testing.T) {
	before := time.Now()
	clock := NewMockClock(time.Time{})

	assert.False(t, clock.Now().Before(before), "zero-initialized clock starts at the current time")
}
