package testing

import (
	"fmt"
	"sync/atomic"
)

// PortAllocator hands out receiver ports from a bounded range, wrapping back
// to the start once the limit is passed. It does not probe the OS; a port
// that is still busy surfaces as a bind error from the receiver.
type PortAllocator struct {
	start int
	limit int
	last  atomic.Int64
}

// NewPortAllocator creates an allocator for the inclusive range [start, limit].
func NewPortAllocator(start, limit int) (*PortAllocator, error) {
	if start < 1 || limit > 65535 {
		return nil, fmt.Errorf("port range %d-%d outside 1-65535", start, limit)
	}
	if start > limit {
		return nil, fmt.Errorf("port range start %d is greater than limit %d", start, limit)
	}
	return &PortAllocator{start: start, limit: limit}, nil
}

// Next returns the next port in the range. Concurrent callers never observe
// the same port unless more calls than the range holds are in flight.
func (p *PortAllocator) Next() int {
	for {
		last := p.last.Load()
		next := last + 1
		if next < int64(p.start) || next > int64(p.limit) {
			next = int64(p.start)
		}
		if p.last.CompareAndSwap(last, next) {
			return int(next)
		}
	}
}

// Range returns the configured bounds.
func (p *PortAllocator) Range() (start, limit int) {
	return p.start, p.limit
}

// Size returns the number of ports in the range.
func (p *PortAllocator) Size() int {
	return p.limit - p.start + 1
}
