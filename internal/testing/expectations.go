package testing

// Expectation is a declared (event URI, payload) pair that must be satisfied
// by exactly one received delivery.
type Expectation struct {
	EventURI string                 `json:"event_uri"`
	Payload  map[string]interface{} `json:"payload"`
}

// ExpectationStack holds expectations awaiting validation. Expectations are
// popped in global insertion order, which also gives oldest-first order for
// each event URI. It is owned by a single manager and is not safe for
// concurrent use.
type ExpectationStack struct {
	items []Expectation
}

// NewExpectationStack returns an empty stack.
func NewExpectationStack() *ExpectationStack {
	return &ExpectationStack{}
}

// Push appends an expectation.
func (s *ExpectationStack) Push(eventURI string, payload map[string]interface{}) {
	s.items = append(s.items, Expectation{EventURI: eventURI, Payload: payload})
}

// PopOldest removes and returns the oldest expectation. The boolean is false
// when the stack is empty.
func (s *ExpectationStack) PopOldest() (Expectation, bool) {
	if len(s.items) == 0 {
		return Expectation{}, false
	}
	e := s.items[0]
	s.items[0] = Expectation{}
	s.items = s.items[1:]
	return e, true
}

// IsEmpty reports whether no expectations are pending.
func (s *ExpectationStack) IsEmpty() bool {
	return len(s.items) == 0
}

// Len returns the number of pending expectations.
func (s *ExpectationStack) Len() int {
	return len(s.items)
}

// Pending returns the number of pending expectations for eventURI.
func (s *ExpectationStack) Pending(eventURI string) int {
	n := 0
	for _, e := range s.items {
		if e.EventURI == eventURI {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the pending expectations, oldest first.
func (s *ExpectationStack) Snapshot() []Expectation {
	out := make([]Expectation, len(s.items))
	copy(out, s.items)
	return out
}

// Clear drops every pending expectation.
func (s *ExpectationStack) Clear() {
	s.items = nil
}
