package testing

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"hookcheck/internal/testing/mock"
	"hookcheck/pkg/logging"

	"github.com/google/go-cmp/cmp"
)

const matcherSubsystem = "Matcher"

// MatchOutcome classifies the result of matching one expectation.
type MatchOutcome int

const (
	// Matched means an unconsumed delivery satisfied the expectation
	Matched MatchOutcome = iota
	// TypeNotFound means no unconsumed delivery carried the event URI
	TypeNotFound
	// FieldMismatch means the first delivery carrying the event URI did not
	// satisfy the expectation
	FieldMismatch
)

func (o MatchOutcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case TypeNotFound:
		return "type-not-found"
	case FieldMismatch:
		return "field-mismatch"
	default:
		return "unknown"
	}
}

// MatchResult is the typed outcome of Matcher.Match.
type MatchResult struct {
	Outcome  MatchOutcome
	EventURI string
	// Delivery is the authoritative candidate for Matched and FieldMismatch
	Delivery *mock.Delivery
	// Mismatches lists differing fields, sorted by field name
	Mismatches []FieldDifference
	// EnvelopeErr is set when the envelope or event object was invalid
	EnvelopeErr error
	// Malformed lists deliveries of the pool that could not be parsed
	Malformed []MalformedPayloadError
	// Received is the size of the delivery log the pool was built from
	Received int
}

// Err converts the result into the error reported by validation, or nil
// when the expectation was matched.
func (r MatchResult) Err() error {
	switch r.Outcome {
	case Matched:
		return nil
	case FieldMismatch:
		e := &FieldMismatchError{
			EventURI:    r.EventURI,
			Mismatches:  r.Mismatches,
			EnvelopeErr: r.EnvelopeErr,
		}
		if r.Delivery != nil {
			e.Sequence = r.Delivery.Sequence
		}
		return e
	default:
		return &NoDeliveryFoundError{
			EventURI:  r.EventURI,
			Received:  r.Received,
			Malformed: r.Malformed,
		}
	}
}

type candidate struct {
	delivery mock.Delivery
	payload  map[string]interface{}
}

// candidatePool is the set of parsed deliveries for one validation pass.
// Consumed deliveries are tracked by sequence number; the candidate slice
// itself is never modified.
type candidatePool struct {
	candidates []candidate
	malformed  []MalformedPayloadError
	consumed   map[uint64]struct{}
	received   int
}

// newCandidatePool parses each delivery once. Bodies that are not JSON
// objects are logged and kept aside as diagnostics.
func newCandidatePool(deliveries []mock.Delivery) *candidatePool {
	pool := &candidatePool{
		candidates: make([]candidate, 0, len(deliveries)),
		consumed:   make(map[uint64]struct{}),
		received:   len(deliveries),
	}

	for _, d := range deliveries {
		var payload map[string]interface{}
		if err := json.Unmarshal(d.Body, &payload); err != nil || payload == nil {
			if err == nil {
				err = errors.New("body is not a JSON object")
			}
			logging.Warn(matcherSubsystem, "Skipping delivery #%d with invalid JSON payload: %v", d.Sequence, err)
			pool.malformed = append(pool.malformed, MalformedPayloadError{Sequence: d.Sequence, Err: err})
			continue
		}
		pool.candidates = append(pool.candidates, candidate{delivery: d, payload: payload})
	}
	return pool
}

func (p *candidatePool) isConsumed(seq uint64) bool {
	_, ok := p.consumed[seq]
	return ok
}

func (p *candidatePool) consume(seq uint64) {
	p.consumed[seq] = struct{}{}
}

// Remaining returns the number of parsed deliveries not yet consumed.
func (p *candidatePool) Remaining() int {
	return len(p.candidates) - len(p.consumed)
}

// Matcher decides which delivery satisfies an expectation.
type Matcher struct{}

// NewMatcher creates a matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match scans unconsumed candidates oldest first. The first candidate
// carrying the event URI is authoritative: if it satisfies the expectation it
// is consumed, otherwise the result is FieldMismatch and no later candidate
// is tried.
func (m *Matcher) Match(pool *candidatePool, exp Expectation) MatchResult {
	return m.match(pool, exp, true)
}

// Peek is Match without consuming the matched delivery.
func (m *Matcher) Peek(pool *candidatePool, exp Expectation) MatchResult {
	return m.match(pool, exp, false)
}

func (m *Matcher) match(pool *candidatePool, exp Expectation, consume bool) MatchResult {
	result := MatchResult{
		Outcome:   TypeNotFound,
		EventURI:  exp.EventURI,
		Malformed: pool.malformed,
		Received:  pool.received,
	}

	for i := range pool.candidates {
		c := &pool.candidates[i]
		if pool.isConsumed(c.delivery.Sequence) || !hasEvent(c.payload, exp.EventURI) {
			continue
		}

		d := c.delivery
		result.Delivery = &d

		if err := ValidateCommonEventPayloadFields(exp.EventURI, c.payload); err != nil {
			result.Outcome = FieldMismatch
			result.EnvelopeErr = err
			return result
		}

		event, err := ExtractEventPayload(exp.EventURI, c.payload)
		if err != nil {
			result.Outcome = FieldMismatch
			result.EnvelopeErr = err
			return result
		}

		logging.Debug(matcherSubsystem, "Validating delivery #%d against expected payload for event URI %s", d.Sequence, exp.EventURI)

		if diffs := CompareEventFields(event, exp.Payload); len(diffs) > 0 {
			result.Outcome = FieldMismatch
			result.Mismatches = diffs
			return result
		}

		if consume {
			pool.consume(d.Sequence)
		}
		result.Outcome = Matched
		return result
	}

	return result
}

func hasEvent(payload map[string]interface{}, eventURI string) bool {
	events, ok := payload["events"].(map[string]interface{})
	if !ok {
		return false
	}
	_, ok = events[eventURI]
	return ok
}

// ValidateCommonEventPayloadFields checks the security event token envelope
// that wraps every webhook event.
func ValidateCommonEventPayloadFields(eventURI string, payload map[string]interface{}) error {
	for _, field := range []string{"iss", "jti"} {
		v, ok := payload[field]
		if !ok {
			return fmt.Errorf("envelope field %q is missing", field)
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return fmt.Errorf("envelope field %q must be a non-empty string", field)
		}
	}

	iat, ok := payload["iat"]
	if !ok {
		return errors.New(`envelope field "iat" is missing`)
	}
	n, ok := iat.(float64)
	if !ok || n <= 0 {
		return fmt.Errorf(`envelope field "iat" must be a positive number, got %v`, iat)
	}

	if rci, ok := payload["rci"]; ok {
		if _, ok := rci.(string); !ok {
			return fmt.Errorf(`envelope field "rci" must be a string, got %T`, rci)
		}
	}

	events, ok := payload["events"].(map[string]interface{})
	if !ok {
		return errors.New(`envelope field "events" must be an object`)
	}
	if _, ok := events[eventURI]; !ok {
		return fmt.Errorf("events object has no entry for %s", eventURI)
	}
	return nil
}

// ExtractEventPayload returns the event object stored under eventURI.
func ExtractEventPayload(eventURI string, payload map[string]interface{}) (map[string]interface{}, error) {
	events, ok := payload["events"].(map[string]interface{})
	if !ok {
		return nil, errors.New(`envelope field "events" must be an object`)
	}
	raw, ok := events[eventURI]
	if !ok {
		return nil, fmt.Errorf("events object has no entry for %s", eventURI)
	}
	event, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("event %s must be an object, got %T", eventURI, raw)
	}
	return event, nil
}

// CompareEventFields reports every key of expected that actual lacks or
// holds with a different value. Keys only present in actual are ignored at
// the top level; nested objects and arrays must be deeply equal.
func CompareEventFields(actual, expected map[string]interface{}) []FieldDifference {
	var diffs []FieldDifference
	for field, want := range expected {
		got, ok := actual[field]
		if !ok {
			diffs = append(diffs, FieldDifference{Field: field, Expected: want, Missing: true})
			continue
		}
		if cmp.Equal(want, got) {
			continue
		}
		d := FieldDifference{Field: field, Expected: want, Actual: got}
		switch want.(type) {
		case map[string]interface{}, []interface{}:
			d.Diff = cmp.Diff(want, got)
		}
		diffs = append(diffs, d)
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Field < diffs[j].Field })
	return diffs
}

// NormalizePayload round-trips v through JSON so that numbers and nested
// values have the same types as a decoded delivery body.
func NormalizePayload(v interface{}) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok && m == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return decodePayload(raw)
}

func decodePayload(raw []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if out == nil {
		return nil, errors.New("payload must be a JSON object")
	}
	return out, nil
}
