package testing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAssertionFailed is wrapped by every validation failure so callers can
// tell a failed expectation from an infrastructure error with errors.Is.
var ErrAssertionFailed = errors.New("assertion failed")

// ErrManagerNotActive is returned by manager operations that require an
// active subscription.
var ErrManagerNotActive = errors.New("event test manager is not active")

// Provisioning stages reported by ProvisioningError.
const (
	StageAllocate  = "allocate"
	StageBind      = "bind"
	StageRegister  = "register"
	StageSettle    = "settle"
	StageSubscribe = "subscribe"
)

// ProvisioningError reports a failure while setting up the receiver or the
// webhook subscription. It aborts the test before any expectation is
// registered.
type ProvisioningError struct {
	Stage string
	Port  int
	Err   error
}

func (e *ProvisioningError) Error() string {
	if e.Port > 0 {
		return fmt.Sprintf("provisioning failed at %s (port %d): %v", e.Stage, e.Port, e.Err)
	}
	return fmt.Sprintf("provisioning failed at %s: %v", e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// NoDeliveryFoundError reports that no received delivery carried the event
// URI at validation time.
type NoDeliveryFoundError struct {
	EventURI string
	// Received is the number of deliveries in the log when validating
	Received int
	// Malformed lists deliveries skipped because their body was not JSON
	Malformed []MalformedPayloadError
}

func (e *NoDeliveryFoundError) Error() string {
	msg := fmt.Sprintf("no matching payload found for event URI: %s (%d deliveries received)", e.EventURI, e.Received)
	if len(e.Malformed) > 0 {
		parts := make([]string, 0, len(e.Malformed))
		for _, m := range e.Malformed {
			parts = append(parts, m.Error())
		}
		msg += "; skipped " + strings.Join(parts, "; ")
	}
	return msg
}

func (e *NoDeliveryFoundError) Unwrap() error {
	return ErrAssertionFailed
}

// FieldDifference describes one expected field that the delivered event did
// not carry with an equal value.
type FieldDifference struct {
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"`
	Actual   interface{} `json:"actual,omitempty"`
	Missing  bool        `json:"missing,omitempty"`
	// Diff is a go-cmp rendering for nested values
	Diff string `json:"diff,omitempty"`
}

func (d FieldDifference) String() string {
	if d.Missing {
		return fmt.Sprintf("%s: missing (expected %v)", d.Field, d.Expected)
	}
	if d.Diff != "" {
		return fmt.Sprintf("%s: (-expected +actual)\n%s", d.Field, d.Diff)
	}
	return fmt.Sprintf("%s: expected %v, got %v", d.Field, d.Expected, d.Actual)
}

// FieldMismatchError reports that the first delivery carrying the event URI
// did not satisfy the expectation, either because its envelope was invalid
// or because its event fields differ.
type FieldMismatchError struct {
	EventURI string
	// Sequence of the authoritative delivery
	Sequence    uint64
	Mismatches  []FieldDifference
	EnvelopeErr error
}

func (e *FieldMismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "payload validation failed for event URI: %s (delivery #%d)", e.EventURI, e.Sequence)
	if e.EnvelopeErr != nil {
		fmt.Fprintf(&b, ": %v", e.EnvelopeErr)
	}
	for _, m := range e.Mismatches {
		b.WriteString("\n  - ")
		b.WriteString(m.String())
	}
	return b.String()
}

func (e *FieldMismatchError) Unwrap() []error {
	if e.EnvelopeErr != nil {
		return []error{ErrAssertionFailed, e.EnvelopeErr}
	}
	return []error{ErrAssertionFailed}
}

// MalformedPayloadError records a delivery whose body could not be parsed.
// It is never the reported outcome of a match; it is attached to
// NoDeliveryFoundError as a diagnostic.
type MalformedPayloadError struct {
	Sequence uint64
	Err      error
}

func (e MalformedPayloadError) Error() string {
	return fmt.Sprintf("delivery #%d is not valid JSON: %v", e.Sequence, e.Err)
}

func (e MalformedPayloadError) Unwrap() error {
	return e.Err
}

// ValidationError aggregates the failures of one validation pass.
type ValidationError struct {
	Failures []error
	// Dropped counts expectations that were never evaluated because a field
	// mismatch stopped the pass
	Dropped int
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d webhook expectation(s) failed", len(e.Failures))
	if e.Dropped > 0 {
		fmt.Fprintf(&b, ", %d not evaluated", e.Dropped)
	}
	for _, f := range e.Failures {
		b.WriteString("\n")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures)+1)
	out = append(out, ErrAssertionFailed)
	out = append(out, e.Failures...)
	return out
}

// SuiteError summarizes an unsuccessful suite run. It wraps
// ErrAssertionFailed when any scenario failed an expectation.
type SuiteError struct {
	Failed  int
	Errored int
	// Provisioning counts errored scenarios that never got a subscription
	Provisioning int
}

func (e *SuiteError) Error() string {
	return fmt.Sprintf("%d scenario(s) failed, %d scenario(s) had errors", e.Failed, e.Errored)
}

func (e *SuiteError) Unwrap() error {
	if e.Failed > 0 {
		return ErrAssertionFailed
	}
	return nil
}

// OnlyProvisioning reports whether every unsuccessful scenario failed while
// provisioning.
func (e *SuiteError) OnlyProvisioning() bool {
	return e.Failed == 0 && e.Errored > 0 && e.Provisioning == e.Errored
}

// CheckSuiteResult returns a *SuiteError when any scenario failed or errored.
func CheckSuiteResult(result *TestSuiteResult) error {
	if result == nil || (result.FailedScenarios == 0 && result.ErrorScenarios == 0) {
		return nil
	}
	suiteErr := &SuiteError{Failed: result.FailedScenarios, Errored: result.ErrorScenarios}
	for _, r := range result.ScenarioResults {
		if r.Result == ResultError && r.Provisioning {
			suiteErr.Provisioning++
		}
	}
	return suiteErr
}
