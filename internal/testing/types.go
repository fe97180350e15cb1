package testing

import (
	"context"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// TestResult represents the result of test execution
type TestResult string

const (
	// ResultPassed indicates the test passed successfully
	ResultPassed TestResult = "PASSED"
	// ResultFailed indicates a webhook expectation was not satisfied
	ResultFailed TestResult = "FAILED"
	// ResultSkipped indicates the test was skipped
	ResultSkipped TestResult = "SKIPPED"
	// ResultError indicates provisioning or a trigger failed before validation
	ResultError TestResult = "ERROR"
)

// TestLogger provides centralized logging for test execution
type TestLogger interface {
	// Debug logs debug-level messages (only shown when debug=true)
	Debug(format string, args ...interface{})
	// Info logs info-level messages (shown when verbose=true or debug=true)
	Info(format string, args ...interface{})
	// Error logs error-level messages (always shown)
	Error(format string, args ...interface{})
	// IsDebugEnabled returns whether debug logging is enabled
	IsDebugEnabled() bool
	// IsVerboseEnabled returns whether verbose logging is enabled
	IsVerboseEnabled() bool
}

// TestConfiguration defines the overall test execution configuration
type TestConfiguration struct {
	// Timeout is the overall test execution timeout
	Timeout time.Duration `json:"timeout"`
	// Scenario filter for specific scenario execution
	Scenario string `json:"scenario,omitempty"`
	// Tags restricts execution to scenarios carrying any of these tags
	Tags []string `json:"tags,omitempty"`
	// Parallel is the number of scenarios executed concurrently
	Parallel int `json:"parallel"`
	// FailFast stops execution on first failure
	FailFast bool `json:"fail_fast"`
	// Verbose enables detailed output
	Verbose bool `json:"verbose"`
	// Debug enables debug logging and delivery dumps
	Debug bool `json:"debug"`
	// ScenarioPath is the file or directory holding scenario definitions
	ScenarioPath string `json:"scenario_path,omitempty"`
	// ReportPath is the directory detailed JSON reports are written to
	ReportPath string `json:"report_path,omitempty"`
}

// TestScenario describes one webhook verification: the subscription to
// create, the actions that make the identity platform emit events, and the
// event payloads those actions must produce.
type TestScenario struct {
	// Name is the unique identifier for the scenario; it is also used as the
	// webhook subscription name
	Name string `json:"name"`
	// Description provides human-readable scenario description
	Description string `json:"description,omitempty"`
	// Skip indicates whether this scenario should be skipped
	Skip bool `json:"skip,omitempty"`
	// Tags for additional categorization
	Tags []string `json:"tags,omitempty"`
	// EndpointPath is the receiver path the subscription points at
	EndpointPath string `json:"endpoint_path"`
	// EventProfile names the event catalogue, typically "WSO2"
	EventProfile string `json:"event_profile"`
	// Channels are the event channels the subscription receives
	Channels []string `json:"channels"`
	// Variables are made available to fixture templates
	Variables map[string]interface{} `json:"variables,omitempty"`
	// Triggers are the REST calls that cause the platform to emit events
	Triggers []TriggerStep `json:"triggers,omitempty"`
	// Wait controls how long to wait for deliveries before validating
	Wait WaitSpec `json:"wait,omitempty"`
	// Expectations are the event payloads that must be delivered
	Expectations []ExpectedEvent `json:"expectations"`
	// Timeout bounds the whole scenario
	Timeout metav1.Duration `json:"timeout,omitempty"`
}

// TriggerStep is one REST call against the identity platform.
type TriggerStep struct {
	// ID identifies the trigger in reports
	ID string `json:"id,omitempty"`
	// Method is the HTTP method, POST when empty
	Method string `json:"method,omitempty"`
	// Path is relative to the tenant qualified server API base
	Path string `json:"path"`
	// Body is sent as JSON after template rendering
	Body interface{} `json:"body,omitempty"`
	// ExpectStatus is the required response status; any 2xx when zero
	ExpectStatus int `json:"expect_status,omitempty"`
	// Capture maps a variable name to a dotted path in the JSON response;
	// captured values are visible to later triggers and expectations
	Capture map[string]string `json:"capture,omitempty"`
}

// WaitSpec describes the delivery barrier between triggers and validation.
type WaitSpec struct {
	// Deliveries is the minimum number of deliveries to await; defaults to
	// the number of expectations
	Deliveries int `json:"deliveries,omitempty"`
	// Timeout bounds the wait
	Timeout metav1.Duration `json:"timeout,omitempty"`
}

// ExpectedEvent is an expectation as written in a scenario file.
type ExpectedEvent struct {
	// EventURI is the key of the event inside the delivery's events object
	EventURI string `json:"event_uri"`
	// Payload lists the fields the event must carry; extra fields are ignored
	Payload map[string]interface{} `json:"payload"`
}

// TestSuiteResult represents the overall result of test suite execution
type TestSuiteResult struct {
	// StartTime when test execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when test execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of test execution
	Duration time.Duration `json:"duration"`
	// TotalScenarios is the total number of scenarios executed
	TotalScenarios int `json:"total_scenarios"`
	// PassedScenarios is the number of scenarios that passed
	PassedScenarios int `json:"passed_scenarios"`
	// FailedScenarios is the number of scenarios that failed
	FailedScenarios int `json:"failed_scenarios"`
	// SkippedScenarios is the number of scenarios that were skipped
	SkippedScenarios int `json:"skipped_scenarios"`
	// ErrorScenarios is the number of scenarios that had errors
	ErrorScenarios int `json:"error_scenarios"`
	// ScenarioResults contains individual scenario results
	ScenarioResults []TestScenarioResult `json:"scenario_results"`
	// Configuration used for this test run
	Configuration TestConfiguration `json:"configuration"`
}

// TestScenarioResult represents the result of a single test scenario
type TestScenarioResult struct {
	// Scenario is the scenario that was executed
	Scenario TestScenario `json:"scenario"`
	// Result is the overall result of the scenario
	Result TestResult `json:"result"`
	// StartTime when scenario execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when scenario execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of scenario execution
	Duration time.Duration `json:"duration"`
	// WebhookID is the subscription created for the scenario
	WebhookID string `json:"webhook_id,omitempty"`
	// Endpoint is the receiver URL the subscription pointed at
	Endpoint string `json:"endpoint,omitempty"`
	// Deliveries is the number of deliveries recorded by the receiver
	Deliveries int `json:"deliveries"`
	// TriggerResults contains individual trigger results
	TriggerResults []TriggerResult `json:"trigger_results,omitempty"`
	// Failures lists every unsatisfied expectation
	Failures []string `json:"failures,omitempty"`
	// Dropped counts expectations never evaluated after a field mismatch
	Dropped int `json:"dropped,omitempty"`
	// Error message if the scenario failed or had an error
	Error string `json:"error,omitempty"`
	// Provisioning is set when the error happened while setting up the
	// receiver or the subscription
	Provisioning bool `json:"provisioning,omitempty"`
}

// TriggerResult represents the outcome of a single trigger call
type TriggerResult struct {
	// Trigger is the step that was executed
	Trigger TriggerStep `json:"trigger"`
	// StatusCode returned by the identity platform
	StatusCode int `json:"status_code,omitempty"`
	// Duration of the call
	Duration time.Duration `json:"duration"`
	// Error message if the call failed or returned an unexpected status
	Error string `json:"error,omitempty"`
}

// TestRunner interface defines the test execution engine
type TestRunner interface {
	// Run executes test scenarios according to the configuration
	Run(ctx context.Context, config TestConfiguration, scenarios []TestScenario) (*TestSuiteResult, error)
}

// TestScenarioLoader interface defines how test scenarios are loaded
type TestScenarioLoader interface {
	// LoadScenarios loads test scenarios from a file or directory
	LoadScenarios(path string) ([]TestScenario, error)
	// FilterScenarios filters scenarios based on the configuration
	FilterScenarios(scenarios []TestScenario, config TestConfiguration) []TestScenario
}

// TestReporter interface defines how test results are reported
type TestReporter interface {
	// ReportStart is called when test execution begins
	ReportStart(config TestConfiguration)
	// ReportScenarioStart is called when a scenario begins
	ReportScenarioStart(scenario TestScenario)
	// ReportTriggerResult is called when a trigger completes
	ReportTriggerResult(result TriggerResult)
	// ReportScenarioResult is called when a scenario completes
	ReportScenarioResult(scenarioResult TestScenarioResult)
	// ReportSuiteResult is called when all tests complete
	ReportSuiteResult(suiteResult TestSuiteResult)
	// SetParallelMode enables or disables parallel output buffering
	SetParallelMode(parallel bool)
}
