package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"hookcheck/internal/client"
	"hookcheck/pkg/logging"
	hcstrings "hookcheck/pkg/strings"

	"github.com/briandowns/spinner"
	"golang.org/x/sync/errgroup"
)

const (
	runnerSubsystem = "TestRunner"

	// defaultWaitTimeout bounds the delivery wait when a scenario sets none
	defaultWaitTimeout = 30 * time.Second
	// teardownTimeout bounds subscription cleanup after a scenario
	teardownTimeout = 30 * time.Second
)

// errFailFast stops the errgroup once a scenario did not pass.
var errFailFast = errors.New("fail-fast: stopping after first unsuccessful scenario")

// TriggerClient performs scenario trigger calls against the identity platform.
type TriggerClient interface {
	Do(ctx context.Context, method, path string, body interface{}) (*client.Response, error)
}

// RunnerOptions configures a test runner.
type RunnerOptions struct {
	// Environment is shared by every scenario; each scenario provisions its
	// own receiver and subscription from it
	Environment Environment
	// Triggers executes trigger calls
	Triggers TriggerClient
	// Tenant and TenantBase are exposed to templates
	Tenant     string
	TenantBase string
	// Reporter receives progress and results
	Reporter TestReporter
	// Logger receives user facing diagnostics
	Logger TestLogger
	// Interactive enables the wait spinner for sequential runs
	Interactive bool
	Debug       bool
}

// testRunner implements the TestRunner interface
type testRunner struct {
	opts     RunnerOptions
	reporter TestReporter
	logger   TestLogger
}

// NewTestRunner creates a new test runner
func NewTestRunner(opts RunnerOptions) TestRunner {
	logger := opts.Logger
	if logger == nil {
		logger = NewStdoutLogger(false, opts.Debug)
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = NewStructuredReporter(false, opts.Debug, "")
	}
	return &testRunner{opts: opts, reporter: reporter, logger: logger}
}

// Run executes scenarios, at most config.Parallel at a time. With FailFast
// the first scenario that does not pass cancels the rest; scenarios that
// never started or were cut short are reported as skipped.
func (r *testRunner) Run(ctx context.Context, config TestConfiguration, scenarios []TestScenario) (*TestSuiteResult, error) {
	result := &TestSuiteResult{
		StartTime:       time.Now(),
		TotalScenarios:  len(scenarios),
		ScenarioResults: make([]TestScenarioResult, 0, len(scenarios)),
		Configuration:   config,
	}

	r.reporter.ReportStart(config)

	if len(scenarios) == 0 {
		result.EndTime = time.Now()
		r.reporter.ReportSuiteResult(*result)
		return result, nil
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	parallel := config.Parallel
	if parallel < 1 {
		parallel = 1
	}
	if ports := r.opts.Environment.Ports; ports != nil && parallel > ports.Size() {
		logging.Warn(runnerSubsystem, "Limiting parallel workers from %d to %d, the size of the receiver port range", parallel, ports.Size())
		parallel = ports.Size()
	}
	r.reporter.SetParallelMode(parallel > 1)

	results := make([]TestScenarioResult, len(scenarios))
	started := make([]bool, len(scenarios))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, scenario := range scenarios {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			if r.opts.Debug {
				r.logger.Debug("🔄 Executing scenario: %s\n", scenario.Name)
			}
			scenarioResult := r.runScenario(gctx, scenario, config, parallel == 1)
			if interruptedByFailFast(ctx, gctx, scenarioResult) {
				scenarioResult.Result = ResultSkipped
				scenarioResult.Error = "interrupted: fail-fast"
				scenarioResult.Provisioning = false
			}

			mu.Lock()
			results[i] = scenarioResult
			started[i] = true
			tally(result, scenarioResult)
			r.reporter.ReportScenarioResult(scenarioResult)
			mu.Unlock()

			if config.FailFast && !successful(scenarioResult.Result) {
				return errFailFast
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errFailFast) {
		return nil, err
	}

	for i, scenario := range scenarios {
		if !started[i] {
			results[i] = TestScenarioResult{
				Scenario: scenario,
				Result:   ResultSkipped,
				Error:    "not started: " + notStartedReason(ctx, config),
			}
			tally(result, results[i])
		}
	}
	result.ScenarioResults = results

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	r.reporter.ReportSuiteResult(*result)

	return result, nil
}

func notStartedReason(ctx context.Context, config TestConfiguration) string {
	if ctx.Err() != nil {
		return ctx.Err().Error()
	}
	if config.FailFast {
		return "fail-fast"
	}
	return "cancelled"
}

// interruptedByFailFast reports whether result errored only because the
// group was cancelled after another scenario did not pass.
func interruptedByFailFast(parent, group context.Context, result TestScenarioResult) bool {
	return result.Result == ResultError &&
		group.Err() != nil && parent.Err() == nil &&
		strings.Contains(result.Error, context.Canceled.Error())
}

func successful(result TestResult) bool {
	return result == ResultPassed || result == ResultSkipped
}

// runScenario provisions a receiver and subscription, runs the triggers,
// waits for deliveries and validates the expectations.
func (r *testRunner) runScenario(ctx context.Context, scenario TestScenario, config TestConfiguration, sequential bool) (result TestScenarioResult) {
	result = TestScenarioResult{
		Scenario:  scenario,
		StartTime: time.Now(),
		Result:    ResultPassed,
	}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
	}()

	r.reporter.ReportScenarioStart(scenario)

	if scenario.Skip {
		result.Result = ResultSkipped
		return result
	}

	scenarioCtx := ctx
	if scenario.Timeout.Duration > 0 {
		var cancel context.CancelFunc
		scenarioCtx, cancel = context.WithTimeout(ctx, scenario.Timeout.Duration)
		defer cancel()
	}

	manager, err := NewEventTestManager(scenarioCtx, SubscriptionSpec{
		EndpointPath: scenario.EndpointPath,
		EventProfile: scenario.EventProfile,
		Channels:     scenario.Channels,
		TestName:     scenario.Name,
	}, r.opts.Environment)
	if err != nil {
		return r.fail(result, ResultError, err)
	}
	defer r.teardown(manager, &result)

	result.WebhookID = manager.WebhookID()
	result.Endpoint = manager.Endpoint()

	if r.opts.Debug {
		r.logger.Debug("✅ Subscribed webhook %s at %s\n", result.WebhookID, result.Endpoint)
	}

	scenarioContext, err := NewScenarioContext(map[string]interface{}{
		VarTenant:     r.opts.Tenant,
		VarTenantBase: r.opts.TenantBase,
		VarTestName:   scenario.Name,
		VarEndpoint:   manager.Endpoint(),
	}, scenario.Variables)
	if err != nil {
		return r.fail(result, ResultError, err)
	}
	processor := NewTemplateProcessor(scenarioContext)

	for i, trigger := range scenario.Triggers {
		triggerResult := r.runTrigger(scenarioCtx, trigger, processor)
		result.TriggerResults = append(result.TriggerResults, triggerResult)
		r.reporter.ReportTriggerResult(triggerResult)

		if triggerResult.Error != "" {
			result.Result = ResultError
			result.Error = fmt.Sprintf("trigger %s: %s", triggerLabel(trigger, i), triggerResult.Error)
			return result
		}
	}

	r.awaitDeliveries(scenarioCtx, manager, scenario, sequential && r.opts.Interactive)
	if err := ctx.Err(); err != nil {
		return r.fail(result, ResultError, err)
	}

	for i, expectation := range scenario.Expectations {
		payload, err := processor.ResolvePayload(expectation.Payload)
		if err != nil {
			return r.fail(result, ResultError, fmt.Errorf("expectation %d: %w", i+1, err))
		}
		if payload == nil {
			payload = map[string]interface{}{}
		}
		if err := manager.StackExpectedPayload(expectation.EventURI, payload); err != nil {
			return r.fail(result, ResultError, fmt.Errorf("expectation %d: %w", i+1, err))
		}
	}

	result.Deliveries = manager.Receiver().DeliveryCount()
	if r.opts.Debug || config.Debug {
		for i, body := range manager.Deliveries() {
			r.logger.Debug("📨 Delivery #%d: %s\n", i+1, string(body))
		}
	}

	if err := manager.ValidateEventPayloads(); err != nil {
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			return r.fail(result, ResultError, err)
		}
		result.Result = ResultFailed
		result.Error = err.Error()
		result.Dropped = validationErr.Dropped
		for _, failure := range validationErr.Failures {
			result.Failures = append(result.Failures, failure.Error())
		}
	}

	return result
}

// awaitDeliveries blocks until the scenario's delivery count is reached or
// the wait times out. A short count is not an error here; validation
// reports exactly which events are missing.
func (r *testRunner) awaitDeliveries(ctx context.Context, manager *EventTestManager, scenario TestScenario, showSpinner bool) {
	want := scenario.Wait.Deliveries
	if want <= 0 {
		want = len(scenario.Expectations)
	}
	timeout := scenario.Wait.Timeout.Duration
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var s *spinner.Spinner
	if showSpinner {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Waiting for %d webhook deliveries...", want)
		s.Start()
	}

	err := manager.Receiver().WaitForDeliveries(waitCtx, want)

	if s != nil {
		s.Stop()
	}
	if err != nil {
		logging.Warn(runnerSubsystem, "Scenario %s: %v", scenario.Name, err)
	}
}

// runTrigger renders and sends one trigger call, capturing response values
// for later steps.
func (r *testRunner) runTrigger(ctx context.Context, trigger TriggerStep, processor *TemplateProcessor) TriggerResult {
	result := TriggerResult{Trigger: trigger}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	method := strings.ToUpper(trigger.Method)
	if method == "" {
		method = http.MethodPost
	}

	path, err := processor.ResolveString(trigger.Path)
	if err != nil {
		result.Error = fmt.Sprintf("template resolution failed: %v", err)
		return result
	}
	body, err := processor.Resolve(trigger.Body)
	if err != nil {
		result.Error = fmt.Sprintf("template resolution failed: %v", err)
		return result
	}

	resp, err := r.opts.Triggers.Do(ctx, method, path, body)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.StatusCode = resp.StatusCode

	if !statusAccepted(resp.StatusCode, trigger.ExpectStatus) {
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, hcstrings.Body(resp.Body))
		return result
	}

	if len(trigger.Capture) > 0 {
		if err := processor.Capture(resp.JSON(), trigger.Capture); err != nil {
			result.Error = err.Error()
			return result
		}
	}

	return result
}

func statusAccepted(got, want int) bool {
	if want != 0 {
		return got == want
	}
	return got >= 200 && got < 300
}

func (r *testRunner) teardown(manager *EventTestManager, result *TestScenarioResult) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if err := manager.Teardown(ctx); err != nil {
		r.logger.Error("⚠️  Cleanup of scenario %s failed: %v\n", result.Scenario.Name, err)
		return
	}
	if r.opts.Debug {
		r.logger.Debug("🧹 Cleanup complete for scenario %s\n", result.Scenario.Name)
	}
}

func (r *testRunner) fail(result TestScenarioResult, outcome TestResult, err error) TestScenarioResult {
	result.Result = outcome
	result.Error = err.Error()
	var provErr *ProvisioningError
	result.Provisioning = errors.As(err, &provErr)
	return result
}

// tally counts a scenario result into the suite totals
func tally(suiteResult *TestSuiteResult, scenarioResult TestScenarioResult) {
	switch scenarioResult.Result {
	case ResultPassed:
		suiteResult.PassedScenarios++
	case ResultFailed:
		suiteResult.FailedScenarios++
	case ResultSkipped:
		suiteResult.SkippedScenarios++
	case ResultError:
		suiteResult.ErrorScenarios++
	}
}
