package testing

import (
	"encoding/json"
	"sync"
	"time"

	"hookcheck/pkg/logging"
)

// Scenario states tracked by StructuredReporter.
const (
	ScenarioRunning   = "running"
	ScenarioCompleted = "completed"
	ScenarioFailed    = "failed"
)

// StructuredReporter implements TestReporter without writing to stdio.
// Everything is kept in memory for programmatic access, which suits MCP
// server mode and tests.
type StructuredReporter struct {
	mu         sync.RWMutex
	reportPath string
	reportFile string

	states  map[string]*ScenarioState
	suite   *TestSuiteResult
	results []TestScenarioResult
}

// ScenarioState is the live view of one scenario.
type ScenarioState struct {
	Scenario       TestScenario    `json:"scenario"`
	StartTime      time.Time       `json:"start_time"`
	TriggerResults []TriggerResult `json:"trigger_results"`
	Status         string          `json:"status"`
}

// NewStructuredReporter creates a reporter that captures results in memory.
// A non-empty reportPath also writes the detailed JSON report at the end.
func NewStructuredReporter(verbose, debug bool, reportPath string) *StructuredReporter {
	return &StructuredReporter{
		reportPath: reportPath,
		states:     make(map[string]*ScenarioState),
	}
}

func (r *StructuredReporter) ReportStart(config TestConfiguration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.suite = &TestSuiteResult{
		StartTime:     time.Now(),
		Configuration: config,
	}
}

func (r *StructuredReporter) ReportScenarioStart(scenario TestScenario) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[scenario.Name] = &ScenarioState{
		Scenario:  scenario,
		StartTime: time.Now(),
		Status:    ScenarioRunning,
	}
}

// ReportTriggerResult attaches a trigger result to the running scenario
// that declares the same trigger.
func (r *StructuredReporter) ReportTriggerResult(result TriggerResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state := r.runningStateFor(result.Trigger); state != nil {
		state.TriggerResults = append(state.TriggerResults, result)
	}
}

func (r *StructuredReporter) runningStateFor(trigger TriggerStep) *ScenarioState {
	for _, state := range r.states {
		if state.Status != ScenarioRunning {
			continue
		}
		for _, declared := range state.Scenario.Triggers {
			if declared.ID == trigger.ID && declared.Path == trigger.Path {
				return state
			}
		}
	}
	return nil
}

func (r *StructuredReporter) ReportScenarioResult(scenarioResult TestScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.states[scenarioResult.Scenario.Name]; ok {
		state.Status = ScenarioFailed
		if successful(scenarioResult.Result) {
			state.Status = ScenarioCompleted
		}
	}

	r.results = append(r.results, scenarioResult)

	if r.suite != nil {
		r.suite.ScenarioResults = append(r.suite.ScenarioResults, scenarioResult)
		r.suite.TotalScenarios = len(r.suite.ScenarioResults)
		tally(r.suite, scenarioResult)
	}
}

// ReportSuiteResult replaces the running totals with the final result and
// writes the detailed report when a report path is set.
func (r *StructuredReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.suite = &suiteResult
	for _, state := range r.states {
		if state.Status == ScenarioRunning {
			state.Status = ScenarioCompleted
		}
	}

	if r.reportPath == "" {
		return
	}
	path, err := SaveDetailedReport(r.reportPath, suiteResult)
	if err != nil {
		logging.Error("TestReporter", err, "Failed to save detailed report")
		return
	}
	r.reportFile = path
}

func (r *StructuredReporter) SetParallelMode(parallel bool) {}

// GetCurrentSuiteResult returns a copy of the suite result so far, or nil
// before ReportStart.
func (r *StructuredReporter) GetCurrentSuiteResult() *TestSuiteResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.suite == nil {
		return nil
	}
	result := *r.suite
	result.ScenarioResults = append([]TestScenarioResult(nil), r.suite.ScenarioResults...)
	return &result
}

// GetScenarioStates returns a copy of every scenario's state keyed by name.
func (r *StructuredReporter) GetScenarioStates() map[string]*ScenarioState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]*ScenarioState, len(r.states))
	for name, state := range r.states {
		stateCopy := *state
		stateCopy.TriggerResults = append([]TriggerResult(nil), state.TriggerResults...)
		states[name] = &stateCopy
	}
	return states
}

// GetCurrentResults returns the scenario results in completion order.
func (r *StructuredReporter) GetCurrentResults() []TestScenarioResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]TestScenarioResult(nil), r.results...)
}

// GetResultsAsJSON renders the current suite result as indented JSON.
func (r *StructuredReporter) GetResultsAsJSON() (string, error) {
	result := r.GetCurrentSuiteResult()
	if result == nil {
		return `{"status": "no_results", "message": "No test results available"}`, nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReportFile returns the path of the last written detailed report.
func (r *StructuredReporter) ReportFile() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reportFile
}
