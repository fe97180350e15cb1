package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ReportFilePrefix prefixes detailed JSON report file names.
const ReportFilePrefix = "hookcheck-report-"

// testReporter implements the TestReporter interface for the console
type testReporter struct {
	out             io.Writer
	verbose         bool
	debug           bool
	reportPath      string
	parallelMode    bool
	scenarioBuffers map[string]string // start lines held back until the result is known
	bufferMutex     sync.RWMutex
	lastReportFile  string
}

// NewTestReporter creates a new console reporter writing to stdout
func NewTestReporter(verbose, debug bool, reportPath string) TestReporter {
	return NewTestReporterWithWriter(os.Stdout, verbose, debug, reportPath)
}

// NewTestReporterWithWriter creates a console reporter writing to out
func NewTestReporterWithWriter(out io.Writer, verbose, debug bool, reportPath string) TestReporter {
	return &testReporter{
		out:             out,
		verbose:         verbose,
		debug:           debug,
		reportPath:      reportPath,
		scenarioBuffers: make(map[string]string),
	}
}

func (r *testReporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

// SetParallelMode enables or disables parallel output buffering
func (r *testReporter) SetParallelMode(parallel bool) {
	r.bufferMutex.Lock()
	defer r.bufferMutex.Unlock()

	r.parallelMode = parallel
	if parallel {
		r.scenarioBuffers = make(map[string]string)
	}
}

// ReportStart is called when test execution begins
func (r *testReporter) ReportStart(config TestConfiguration) {
	r.printf("🧪 Starting hookcheck webhook verification\n")

	if r.verbose {
		r.printf("\n⚙️  Configuration:\n")
		r.printf("   • Scenario: %s\n", stringOrDefault(config.Scenario, "all"))
		r.printf("   • Tags: %s\n", stringOrDefault(strings.Join(config.Tags, ", "), "all"))
		r.printf("   • Parallel workers: %d\n", config.Parallel)
		r.printf("   • Fail fast: %t\n", config.FailFast)
		r.printf("   • Debug mode: %t\n", r.debug)
		r.printf("   • Timeout: %v\n", config.Timeout)
		if config.ScenarioPath != "" {
			r.printf("   • Scenario path: %s\n", config.ScenarioPath)
		}
		if config.ReportPath != "" {
			r.printf("   • Report path: %s\n", config.ReportPath)
		}
		r.printf("\n")
	}
}

// ReportScenarioStart is called when a scenario begins
func (r *testReporter) ReportScenarioStart(scenario TestScenario) {
	if r.verbose {
		r.printf("🎯 Starting scenario: %s\n", scenario.Name)
		if scenario.Description != "" {
			r.printf("   📝 Description: %s\n", scenario.Description)
		}
		if len(scenario.Tags) > 0 {
			r.printf("   🏷️  Tags: %s\n", strings.Join(scenario.Tags, ", "))
		}
		r.printf("   📡 Channels: %s\n", strings.Join(scenario.Channels, ", "))
		r.printf("   📋 Triggers: %d, expectations: %d\n", len(scenario.Triggers), len(scenario.Expectations))
		if scenario.Timeout.Duration > 0 {
			r.printf("   ⏱️  Timeout: %v\n", scenario.Timeout.Duration)
		}
		return
	}

	line := fmt.Sprintf("🎯 %s... ", scenario.Name)
	if r.parallelMode {
		r.bufferMutex.Lock()
		r.scenarioBuffers[scenario.Name] = line
		r.bufferMutex.Unlock()
		return
	}
	r.printf("%s", line)
}

// ReportTriggerResult is called when a trigger completes
func (r *testReporter) ReportTriggerResult(result TriggerResult) {
	if !r.verbose || r.parallelMode {
		return
	}

	label := result.Trigger.ID
	if label == "" {
		label = result.Trigger.Path
	}
	if result.Error != "" {
		r.printf("   💥 Trigger %s failed: %s\n", label, result.Error)
		return
	}
	r.printf("   ✅ Trigger %s → %d (%v)\n", label, result.StatusCode, result.Duration)
}

// ReportScenarioResult is called when a scenario completes
func (r *testReporter) ReportScenarioResult(scenarioResult TestScenarioResult) {
	symbol := getResultSymbol(scenarioResult.Result)

	if r.verbose {
		r.printf("%s Scenario completed: %s (%v)\n", symbol, scenarioResult.Scenario.Name, scenarioResult.Duration)
		if scenarioResult.WebhookID != "" {
			r.printf("   🔗 Webhook %s → %s\n", scenarioResult.WebhookID, scenarioResult.Endpoint)
		}
		r.printf("   📨 Deliveries received: %d\n", scenarioResult.Deliveries)
		r.printScenarioProblems(scenarioResult)
		r.printf("\n")
		return
	}

	if r.parallelMode {
		r.bufferMutex.Lock()
		bufferedStart, exists := r.scenarioBuffers[scenarioResult.Scenario.Name]
		delete(r.scenarioBuffers, scenarioResult.Scenario.Name)
		r.bufferMutex.Unlock()

		if !exists {
			bufferedStart = fmt.Sprintf("🎯 %s... ", scenarioResult.Scenario.Name)
		}
		r.printf("%s%s (%v)\n", bufferedStart, symbol, scenarioResult.Duration)
	} else {
		r.printf("%s (%v)\n", symbol, scenarioResult.Duration)
	}
	r.printScenarioProblems(scenarioResult)
}

func (r *testReporter) printScenarioProblems(scenarioResult TestScenarioResult) {
	switch {
	case len(scenarioResult.Failures) > 0:
		for _, failure := range scenarioResult.Failures {
			r.printf("   ❌ %s\n", indentText(failure, "      "))
		}
		if scenarioResult.Dropped > 0 {
			r.printf("   ⏭️  %d expectation(s) not evaluated\n", scenarioResult.Dropped)
		}
	case scenarioResult.Error != "" && scenarioResult.Result != ResultSkipped:
		r.printf("   %s %s\n", getResultSymbol(scenarioResult.Result), scenarioResult.Error)
	}
}

// ReportSuiteResult prints a summary table and writes the JSON report
func (r *testReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	r.printf("\n🏁 Test Suite Complete\n")
	r.printf("⏱️  Duration: %v\n", suiteResult.Duration)

	if len(suiteResult.ScenarioResults) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(r.out)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{
			text.FgHiCyan.Sprint("SCENARIO"),
			text.FgHiCyan.Sprint("RESULT"),
			text.FgHiCyan.Sprint("DELIVERIES"),
			text.FgHiCyan.Sprint("FAILURES"),
			text.FgHiCyan.Sprint("DURATION"),
		})
		for _, sr := range suiteResult.ScenarioResults {
			t.AppendRow(table.Row{
				sr.Scenario.Name,
				colorResult(sr.Result),
				sr.Deliveries,
				len(sr.Failures),
				sr.Duration.Round(time.Millisecond),
			})
		}
		t.AppendFooter(table.Row{"TOTAL", suiteResult.TotalScenarios, "", "", suiteResult.Duration.Round(time.Millisecond)})
		t.Render()
	}

	r.printf("📊 Results:\n")
	r.printf("   ✅ Passed: %d\n", suiteResult.PassedScenarios)
	if suiteResult.FailedScenarios > 0 {
		r.printf("   ❌ Failed: %d\n", suiteResult.FailedScenarios)
	}
	if suiteResult.ErrorScenarios > 0 {
		r.printf("   💥 Errors: %d\n", suiteResult.ErrorScenarios)
	}
	if suiteResult.SkippedScenarios > 0 {
		r.printf("   ⏭️  Skipped: %d\n", suiteResult.SkippedScenarios)
	}
	r.printf("   📈 Total: %d\n", suiteResult.TotalScenarios)

	successRate := 0.0
	if suiteResult.TotalScenarios > 0 {
		successRate = float64(suiteResult.PassedScenarios) / float64(suiteResult.TotalScenarios) * 100
	}
	r.printf("   📏 Success Rate: %.1f%%\n", successRate)

	if suiteResult.FailedScenarios == 0 && suiteResult.ErrorScenarios == 0 {
		r.printf("\n🎉 All webhook expectations satisfied!\n")
	} else {
		r.printf("\n💔 Some scenarios failed\n")
	}

	if r.reportPath != "" {
		path, err := SaveDetailedReport(r.reportPath, suiteResult)
		if err != nil {
			r.printf("⚠️  Failed to save detailed report: %v\n", err)
		} else {
			r.lastReportFile = path
			r.printf("📄 Detailed report saved to: %s\n", path)
		}
	}
}

// SaveDetailedReport writes the suite result as indented JSON into dir and
// returns the file path.
func SaveDetailedReport(dir string, suiteResult TestSuiteResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	fullPath := filepath.Join(dir, ReportFilePrefix+timestamp+".json")

	jsonData, err := json.MarshalIndent(suiteResult, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}

	if err := os.WriteFile(fullPath, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return fullPath, nil
}

func colorResult(result TestResult) string {
	switch result {
	case ResultPassed:
		return text.FgGreen.Sprint(string(result))
	case ResultFailed:
		return text.FgRed.Sprint(string(result))
	case ResultError:
		return text.FgHiRed.Sprint(string(result))
	default:
		return text.FgYellow.Sprint(string(result))
	}
}

// getResultSymbol returns an appropriate symbol for the test result
func getResultSymbol(result TestResult) string {
	switch result {
	case ResultPassed:
		return "✅"
	case ResultFailed:
		return "❌"
	case ResultSkipped:
		return "⏭️"
	case ResultError:
		return "💥"
	default:
		return "❓"
	}
}

func indentText(s, indent string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+indent)
}

func stringOrDefault(s, defaultValue string) string {
	if s == "" {
		return defaultValue
	}
	return s
}

// NewQuietReporter creates a reporter that only outputs essential information
func NewQuietReporter() TestReporter {
	return &quietReporter{out: os.Stdout}
}

// quietReporter implements minimal output for CI/CD integration
type quietReporter struct {
	out io.Writer
}

func (r *quietReporter) ReportStart(config TestConfiguration)      {}
func (r *quietReporter) ReportScenarioStart(scenario TestScenario) {}
func (r *quietReporter) ReportTriggerResult(result TriggerResult)  {}
func (r *quietReporter) SetParallelMode(parallel bool)             {}

func (r *quietReporter) ReportScenarioResult(scenarioResult TestScenarioResult) {
	if scenarioResult.Result == ResultFailed || scenarioResult.Result == ResultError {
		fmt.Fprintf(r.out, "%s %s: %s\n", getResultSymbol(scenarioResult.Result), scenarioResult.Scenario.Name, scenarioResult.Error)
	}
}

func (r *quietReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	if suiteResult.FailedScenarios == 0 && suiteResult.ErrorScenarios == 0 {
		fmt.Fprintf(r.out, "✅ All %d scenarios passed (%v)\n", suiteResult.TotalScenarios, suiteResult.Duration)
		return
	}
	fmt.Fprintf(r.out, "❌ %d/%d scenarios failed (%v)\n",
		suiteResult.FailedScenarios+suiteResult.ErrorScenarios,
		suiteResult.TotalScenarios,
		suiteResult.Duration)
}

// NewJSONReporter creates a reporter that prints the suite result as JSON
func NewJSONReporter() TestReporter {
	return &jsonReporter{out: os.Stdout}
}

// jsonReporter implements JSON output for machine consumption
type jsonReporter struct {
	out io.Writer
}

func (r *jsonReporter) ReportStart(config TestConfiguration)                   {}
func (r *jsonReporter) ReportScenarioStart(scenario TestScenario)              {}
func (r *jsonReporter) ReportTriggerResult(result TriggerResult)               {}
func (r *jsonReporter) ReportScenarioResult(scenarioResult TestScenarioResult) {}
func (r *jsonReporter) SetParallelMode(parallel bool)                          {}

func (r *jsonReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	jsonBytes, _ := json.MarshalIndent(suiteResult, "", "  ")
	fmt.Fprintln(r.out, string(jsonBytes))
}
