package testing

import (
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// Names every scenario template can reference without declaring them.
const (
	VarTenant     = "tenant"
	VarTenantBase = "tenantBase"
	VarTestName   = "testName"
	VarEndpoint   = "endpoint"
)

var builtinVariables = []string{VarTenant, VarTenantBase, VarTestName, VarEndpoint}

var templateReferencePattern = regexp.MustCompile(`\{\{[^}]*?\.([a-zA-Z_][a-zA-Z0-9_]*)`)

var allowedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete,
}

// ScenarioValidationResults represents the results of validating multiple scenarios
type ScenarioValidationResults struct {
	TotalScenarios    int                        `json:"total_scenarios"`
	ValidScenarios    int                        `json:"valid_scenarios"`
	TotalErrors       int                        `json:"total_errors"`
	ScenarioResults   []ScenarioValidationResult `json:"scenario_results"`
	ValidationSummary map[string]int             `json:"validation_summary"`
}

// ScenarioValidationResult represents the validation result for a single scenario
type ScenarioValidationResult struct {
	ScenarioName string          `json:"scenario_name"`
	Valid        bool            `json:"valid"`
	Issues       []ScenarioIssue `json:"issues,omitempty"`
}

// ScenarioIssue is a single problem found in a scenario definition
type ScenarioIssue struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidateScenarios checks scenarios for problems that would only surface
// at run time: unknown HTTP methods, impossible statuses, references to
// undefined template variables, profiles without a known URI and
// expectations outside the subscribed channels.
func ValidateScenarios(scenarios []TestScenario, profileURIs map[string]string) *ScenarioValidationResults {
	results := &ScenarioValidationResults{
		TotalScenarios:    len(scenarios),
		ScenarioResults:   make([]ScenarioValidationResult, 0, len(scenarios)),
		ValidationSummary: make(map[string]int),
	}

	for _, scenario := range scenarios {
		scenarioResult := validateScenario(scenario, profileURIs)
		results.ScenarioResults = append(results.ScenarioResults, scenarioResult)

		if scenarioResult.Valid {
			results.ValidScenarios++
			continue
		}
		results.TotalErrors += len(scenarioResult.Issues)
		for _, issue := range scenarioResult.Issues {
			results.ValidationSummary[issue.Type]++
		}
	}

	return results
}

func validateScenario(scenario TestScenario, profileURIs map[string]string) ScenarioValidationResult {
	result := ScenarioValidationResult{ScenarioName: scenario.Name, Valid: true}
	add := func(issue ScenarioIssue) {
		result.Valid = false
		result.Issues = append(result.Issues, issue)
	}

	if err := validateRequiredFields(scenario); err != nil {
		add(ScenarioIssue{Type: "missing_field", Message: err.Error()})
	}

	if _, ok := profileURIs[scenario.EventProfile]; !ok && scenario.EventProfile != "" {
		add(ScenarioIssue{
			Type:       "unknown_event_profile",
			Message:    fmt.Sprintf("Event profile '%s' has no configured URI", scenario.EventProfile),
			Field:      "event_profile",
			Suggestion: "Add the profile under webhooks.event_profiles in the configuration",
		})
	}

	known := make(map[string]bool)
	for _, name := range builtinVariables {
		known[name] = true
	}
	for name := range scenario.Variables {
		if known[name] {
			add(ScenarioIssue{
				Type:    "shadowed_variable",
				Message: fmt.Sprintf("Variable '%s' shadows a built-in", name),
				Field:   "variables." + name,
			})
		}
		known[name] = true
	}
	for _, ref := range templateReferences(scenario.Variables) {
		if !known[ref] {
			add(undefinedVariable("variables", ref))
		}
	}

	for i, trigger := range scenario.Triggers {
		field := fmt.Sprintf("triggers[%d]", i)
		if trigger.Method != "" && !slices.Contains(allowedMethods, strings.ToUpper(trigger.Method)) {
			add(ScenarioIssue{
				Type:       "unknown_method",
				Message:    fmt.Sprintf("Trigger %s uses unsupported method '%s'", triggerLabel(trigger, i), trigger.Method),
				Field:      field + ".method",
				Suggestion: "Use one of " + strings.Join(allowedMethods, ", "),
			})
		}
		if trigger.ExpectStatus != 0 && (trigger.ExpectStatus < 100 || trigger.ExpectStatus > 599) {
			add(ScenarioIssue{
				Type:    "invalid_status",
				Message: fmt.Sprintf("Trigger %s expects impossible status %d", triggerLabel(trigger, i), trigger.ExpectStatus),
				Field:   field + ".expect_status",
			})
		}
		for _, ref := range templateReferences(trigger.Path, trigger.Body) {
			if !known[ref] {
				add(undefinedVariable(field, ref))
			}
		}
		// captures become visible only after the trigger ran
		for name := range trigger.Capture {
			known[name] = true
		}
	}

	for i, expectation := range scenario.Expectations {
		field := fmt.Sprintf("expectations[%d]", i)
		if expectation.EventURI != "" && len(scenario.Channels) > 0 && !withinChannels(expectation.EventURI, scenario.Channels) {
			add(ScenarioIssue{
				Type:       "event_outside_channels",
				Message:    fmt.Sprintf("Event '%s' is not part of any subscribed channel", expectation.EventURI),
				Field:      field + ".event_uri",
				Suggestion: "Subscribe to the channel that emits this event",
			})
		}
		for _, ref := range templateReferences(expectation.Payload) {
			if !known[ref] {
				add(undefinedVariable(field, ref))
			}
		}
	}

	return result
}

func undefinedVariable(field, name string) ScenarioIssue {
	return ScenarioIssue{
		Type:       "undefined_variable",
		Message:    fmt.Sprintf("Template references undefined variable '%s'", name),
		Field:      field,
		Suggestion: "Declare it under variables or capture it from an earlier trigger",
	}
}

func triggerLabel(trigger TriggerStep, index int) string {
	if trigger.ID != "" {
		return trigger.ID
	}
	return fmt.Sprintf("#%d", index+1)
}

// withinChannels reports whether an event URI lives below one of the
// subscribed channel URIs.
func withinChannels(eventURI string, channels []string) bool {
	for _, channel := range channels {
		if eventURI == channel || strings.HasPrefix(eventURI, strings.TrimSuffix(channel, "/")+"/") {
			return true
		}
	}
	return false
}

// templateReferences returns the sorted variable names referenced by
// templates anywhere in values.
func templateReferences(values ...interface{}) []string {
	refs := make(map[string]bool)
	for _, value := range values {
		collectReferences(value, refs)
	}

	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectReferences(value interface{}, refs map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, match := range templateReferencePattern.FindAllStringSubmatch(v, -1) {
			refs[match[1]] = true
		}
	case map[string]interface{}:
		for _, val := range v {
			collectReferences(val, refs)
		}
	case []interface{}:
		for _, val := range v {
			collectReferences(val, refs)
		}
	}
}

// FormatValidationResults formats validation results for CLI output
func FormatValidationResults(results *ScenarioValidationResults, verbose bool) string {
	var output strings.Builder

	output.WriteString("🔍 Scenario Validation Results\n")
	output.WriteString("══════════════════════════════\n")
	output.WriteString(fmt.Sprintf("Total scenarios: %d\n", results.TotalScenarios))
	output.WriteString(fmt.Sprintf("Valid scenarios: %d\n", results.ValidScenarios))
	output.WriteString(fmt.Sprintf("Invalid scenarios: %d\n", results.TotalScenarios-results.ValidScenarios))
	output.WriteString(fmt.Sprintf("Total errors: %d\n", results.TotalErrors))

	if len(results.ValidationSummary) > 0 {
		types := make([]string, 0, len(results.ValidationSummary))
		for issueType := range results.ValidationSummary {
			types = append(types, issueType)
		}
		sort.Strings(types)

		output.WriteString("\n📊 Validation Summary:\n")
		for _, issueType := range types {
			output.WriteString(fmt.Sprintf("  %s: %d\n", issueType, results.ValidationSummary[issueType]))
		}
	}

	if verbose || results.TotalErrors > 0 {
		output.WriteString("\n📋 Scenario Details:\n")
		for _, scenarioResult := range results.ScenarioResults {
			status := "✅"
			if !scenarioResult.Valid {
				status = "❌"
			}
			output.WriteString(fmt.Sprintf("  %s %s\n", status, scenarioResult.ScenarioName))

			for _, issue := range scenarioResult.Issues {
				output.WriteString(fmt.Sprintf("    • %s: %s\n", issue.Type, issue.Message))
				if issue.Suggestion != "" {
					output.WriteString(fmt.Sprintf("      💡 %s\n", issue.Suggestion))
				}
			}
		}
	}

	return output.String()
}
