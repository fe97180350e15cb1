package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginChannel = "https://schemas.identity.wso2.org/events/login"

func validScenario() TestScenario {
	return TestScenario{
		Name:         "login-success",
		EndpointPath: "/webhooks/login",
		EventProfile: "WSO2",
		Channels:     []string{loginChannel},
		Variables:    map[string]interface{}{"username": "{{ .testName }}-user"},
		Triggers: []TriggerStep{
			{ID: "start", Method: "post", Path: "/flow/execute", Body: map[string]interface{}{"user": "{{ .username }}"}, Capture: map[string]string{"flowId": "flowId"}},
			{ID: "continue", Path: "/flow/execute", Body: map[string]interface{}{"flowId": "{{ .flowId }}"}, ExpectStatus: 200},
		},
		Expectations: []ExpectedEvent{
			{EventURI: loginSuccessURI, Payload: map[string]interface{}{"tenant": map[string]interface{}{"name": "{{ .tenant }}"}}},
		},
	}
}

func TestValidateScenarios_Valid(t *testing.T) {
	results := ValidateScenarios([]TestScenario{validScenario()}, DefaultEventProfileURIs())

	assert.Equal(t, 1, results.ValidScenarios)
	assert.Zero(t, results.TotalErrors)
	assert.Empty(t, results.ScenarioResults[0].Issues)
}

func TestValidateScenarios_Issues(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(s *TestScenario)
		wantType string
	}{
		{name: "unknown profile", mutate: func(s *TestScenario) { s.EventProfile = "CAEP" }, wantType: "unknown_event_profile"},
		{name: "bad method", mutate: func(s *TestScenario) { s.Triggers[0].Method = "FETCH" }, wantType: "unknown_method"},
		{name: "bad status", mutate: func(s *TestScenario) { s.Triggers[1].ExpectStatus = 99 }, wantType: "invalid_status"},
		{name: "capture used before it exists", mutate: func(s *TestScenario) {
			s.Triggers[0], s.Triggers[1] = s.Triggers[1], s.Triggers[0]
		}, wantType: "undefined_variable"},
		{name: "undefined in expectation", mutate: func(s *TestScenario) {
			s.Expectations[0].Payload["user"] = "{{ .nobody }}"
		}, wantType: "undefined_variable"},
		{name: "shadowed builtin", mutate: func(s *TestScenario) { s.Variables["tenant"] = "x" }, wantType: "shadowed_variable"},
		{name: "event outside channels", mutate: func(s *TestScenario) {
			s.Expectations[0].EventURI = "https://schemas.identity.wso2.org/events/session/event-type/sessionRevoked"
		}, wantType: "event_outside_channels"},
		{name: "missing field", mutate: func(s *TestScenario) { s.EndpointPath = "" }, wantType: "missing_field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScenario()
			tt.mutate(&s)

			results := ValidateScenarios([]TestScenario{s}, DefaultEventProfileURIs())
			require.Len(t, results.ScenarioResults, 1)
			assert.False(t, results.ScenarioResults[0].Valid)
			assert.Positive(t, results.ValidationSummary[tt.wantType])
		})
	}
}

func TestWithinChannels(t *testing.T) {
	assert.True(t, withinChannels(loginSuccessURI, []string{loginChannel}))
	assert.True(t, withinChannels(loginSuccessURI, []string{loginChannel + "/"}))
	assert.False(t, withinChannels(loginChannel+"Extra/event-type/x", []string{loginChannel}))
}

func TestFormatValidationResults(t *testing.T) {
	bad := validScenario()
	bad.Name = "broken"
	bad.Triggers[0].Method = "FETCH"

	out := FormatValidationResults(ValidateScenarios([]TestScenario{validScenario(), bad}, DefaultEventProfileURIs()), false)
	assert.Contains(t, out, "Total scenarios: 2")
	assert.Contains(t, out, "Invalid scenarios: 1")
	assert.Contains(t, out, "unknown_method: 1")
	assert.Contains(t, out, "❌ broken")
	assert.Contains(t, out, "✅ login-success")
}
