package testing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginScenarioYAML = `
name: login-success
description: Successful login emits a loginSuccess event
tags: [login, smoke]
endpoint_path: /webhooks/login
event_profile: WSO2
channels:
  - https://schemas.identity.wso2.org/events/login
variables:
  username: alice
triggers:
  - id: authenticate
    method: POST
    path: /flow/execute
    body:
      flowType: LOGIN
      inputs:
        username: "{{ .username }}"
    expect_status: 200
    capture:
      flowId: flowId
wait:
  deliveries: 1
  timeout: 20s
expectations:
  - event_uri: https://schemas.identity.wso2.org/events/login/event-type/loginSuccess
    payload:
      user:
        claims:
          - uri: http://wso2.org/claims/username
            value: "{{ .username }}"
      application:
        name: Console
      attempts: 1
timeout: 1m
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenarios_File(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "login.yaml", loginScenarioYAML)

	scenarios, err := NewTestScenarioLoaderWithLogger(false, NewSilentLogger(false, false)).LoadScenarios(path)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	s := scenarios[0]
	assert.Equal(t, "login-success", s.Name)
	assert.Equal(t, "/webhooks/login", s.EndpointPath)
	assert.Equal(t, "WSO2", s.EventProfile)
	assert.Equal(t, []string{"login", "smoke"}, s.Tags)
	assert.Equal(t, 20*time.Second, s.Wait.Timeout.Duration)
	assert.Equal(t, time.Minute, s.Timeout.Duration)
	assert.Equal(t, 1, s.Wait.Deliveries)

	require.Len(t, s.Triggers, 1)
	assert.Equal(t, "authenticate", s.Triggers[0].ID)
	assert.Equal(t, 200, s.Triggers[0].ExpectStatus)
	assert.Equal(t, map[string]string{"flowId": "flowId"}, s.Triggers[0].Capture)

	require.Len(t, s.Expectations, 1)
	// numbers decode as float64, matching JSON deliveries
	assert.Equal(t, float64(1), s.Expectations[0].Payload["attempts"])
}

func TestLoadScenarios_Directory(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "login.yaml", loginScenarioYAML)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	writeScenario(t, filepath.Join(dir, "nested"), "logout.yml", `
name: logout
tags: [session]
endpoint_path: /webhooks/session
event_profile: WSO2
channels: [https://schemas.identity.wso2.org/events/session]
expectations:
  - event_uri: https://schemas.identity.wso2.org/events/session/event-type/sessionRevoked
    payload: {}
`)
	writeScenario(t, dir, "README.md", "not a scenario")

	scenarios, err := NewTestScenarioLoader(false).LoadScenarios(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"login-success", "logout"}, GetScenarioNames(scenarios))
}

func TestLoadScenarios_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "endpoint_path: /x\nevent_profile: WSO2\nchannels: [c]\nexpectations: [{event_uri: u, payload: {}}]\n",
			wantErr: "scenario name is required",
		},
		{
			name:    "missing channels",
			content: "name: a\nendpoint_path: /x\nevent_profile: WSO2\nexpectations: [{event_uri: u, payload: {}}]\n",
			wantErr: "at least one channel",
		},
		{
			name:    "no expectations",
			content: "name: a\nendpoint_path: /x\nevent_profile: WSO2\nchannels: [c]\n",
			wantErr: "at least one expectation",
		},
		{
			name:    "trigger without path",
			content: "name: a\nendpoint_path: /x\nevent_profile: WSO2\nchannels: [c]\ntriggers: [{method: POST}]\nexpectations: [{event_uri: u, payload: {}}]\n",
			wantErr: "trigger 1: path is required",
		},
		{
			name:    "unknown field",
			content: "name: a\nendpoint: /x\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "bad duration",
			content: "name: a\ntimeout: soon\n",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.content)
			_, err := NewTestScenarioLoader(false).LoadScenarios(path)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadScenarios_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", loginScenarioYAML)
	writeScenario(t, dir, "b.yaml", loginScenarioYAML)

	_, err := NewTestScenarioLoader(false).LoadScenarios(dir)
	assert.ErrorContains(t, err, "duplicate scenario name: login-success")
}

func TestLoadScenarios_MissingPath(t *testing.T) {
	_, err := NewTestScenarioLoader(false).LoadScenarios(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorContains(t, err, "does not exist")
}

func TestFilterScenarios(t *testing.T) {
	scenarios := []TestScenario{
		{Name: "zeta", Tags: []string{"login"}},
		{Name: "alpha", Tags: []string{"session", "smoke"}},
		{Name: "mid"},
	}
	loader := NewTestScenarioLoader(false)

	tests := []struct {
		name   string
		config TestConfiguration
		want   []string
	}{
		{name: "no filter sorts by name", config: TestConfiguration{}, want: []string{"alpha", "mid", "zeta"}},
		{name: "by name", config: TestConfiguration{Scenario: "mid"}, want: []string{"mid"}},
		{name: "any tag", config: TestConfiguration{Tags: []string{"login", "smoke"}}, want: []string{"alpha", "zeta"}},
		{name: "no match", config: TestConfiguration{Scenario: "zeta", Tags: []string{"session"}}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetScenarioNames(loader.FilterScenarios(scenarios, tt.config))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadAndFilterScenarios(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "login.yaml", loginScenarioYAML)

	scenarios, err := LoadAndFilterScenarios(TestConfiguration{ScenarioPath: dir, Tags: []string{"smoke"}}, NewSilentLogger(false, false))
	require.NoError(t, err)
	assert.Len(t, scenarios, 1)

	assert.Empty(t, LoadScenariosForCompletion(filepath.Join(dir, "missing")))
}
