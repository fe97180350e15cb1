// Package testing verifies that an identity platform emits the webhook
// events a scenario expects.
//
// Each scenario gets its own EventTestManager. The manager takes a port from
// the shared PortAllocator, starts a mock.Receiver on it, registers the
// scenario's endpoint path and subscribes that endpoint to the requested
// event channels through the platform's webhook API. The runner then calls
// the scenario's triggers, waits until the receiver has recorded enough
// deliveries and stacks the expected payloads on the manager.
//
// # Matching
//
// ValidateEventPayloads drains the expectation stack oldest first. For every
// expectation the Matcher looks at the deliveries not yet consumed in
// arrival order. The first delivery whose events object carries the
// expected event URI is authoritative: its envelope (iss, jti, iat, events)
// must be valid and every expected top-level field must be present with an
// equal value. Extra fields are ignored at the top level, nested objects and
// arrays must be deeply equal. A matching delivery is consumed so it can
// satisfy only one expectation.
//
// An expectation whose event URI never arrived is reported and the pass
// continues. A field mismatch is reported and ends the pass; the remaining
// expectations are counted as dropped. Failures are returned together as a
// *ValidationError that wraps ErrAssertionFailed.
//
// # Scenarios
//
// Scenarios are YAML files:
//
//	name: login-success
//	endpoint_path: /webhooks/login
//	event_profile: WSO2
//	channels:
//	  - https://schemas.identity.wso2.org/events/login
//	variables:
//	  username: alice
//	triggers:
//	  - id: authenticate
//	    path: /flow/execute
//	    body: {flowType: LOGIN, username: "{{ .username }}"}
//	    capture: {flowId: flowId}
//	wait: {timeout: 20s}
//	expectations:
//	  - event_uri: https://schemas.identity.wso2.org/events/login/event-type/loginSuccess
//	    payload:
//	      user: {name: "{{ .username }}"}
//
// Strings in trigger paths, bodies and expected payloads are Go templates
// with the sprig functions. Besides declared variables and captured values
// they can use tenant, tenantBase, testName and endpoint.
//
// # Reporting
//
// The runner reports through a TestReporter: the console reporter prints
// progress and a summary table, the quiet and JSON reporters suit CI, and
// the StructuredReporter keeps everything in memory. InspectorServer
// exposes a live receiver over MCP for interactive debugging.
package testing
