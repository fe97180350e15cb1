// Package config provides configuration management for hookcheck.
//
// Configuration is read from a single YAML file, by default
// ~/.config/hookcheck/config.yaml, and can be pointed elsewhere with the
// --config flag. Values in the file are layered on top of GetDefaultConfig,
// so a missing file or a partial file is fine: the defaults target a locally
// started identity server on https://localhost:9853 with its stock admin
// account.
//
// # File Format
//
//	server:
//	  base_url: https://localhost:9853
//	  tenant: carbon.super
//	  insecure_skip_verify: true
//	  timeout: 30s
//	auth:
//	  mode: basic              # or client_credentials
//	  username: admin
//	  password: admin
//	receiver:
//	  host: localhost          # host the identity server uses to reach us
//	  scheme: http
//	  port_start: 8580
//	  port_limit: 8590
//	  bind_retries: 0
//	  ready_timeout: 5s
//	  settle_delay: 0s
//	  metrics_path: /metrics
//	webhooks:
//	  secret: ""               # generated per subscription when empty
//	  event_profiles:
//	    WSO2: https://schemas.identity.wso2.org/events
//	retry:
//	  max_retries: 3
//	  wait_min: 200ms
//	  wait_max: 2s
//
// Durations use Go duration syntax. LoadConfig validates the result and
// reports problems as a ConfigurationError naming every offending field.
package config
