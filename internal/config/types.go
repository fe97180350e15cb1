package config

import (
	"strings"
	"time"
)

// HarnessConfig is the top-level configuration structure for hookcheck.
type HarnessConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Receiver ReceiverConfig `yaml:"receiver"`
	Webhooks WebhooksConfig `yaml:"webhooks"`
	Retry    RetryConfig    `yaml:"retry"`
}

// ServerConfig locates the identity platform under test.
type ServerConfig struct {
	BaseURL            string        `yaml:"base_url"`                       // Base URL of the identity platform (default: https://localhost:9853)
	Tenant             string        `yaml:"tenant,omitempty"`               // Tenant domain; empty addresses the root API
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify,omitempty"` // Skip TLS verification for self-signed test servers
	Timeout            time.Duration `yaml:"timeout,omitempty"`              // Per-request timeout
}

// AuthMode selects how requests to the identity platform are authenticated.
type AuthMode string

const (
	// AuthModeBasic sends the admin username and password with every request
	AuthModeBasic AuthMode = "basic"
	// AuthModeClientCredentials obtains a bearer token with the OAuth2
	// client credentials grant
	AuthModeClientCredentials AuthMode = "client_credentials"
)

// AuthConfig holds the credentials used for management API calls.
type AuthConfig struct {
	Mode         AuthMode `yaml:"mode"`
	Username     string   `yaml:"username,omitempty"`
	Password     string   `yaml:"password,omitempty"`
	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	TokenURL     string   `yaml:"token_url,omitempty"` // Defaults to {base_url}/oauth2/token
	Scopes       []string `yaml:"scopes,omitempty"`
}

// ReceiverConfig controls the mock receivers started for each scenario.
type ReceiverConfig struct {
	Host              string        `yaml:"host"`                   // Host advertised to the identity platform
	Scheme            string        `yaml:"scheme"`                 // Scheme advertised to the identity platform
	BindAddress       string        `yaml:"bind_address,omitempty"` // Interface to listen on; empty means all
	PortStart         int           `yaml:"port_start"`
	PortLimit         int           `yaml:"port_limit"`
	BindRetries       int           `yaml:"bind_retries,omitempty"`
	BindRetryInterval time.Duration `yaml:"bind_retry_interval,omitempty"`
	ReadyTimeout      time.Duration `yaml:"ready_timeout,omitempty"`
	SettleDelay       time.Duration `yaml:"settle_delay,omitempty"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes,omitempty"`
	MetricsPath       string        `yaml:"metrics_path,omitempty"`
}

// WebhooksConfig holds subscription defaults.
type WebhooksConfig struct {
	Secret        string            `yaml:"secret,omitempty"`         // Generated per subscription when empty
	EventProfiles map[string]string `yaml:"event_profiles,omitempty"` // Event profile name to schema URI
}

// RetryConfig bounds retries of management API calls.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	WaitMin    time.Duration `yaml:"wait_min"`
	WaitMax    time.Duration `yaml:"wait_max"`
}

// APIBase returns the tenant qualified server API base URL.
func (s ServerConfig) APIBase() string {
	base := strings.TrimSuffix(s.BaseURL, "/")
	if s.Tenant == "" {
		return base + "/api/server/v1"
	}
	return base + "/t/" + s.Tenant + "/api/server/v1"
}

// EffectiveTokenURL returns the configured token URL or the platform default.
func (a AuthConfig) EffectiveTokenURL(baseURL string) string {
	if a.TokenURL != "" {
		return a.TokenURL
	}
	return strings.TrimSuffix(baseURL, "/") + "/oauth2/token"
}
