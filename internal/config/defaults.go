package config

import "time"

const (
	// DefaultBaseURL is the address of a locally started identity server
	DefaultBaseURL = "https://localhost:9853"
	// DefaultTenant is the super tenant domain
	DefaultTenant = "carbon.super"

	// DefaultPortStart and DefaultPortLimit bound the receiver port range
	DefaultPortStart = 8580
	DefaultPortLimit = 8590

	// DefaultEventProfile is the built-in event profile name
	DefaultEventProfile = "WSO2"
	// DefaultEventProfileURI is the schema URI of DefaultEventProfile
	DefaultEventProfileURI = "https://schemas.identity.wso2.org/events"
)

// GetDefaultConfig returns the default configuration, suitable for a
// locally running identity server with its stock admin account.
func GetDefaultConfig() HarnessConfig {
	return HarnessConfig{
		Server: ServerConfig{
			BaseURL:            DefaultBaseURL,
			Tenant:             DefaultTenant,
			InsecureSkipVerify: true,
			Timeout:            30 * time.Second,
		},
		Auth: AuthConfig{
			Mode:     AuthModeBasic,
			Username: "admin",
			Password: "admin",
		},
		Receiver: ReceiverConfig{
			Host:              "localhost",
			Scheme:            "http",
			PortStart:         DefaultPortStart,
			PortLimit:         DefaultPortLimit,
			BindRetryInterval: 100 * time.Millisecond,
			ReadyTimeout:      5 * time.Second,
			MaxBodyBytes:      10 << 20,
		},
		Webhooks: WebhooksConfig{
			EventProfiles: map[string]string{
				DefaultEventProfile: DefaultEventProfileURI,
			},
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			WaitMin:    200 * time.Millisecond,
			WaitMax:    2 * time.Second,
		},
	}
}
