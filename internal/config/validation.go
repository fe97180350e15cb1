package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks the configuration and returns a ConfigurationError listing
// every offending field.
func (c HarnessConfig) Validate() error {
	var errs ValidationErrors

	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs.Add("server.base_url", "must be an absolute URL", c.Server.BaseURL)
	}
	if c.Server.Timeout < 0 {
		errs.Add("server.timeout", "must not be negative", c.Server.Timeout)
	}

	switch c.Auth.Mode {
	case AuthModeBasic:
		if err := ValidateRequired("auth.username", c.Auth.Username, "basic auth"); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	case AuthModeClientCredentials:
		if err := ValidateRequired("auth.client_id", c.Auth.ClientID, "client credentials"); err != nil {
			errs = append(errs, err.(ValidationError))
		}
		if err := ValidateRequired("auth.client_secret", c.Auth.ClientSecret, "client credentials"); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	default:
		if err := ValidateOneOf("auth.mode", string(c.Auth.Mode), []string{string(AuthModeBasic), string(AuthModeClientCredentials)}); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}

	r := c.Receiver
	if r.PortStart < 1 || r.PortStart > 65535 {
		errs.Add("receiver.port_start", "must be between 1 and 65535", r.PortStart)
	}
	if r.PortLimit < 1 || r.PortLimit > 65535 {
		errs.Add("receiver.port_limit", "must be between 1 and 65535", r.PortLimit)
	}
	if r.PortStart > r.PortLimit {
		errs.Add("receiver.port_limit", "must not be lower than receiver.port_start", r.PortLimit)
	}
	if err := ValidateOneOf("receiver.scheme", r.Scheme, []string{"http", "https"}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if r.BindRetries < 0 {
		errs.Add("receiver.bind_retries", "must not be negative", r.BindRetries)
	}
	if r.SettleDelay < 0 {
		errs.Add("receiver.settle_delay", "must not be negative", r.SettleDelay)
	}
	if r.MetricsPath != "" && !strings.HasPrefix(r.MetricsPath, "/") {
		errs.Add("receiver.metrics_path", "must start with '/'", r.MetricsPath)
	}

	if c.Retry.MaxRetries < 0 {
		errs.Add("retry.max_retries", "must not be negative", c.Retry.MaxRetries)
	}
	if c.Retry.WaitMax > 0 && c.Retry.WaitMin > c.Retry.WaitMax {
		errs.Add("retry.wait_min", "must not exceed retry.wait_max", c.Retry.WaitMin)
	}

	if !errs.HasErrors() {
		return nil
	}

	cfgErr := NewConfigurationError("", ErrorTypeValidation, errs.Error())
	for _, e := range errs {
		cfgErr.Suggestions = append(cfgErr.Suggestions, fmt.Sprintf("check %s (got %v)", e.Field, e.Value))
	}
	return cfgErr
}
