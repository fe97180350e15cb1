package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Error types reported in ConfigurationError.ErrorType.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError describes why the harness config could not be used.
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`
	FileName    string   `json:"fileName"`
	ErrorType   string   `json:"errorType"`
	Message     string   `json:"message"`
	Details     string   `json:"details,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (ce ConfigurationError) Error() string {
	if ce.FileName == "" {
		return fmt.Sprintf("[%s] %s", ce.ErrorType, ce.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FileName, ce.Message)
}

// DetailedError renders the error with its file, details and suggestions,
// one per line, for printing before the command exits.
func (ce ConfigurationError) DetailedError() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Configuration Error: %s", ce.Message)
	if ce.FilePath != "" {
		fmt.Fprintf(&b, "\n  File: %s", ce.FilePath)
	}
	fmt.Fprintf(&b, "\n  Type: %s", ce.ErrorType)
	if ce.Details != "" {
		fmt.Fprintf(&b, "\n  Details: %s", ce.Details)
	}
	if len(ce.Suggestions) > 0 {
		b.WriteString("\n  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			fmt.Fprintf(&b, "\n    - %s", suggestion)
		}
	}

	return b.String()
}

// NewConfigurationError creates a ConfigurationError for the file at
// filePath, which may be empty.
func NewConfigurationError(filePath, errorType, message string) ConfigurationError {
	ce := ConfigurationError{
		FilePath:  filePath,
		ErrorType: errorType,
		Message:   message,
	}
	if filePath != "" {
		ce.FileName = filepath.Base(filePath)
	}
	return ce
}
