package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	hctesting "hookcheck/internal/testing"
	"hookcheck/internal/testing/mock"
	"hookcheck/pkg/logging"

	"github.com/spf13/cobra"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion(testVersion)

	if GetVersion() != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "hookcheck" {
		t.Errorf("Expected Use to be 'hookcheck', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}

	for _, name := range []string{"config", "debug", "log-format"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("Expected persistent flag --%s", name)
		}
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "hookcheck version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	expected := "hookcheck version 1.0.0\n"
	if buf.String() != expected {
		t.Errorf("Expected version output %q, got %q", expected, buf.String())
	}
}

func TestSubcommands(t *testing.T) {
	foundCommands := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range []string{"version", "verify", "receive"} {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	provisioning := &hctesting.ProvisioningError{Stage: hctesting.StageSubscribe, Err: errors.New("quota")}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitCodeSuccess},
		{name: "generic", err: errors.New("boom"), want: ExitCodeError},
		{name: "assertion", err: fmt.Errorf("run: %w", hctesting.ErrAssertionFailed), want: ExitCodeAssertion},
		{name: "failed scenarios", err: &hctesting.SuiteError{Failed: 1, Errored: 1, Provisioning: 1}, want: ExitCodeAssertion},
		{name: "only provisioning errors", err: &hctesting.SuiteError{Errored: 2, Provisioning: 2}, want: ExitCodeProvisioning},
		{name: "mixed errors", err: &hctesting.SuiteError{Errored: 2, Provisioning: 1}, want: ExitCodeError},
		{name: "provisioning error", err: fmt.Errorf("setup: %w", provisioning), want: ExitCodeProvisioning},
		{name: "bind error", err: &mock.BindError{Port: 8580, Err: errors.New("in use")}, want: ExitCodeProvisioning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestInitLogging(t *testing.T) {
	originalFormat := logFormat
	defer func() {
		logFormat = originalFormat
		logging.InitForCLI(logging.LevelWarn, io.Discard)
	}()

	cmd := &cobra.Command{Use: "test"}
	var buf bytes.Buffer
	cmd.SetErr(&buf)

	for _, format := range []string{"text", "json", ""} {
		logFormat = format
		if err := initLogging(cmd); err != nil {
			t.Errorf("initLogging(%q) returned %v", format, err)
		}
	}

	logFormat = "xml"
	err := initLogging(cmd)
	if err == nil || !strings.Contains(err.Error(), "invalid log format") {
		t.Errorf("Expected invalid log format error, got %v", err)
	}
}
