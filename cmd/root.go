package cmd

import (
	"errors"
	"fmt"
	"os"

	"hookcheck/internal/config"
	"hookcheck/internal/testing"
	"hookcheck/internal/testing/mock"
	"hookcheck/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
// CI pipelines rely on them to tell broken infrastructure from broken events.
const (
	// ExitCodeSuccess indicates that every scenario passed.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeProvisioning indicates that a receiver or subscription could not be set up.
	ExitCodeProvisioning = 2
	// ExitCodeAssertion indicates that at least one webhook expectation failed.
	ExitCodeAssertion = 3
)

var (
	configPath string
	debug      bool
	logFormat  string
)

// rootCmd represents the base command for the hookcheck application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hookcheck",
	Short: "Verify the webhook events an identity platform emits",
	Long: `hookcheck subscribes a local receiver to an identity platform's webhook
channels, drives the platform through its API and checks that the expected
security events arrive with the expected payloads.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	// This is useful for providing cleaner error output to the user.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(cmd)
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "hookcheck version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	if errors.Is(err, testing.ErrAssertionFailed) {
		return ExitCodeAssertion
	}

	var suiteErr *testing.SuiteError
	if errors.As(err, &suiteErr) && suiteErr.OnlyProvisioning() {
		return ExitCodeProvisioning
	}

	var provErr *testing.ProvisioningError
	if errors.As(err, &provErr) {
		return ExitCodeProvisioning
	}

	var bindErr *mock.BindError
	if errors.As(err, &bindErr) {
		return ExitCodeProvisioning
	}

	return ExitCodeError
}

// initLogging routes structured logs to stderr so stdout stays free for
// reports and the MCP stdio transport.
func initLogging(cmd *cobra.Command) error {
	level := logging.LevelInfo
	if debug {
		level = logging.LevelDebug
	}

	switch logFormat {
	case "", "text":
		logging.InitForCLI(level, cmd.ErrOrStderr())
	case "json":
		logging.InitJSON(level, cmd.ErrOrStderr())
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", logFormat)
	}
	return nil
}

// loadHarnessConfig loads the file named by --config, falling back to
// ~/.config/hookcheck/config.yaml. Configuration errors are printed in
// full to the command's stderr.
func loadHarnessConfig(cmd *cobra.Command) (config.HarnessConfig, error) {
	path := configPath
	if path == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err != nil {
			return config.GetDefaultConfig(), nil
		}
		path = defaultPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		var cfgErr config.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(cmd.ErrOrStderr(), cfgErr.DetailedError())
		}
		return config.HarnessConfig{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Harness config file (default is $HOME/.config/hookcheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging and delivery dumps")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text, json)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveDefault
	})
}
