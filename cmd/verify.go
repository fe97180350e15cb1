package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hookcheck/internal/config"
	"hookcheck/internal/testing"

	"github.com/spf13/cobra"
)

var (
	verifyScenarioPath string
	verifyScenario     string
	verifyTags         []string
	verifyParallel     int
	verifyFailFast     bool
	verifyTimeout      time.Duration
	verifyReportPath   string
	verifyVerbose      bool
	verifyOutput       string
	verifyValidateOnly bool
)

// completeScenarioFlag provides shell completion for the scenario flag by loading available scenarios
func completeScenarioFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	scenarios := testing.LoadScenariosForCompletion(verifyScenarioPath)
	return testing.GetScenarioNames(scenarios), cobra.ShellCompDirectiveNoFileComp
}

// completeTagFlag offers every tag used by the available scenarios
func completeTagFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	seen := make(map[string]bool)
	var tags []string
	for _, scenario := range testing.LoadScenariosForCompletion(verifyScenarioPath) {
		for _, tag := range scenario.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags, cobra.ShellCompDirectiveNoFileComp
}

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run webhook verification scenarios against the identity platform",
	Long: `The verify command runs webhook verification scenarios.

For every scenario hookcheck starts a mock receiver on a free port, registers a
webhook subscription for the scenario's event channels, calls the platform API
as the scenario's triggers describe and then checks the deliveries against the
expected event payloads. The subscription and the receiver are removed when
the scenario ends, whatever its outcome.

Scenario files are YAML. A directory is searched recursively for *.yaml and
*.yml files.

Exit codes:
  0  every scenario passed
  1  general error (bad flags, unreadable scenarios or config)
  2  receivers or subscriptions could not be provisioned
  3  at least one webhook expectation failed

Example usage:
  hookcheck verify --scenarios ./scenarios
  hookcheck verify --scenarios ./scenarios --scenario login-success
  hookcheck verify --scenarios ./scenarios --tag login --parallel 4
  hookcheck verify --scenarios ./scenarios --fail-fast --report ./reports
  hookcheck verify --scenarios ./scenarios --output json
  hookcheck verify --scenarios ./scenarios --validate-only`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if verifyParallel < 1 || verifyParallel > 50 {
			return fmt.Errorf("parallel workers must be between 1 and 50, got %d", verifyParallel)
		}
		if _, err := executionMode(verifyOutput); err != nil {
			return err
		}
		return nil
	},
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyScenarioPath, "scenarios", testing.GetDefaultScenarioPath(), "Scenario file or directory")
	verifyCmd.Flags().StringVar(&verifyScenario, "scenario", "", "Run a single scenario by name")
	verifyCmd.Flags().StringSliceVar(&verifyTags, "tag", nil, "Run scenarios carrying any of these tags")

	verifyCmd.Flags().IntVar(&verifyParallel, "parallel", 1, "Number of scenarios run concurrently (1-50)")
	verifyCmd.Flags().BoolVar(&verifyFailFast, "fail-fast", false, "Stop scheduling scenarios after the first failure")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 10*time.Minute, "Overall execution timeout")

	verifyCmd.Flags().StringVar(&verifyReportPath, "report", "", "Directory to save a detailed JSON report to")
	verifyCmd.Flags().BoolVar(&verifyVerbose, "verbose", false, "Show triggers and subscriptions while running")
	verifyCmd.Flags().StringVarP(&verifyOutput, "output", "o", "text", "Output format (text, quiet, json)")

	verifyCmd.Flags().BoolVar(&verifyValidateOnly, "validate-only", false, "Check scenario definitions without contacting the platform")

	_ = verifyCmd.RegisterFlagCompletionFunc("scenario", completeScenarioFlag)
	_ = verifyCmd.RegisterFlagCompletionFunc("tag", completeTagFlag)
	_ = verifyCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "quiet", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	verifyCmd.MarkFlagsMutuallyExclusive("validate-only", "fail-fast")
	verifyCmd.MarkFlagsMutuallyExclusive("validate-only", "parallel")
	verifyCmd.MarkFlagsMutuallyExclusive("validate-only", "report")
}

// executionMode maps the --output flag to a reporting mode
func executionMode(output string) (testing.ExecutionMode, error) {
	switch output {
	case "", "text":
		return testing.ExecutionModeCLI, nil
	case "quiet":
		return testing.ExecutionModeQuiet, nil
	case "json":
		return testing.ExecutionModeJSON, nil
	default:
		return testing.ExecutionModeCLI, fmt.Errorf("invalid output format '%s', must be 'text', 'quiet' or 'json'", output)
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupts gracefully; deferred teardown removes subscriptions
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt signal, tearing down subscriptions...")
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := loadHarnessConfig(cmd)
	if err != nil {
		return err
	}

	testConfig := testing.TestConfiguration{
		Timeout:      verifyTimeout,
		Scenario:     verifyScenario,
		Tags:         verifyTags,
		Parallel:     verifyParallel,
		FailFast:     verifyFailFast,
		Verbose:      verifyVerbose,
		Debug:        debug,
		ScenarioPath: verifyScenarioPath,
		ReportPath:   verifyReportPath,
	}
	if err := testing.ValidateConfiguration(testConfig); err != nil {
		return err
	}

	if verifyValidateOnly {
		return runScenarioValidation(cmd, cfg, testConfig)
	}

	mode, err := executionMode(verifyOutput)
	if err != nil {
		return err
	}

	framework, err := testing.NewTestFramework(cfg, testing.FrameworkOptions{
		Mode:       mode,
		Verbose:    verifyVerbose,
		Debug:      debug,
		ReportPath: verifyReportPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create test framework: %w", err)
	}

	scenarioPath := testing.GetScenarioPath(verifyScenarioPath)
	scenarios, err := framework.Loader.LoadScenarios(scenarioPath)
	if err != nil {
		return fmt.Errorf("failed to load test scenarios: %w", err)
	}
	scenarios = framework.Loader.FilterScenarios(scenarios, testConfig)

	if len(scenarios) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  No scenarios selected from %s\n", scenarioPath)
		return nil
	}

	result, err := framework.Runner.Run(ctx, testConfig, scenarios)
	if err != nil {
		return fmt.Errorf("test execution failed: %w", err)
	}

	return testing.CheckSuiteResult(result)
}

// runScenarioValidation checks the selected scenarios offline and prints
// the issues found.
func runScenarioValidation(cmd *cobra.Command, cfg config.HarnessConfig, testConfig testing.TestConfiguration) error {
	scenarios, err := testing.LoadAndFilterScenarios(testConfig, testing.NewStdoutLogger(verifyVerbose, debug))
	if err != nil {
		return err
	}

	results := testing.ValidateScenarios(scenarios, eventProfileURIs(cfg))
	fmt.Fprint(cmd.OutOrStdout(), testing.FormatValidationResults(results, verifyVerbose))

	if results.ValidScenarios < results.TotalScenarios {
		return fmt.Errorf("%d of %d scenario(s) are invalid", results.TotalScenarios-results.ValidScenarios, results.TotalScenarios)
	}
	return nil
}

// eventProfileURIs merges the configured event profiles over the built-in ones.
func eventProfileURIs(cfg config.HarnessConfig) map[string]string {
	profiles := testing.DefaultEventProfileURIs()
	for name, uri := range cfg.Webhooks.EventProfiles {
		profiles[name] = uri
	}
	return profiles
}
