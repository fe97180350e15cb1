package testing

import (
	"fmt"
	"time"

	"hookcheck/internal/client"
	"hookcheck/internal/config"
	"hookcheck/internal/testing/mock"
)

// ExecutionMode selects how the framework reports progress.
type ExecutionMode int

const (
	// ExecutionModeCLI writes progress and results to stdout
	ExecutionModeCLI ExecutionMode = iota
	// ExecutionModeQuiet prints only failures and the final summary
	ExecutionModeQuiet
	// ExecutionModeJSON prints the suite result as JSON when done
	ExecutionModeJSON
	// ExecutionModeMCPServer captures results without touching stdio
	ExecutionModeMCPServer
)

// DefaultTestConfiguration returns a default test configuration
func DefaultTestConfiguration() TestConfiguration {
	return TestConfiguration{
		Timeout:      10 * time.Minute,
		Parallel:     1,
		ScenarioPath: GetDefaultScenarioPath(),
	}
}

// FrameworkOptions controls logging and reporting of a TestFramework.
type FrameworkOptions struct {
	Mode       ExecutionMode
	Verbose    bool
	Debug      bool
	ReportPath string
}

// TestFramework holds all components needed for testing
type TestFramework struct {
	Runner      TestRunner
	Client      *client.Client
	Loader      TestScenarioLoader
	Reporter    TestReporter
	Environment Environment
	Logger      TestLogger
}

// NewTestFramework creates a fully configured test framework from the
// harness configuration.
func NewTestFramework(cfg config.HarnessConfig, opts FrameworkOptions) (*TestFramework, error) {
	var logger TestLogger
	if opts.Mode == ExecutionModeMCPServer {
		logger = NewSilentLogger(opts.Verbose, opts.Debug)
	} else {
		logger = NewStdoutLogger(opts.Verbose, opts.Debug)
	}

	apiClient, err := client.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity platform client: %w", err)
	}

	env, err := EnvironmentFromConfig(cfg, apiClient)
	if err != nil {
		return nil, err
	}

	var reporter TestReporter
	switch opts.Mode {
	case ExecutionModeQuiet:
		reporter = NewQuietReporter()
	case ExecutionModeJSON:
		reporter = NewJSONReporter()
	case ExecutionModeMCPServer:
		reporter = NewStructuredReporter(opts.Verbose, opts.Debug, opts.ReportPath)
	default:
		reporter = NewTestReporter(opts.Verbose, opts.Debug, opts.ReportPath)
	}
	// only the console reporter writes the report itself
	if opts.Mode == ExecutionModeQuiet || opts.Mode == ExecutionModeJSON {
		reporter = withReportFile(reporter, opts.ReportPath)
	}

	runner := NewTestRunner(RunnerOptions{
		Environment: env,
		Triggers:    apiClient,
		Tenant:      cfg.Server.Tenant,
		TenantBase:  apiClient.TenantBase(),
		Reporter:    reporter,
		Logger:      logger,
		Interactive: opts.Mode == ExecutionModeCLI,
		Debug:       opts.Debug,
	})

	return &TestFramework{
		Runner:      runner,
		Client:      apiClient,
		Loader:      NewTestScenarioLoaderWithLogger(opts.Debug, logger),
		Reporter:    reporter,
		Environment: env,
		Logger:      logger,
	}, nil
}

// EnvironmentFromConfig builds the per-scenario provisioning environment.
func EnvironmentFromConfig(cfg config.HarnessConfig, webhooks WebhookClient) (Environment, error) {
	ports, err := NewPortAllocator(cfg.Receiver.PortStart, cfg.Receiver.PortLimit)
	if err != nil {
		return Environment{}, fmt.Errorf("invalid receiver port range: %w", err)
	}

	profiles := DefaultEventProfileURIs()
	for name, uri := range cfg.Webhooks.EventProfiles {
		profiles[name] = uri
	}

	return Environment{
		Client: webhooks,
		Ports:  ports,
		Receiver: mock.ReceiverConfig{
			Host:              cfg.Receiver.Host,
			Scheme:            cfg.Receiver.Scheme,
			BindAddress:       cfg.Receiver.BindAddress,
			BindRetries:       cfg.Receiver.BindRetries,
			BindRetryInterval: cfg.Receiver.BindRetryInterval,
			ReadyTimeout:      cfg.Receiver.ReadyTimeout,
			MaxBodyBytes:      cfg.Receiver.MaxBodyBytes,
			MetricsPath:       cfg.Receiver.MetricsPath,
		},
		EventProfileURIs: profiles,
		Secret:           cfg.Webhooks.Secret,
		SettleDelay:      cfg.Receiver.SettleDelay,
	}, nil
}

// ValidateConfiguration validates a test configuration
func ValidateConfiguration(config TestConfiguration) error {
	if config.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if config.Parallel < 1 {
		return fmt.Errorf("parallel workers must be at least 1")
	}
	return nil
}

// reportFileReporter writes the detailed JSON report after delegating.
type reportFileReporter struct {
	TestReporter
	reportPath string
	logger     TestLogger
}

func withReportFile(reporter TestReporter, reportPath string) TestReporter {
	if reportPath == "" {
		return reporter
	}
	return &reportFileReporter{TestReporter: reporter, reportPath: reportPath, logger: NewStdoutLogger(false, false)}
}

func (r *reportFileReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	r.TestReporter.ReportSuiteResult(suiteResult)
	if _, err := SaveDetailedReport(r.reportPath, suiteResult); err != nil {
		r.logger.Error("⚠️  Failed to save detailed report: %v\n", err)
	}
}
