package testing

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"
)

// scenarioLoader implements the TestScenarioLoader interface
type scenarioLoader struct {
	debug  bool
	logger TestLogger
}

// NewTestScenarioLoader creates a new test scenario loader
func NewTestScenarioLoader(debug bool) TestScenarioLoader {
	return &scenarioLoader{
		debug:  debug,
		logger: NewStdoutLogger(false, debug),
	}
}

// NewTestScenarioLoaderWithLogger creates a new test scenario loader with custom logger
func NewTestScenarioLoaderWithLogger(debug bool, logger TestLogger) TestScenarioLoader {
	return &scenarioLoader{
		debug:  debug,
		logger: logger,
	}
}

// LoadScenarios loads test scenarios from the given file or directory
func (l *scenarioLoader) LoadScenarios(scenarioPath string) ([]TestScenario, error) {
	var scenarios []TestScenario

	if l.debug {
		l.logger.Debug("📁 Loading test scenarios from: %s\n", scenarioPath)
	}

	info, err := os.Stat(scenarioPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("scenario path does not exist: %s", scenarioPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario path: %w", err)
	}

	if info.IsDir() {
		scenarios, err = l.loadScenariosFromDirectory(scenarioPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenarios from directory: %w", err)
		}
	} else {
		scenario, err := l.loadScenarioFromFile(scenarioPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario from file: %w", err)
		}
		scenarios = append(scenarios, scenario)
	}

	if err := checkUniqueNames(scenarios); err != nil {
		return nil, err
	}

	if l.debug {
		l.logger.Debug("📋 Loaded %d test scenarios\n", len(scenarios))
		for _, scenario := range scenarios {
			l.logger.Debug("  • %s - %d triggers, %d expectations\n",
				scenario.Name, len(scenario.Triggers), len(scenario.Expectations))
		}
	}

	return scenarios, nil
}

// loadScenariosFromDirectory loads all YAML scenario files below a directory
func (l *scenarioLoader) loadScenariosFromDirectory(dirPath string) ([]TestScenario, error) {
	var scenarios []TestScenario

	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAMLFile(path) {
			return nil
		}

		if l.debug {
			l.logger.Debug("📄 Loading scenario file: %s\n", path)
		}

		scenario, err := l.loadScenarioFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to load scenario from %s: %w", path, err)
		}

		scenarios = append(scenarios, scenario)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}

	return scenarios, nil
}

// loadScenarioFromFile loads a single scenario from a YAML file
func (l *scenarioLoader) loadScenarioFromFile(filePath string) (TestScenario, error) {
	var scenario TestScenario

	content, err := os.ReadFile(filePath)
	if err != nil {
		return scenario, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	// sigs.k8s.io/yaml goes through JSON, so payload numbers decode as
	// float64 exactly like webhook deliveries do.
	if err := yaml.UnmarshalStrict(content, &scenario); err != nil {
		return scenario, fmt.Errorf("failed to parse YAML in %s: %w", filePath, err)
	}

	if err := validateRequiredFields(scenario); err != nil {
		return scenario, fmt.Errorf("invalid scenario in %s: %w", filePath, err)
	}

	return scenario, nil
}

// validateRequiredFields checks the fields without which a scenario cannot run
func validateRequiredFields(scenario TestScenario) error {
	if scenario.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if scenario.EndpointPath == "" {
		return fmt.Errorf("scenario endpoint_path is required")
	}
	if scenario.EventProfile == "" {
		return fmt.Errorf("scenario event_profile is required")
	}
	if len(scenario.Channels) == 0 {
		return fmt.Errorf("scenario must subscribe to at least one channel")
	}
	if len(scenario.Expectations) == 0 {
		return fmt.Errorf("scenario must have at least one expectation")
	}

	for i, trigger := range scenario.Triggers {
		if trigger.Path == "" {
			return fmt.Errorf("trigger %d: path is required", i+1)
		}
	}
	for i, expectation := range scenario.Expectations {
		if expectation.EventURI == "" {
			return fmt.Errorf("expectation %d: event_uri is required", i+1)
		}
	}

	return nil
}

func checkUniqueNames(scenarios []TestScenario) error {
	seen := make(map[string]bool, len(scenarios))
	for _, scenario := range scenarios {
		if seen[scenario.Name] {
			return fmt.Errorf("duplicate scenario name: %s", scenario.Name)
		}
		seen[scenario.Name] = true
	}
	return nil
}

// FilterScenarios filters scenarios by name and tags. A scenario matches the
// tag filter when it carries any of the requested tags. Results are sorted
// by name.
func (l *scenarioLoader) FilterScenarios(scenarios []TestScenario, config TestConfiguration) []TestScenario {
	if l.debug {
		l.logger.Debug("🔍 Filtering scenarios based on configuration\n")
		l.logger.Debug("  • Scenario filter: %s\n", config.Scenario)
		l.logger.Debug("  • Tag filter: %s\n", strings.Join(config.Tags, ","))
	}

	var filtered []TestScenario
	for _, scenario := range scenarios {
		if config.Scenario != "" && scenario.Name != config.Scenario {
			continue
		}
		if len(config.Tags) > 0 && !hasAnyTag(scenario, config.Tags) {
			continue
		}
		filtered = append(filtered, scenario)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Name < filtered[j].Name
	})

	if l.debug {
		l.logger.Debug("📊 Filtered to %d scenarios\n", len(filtered))
	}

	return filtered
}

func hasAnyTag(scenario TestScenario, tags []string) bool {
	for _, tag := range tags {
		if slices.Contains(scenario.Tags, tag) {
			return true
		}
	}
	return false
}

// isYAMLFile checks if a file has a YAML extension
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// GetScenarioNames returns all scenario names
func GetScenarioNames(scenarios []TestScenario) []string {
	names := make([]string, 0, len(scenarios))
	for _, scenario := range scenarios {
		names = append(names, scenario.Name)
	}
	return names
}

// GetDefaultScenarioPath returns the default path for test scenarios
func GetDefaultScenarioPath() string {
	return "scenarios"
}

// GetScenarioPath determines the actual scenario path to use, handling empty/default cases
func GetScenarioPath(scenarioPath string) string {
	if scenarioPath == "" {
		return GetDefaultScenarioPath()
	}
	return scenarioPath
}

// LoadAndFilterScenarios loads scenarios from the configured path and applies
// the configured filters.
func LoadAndFilterScenarios(config TestConfiguration, logger TestLogger) ([]TestScenario, error) {
	actualPath := GetScenarioPath(config.ScenarioPath)

	var loader TestScenarioLoader
	if logger != nil {
		loader = NewTestScenarioLoaderWithLogger(config.Debug, logger)
	} else {
		loader = NewTestScenarioLoader(config.Debug)
	}

	scenarios, err := loader.LoadScenarios(actualPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios from %s: %w", actualPath, err)
	}

	return loader.FilterScenarios(scenarios, config), nil
}

// LoadScenariosForCompletion loads scenarios for shell completion, returning
// an empty list instead of an error.
func LoadScenariosForCompletion(scenarioPath string) []TestScenario {
	scenarios, err := NewTestScenarioLoader(false).LoadScenarios(GetScenarioPath(scenarioPath))
	if err != nil {
		return nil
	}
	return scenarios
}
