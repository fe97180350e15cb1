package testing

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"hookcheck/internal/template"
	"hookcheck/pkg/logging"
)

// ScenarioContext holds the values a scenario's templates can reference:
// built-ins, the scenario's declared variables and values captured from
// trigger responses.
type ScenarioContext struct {
	builtins      map[string]interface{}
	storedResults map[string]interface{} // captured values by variable name
	mu            sync.RWMutex
}

// NewScenarioContext creates a context seeded with built-ins and the
// scenario's variables. Variables may themselves reference built-ins.
func NewScenarioContext(builtins, variables map[string]interface{}) (*ScenarioContext, error) {
	sc := &ScenarioContext{
		builtins:      template.MergeContexts(builtins),
		storedResults: make(map[string]interface{}),
	}

	if len(variables) > 0 {
		resolved, err := template.New().Replace(variables, sc.builtins)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve scenario variables: %w", err)
		}
		for k, v := range resolved.(map[string]interface{}) {
			sc.builtins[k] = v
		}
	}
	return sc, nil
}

// StoreResult stores a captured value under the given variable name
func (sc *ScenarioContext) StoreResult(name string, result interface{}) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.storedResults[name] = result
	logging.Debug("TestFramework", "Stored result for variable '%s': %v", name, result)
}

// GetStoredResult retrieves a captured value by variable name
func (sc *ScenarioContext) GetStoredResult(name string) (interface{}, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	result, exists := sc.storedResults[name]
	return result, exists
}

// Values returns a merged copy of every value visible to templates.
// Captured values override variables of the same name.
func (sc *ScenarioContext) Values() map[string]interface{} {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return template.MergeContexts(sc.builtins, sc.storedResults)
}

// TemplateProcessor resolves templates in trigger bodies, paths and
// expected payloads against a scenario context.
type TemplateProcessor struct {
	context *ScenarioContext
	engine  *template.Engine
}

// NewTemplateProcessor creates a new template processor with the given scenario context
func NewTemplateProcessor(context *ScenarioContext) *TemplateProcessor {
	return &TemplateProcessor{
		context: context,
		engine:  template.New(),
	}
}

// Resolve renders any value: strings, maps and slices are rendered
// recursively, anything else is returned as-is.
func (tp *TemplateProcessor) Resolve(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	resolved, err := tp.engine.Replace(value, tp.context.Values())
	if err != nil {
		return nil, err
	}
	logging.Debug("TestFramework", "Template resolution completed. Original: %v, Resolved: %v", value, resolved)
	return resolved, nil
}

// ResolveString renders a template string such as a trigger path.
func (tp *TemplateProcessor) ResolveString(text string) (string, error) {
	return tp.engine.RenderString(text, tp.context.Values())
}

// ResolvePayload renders an expected payload map.
func (tp *TemplateProcessor) ResolvePayload(payload map[string]interface{}) (map[string]interface{}, error) {
	if payload == nil {
		return nil, nil
	}
	resolved, err := tp.Resolve(payload)
	if err != nil {
		return nil, err
	}
	resolvedMap, ok := resolved.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("template resolution returned unexpected type: %T", resolved)
	}
	return resolvedMap, nil
}

// Capture extracts each configured dotted path from a decoded response and
// stores it in the scenario context.
func (tp *TemplateProcessor) Capture(response interface{}, capture map[string]string) error {
	for name, path := range capture {
		value, err := lookupPath(response, path)
		if err != nil {
			return fmt.Errorf("capture %q: %w", name, err)
		}
		tp.context.StoreResult(name, value)
	}
	return nil
}

// lookupPath walks a decoded JSON value along a dotted path. Numeric
// segments index into arrays.
func lookupPath(value interface{}, path string) (interface{}, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}

	current := value
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[segment]
			if !ok {
				return nil, fmt.Errorf("path %q: key %q not found", path, segment)
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("path %q: invalid index %q", path, segment)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("path %q: cannot descend into %T at %q", path, current, segment)
		}
	}
	return current, nil
}
