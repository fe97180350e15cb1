package template

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine renders scenario fixtures. String values are executed as Go
// templates with the sprig function library; maps and slices are walked
// recursively and everything else is returned unchanged.
type Engine struct {
	// Pattern matching a value that is exactly one variable reference
	wholeValuePattern *regexp.Regexp
	funcs             template.FuncMap
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		wholeValuePattern: regexp.MustCompile(`^\{\{\s*\.?([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}$`),
		funcs:             sprig.TxtFuncMap(),
	}
}

// Replace renders every template in value against context.
//
// A string that consists of a single reference such as "{{ .count }}" is
// replaced by the referenced value itself, so numbers and booleans keep
// their JSON type in rendered payloads.
func (e *Engine) Replace(value interface{}, context map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return e.replaceString(v, context)
	case map[string]interface{}:
		return e.replaceMap(v, context)
	case []interface{}:
		return e.replaceSlice(v, context)
	default:
		return value, nil
	}
}

// RenderString renders a single template string and always returns text.
func (e *Engine) RenderString(text string, context map[string]interface{}) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("fixture").Funcs(e.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid template %q: %w", text, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return "", fmt.Errorf("failed to render %q: %w", text, err)
	}
	return buf.String(), nil
}

func (e *Engine) replaceString(text string, context map[string]interface{}) (interface{}, error) {
	if match := e.wholeValuePattern.FindStringSubmatch(text); match != nil {
		value, exists := context[match[1]]
		if !exists {
			return nil, fmt.Errorf("missing template variables: %s", match[1])
		}
		return value, nil
	}
	return e.RenderString(text, context)
}

func (e *Engine) replaceMap(m map[string]interface{}, context map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m))

	for key, value := range m {
		replacedValue, err := e.Replace(value, context)
		if err != nil {
			return nil, fmt.Errorf("error in key '%s': %w", key, err)
		}
		result[key] = replacedValue
	}

	return result, nil
}

func (e *Engine) replaceSlice(s []interface{}, context map[string]interface{}) ([]interface{}, error) {
	result := make([]interface{}, len(s))

	for i, value := range s {
		replacedValue, err := e.Replace(value, context)
		if err != nil {
			return nil, fmt.Errorf("error at index %d: %w", i, err)
		}
		result[i] = replacedValue
	}

	return result, nil
}
