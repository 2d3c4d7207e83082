// Package template implements the versioned template store and the pure
// variable-substitution renderer: {{var[|filter...][|default:"..."]}}.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{(.+?)\}\}`)
var variableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.|:"']+$`)

// FilterFunc transforms a resolved placeholder value.
type FilterFunc func(string) string

// DefaultFilters is the fixed registry: upper, lower, capitalize, truncate.
var DefaultFilters = map[string]FilterFunc{
	"upper":      strings.ToUpper,
	"lower":      strings.ToLower,
	"capitalize": capitalize,
	"truncate":   truncate(50),
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func truncate(n int) FilterFunc {
	return func(s string) string {
		if len(s) > n {
			return s[:n] + "..."
		}
		return s
	}
}

// RenderString substitutes every {{...}} placeholder in template using
// variables, applying filters left-to-right and falling back to a
// |default:"..." value, or the literal placeholder, when the path is
// missing.
func RenderString(tmpl string, variables map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		inner := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		return resolvePlaceholder(inner, variables)
	})
}

func resolvePlaceholder(inner string, variables map[string]any) string {
	varName, filterNames, defaultValue, hasDefault := parsePlaceholder(inner)

	value, found := getNestedValue(variables, varName)
	if !found {
		if hasDefault {
			return applyFilters(defaultValue, filterNames)
		}
		return "{{" + inner + "}}"
	}

	return applyFilters(toString(value), filterNames)
}

// parsePlaceholder splits "var|filter1|filter2|default:\"fallback\"" into
// the variable path, the ordered filter names, and an optional default.
func parsePlaceholder(inner string) (varName string, filters []string, defaultValue string, hasDefault bool) {
	parts := strings.Split(inner, "|")
	varName = strings.TrimSpace(parts[0])

	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "default:") {
			raw := strings.TrimPrefix(p, "default:")
			if unquoted, err := strconv.Unquote(raw); err == nil {
				defaultValue = unquoted
			} else {
				defaultValue = strings.Trim(raw, `"'`)
			}
			hasDefault = true
			continue
		}
		filters = append(filters, p)
	}

	return varName, filters, defaultValue, hasDefault
}

func applyFilters(value string, filterNames []string) string {
	for _, name := range filterNames {
		if f, ok := DefaultFilters[name]; ok {
			value = f(value)
		}
	}
	return value
}

// getNestedValue resolves a dot-path against a map[string]any, left to
// right, returning found=false on any missing segment or type mismatch.
func getNestedValue(data map[string]any, path string) (any, bool) {
	keys := strings.Split(path, ".")
	var current any = data

	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, exists := m[key]
		if !exists {
			return nil, false
		}
		current = value
	}

	if current == nil {
		return nil, false
	}
	return current, true
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// ValidateSyntax checks balanced braces and that every placeholder's inner
// content matches [A-Za-z0-9_.|:"']+.
func ValidateSyntax(tmpl string) (bool, []string) {
	var errs []string

	if strings.Count(tmpl, "{{") != strings.Count(tmpl, "}}") {
		errs = append(errs, "unclosed template braces")
	}

	for _, match := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		inner := strings.TrimSpace(match[1])
		if !variableNamePattern.MatchString(inner) {
			errs = append(errs, "invalid variable name: "+inner)
		}
	}

	return len(errs) == 0, errs
}

// ExtractRequiredVariables returns the distinct variable paths referenced
// without a |default: fallback.
func ExtractRequiredVariables(tmpl string) []string {
	seen := map[string]bool{}
	var required []string

	for _, match := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		inner := strings.TrimSpace(match[1])
		if strings.Contains(inner, "|default:") {
			continue
		}
		varName := strings.TrimSpace(strings.Split(inner, "|")[0])
		if !seen[varName] {
			seen[varName] = true
			required = append(required, varName)
		}
	}

	return required
}
