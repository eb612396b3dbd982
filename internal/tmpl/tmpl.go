// Package tmpl implements placeholder substitution for hook action
// parameters: every {{name}} is replaced by a context variable, then an
// environment variable, or left untouched when neither defines it.
// Authors may emit literal braces on purpose, so unresolved
// placeholders pass through instead of failing the action.
package tmpl

import (
	"fmt"
	"regexp"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// Expand performs a single left-to-right pass over s. Replacement text
// is never rescanned, so substitution does not recurse.
func Expand(s string, vars map[string]any, env map[string]string) string {
	if s == "" {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return formatValue(v)
		}
		if v, ok := env[name]; ok {
			return v
		}
		return match
	})
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
