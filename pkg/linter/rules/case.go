package rules

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	pascalCase     = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	snakeCase      = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	upperSnakeCase = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// isPascalCase checks if a string is in PascalCase
func isPascalCase(s string) bool {
	return pascalCase.MatchString(s)
}

// isSnakeCase checks if a string is in lower_snake_case
func isSnakeCase(s string) bool {
	return snakeCase.MatchString(s) && !strings.Contains(s, "__") && !strings.HasSuffix(s, "_")
}

// isUpperSnakeCase checks if a string is in UPPER_SNAKE_CASE
func isUpperSnakeCase(s string) bool {
	return upperSnakeCase.MatchString(s) && !strings.Contains(s, "__") && !strings.HasSuffix(s, "_")
}

// words splits an identifier at underscores and lower-to-upper case
// boundaries.
func words(s string) []string {
	var out []string
	var cur []rune
	runes := []rune(s)
	for i, r := range runes {
		if r == '_' {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				out = append(out, string(cur))
				cur = nil
			}
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

// toPascalCase converts a string to PascalCase
func toPascalCase(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// toSnakeCase converts a string to lower_snake_case
func toSnakeCase(s string) string {
	return strings.ToLower(strings.Join(words(s), "_"))
}

// toUpperSnakeCase converts a string to UPPER_SNAKE_CASE
func toUpperSnakeCase(s string) string {
	return strings.ToUpper(strings.Join(words(s), "_"))
}
