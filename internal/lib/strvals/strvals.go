// Package strvals parses the comma separated `key=value` configuration lines
// used by the --log-output and --traces-output flags.
package strvals

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyKey is returned when a token has a value but no key, e.g. `=value`.
var ErrEmptyKey = errors.New("empty key")

// Token is a single key/value pair of a configuration line. Value is empty
// for bare keys like `otel`.
type Token struct {
	Key   string
	Value string
}

// Parse splits line into tokens, keeping their order. Values may contain `=`,
// only the first one separates the key. Values may be wrapped in double quotes
// to include commas.
func Parse(line string) ([]Token, error) {
	var tokens []Token
	for _, part := range splitOutsideQuotes(line) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("%w in %q", ErrEmptyKey, part)
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		tokens = append(tokens, Token{Key: key, Value: value})
	}
	return tokens, nil
}

func splitOutsideQuotes(line string) []string {
	var (
		parts   []string
		current strings.Builder
		quoted  bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			current.WriteRune(r)
		case r == ',' && !quoted:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(parts, current.String())
}
