// Package dates parses user-entered date lists.
package dates

import "strings"

// Parse splits input on newlines and commas, trims every token and drops empty ones
func Parse(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == '\n' || r == ',' || r == '\r'
	})
	return Filter(fields)
}

// Filter trims tokens and removes the empty ones, keeping order
func Filter(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
