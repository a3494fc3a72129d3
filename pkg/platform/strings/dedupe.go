// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  example.edu ", "lib.org", "example.edu", ""})
//	// Returns: []string{"example.edu", "lib.org"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// AnyContains reports whether any of values contains needle as a substring.
// An empty needle never matches.
func AnyContains(values []string, needle string) bool {
	if needle == "" {
		return false
	}
	for _, v := range values {
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

// AnyContainsAny reports whether some needle is a substring of some value.
func AnyContainsAny(values, needles []string) bool {
	for _, n := range needles {
		if AnyContains(values, n) {
			return true
		}
	}
	return false
}
