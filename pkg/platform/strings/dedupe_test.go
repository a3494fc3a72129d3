package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  example.edu  ", "lib.org  "},
			expected: []string{"example.edu", "lib.org"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"b.org", "a.org", "b.org", "c.org", "a.org"},
			expected: []string{"b.org", "a.org", "c.org"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"a.org", "", "  ", "b.org"},
			expected: []string{"a.org", "b.org"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestAnyContains(t *testing.T) {
	referrers := []string{"search.example.edu", "10.0.0.1"}

	assert.True(t, AnyContains(referrers, "example.edu"))
	assert.True(t, AnyContains(referrers, "10.0.0"))
	assert.False(t, AnyContains(referrers, "other.org"))
	assert.False(t, AnyContains(referrers, ""))
	assert.False(t, AnyContains(nil, "example.edu"))

	assert.True(t, AnyContainsAny(referrers, []string{"nope.org", "example.edu"}))
	assert.False(t, AnyContainsAny(referrers, nil))
}
