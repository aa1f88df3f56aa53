package meli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveRedirectURI(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		expected string
	}{
		{
			name:     "localhost keeps plain http",
			origin:   "http://localhost:3000",
			expected: "http://localhost:3000/",
		},
		{
			name:     "plain http forced to https",
			origin:   "http://example.app",
			expected: "https://example.app/",
		},
		{
			name:     "https stays https",
			origin:   "https://example.app",
			expected: "https://example.app/",
		},
		{
			name:     "trailing slash not duplicated",
			origin:   "https://example.app/",
			expected: "https://example.app/",
		},
		{
			name:     "absent origin fails closed",
			origin:   "",
			expected: RedirectURIPlaceholder,
		},
		{
			name:     "literal null origin fails closed",
			origin:   "null",
			expected: RedirectURIPlaceholder,
		},
		{
			name:     "blob origin fails closed",
			origin:   "blob:https://example.app/8a1d",
			expected: RedirectURIPlaceholder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, DeriveRedirectURI(tt.origin))
		})
	}
}
