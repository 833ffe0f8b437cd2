package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		number   int
		expected string
	}{
		{"single digit", 5, "5"},
		{"double digit", 42, "42"},
		{"triple digit", 999, "999"},
		{"thousands", 1234, "1,234"},
		{"ten thousands", 12345, "12,345"},
		{"millions", 1234567, "1,234,567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := formatNumber(tt.number)
			assert.Equal(t, tt.expected, result)
		})
	}
}
