package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"backup-2024-01-15", "backup-2024-01-15"},
		{"My Documents", "my_documents"},
		{"home/user data", "home_user_data"},
		{"weird:name!", "weird_name_"},
		{"UPPER_case", "upper_case"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, SafeName(tt.in), "in=%q", tt.in)
	}
}
