package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_AddressValidation(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		expected string
	}{
		{"Port without colon", "9090", ":9090"},
		{"Port with colon", ":9090", ":9090"},
		{"Full address", "localhost:9090", "localhost:9090"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateAddress(tt.address)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestConfig_BaseURLValidation(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"No scheme", "localhost:8080", "http://localhost:8080"},
		{"HTTP scheme", "http://localhost:8080", "http://localhost:8080"},
		{"HTTPS scheme", "https://example.com", "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateBaseURL(tt.url)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9091")
	assert.Equal(t, ":9091", stringValue("SERVER_ADDRESS", ":8080"))
	assert.Equal(t, ":8080", stringValue("MISSING_ENV_VAR", ":8080"))
}

func TestConfig_IntEnvOverrides(t *testing.T) {
	t.Setenv("SLUG_ATTEMPTS", "9")
	assert.Equal(t, 9, intValue("SLUG_ATTEMPTS", 5))

	t.Setenv("SLUG_ATTEMPTS", "not_a_number")
	assert.Equal(t, 5, intValue("SLUG_ATTEMPTS", 5), "Malformed env value should fall back to the flag")

	os.Unsetenv("SLUG_ATTEMPTS")
	assert.Equal(t, 5, intValue("SLUG_ATTEMPTS", 5))
}
