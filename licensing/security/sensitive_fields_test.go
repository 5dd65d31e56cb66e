//go:build unit

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSensitiveField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field string
		want  bool
	}{
		{"license_key", true},
		{"licenseKey", true},
		{"LicenseKeys", true},
		{"LICENSE_KEY", true},
		{"signature", true},
		{"raw_signature", true},
		{"payload", true},
		{"key", true},
		{"keys", true},
		{"APIKey", true},
		{"x-api-key", true},
		{"private_key", true},
		{"Authorization", true},
		{"index", false},
		{"form", false},
		{"version", false},
		{"failure", false},
		{"package", false},
		{"keyboard", false},
		{"monkey", false},
		{"payloads_count", false},
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, IsSensitiveField(tt.field))
		})
	}
}

func TestNormalizeFieldName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "license_key", normalizeFieldName("licenseKey"))
	assert.Equal(t, "api_key", normalizeFieldName("APIKey"))
	assert.Equal(t, "key2_value", normalizeFieldName("key2Value"))
	assert.Equal(t, "already_snake", normalizeFieldName("already_snake"))
}

func TestDefaultSensitiveFieldsReturnsCopy(t *testing.T) {
	t.Parallel()

	fields := DefaultSensitiveFields()
	fields[0] = "mutated"

	assert.NotEqual(t, "mutated", DefaultSensitiveFields()[0])
}
