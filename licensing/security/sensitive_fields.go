package security

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// RedactedValue replaces the value of a sensitive field.
const RedactedValue = "[REDACTED]"

var defaultSensitiveFields = []string{
	"license_key",
	"licensekey",
	"license_keys",
	"licensekeys",
	"signature",
	"payload",
	"private_key",
	"privatekey",
	"password",
	"secret",
	"token",
	"access_token",
	"refresh_token",
	"authorization",
	"credential",
	"credentials",
	"apikey",
	"api_key",
	"key",
	"keys",
}

// shortSensitiveTokens are only matched as whole tokens, never as substrings.
var shortSensitiveTokens = map[string]bool{
	"key":  true,
	"keys": true,
}

var tokenSplitRegex = regexp.MustCompile(`[^a-z0-9]+`)

// DefaultSensitiveFields returns a copy of the built-in sensitive field names.
func DefaultSensitiveFields() []string {
	return slices.Clone(defaultSensitiveFields)
}

// normalizeFieldName turns camelCase and PascalCase into lowercase
// underscore-delimited tokens: "licenseKey" becomes "license_key" and
// "APIKey" becomes "api_key".
func normalizeFieldName(fieldName string) string {
	var b strings.Builder

	runes := []rune(fieldName)

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]

			var next rune
			if i+1 < len(runes) {
				next = runes[i+1]
			}

			if unicode.IsUpper(r) &&
				(unicode.IsLower(prev) || unicode.IsDigit(prev) ||
					(unicode.IsUpper(prev) && next != 0 && unicode.IsLower(next))) {
				b.WriteByte('_')
			}
		}

		b.WriteRune(r)
	}

	return strings.ToLower(b.String())
}

// IsSensitiveField reports whether a field with this name may hold secret
// material. Matching is case-insensitive and camelCase aware. Short names such
// as "key" must appear as a whole token; longer ones match on word boundaries.
func IsSensitiveField(fieldName string) bool {
	normalized := normalizeFieldName(strings.TrimSpace(fieldName))
	if normalized == "" {
		return false
	}

	tokens := tokenSplitRegex.Split(normalized, -1)

	for _, sensitive := range defaultSensitiveFields {
		if shortSensitiveTokens[sensitive] {
			if slices.Contains(tokens, sensitive) {
				return true
			}

			continue
		}

		if matchesWordBoundary(normalized, sensitive) {
			return true
		}
	}

	return false
}

// matchesWordBoundary reports whether pattern occurs in field delimited by the
// string ends or non-alphanumeric characters.
func matchesWordBoundary(field, pattern string) bool {
	offset := 0

	for {
		idx := strings.Index(field[offset:], pattern)
		if idx == -1 {
			return false
		}

		start := offset + idx
		end := start + len(pattern)

		startOk := start == 0 || !isAlphanumeric(field[start-1])
		endOk := end == len(field) || !isAlphanumeric(field[end])

		if startOk && endOk {
			return true
		}

		if end >= len(field) {
			return false
		}

		offset = start + 1
	}
}

func isAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
