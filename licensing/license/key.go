package license

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const versionedPrefix = "single:"

var (
	versionedKeyPattern = regexp.MustCompile(`^single:([\w.+]+):`)
	versionTokenPattern = regexp.MustCompile(`^[\w.+]+$`)
)

// Form identifies which license key grammar a key uses.
type Form uint8

const (
	// FormPlain is a bare base64 signature over the package identifier.
	FormPlain Form = iota
	// FormVersioned is a "single:<version>:" prefixed key bound to a product version.
	FormVersioned
)

// String returns the form name.
func (f Form) String() string {
	switch f {
	case FormPlain:
		return "plain"
	case FormVersioned:
		return "versioned"
	default:
		return "unknown"
	}
}

// Key is a parsed license key. Payload holds the base64 signature text.
type Key struct {
	Form    Form
	Version string
	Payload string
}

// ParseKey splits raw into its form, version token and payload. It performs no
// cryptographic work.
func ParseKey(raw string) (Key, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Key{}, ErrBlankKey
	}

	if !strings.HasPrefix(trimmed, versionedPrefix) {
		return Key{Form: FormPlain, Payload: trimmed}, nil
	}

	match := versionedKeyPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return Key{}, fmt.Errorf("%w: expected single:<version>:<payload>", ErrMalformedKey)
	}

	payload := trimmed[len(match[0]):]
	if strings.TrimSpace(payload) == "" {
		return Key{}, fmt.Errorf("%w: empty payload", ErrMalformedKey)
	}

	return Key{Form: FormVersioned, Version: match[1], Payload: payload}, nil
}

// VersionTag is the prefix of the signed message: "<version>:" for versioned
// keys and empty for plain keys.
func (k Key) VersionTag() string {
	if k.Form != FormVersioned {
		return ""
	}

	return k.Version + ":"
}

// SignedMessage rebuilds the bytes the issuer signed for packageID.
func (k Key) SignedMessage(packageID string) []byte {
	return []byte(k.VersionTag() + packageID)
}

// Signature decodes the payload. Whitespace is ignored and padding is
// optional, which matches the lenient decoder older hosts used to store keys.
// The unused low bits of the final character must be zero, so every signature
// has exactly one accepted text form.
func (k Key) Signature() ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}

		return r
	}, k.Payload)

	compact = strings.TrimRight(compact, "=")
	if compact == "" {
		return nil, ErrInvalidEncoding
	}

	sig, err := base64.RawStdEncoding.Strict().DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}

	return sig, nil
}

// String describes the key without revealing its payload.
func (k Key) String() string {
	if k.Form == FormVersioned {
		return fmt.Sprintf("versioned(%s)", k.Version)
	}

	return k.Form.String()
}
