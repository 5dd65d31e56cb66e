package license

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyStore supplies the license keys a host has persisted.
type KeyStore interface {
	LicenseKeys(ctx context.Context) ([]string, error)
}

// StaticKeys is an in-memory KeyStore.
type StaticKeys []string

// LicenseKeys returns a copy of the stored keys.
func (s StaticKeys) LicenseKeys(_ context.Context) ([]string, error) {
	return slices.Clone(s), nil
}

// keyDocument is the on-disk layout. Older hosts stored a single licenseKey;
// newer ones store a licenseKeys list. Both are honored.
type keyDocument struct {
	LicenseKeys []string `yaml:"licenseKeys"`
	LicenseKey  string   `yaml:"licenseKey"`
}

// FileKeyStore reads keys from a YAML document. A missing file means no keys.
type FileKeyStore struct {
	Path string
}

// LicenseKeys loads the document at Path. List entries come first, followed by
// the legacy single key when present.
func (f FileKeyStore) LicenseKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(f.Path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrKeyStoreUnconfigured)
	}

	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read license keys: %w", err)
	}

	var doc keyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeyStoreCorrupt, f.Path, err)
	}

	keys := slices.Clone(doc.LicenseKeys)
	if strings.TrimSpace(doc.LicenseKey) != "" {
		keys = append(keys, doc.LicenseKey)
	}

	return keys, nil
}

// EnvKeyStore reads a comma or newline separated key list from an environment variable.
type EnvKeyStore struct {
	Variable string
}

// LicenseKeys returns the keys held in Variable, or none when it is unset.
func (e EnvKeyStore) LicenseKeys(_ context.Context) ([]string, error) {
	if strings.TrimSpace(e.Variable) == "" {
		return nil, fmt.Errorf("%w: empty variable name", ErrKeyStoreUnconfigured)
	}

	return SplitKeys(os.Getenv(e.Variable)), nil
}

// SplitKeys splits a comma or newline separated list, dropping blank entries.
func SplitKeys(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	keys := make([]string, 0, len(fields))

	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}

	return keys
}
