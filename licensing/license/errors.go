package license

import "errors"

var (
	// ErrLicenseValidationFailed is returned when no stored key is valid for the package.
	ErrLicenseValidationFailed = errors.New("license validation failed")
	// ErrManagerNotInitialized indicates the manager was used without proper initialization.
	ErrManagerNotInitialized = errors.New("license.Manager used without initialization: use license.NewManager() to create an instance")
	// ErrVerifierMisconfigured indicates the verifier could not load its public key or settings.
	ErrVerifierMisconfigured = errors.New("license verifier misconfigured")
	// ErrEmptyPackageIdentifier is returned by Check when no package identifier is supplied.
	ErrEmptyPackageIdentifier = errors.New("package identifier is empty")

	// ErrBlankKey marks an empty or whitespace-only candidate.
	ErrBlankKey = errors.New("license key is blank")
	// ErrMalformedKey marks a candidate that does not follow the key grammar.
	ErrMalformedKey = errors.New("license key is malformed")
	// ErrVersionMismatch marks a versioned key issued for another product version.
	ErrVersionMismatch = errors.New("license key targets another product version")
	// ErrInvalidEncoding marks a payload that is not valid base64.
	ErrInvalidEncoding = errors.New("license key payload is not valid base64")
	// ErrSignatureMismatch marks a payload that does not verify under the public key.
	ErrSignatureMismatch = errors.New("license key signature does not match")

	// ErrKeyStoreUnconfigured is returned by a KeyStore missing its location.
	ErrKeyStoreUnconfigured = errors.New("license key store is not configured")
	// ErrKeyStoreCorrupt is returned when a persisted key document cannot be decoded.
	ErrKeyStoreCorrupt = errors.New("license key store is corrupt")
)
