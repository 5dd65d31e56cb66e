// Package license verifies signed license keys against an application's
// package identifier.
//
// A license key is either a plain base64 RSA signature over the package
// identifier, or a versioned key of the form
//
//	single:<version>:<base64 signature over "<version>:" + packageID>
//
// which binds the license to one product version. Verification uses a single
// embedded public key and RSASSA-PKCS1-v1_5 with SHA-256.
//
// Verification never fails loudly on a bad candidate: malformed, mismatched and
// forged keys are skipped and the next stored key is tried. Only caller misuse
// and a missing or invalid public key are reported as errors, through Check.
// IsLicenseValid collapses everything to a boolean.
//
// Manager wraps a Verifier and a KeyStore into the startup check hosts run to
// decide whether to log the "license required" notice. The verdict is
// informational and never blocks the host.
package license
