// Package licensing holds the environment helpers shared by the lib-licensing
// subpackages.
//
// The verifier itself lives in the license subpackage:
//
//	ok := license.IsLicenseValid(ctx, "com.example.app", storedKeys)
//
// Logging is pluggable through the log subpackage, with a zap adapter in zap.
package licensing
