// Package security decides which structured field names carry secrets, so
// loggers can redact license keys, signatures and credentials by name.
package security
