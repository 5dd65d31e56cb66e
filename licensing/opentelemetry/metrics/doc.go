// Package metrics wraps an OpenTelemetry meter with lazily created, cached
// instruments and the license check metrics recorded by the verifier.
package metrics
