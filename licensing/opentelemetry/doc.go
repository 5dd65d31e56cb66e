// Package opentelemetry bootstraps the trace, metric and log providers used by
// license checks and exports them over OTLP/gRPC when telemetry is enabled.
package opentelemetry
