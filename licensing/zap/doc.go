// Package zap adapts go.uber.org/zap to the licensing/log.Logger interface.
//
// New builds an environment-aware JSON logger whose core is teed into the
// OpenTelemetry logs bridge. NewFromZap wraps an existing *zap.Logger, which
// is how hosts that already own a zap logger plug it into the verifier.
package zap
