//go:build unit

package opentelemetry

import (
	"context"
	"testing"
	"time"

	"github.com/LerianStudio/lib-licensing/licensing/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

func TestInitializeTelemetry_NilConfig(t *testing.T) {
	t.Parallel()

	tl, err := InitializeTelemetry(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilTelemetryConfig)
	assert.Nil(t, tl)
}

func TestInitializeTelemetry_EnabledEmptyEndpoint(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "   "} {
		tl, err := InitializeTelemetry(context.Background(), &TelemetryConfig{
			EnableTelemetry:           true,
			CollectorExporterEndpoint: endpoint,
			Logger:                    log.NewNop(),
		})
		require.ErrorIs(t, err, ErrEmptyEndpoint)
		assert.Nil(t, tl)
	}
}

func TestInitializeTelemetry_DisabledKeepsGlobals(t *testing.T) {
	t.Parallel()

	before := otel.GetTracerProvider()

	tl, err := InitializeTelemetry(context.Background(), &TelemetryConfig{
		LibraryName: "license-test",
		ServiceName: "licensecheck",
	})
	require.NoError(t, err)
	require.NotNil(t, tl)

	assert.Same(t, before, otel.GetTracerProvider())
	assert.NotNil(t, tl.Logger, "a nop logger replaces the missing one")
	assert.NotNil(t, tl.Tracer("x"))
	require.NoError(t, tl.Metrics().RecordCheck(context.Background(), true))

	require.NoError(t, tl.ShutdownTelemetry(context.Background()))
}

func TestInitializeTelemetry_EnabledInstallsGlobals(t *testing.T) {
	tl, err := InitializeTelemetry(context.Background(), &TelemetryConfig{
		LibraryName:               "license-test",
		ServiceName:               "licensecheck",
		ServiceVersion:            "1.0.0",
		DeploymentEnv:             "test",
		CollectorExporterEndpoint: "127.0.0.1:4317",
		EnableTelemetry:           true,
		Logger:                    log.NewNop(),
	})
	require.NoError(t, err)

	assert.Same(t, tl.TracerProvider, otel.GetTracerProvider())
	assert.Same(t, tl.MetricProvider, otel.GetMeterProvider())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// Nothing listens on the endpoint, so only the call itself is exercised.
	_ = tl.ShutdownTelemetry(ctx)
}

func TestNilTelemetry(t *testing.T) {
	t.Parallel()

	var tl *Telemetry

	assert.NotNil(t, tl.Tracer("x"))
	assert.NotNil(t, tl.Metrics())
	assert.NoError(t, tl.ShutdownTelemetry(context.Background()))
}

func TestNewResource(t *testing.T) {
	t.Parallel()

	cfg := &TelemetryConfig{ServiceName: "licensecheck", ServiceVersion: "1.2.3", DeploymentEnv: "staging"}
	set := cfg.newResource().Set()

	v, ok := set.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "licensecheck", v.AsString())

	v, ok = set.Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", v.AsString())

	v, ok = set.Value(attribute.Key("deployment.environment.name"))
	require.True(t, ok)
	assert.Equal(t, "staging", v.AsString())
}
