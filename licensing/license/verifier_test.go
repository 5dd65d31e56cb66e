//go:build unit

package license_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/LerianStudio/lib-licensing/licensing/license"
	"github.com/LerianStudio/lib-licensing/licensing/opentelemetry/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestVerifier_PlainKeyForPackage(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)

	assert.True(t, v.IsLicenseValid(context.Background(), testPackage, []string{plainKey(t, testPackage)}))
}

func TestVerifier_KeyForAnotherPackage(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)
	key := plainKey(t, "com.other.app")

	assert.False(t, v.IsLicenseValid(context.Background(), testPackage, []string{key}))

	result := v.VerifyKey(testPackage, key)
	assert.Equal(t, license.FailureSignature, result.Failure)
	assert.ErrorIs(t, result.Err, license.ErrSignatureMismatch)
}

func TestVerifier_KeyFromAnotherIssuer(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)
	forged := sign(t, otherIssuerKey(), testPackage)

	assert.False(t, v.IsLicenseValid(context.Background(), testPackage, []string{forged}))
}

func TestVerifier_TamperedPayload(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)
	key := plainKey(t, testPackage)

	assert.False(t, v.IsLicenseValid(context.Background(), testPackage, []string{corrupt(t, key)}))
	assert.False(t, v.IsLicenseValid(context.Background(), testPackage,
		[]string{"single:0.7.5:" + corrupt(t, sign(t, issuerKey(), "0.7.5:"+testPackage))}))
}

func TestVerifier_AlteredLastCharacterFails(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)
	payload := plainKey(t, testPackage)

	// A 2048-bit signature is 256 bytes, so the text ends in "==" and its last
	// character carries four bits past the final byte.
	require.True(t, strings.HasSuffix(payload, "=="))

	altered := alterLastChar(t, payload)
	require.NotEqual(t, payload, altered)

	result := v.VerifyKey(testPackage, altered)
	assert.False(t, result.Valid())
	assert.Equal(t, license.FailureEncoding, result.Failure)
	assert.ErrorIs(t, result.Err, license.ErrInvalidEncoding)

	versioned := "single:0.7.5:" + alterLastChar(t, sign(t, issuerKey(), "0.7.5:"+testPackage))
	assert.False(t, v.IsLicenseValid(context.Background(), testPackage, []string{versioned}))
}

func TestVerifier_VersionedKeyMatchesEquivalentPlainKey(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t, license.WithProductVersion("1.0.0"))
	payload := sign(t, issuerKey(), "1.0.0:"+testPackage)

	versioned := v.IsLicenseValid(context.Background(), testPackage, []string{"single:1.0.0:" + payload})
	plain := v.IsLicenseValid(context.Background(), "1.0.0:"+testPackage, []string{payload})

	assert.True(t, versioned)
	assert.Equal(t, plain, versioned)

	result := v.VerifyKey(testPackage, "single:1.0.0:"+payload)
	assert.True(t, result.Valid())
	assert.Equal(t, license.FormVersioned, result.Form)
	assert.Equal(t, "1.0.0", result.Version)
}

func TestVerifier_VersionMismatchAlwaysFails(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)

	tests := []struct {
		name string
		key  string
	}{
		{
			name: "key issued for an older version",
			key:  versionedKey(t, "0.7.4", testPackage),
		},
		{
			name: "payload valid for current version under another token",
			key:  "single:0.7.4:" + sign(t, issuerKey(), license.DefaultProductVersion+":"+testPackage),
		},
		{
			name: "build metadata token",
			key:  versionedKey(t, "0.7.5+build.1", testPackage),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.False(t, v.IsLicenseValid(context.Background(), testPackage, []string{tt.key}))

			result := v.VerifyKey(testPackage, tt.key)
			assert.Equal(t, license.FailureVersionMismatch, result.Failure)
			assert.ErrorIs(t, result.Err, license.ErrVersionMismatch)
		})
	}
}

func TestVerifier_DefaultProductVersionKey(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)

	assert.Equal(t, license.DefaultProductVersion, v.ProductVersion())
	assert.True(t, v.IsLicenseValid(context.Background(), testPackage,
		[]string{versionedKey(t, license.DefaultProductVersion, testPackage)}))
}

func TestVerifier_BlankCandidatesAreSkipped(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)
	keys := []string{"", "   \n", plainKey(t, testPackage)}

	ok, err := v.Check(context.Background(), testPackage, keys)
	require.NoError(t, err)
	assert.True(t, ok)

	results := v.Inspect(testPackage, keys)
	require.Len(t, results, 3)
	assert.Equal(t, license.FailureBlank, results[0].Failure)
	assert.Equal(t, license.FailureBlank, results[1].Failure)
	assert.True(t, results[2].Valid())
}

func TestVerifier_BadCandidatesDoNotAbortScan(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)
	keys := []string{
		"single:",
		"single::AAAA",
		"%%%not-base64%%%",
		versionedKey(t, "9.9.9", testPackage),
		plainKey(t, "com.other.app"),
		plainKey(t, testPackage),
	}

	assert.True(t, v.IsLicenseValid(context.Background(), testPackage, keys))

	results := v.Inspect(testPackage, keys)
	require.Len(t, results, len(keys))

	expected := []license.FailureKind{
		license.FailureMalformed,
		license.FailureMalformed,
		license.FailureEncoding,
		license.FailureVersionMismatch,
		license.FailureSignature,
		license.FailureNone,
	}

	for i, want := range expected {
		assert.Equal(t, i, results[i].Index)
		assert.Equal(t, want, results[i].Failure, "candidate %d", i)
	}
}

func TestVerifier_NoCandidates(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)

	for _, keys := range [][]string{nil, {}} {
		ok, err := v.Check(context.Background(), testPackage, keys)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestVerifier_EmptyPackageIdentifier(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)
	keys := []string{plainKey(t, "")}

	ok, err := v.Check(context.Background(), "  ", keys)
	assert.False(t, ok)
	require.ErrorIs(t, err, license.ErrEmptyPackageIdentifier)

	assert.False(t, v.IsLicenseValid(context.Background(), "", keys))
}

func TestVerifier_NilReceiver(t *testing.T) {
	t.Parallel()

	var v *license.Verifier

	ok, err := v.Check(context.Background(), testPackage, []string{"x"})
	assert.False(t, ok)
	require.ErrorIs(t, err, license.ErrVerifierMisconfigured)

	assert.NotPanics(t, func() {
		assert.False(t, v.IsLicenseValid(context.Background(), testPackage, []string{"x"}))
	})
	assert.Empty(t, v.ProductVersion())
}

func TestNew_Misconfiguration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []license.Option
	}{
		{
			name: "garbage key material",
			opts: []license.Option{license.WithPublicKeyPEM([]byte("not a key"))},
		},
		{
			name: "version token with spaces",
			opts: []license.Option{license.WithProductVersion("1.0 beta")},
		},
		{
			name: "version token with colon",
			opts: []license.Option{license.WithProductVersion("1:0")},
		},
		{
			name: "blank version token",
			opts: []license.Option{license.WithProductVersion("  ")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := license.New(tt.opts...)
			assert.Nil(t, v)
			require.ErrorIs(t, err, license.ErrVerifierMisconfigured)
		})
	}
}

func TestNew_NilOptionsAreIgnored(t *testing.T) {
	t.Parallel()

	v, err := license.New(nil, license.WithLogger(nil), license.WithTracer(nil))

	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestDefault_IsSharedAndUsesEmbeddedKey(t *testing.T) {
	t.Parallel()

	const goroutines = 32

	instances := make([]*license.Verifier, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()

			v, err := license.Default()
			assert.NoError(t, err)

			instances[i] = v
		}(i)
	}

	wg.Wait()

	require.NotNil(t, instances[0])

	for _, v := range instances {
		assert.Same(t, instances[0], v)
	}

	// Keys from the test issuer must not verify under the embedded issuer key.
	assert.False(t, license.IsLicenseValid(context.Background(), testPackage, []string{plainKey(t, testPackage)}))

	ok, err := license.Check(context.Background(), testPackage, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifier_ConcurrentChecks(t *testing.T) {
	t.Parallel()

	const (
		goroutines = 64
		iterations = 25
	)

	v := newTestVerifier(t)
	keys := []string{"", plainKey(t, "com.other.app"), plainKey(t, testPackage)}

	var (
		wg    sync.WaitGroup
		valid atomic.Int64
	)

	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()

			for j := 0; j < iterations; j++ {
				if v.IsLicenseValid(context.Background(), testPackage, keys) {
					valid.Add(1)
				}
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(goroutines*iterations), valid.Load())
}

func TestVerifier_RecordsCheckSpan(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	v := newTestVerifier(t, license.WithTracer(provider.Tracer("license-test")))

	ok, err := v.Check(context.Background(), testPackage, []string{"", plainKey(t, testPackage)})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = v.Check(context.Background(), "", nil)
	require.ErrorIs(t, err, license.ErrEmptyPackageIdentifier)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	success := spans[0]
	assert.Equal(t, "license.check", success.Name())

	attrs := attributeMap(success.Attributes())
	assert.Equal(t, int64(2), attrs["license.candidates"].AsInt64())
	assert.True(t, attrs["license.valid"].AsBool())
	assert.Equal(t, int64(1), attrs["license.matched_index"].AsInt64())

	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestVerifier_EmptyListDoesNoWork(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	factory, err := metrics.NewFactory(mp.Meter("license-test"), nil)
	require.NoError(t, err)

	v := newTestVerifier(t, license.WithTracer(tp.Tracer("license-test")), license.WithMetrics(factory))

	for _, keys := range [][]string{nil, {}} {
		ok, err := v.Check(context.Background(), testPackage, keys)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	assert.Empty(t, recorder.Ended())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		assert.Empty(t, sm.Metrics)
	}
}

func TestVerifier_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	factory, err := metrics.NewFactory(provider.Meter("license-test"), nil)
	require.NoError(t, err)

	v := newTestVerifier(t, license.WithMetrics(factory))
	ctx := context.Background()

	assert.True(t, v.IsLicenseValid(ctx, testPackage, []string{"", "single:9.9.9:QUJD", plainKey(t, testPackage)}))
	assert.False(t, v.IsLicenseValid(ctx, testPackage, []string{plainKey(t, "com.other.app")}))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := make(map[string]metricdata.Aggregation)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m.Data
	}

	checks, ok := byName[metrics.MetricLicenseChecks.Name].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"true": 1, "false": 1}, pointsByAttribute(checks, "valid"))

	rejections, ok := byName[metrics.MetricLicenseRejections.Name].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"blank": 1, "version_mismatch": 1, "signature": 1},
		pointsByAttribute(rejections, "failure"))

	duration, ok := byName[metrics.MetricLicenseCheckDuration.Name].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(2), duration.DataPoints[0].Count)
}

func pointsByAttribute(sum metricdata.Sum[int64], key attribute.Key) map[string]int64 {
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.Emit()] += dp.Value
	}

	return out
}

func attributeMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}

	return m
}
