package license

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LerianStudio/lib-licensing/licensing/internal/nilcheck"
	"github.com/LerianStudio/lib-licensing/licensing/log"
	"github.com/LerianStudio/lib-licensing/licensing/opentelemetry/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultProductVersion is the version token versioned keys must carry.
	DefaultProductVersion = "0.7.5"

	tracerName    = "github.com/LerianStudio/lib-licensing/licensing/license"
	checkSpanName = "license.check"
)

// FailureKind classifies why a candidate key was rejected.
type FailureKind uint8

const (
	FailureNone FailureKind = iota
	FailureBlank
	FailureMalformed
	FailureVersionMismatch
	FailureEncoding
	FailureSignature
)

// String returns the failure kind name used in logs and CLI output.
func (f FailureKind) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureBlank:
		return "blank"
	case FailureMalformed:
		return "malformed"
	case FailureVersionMismatch:
		return "version_mismatch"
	case FailureEncoding:
		return "encoding"
	case FailureSignature:
		return "signature"
	default:
		return "unknown"
	}
}

// Result is the outcome of verifying one candidate key.
type Result struct {
	Index   int
	Form    Form
	Version string
	Failure FailureKind
	Err     error
}

// Valid reports whether the candidate verified.
func (r Result) Valid() bool {
	return r.Failure == FailureNone && r.Err == nil
}

// Verifier checks license keys against one RSA public key. It is immutable
// after New and safe for concurrent use.
type Verifier struct {
	publicKey      *rsa.PublicKey
	productVersion string
	logger         log.Logger
	tracer         trace.Tracer
	metrics        *metrics.Factory
}

type settings struct {
	publicKey      *rsa.PublicKey
	publicKeyPEM   []byte
	productVersion string
	logger         log.Logger
	tracer         trace.Tracer
	metrics        *metrics.Factory
}

// Option configures a Verifier.
type Option func(s *settings)

// WithPublicKey makes the verifier trust key instead of the embedded issuer key.
func WithPublicKey(key *rsa.PublicKey) Option {
	return func(s *settings) {
		s.publicKey = key
	}
}

// WithPublicKeyPEM makes the verifier trust the key encoded in data. See ParsePublicKey.
func WithPublicKeyPEM(data []byte) Option {
	return func(s *settings) {
		s.publicKeyPEM = data
	}
}

// WithProductVersion sets the version token versioned keys must carry.
func WithProductVersion(version string) Option {
	return func(s *settings) {
		s.productVersion = strings.TrimSpace(version)
	}
}

// WithLogger sets the logger used for per-candidate diagnostics. Nil loggers are ignored.
func WithLogger(logger log.Logger) Option {
	return func(s *settings) {
		if !nilcheck.Interface(logger) {
			s.logger = logger
		}
	}
}

// WithTracer overrides the tracer taken from the global OpenTelemetry provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) {
		if !nilcheck.Interface(tracer) {
			s.tracer = tracer
		}
	}
}

// WithMetrics records check verdicts, rejections and durations through factory.
func WithMetrics(factory *metrics.Factory) Option {
	return func(s *settings) {
		if factory != nil {
			s.metrics = factory
		}
	}
}

// New builds a Verifier. Without WithPublicKey or WithPublicKeyPEM the embedded
// issuer key is used. Key or version problems are reported as ErrVerifierMisconfigured.
func New(opts ...Option) (*Verifier, error) {
	s := settings{
		productVersion: DefaultProductVersion,
		logger:         log.NewNop(),
		tracer:         otel.Tracer(tracerName),
		metrics:        metrics.NewNopFactory(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	key := s.publicKey
	if key == nil {
		data := s.publicKeyPEM
		if len(data) == 0 {
			data = []byte(embeddedPublicKeyPEM)
		}

		parsed, err := ParsePublicKey(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVerifierMisconfigured, err)
		}

		key = parsed
	}

	if !versionTokenPattern.MatchString(s.productVersion) {
		return nil, fmt.Errorf("%w: invalid product version %q", ErrVerifierMisconfigured, s.productVersion)
	}

	return &Verifier{
		publicKey:      key,
		productVersion: s.productVersion,
		logger:         s.logger,
		tracer:         s.tracer,
		metrics:        s.metrics,
	}, nil
}

var (
	defaultOnce     sync.Once
	defaultVerifier *Verifier
	defaultErr      error
)

// Default returns the process-wide verifier built from the embedded key. It is
// constructed once, on first use.
func Default() (*Verifier, error) {
	defaultOnce.Do(func() {
		defaultVerifier, defaultErr = New()
	})

	return defaultVerifier, defaultErr
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   log.Logger = log.NewNop()
)

// SetDefaultLogger sets the logger IsLicenseValid reports configuration and
// misuse errors to. Nil loggers are ignored.
func SetDefaultLogger(logger log.Logger) {
	if nilcheck.Interface(logger) {
		return
	}

	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()

	defaultLogger = logger
}

func getDefaultLogger() log.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()

	return defaultLogger
}

// IsLicenseValid reports whether any of keys is valid for packageID using the
// Default verifier. A misconfigured verifier or an empty packageID yields
// false and is logged to the logger set with SetDefaultLogger; use Check to
// tell them apart.
func IsLicenseValid(ctx context.Context, packageID string, keys []string) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	ok, err := Check(ctx, packageID, keys)
	if err != nil {
		getDefaultLogger().Log(ctx, log.LevelWarn, "license check not performed", log.Err(err))
	}

	return ok
}

// Check is IsLicenseValid with error reporting for misconfiguration and misuse.
func Check(ctx context.Context, packageID string, keys []string) (bool, error) {
	v, err := Default()
	if err != nil {
		return false, err
	}

	return v.Check(ctx, packageID, keys)
}

// ProductVersion returns the version token versioned keys must carry.
func (v *Verifier) ProductVersion() string {
	if v == nil {
		return ""
	}

	return v.productVersion
}

// IsLicenseValid reports whether any of keys is valid for packageID.
func (v *Verifier) IsLicenseValid(ctx context.Context, packageID string, keys []string) bool {
	ok, err := v.Check(ctx, packageID, keys)
	if err != nil && v != nil {
		v.logger.Log(ctx, log.LevelWarn, "license check not performed", log.Err(err))
	}

	return ok
}

// Check scans keys in order and returns true at the first one that verifies.
// Blank, malformed, mismatched and forged keys are skipped. An error is only
// returned for an empty packageID or an unusable verifier. An empty key list
// returns false at once, with no span and no metrics.
func (v *Verifier) Check(ctx context.Context, packageID string, keys []string) (bool, error) {
	if v == nil || v.publicKey == nil {
		return false, ErrVerifierMisconfigured
	}

	if len(keys) == 0 && strings.TrimSpace(packageID) != "" {
		return false, nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := v.tracer.Start(ctx, checkSpanName,
		trace.WithAttributes(attribute.Int("license.candidates", len(keys))))
	defer span.End()

	if strings.TrimSpace(packageID) == "" {
		span.RecordError(ErrEmptyPackageIdentifier)
		span.SetStatus(codes.Error, ErrEmptyPackageIdentifier.Error())

		return false, ErrEmptyPackageIdentifier
	}

	start := time.Now()

	for i, raw := range keys {
		result := v.verify(i, packageID, raw)
		if result.Valid() {
			span.SetAttributes(
				attribute.Bool("license.valid", true),
				attribute.Int("license.matched_index", i),
			)
			v.logger.Log(ctx, log.LevelDebug, "license key accepted",
				log.Int("index", i),
				log.String("form", result.Form.String()),
			)
			v.recordCheck(ctx, true, time.Since(start))

			return true, nil
		}

		v.logRejection(ctx, result)
		v.recordRejection(ctx, result)
	}

	span.SetAttributes(attribute.Bool("license.valid", false))
	v.recordCheck(ctx, false, time.Since(start))

	return false, nil
}

// Metric failures are logged and never change a verdict.
func (v *Verifier) recordCheck(ctx context.Context, valid bool, elapsed time.Duration) {
	if err := v.metrics.RecordCheck(ctx, valid); err != nil {
		v.logger.Log(ctx, log.LevelWarn, "failed to record license check", log.Err(err))
	}

	if err := v.metrics.RecordCheckDuration(ctx, elapsed); err != nil {
		v.logger.Log(ctx, log.LevelWarn, "failed to record license check duration", log.Err(err))
	}
}

func (v *Verifier) recordRejection(ctx context.Context, result Result) {
	if err := v.metrics.RecordRejection(ctx, result.Failure.String()); err != nil {
		v.logger.Log(ctx, log.LevelWarn, "failed to record license rejection", log.Err(err))
	}
}

// Inspect verifies every key without stopping at the first valid one. It is
// meant for diagnostics; callers deciding validity should use Check.
func (v *Verifier) Inspect(packageID string, keys []string) []Result {
	results := make([]Result, len(keys))
	for i, raw := range keys {
		results[i] = v.verify(i, packageID, raw)
	}

	return results
}

// VerifyKey verifies a single candidate.
func (v *Verifier) VerifyKey(packageID, raw string) Result {
	return v.verify(0, packageID, raw)
}

func (v *Verifier) verify(index int, packageID, raw string) Result {
	result := Result{Index: index}

	if v == nil || v.publicKey == nil {
		result.Failure = FailureSignature
		result.Err = ErrVerifierMisconfigured

		return result
	}

	key, err := ParseKey(raw)
	if err != nil {
		result.Err = err
		result.Failure = FailureMalformed

		if errors.Is(err, ErrBlankKey) {
			result.Failure = FailureBlank
		}

		return result
	}

	result.Form = key.Form
	result.Version = key.Version

	if key.Form == FormVersioned && key.Version != v.productVersion {
		result.Failure = FailureVersionMismatch
		result.Err = fmt.Errorf("%w: key is for %q, product is %q", ErrVersionMismatch, key.Version, v.productVersion)

		return result
	}

	sig, err := key.Signature()
	if err != nil {
		result.Failure = FailureEncoding
		result.Err = err

		return result
	}

	digest := sha256.Sum256(key.SignedMessage(packageID))
	if err := rsa.VerifyPKCS1v15(v.publicKey, crypto.SHA256, digest[:], sig); err != nil {
		result.Failure = FailureSignature
		result.Err = fmt.Errorf("%w: %w", ErrSignatureMismatch, err)
	}

	return result
}

func (v *Verifier) logRejection(ctx context.Context, result Result) {
	if !v.logger.Enabled(log.LevelDebug) {
		return
	}

	fields := []log.Field{
		log.Int("index", result.Index),
		log.String("failure", result.Failure.String()),
	}

	if result.Failure != FailureBlank && result.Failure != FailureMalformed {
		fields = append(fields, log.String("form", result.Form.String()))
	}

	if result.Version != "" {
		fields = append(fields, log.String("version", result.Version))
	}

	v.logger.Log(ctx, log.LevelDebug, "license key rejected", fields...)
}
