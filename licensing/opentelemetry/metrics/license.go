package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// License check instruments.
var (
	MetricLicenseChecks = Metric{
		Name:        "license.checks",
		Unit:        "1",
		Description: "Number of license checks by verdict.",
	}

	MetricLicenseRejections = Metric{
		Name:        "license.candidates.rejected",
		Unit:        "1",
		Description: "Number of rejected license key candidates by failure kind.",
	}

	MetricLicenseCheckDuration = Metric{
		Name:        "license.check.duration",
		Unit:        "us",
		Description: "Time spent scanning the candidate keys of one check.",
		Buckets:     DefaultLatencyBuckets,
	}
)

// DefaultLatencyBuckets are microsecond boundaries. An RSA-2048 verification
// takes tens of microseconds, so most checks land in the lower buckets.
var DefaultLatencyBuckets = []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000}

// RecordCheck counts one finished check.
func (f *Factory) RecordCheck(ctx context.Context, valid bool) error {
	b, err := f.Counter(MetricLicenseChecks)
	if err != nil {
		return err
	}

	return b.WithAttributes(attribute.Bool("valid", valid)).AddOne(ctx)
}

// RecordRejection counts one rejected candidate.
func (f *Factory) RecordRejection(ctx context.Context, failure string) error {
	b, err := f.Counter(MetricLicenseRejections)
	if err != nil {
		return err
	}

	return b.WithAttributes(attribute.String("failure", failure)).AddOne(ctx)
}

// RecordCheckDuration records how long a check took.
func (f *Factory) RecordCheckDuration(ctx context.Context, elapsed time.Duration) error {
	b, err := f.Histogram(MetricLicenseCheckDuration)
	if err != nil {
		return err
	}

	return b.Record(ctx, elapsed.Microseconds())
}
