package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("chefai/synthesis")

	// Pipeline metrics
	SynthesisRequestsTotal metric.Int64Counter
	SynthesisDuration      metric.Float64Histogram

	// Failover metrics
	CredentialAttemptsTotal metric.Int64Counter
	CredentialFailoverTotal metric.Int64Counter

	// Validator metrics
	ValidationRejectionsTotal metric.Int64Counter

	// External API metrics
	ExternalAPICallsTotal metric.Int64Counter
	ExternalAPIDuration   metric.Float64Histogram

	// Image job metrics
	ImageJobsTotal metric.Int64Counter
)

// Instruments are created against the global meter, which delegates to whatever provider
// telemetry installs later, so they are usable before and without telemetry.
func init() {
	if err := Init(); err != nil {
		otel.Handle(err)
	}
}

func Init() error {
	var err error

	SynthesisRequestsTotal, err = meter.Int64Counter(
		"synthesis.requests.total",
		metric.WithDescription("Total number of synthesis pipeline runs by operation and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	SynthesisDuration, err = meter.Float64Histogram(
		"synthesis.duration",
		metric.WithDescription("Duration of synthesis pipeline runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return err
	}

	CredentialAttemptsTotal, err = meter.Int64Counter(
		"credential.attempts.total",
		metric.WithDescription("Total number of model calls made per credential"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	CredentialFailoverTotal, err = meter.Int64Counter(
		"credential.failover.total",
		metric.WithDescription("Total number of advances to the next credential"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ValidationRejectionsTotal, err = meter.Int64Counter(
		"recipe.validation.rejections.total",
		metric.WithDescription("Total number of model responses rejected by the recipe validator"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPICallsTotal, err = meter.Int64Counter(
		"external.api.calls.total",
		metric.WithDescription("Total number of external API calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPIDuration, err = meter.Float64Histogram(
		"external.api.duration",
		metric.WithDescription("Duration of external API calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return err
	}

	ImageJobsTotal, err = meter.Int64Counter(
		"image.jobs.total",
		metric.WithDescription("Total number of background image jobs by final status"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	return nil
}
