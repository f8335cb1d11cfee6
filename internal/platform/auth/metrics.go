package auth

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/friperie/api/internal/platform/auth"

// verificationMetrics counts server-to-server verification outcomes by kind and reason.
type verificationMetrics struct {
	outcomes metric.Int64Counter
	latency  metric.Float64Histogram
}

func newVerificationMetrics() verificationMetrics {
	meter := otel.Meter(meterName)
	outcomes, _ := meter.Int64Counter("marketplace.auth.verifications",
		metric.WithDescription("Signed request verifications by outcome"))
	latency, _ := meter.Float64Histogram("marketplace.auth.verification.duration",
		metric.WithUnit("ms"))
	return verificationMetrics{outcomes: outcomes, latency: latency}
}

func (m verificationMetrics) record(ctx context.Context, kind, reason string, start, end time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("reason", reason),
		attribute.Bool("success", reason == "ok"),
	)
	if m.outcomes != nil {
		m.outcomes.Add(ctx, 1, attrs)
	}
	if m.latency != nil {
		m.latency.Record(ctx, float64(end.Sub(start).Microseconds())/1000, attrs)
	}
}
