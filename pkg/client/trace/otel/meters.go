package otel

import (
	"fmt"

	otelMetric "go.opentelemetry.io/otel/metric"
)

// durationBuckets in milliseconds.
var durationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals

type meters struct {
	// inFlight counts calls sent to the transport and not yet settled.
	inFlight otelMetric.Int64UpDownCounter
	// duration measures calls from sending to settlement.
	duration otelMetric.Float64Histogram
}

func newMeters(meter otelMetric.Meter) *meters {
	inFlight, err := meter.Int64UpDownCounter(
		meterPrefix+"request.in_flight",
		otelMetric.WithDescription("HTTP client: calls in flight."),
	)
	if err != nil {
		panic(fmt.Errorf("cannot create in_flight meter: %w", err))
	}

	duration, err := meter.Float64Histogram(
		meterPrefix+"request.duration",
		otelMetric.WithDescription("HTTP client: call duration, from sending to settlement."),
		otelMetric.WithUnit("ms"),
		otelMetric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		panic(fmt.Errorf("cannot create duration meter: %w", err))
	}

	return &meters{inFlight: inFlight, duration: duration}
}
