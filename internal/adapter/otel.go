package adapter

import (
	"context"
	"fmt"

	"github.com/jointfeed/openvr-adapter/pkg/host"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/jointfeed/openvr-adapter/internal/adapter"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	ticks               metric.Int64Counter
	skipped             metric.Int64Counter
	enumerations        metric.Int64Counter
	enumerationFailures metric.Int64Counter
	tracked             metric.Int64ObservableGauge
}

// newMetrics registers the adapter instruments on the global meter, which is a
// no-op until a provider is installed.
func newMetrics(a *Adapter) (*metrics, error) {
	m := meter()
	out := &metrics{}

	var err error
	out.ticks, err = m.Int64Counter(
		"adapter.ticks",
		metric.WithDescription("Frames processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.skipped, err = m.Int64Counter(
		"adapter.ticks.skipped",
		metric.WithDescription("Frames skipped after a runtime failure"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	out.enumerations, err = m.Int64Counter(
		"adapter.enumerations",
		metric.WithDescription("Successful device enumerations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating enumerations counter: %w", err)
	}

	out.enumerationFailures, err = m.Int64Counter(
		"adapter.enumerations.failed",
		metric.WithDescription("Device enumerations that kept the previous joints"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating enumeration failure counter: %w", err)
	}

	out.tracked, err = m.Int64ObservableGauge(
		"adapter.joints.tracked",
		metric.WithDescription("Joints currently tracked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tracked gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			var n int64
			for _, j := range a.joints.Snapshot() {
				if j.State == host.Tracked {
					n++
				}
			}
			o.ObserveInt64(out.tracked, n)
			return nil
		},
		out.tracked,
	)
	if err != nil {
		return nil, fmt.Errorf("registering tracked callback: %w", err)
	}

	return out, nil
}
