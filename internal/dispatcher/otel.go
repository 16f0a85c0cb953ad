package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/jointfeed/openvr-adapter/internal/dispatcher"

type metrics struct {
	queueDepth metric.Int64ObservableGauge
	processed  metric.Int64Counter
	dropped    metric.Int64Counter
}

func newMetrics(d *Dispatcher) (*metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out metrics
		err error
	)

	if out.processed, err = m.Int64Counter("dispatcher.commands.processed",
		metric.WithDescription("Commands handled from a queue")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if out.dropped, err = m.Int64Counter("dispatcher.commands.dropped",
		metric.WithDescription("Commands dropped due to a full queue")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	out.queueDepth, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Commands waiting in a handler queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for _, q := range d.queues {
				o.Observe(int64(len(q.ch)), metric.WithAttributes(q.attr))
			}
			return nil
		}))
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	return &out, nil
}
