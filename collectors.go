package instrument

import (
	"time"
)

// Collect implements Collector. It exports the metric totals as
// counters plus the buffer state as gauges, all labeled with the
// monitor name. Event types are not exported as labels; their
// cardinality is unbounded.
func (m *DefaultMonitor) Collect() []Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	labels := map[string]string{"monitor": m.name}
	names := m.metrics.Names()

	metrics := make([]Metric, 0, len(names)+3)
	for _, name := range names {
		metrics = append(metrics, Metric{
			Name:       sanitizeMetricName(name),
			Value:      m.metrics.Get(name),
			Labels:     labels,
			MetricType: Counter,
			Timestamp:  now,
		})
	}

	s := m.bufferState()
	metrics = append(metrics,
		Metric{
			Name:       "events_recorded",
			Value:      float64(s.count),
			Labels:     labels,
			MetricType: Gauge,
			Timestamp:  now,
		},
		Metric{
			Name:       "events_dropped",
			Value:      float64(s.dropped),
			Labels:     labels,
			MetricType: Counter,
			Timestamp:  now,
		},
		Metric{
			Name:       "buffer_utilization",
			Value:      utilization(s.count, s.capacity),
			Labels:     labels,
			MetricType: Gauge,
			Timestamp:  now,
		},
	)
	return metrics
}

type bufferState struct {
	count, dropped, capacity int
}

// bufferState reads the counters without parsing a deferred stream.
func (m *DefaultMonitor) bufferState() bufferState {
	switch b := m.buffer.(type) {
	case *EagerBuffer:
		return bufferState{count: b.count, dropped: b.dropped, capacity: b.capacity}
	case *DeferredBuffer:
		return bufferState{count: b.count, dropped: b.dropped, capacity: b.capacity}
	default:
		s := m.buffer.Summary()
		return bufferState{count: s.TotalEvents, dropped: s.Dropped, capacity: m.buffer.Cap()}
	}
}

// sanitizeMetricName maps a metric name onto the Prometheus name
// alphabet [a-zA-Z0-9_:], replacing anything else with '_'.
func sanitizeMetricName(name string) string {
	out := []byte(name)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == ':':
		case c >= '0' && c <= '9' && i > 0:
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
