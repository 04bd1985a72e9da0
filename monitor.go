package instrument

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor is the capability set of the monitor role.
type Monitor interface {
	Track(event string, metadata Metadata) bool
	TrackDuration(event string, d time.Duration, metadata Metadata) bool
	StartTimer(event string) time.Time
	StopTimer(event string, start time.Time, metadata Metadata) time.Duration
	IncrementMetric(name string, delta float64)
	Summary() Summary
}

// DefaultMonitor records events into one EventBuffer and metrics into
// one MetricsTable. Its methods are serialized by a mutex so the
// exporter can collect from another goroutine; the buffer and table
// themselves are not synchronized.
type DefaultMonitor struct {
	name    string
	mu      sync.Mutex
	buffer  EventBuffer
	metrics *MetricsTable
	now     func() time.Time
	logger  *zap.Logger
}

// NewMonitor creates a monitor over buffer. A nil buffer selects an
// eager buffer of DefaultBufferSize.
func NewMonitor(name string, buffer EventBuffer, logger *zap.Logger) *DefaultMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer == nil {
		buffer = NewEagerBuffer(DefaultBufferSize, logger)
	}
	return &DefaultMonitor{
		name:    name,
		buffer:  buffer,
		metrics: NewMetricsTable(),
		now:     time.Now,
		logger:  logger,
	}
}

// NewEagerMonitor creates a monitor over an eager buffer.
func NewEagerMonitor(name string, capacity int, logger *zap.Logger) *DefaultMonitor {
	return NewMonitor(name, NewEagerBuffer(capacity, logger), logger)
}

// NewDeferredMonitor creates a monitor over a deferred buffer.
func NewDeferredMonitor(name string, capacity int, logger *zap.Logger) *DefaultMonitor {
	return NewMonitor(name, NewDeferredBuffer(capacity, logger), logger)
}

// Name returns the monitor name.
func (m *DefaultMonitor) Name() string {
	return m.name
}

// Track records an event. It returns false when the buffer dropped it.
func (m *DefaultMonitor) Track(event string, metadata Metadata) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.Record(event, nil, metadata)
}

// TrackDuration records an event carrying a duration.
func (m *DefaultMonitor) TrackDuration(event string, d time.Duration, metadata Metadata) bool {
	seconds := d.Seconds()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.Record(event, &seconds, metadata)
}

// StartTimer records "<event>_started" and returns the start time.
func (m *DefaultMonitor) StartTimer(event string) time.Time {
	m.Track(event+"_started", nil)
	return m.now()
}

// StopTimer records "<event>_completed" with the time elapsed since
// start and returns it.
func (m *DefaultMonitor) StopTimer(event string, start time.Time, metadata Metadata) time.Duration {
	d := m.now().Sub(start)
	m.TrackDuration(event+"_completed", d, metadata)
	return d
}

// IncrementMetric adds delta to the named metric.
func (m *DefaultMonitor) IncrementMetric(name string, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.Increment(name, delta)
}

// Metrics returns a snapshot of the metric totals.
func (m *DefaultMonitor) Metrics() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics.Snapshot()
}

// Events returns the recorded events in order.
func (m *DefaultMonitor) Events() []EventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.Events()
}

// Summary combines the buffer summary with a metrics snapshot.
func (m *DefaultMonitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.buffer.Summary()
	s.Metrics = m.metrics.Snapshot()
	s.TotalMetrics = m.metrics.Len()
	return s
}

// Clear empties the buffer. Metrics are kept.
func (m *DefaultMonitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer.Clear()
}

// Buffer exposes the underlying buffer, for strategy specific calls
// such as FlushToDisk. Callers must not use it concurrently with the
// monitor.
func (m *DefaultMonitor) Buffer() EventBuffer {
	return m.buffer
}

func (m *DefaultMonitor) String() string {
	s := m.Summary()
	return fmt.Sprintf("<Monitor(name=%s, events=%d, metrics=%d)>", m.name, s.TotalEvents, s.TotalMetrics)
}
