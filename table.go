package instrument

import (
	"maps"
	"slices"
)

// MetricsTable keeps a running float total per metric name. It is not
// safe for concurrent use.
type MetricsTable struct {
	totals map[string]float64
}

// NewMetricsTable creates an empty table.
func NewMetricsTable() *MetricsTable {
	return &MetricsTable{totals: make(map[string]float64)}
}

// Increment adds delta to the named total, starting missing names at 0.
// Negative deltas are allowed.
func (t *MetricsTable) Increment(name string, delta float64) {
	t.totals[name] += delta
}

// Get returns the total for name, or 0 when it was never incremented.
func (t *MetricsTable) Get(name string) float64 {
	return t.totals[name]
}

func (t *MetricsTable) Len() int {
	return len(t.totals)
}

// Names returns the metric names in sorted order.
func (t *MetricsTable) Names() []string {
	return slices.Sorted(maps.Keys(t.totals))
}

// Snapshot returns an independent copy of the totals.
func (t *MetricsTable) Snapshot() map[string]float64 {
	return maps.Clone(t.totals)
}

func (t *MetricsTable) Reset() {
	clear(t.totals)
}
