package instrument

import "time"

// DefaultBufferSize is the capacity used when none is configured.
const DefaultBufferSize = 10000

// EventBuffer stores the events recorded by a monitor.
//
// Implementations are not safe for concurrent use. Record never fails:
// once the buffer holds Cap events further records are dropped and
// Record reports false.
type EventBuffer interface {
	Record(etype string, duration *float64, metadata Metadata) bool
	Events() []EventRecord
	Summary() Summary
	Len() int
	Cap() int
	Clear()
}

// Summary describes the state of a buffer and, when produced by a
// monitor, its metrics.
type Summary struct {
	TotalEvents  int                `json:"total_events"`
	TotalMetrics int                `json:"total_metrics"`
	EventsByType []TypeCount        `json:"events_by_type"`
	Metrics      map[string]float64 `json:"metrics"`
	Utilization  float64            `json:"buffer_usage"`
	Dropped      int                `json:"dropped"`

	// Deferred buffers only.
	BufferSizeBytes  int     `json:"buffer_size_bytes,omitempty"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
}

// TypeCount is the number of events of one type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// CountOf returns the number of events of the given type.
func (s Summary) CountOf(etype string) int {
	for _, tc := range s.EventsByType {
		if tc.Type == etype {
			return tc.Count
		}
	}
	return 0
}

// countByType groups events by type in first-seen order.
func countByType(events []EventRecord) []TypeCount {
	index := make(map[string]int)
	counts := make([]TypeCount, 0)
	for _, ev := range events {
		i, ok := index[ev.etype]
		if !ok {
			i = len(counts)
			index[ev.etype] = i
			counts = append(counts, TypeCount{Type: ev.etype})
		}
		counts[i].Count++
	}
	return counts
}

func utilization(count, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(count) / float64(capacity)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
