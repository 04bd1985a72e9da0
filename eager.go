package instrument

import (
	"slices"
	"time"

	"go.uber.org/zap"
)

// EagerBuffer allocates one EventRecord per event into a bounded log.
// Elapsed times are additionally kept in a preallocated array.
type EagerBuffer struct {
	capacity   int
	count      int
	dropped    int
	start      time.Time
	timestamps []float64
	log        []EventRecord
	now        func() time.Time
	logger     *zap.Logger
}

// NewEagerBuffer creates an eager buffer holding at most capacity events.
// A non-positive capacity selects DefaultBufferSize.
func NewEagerBuffer(capacity int, logger *zap.Logger) *EagerBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &EagerBuffer{
		capacity:   capacity,
		timestamps: make([]float64, capacity),
		log:        make([]EventRecord, 0, capacity),
		now:        time.Now,
		logger:     logger,
	}
	b.start = b.now()
	return b
}

// Record appends an event. It returns false, leaving the buffer
// untouched, when the buffer is full.
func (b *EagerBuffer) Record(etype string, duration *float64, metadata Metadata) bool {
	if b.count >= b.capacity {
		if b.dropped == 0 {
			b.logger.Debug("event buffer full, dropping events",
				zap.Int("capacity", b.capacity))
		}
		b.dropped++
		return false
	}

	now := b.now()
	elapsed := now.Sub(b.start).Seconds()
	b.timestamps[b.count] = elapsed
	b.log = append(b.log, newEventRecord(etype, elapsed, unixSeconds(now), duration, metadata))
	b.count++
	return true
}

// Events returns the recorded events in insertion order.
func (b *EagerBuffer) Events() []EventRecord {
	return slices.Clone(b.log)
}

// Timestamps returns the elapsed times of the recorded events.
func (b *EagerBuffer) Timestamps() []float64 {
	return slices.Clone(b.timestamps[:b.count])
}

func (b *EagerBuffer) Summary() Summary {
	return Summary{
		TotalEvents:  b.count,
		EventsByType: countByType(b.log),
		Utilization:  utilization(b.count, b.capacity),
		Dropped:      b.dropped,
	}
}

func (b *EagerBuffer) Len() int { return b.count }
func (b *EagerBuffer) Cap() int { return b.capacity }

// Clear empties the log. Capacity and start time are kept.
func (b *EagerBuffer) Clear() {
	b.log = b.log[:0]
	b.count = 0
	b.dropped = 0
}

// SerializeEvents encodes the whole log as one CBOR object with the
// keys events, start_time and event_count.
func (b *EagerBuffer) SerializeEvents() ([]byte, error) {
	out := serializedBuffer{
		Events:     make([]serializedEvent, 0, len(b.log)),
		StartTime:  unixSeconds(b.start),
		EventCount: b.count,
	}
	for _, r := range b.log {
		ev := serializedEvent{
			EType:     r.etype,
			Timestamp: r.timestamp,
			Metadata:  r.metadata,
		}
		if r.hasDuration {
			d := r.duration
			ev.Duration = &d
		}
		out.Events = append(out.Events, ev)
	}
	return encMode.Marshal(out)
}
