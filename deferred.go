package instrument

import (
	"slices"
	"time"

	"go.uber.org/zap"
)

// estimatedRecordSize approximates the in-memory size of one decoded
// event and only feeds the informational compression ratio.
const estimatedRecordSize = 200

// DeferredBuffer encodes each event into a growing byte stream as soon
// as it is recorded and parses the stream only when events are read.
type DeferredBuffer struct {
	capacity int
	count    int
	dropped  int
	start    time.Time
	header   fileHeader
	stream   []byte

	// parsed caches the decoded stream until the next mutation.
	parsed      []EventRecord
	parsedValid bool
	parses      int

	now    func() time.Time
	logger *zap.Logger
}

// BufferStats describes the raw stream of a deferred buffer.
type BufferStats struct {
	TotalEvents      int     `json:"total_events"`
	BufferSizeBytes  int     `json:"buffer_size_bytes"`
	BytesPerEvent    float64 `json:"bytes_per_event"`
	CompressionRatio float64 `json:"compression_ratio"`
	MemoryUsageMB    float64 `json:"memory_usage_mb"`
}

// NewDeferredBuffer creates a deferred buffer holding at most capacity
// events. A non-positive capacity selects DefaultBufferSize.
func NewDeferredBuffer(capacity int, logger *zap.Logger) *DeferredBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &DeferredBuffer{
		capacity: capacity,
		now:      time.Now,
		logger:   logger,
	}
	b.start = b.now()
	b.header = fileHeader{
		Version:   fileFormatVersion,
		CreatedAt: unixSeconds(b.start),
		Format:    fileFormatTag,
	}
	return b
}

// Record encodes the event onto the stream. It returns false when the
// buffer is full or the metadata could not be read back, such as a map
// with non-string keys.
func (b *DeferredBuffer) Record(etype string, duration *float64, metadata Metadata) bool {
	if b.count >= b.capacity {
		if b.dropped == 0 {
			b.logger.Debug("event buffer full, dropping events",
				zap.Int("capacity", b.capacity))
		}
		b.dropped++
		return false
	}

	if err := checkMetadata(metadata); err != nil {
		b.logger.Warn("rejected event metadata",
			zap.String("event", etype),
			zap.Error(err))
		return false
	}

	now := b.now()
	data, err := encodeEvent(etype, now.Sub(b.start).Seconds(), unixSeconds(now), duration, metadata)
	if err != nil {
		b.logger.Warn("failed to encode event",
			zap.String("event", etype),
			zap.Error(err))
		return false
	}

	b.stream = append(b.stream, data...)
	b.count++
	b.invalidate()
	return true
}

// Events parses the stream on first use and returns the cached result
// on later calls until the buffer changes. A corrupt tail ends parsing
// without error; every event decoded before it is returned.
func (b *DeferredBuffer) Events() []EventRecord {
	if !b.parsedValid {
		b.parsed = b.parse()
		b.parsedValid = true
	}
	return slices.Clone(b.parsed)
}

func (b *DeferredBuffer) parse() []EventRecord {
	b.parses++
	events := make([]EventRecord, 0, b.count)
	offset := 0
	for offset < len(b.stream) {
		ev, consumed, err := decodeEvent(b.stream[offset:])
		if err != nil {
			b.logger.Warn("partial buffer parse, stopping at corrupt data",
				zap.Int("offset", offset),
				zap.Int("parsed", len(events)),
				zap.Int("remaining_bytes", len(b.stream)-offset),
				zap.Error(err))
			break
		}
		events = append(events, ev)
		offset += consumed
	}
	return events
}

func (b *DeferredBuffer) invalidate() {
	b.parsed = nil
	b.parsedValid = false
}

func (b *DeferredBuffer) Summary() Summary {
	return Summary{
		TotalEvents:      b.count,
		EventsByType:     countByType(b.Events()),
		Utilization:      utilization(b.count, b.capacity),
		Dropped:          b.dropped,
		BufferSizeBytes:  len(b.stream),
		CompressionRatio: b.compressionRatio(),
	}
}

// Stats reports the size of the raw stream.
func (b *DeferredBuffer) Stats() BufferStats {
	stats := BufferStats{
		TotalEvents:      b.count,
		BufferSizeBytes:  len(b.stream),
		CompressionRatio: b.compressionRatio(),
		MemoryUsageMB:    float64(len(b.stream)) / (1024 * 1024),
	}
	if b.count > 0 {
		stats.BytesPerEvent = float64(len(b.stream)) / float64(b.count)
	}
	return stats
}

func (b *DeferredBuffer) compressionRatio() float64 {
	if b.count == 0 {
		return 0
	}
	return float64(len(b.stream)) / float64(b.count*estimatedRecordSize)
}

// Bytes returns a copy of the raw event stream.
func (b *DeferredBuffer) Bytes() []byte {
	return slices.Clone(b.stream)
}

func (b *DeferredBuffer) Len() int { return b.count }
func (b *DeferredBuffer) Cap() int { return b.capacity }

// Clear drops the stream and the parsed cache.
func (b *DeferredBuffer) Clear() {
	b.stream = nil
	b.count = 0
	b.dropped = 0
	b.invalidate()
}
