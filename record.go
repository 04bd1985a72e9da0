package instrument

// Metadata is the open key/value set attached to an event.
type Metadata map[string]any

// EventRecord is one event occurrence. Its fields are fixed when the
// record is built; accessors hand out copies.
type EventRecord struct {
	etype       string
	timestamp   float64
	absolute    float64
	duration    float64
	hasDuration bool
	metadata    Metadata
}

// newEventRecord builds a record, merging a deep copy of the caller's
// metadata into a map owned by the record. This is the only place
// metadata is written.
func newEventRecord(etype string, timestamp, absolute float64, duration *float64, metadata Metadata) EventRecord {
	r := EventRecord{
		etype:     etype,
		timestamp: timestamp,
		absolute:  absolute,
	}
	if duration != nil {
		r.duration = *duration
		r.hasDuration = true
	}
	if len(metadata) > 0 {
		r.metadata = cloneMetadata(metadata)
	}
	return r
}

// Type returns the event type.
func (r EventRecord) Type() string { return r.etype }

// Timestamp returns seconds elapsed since the owning buffer started.
func (r EventRecord) Timestamp() float64 { return r.timestamp }

// AbsoluteTimestamp returns the wall clock time of the event in unix
// seconds, or 0 when the buffer did not capture it.
func (r EventRecord) AbsoluteTimestamp() float64 { return r.absolute }

// Duration returns the event duration in seconds, if one was recorded.
func (r EventRecord) Duration() (float64, bool) { return r.duration, r.hasDuration }

// Metadata returns a deep copy of the event metadata. Nil when the
// event had none.
func (r EventRecord) Metadata() Metadata {
	return cloneMetadata(r.metadata)
}

// Map renders the record with readable keys: event, timestamp,
// absolute_timestamp and, when present, duration and metadata.
func (r EventRecord) Map() map[string]any {
	m := map[string]any{
		"event":              r.etype,
		"timestamp":          r.timestamp,
		"absolute_timestamp": r.absolute,
	}
	if r.hasDuration {
		m["duration"] = r.duration
	}
	if r.metadata != nil {
		m["metadata"] = r.Metadata()
	}
	return m
}
