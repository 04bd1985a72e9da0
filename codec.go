package instrument

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode writes sorted map keys and never shrinks floats, so a value
// with the same field types always has the same encoded width. The
// file header relies on that.
var encMode cbor.EncMode

// decMode decodes untyped maps as map[string]any and untyped integers
// as int64 so metadata survives a round trip with Go-friendly types.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		ShortestFloat: cbor.ShortestFloatNone,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic("instrument: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("instrument: CBOR decoder initialization failed: " + err.Error())
	}
}

// compactEvent is the per-event wire form of the deferred buffer.
type compactEvent struct {
	E  *string  `cbor:"e"`
	T  float64  `cbor:"t"`
	TS float64  `cbor:"ts"`
	D  *float64 `cbor:"d,omitempty"`
	M  Metadata `cbor:"m,omitempty"`
}

func encodeEvent(etype string, elapsed, wall float64, duration *float64, metadata Metadata) ([]byte, error) {
	ev := compactEvent{E: &etype, T: elapsed, TS: wall, D: duration}
	if len(metadata) > 0 {
		ev.M = metadata
	}
	return encMode.Marshal(ev)
}

// decodeEvent decodes the first framed event in data and reports how
// many bytes it occupied. A well-formed object without an event type is
// not an event.
func decodeEvent(data []byte) (EventRecord, int, error) {
	var ev compactEvent
	rest, err := decMode.UnmarshalFirst(data, &ev)
	if err != nil {
		return EventRecord{}, 0, err
	}
	if ev.E == nil {
		return EventRecord{}, 0, decodeErrorf("object without event type")
	}
	return newEventRecord(*ev.E, ev.T, ev.TS, ev.D, ev.M), len(data) - len(rest), nil
}

// fileHeader opens every flushed deferred buffer file.
type fileHeader struct {
	Version   int     `cbor:"version"`
	CreatedAt float64 `cbor:"created_at"`
	Format    string  `cbor:"format"`
}

const (
	fileFormatVersion = 1
	fileFormatTag     = "cbor"
)

type countRecord struct {
	EventCount int `cbor:"event_count"`
}

// serializedEvent is the eager buffer's export form of one record.
type serializedEvent struct {
	EType     string   `cbor:"etype"`
	Timestamp float64  `cbor:"timestamp"`
	Duration  *float64 `cbor:"duration,omitempty"`
	Metadata  Metadata `cbor:"metadata"`
}

type serializedBuffer struct {
	Events     []serializedEvent `cbor:"events"`
	StartTime  float64           `cbor:"start_time"`
	EventCount int               `cbor:"event_count"`
}
