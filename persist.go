package instrument

import (
	"bufio"
	"os"

	"go.uber.org/zap"
)

// FlushToDisk writes the buffer to path as a header, an event count
// record and the raw stream, then clears the buffer. The stream is
// written as is, without parsing.
func (b *DeferredBuffer) FlushToDisk(path string) error {
	header, err := encMode.Marshal(b.header)
	if err != nil {
		return &PersistError{Op: "flush", Path: path, Err: err}
	}
	count, err := encMode.Marshal(countRecord{EventCount: b.count})
	if err != nil {
		return &PersistError{Op: "flush", Path: path, Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		return &PersistError{Op: "flush", Path: path, Err: err}
	}

	w := bufio.NewWriter(f)
	for _, chunk := range [][]byte{header, count, b.stream} {
		if _, err := w.Write(chunk); err != nil {
			f.Close()
			return &PersistError{Op: "flush", Path: path, Err: err}
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return &PersistError{Op: "flush", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &PersistError{Op: "flush", Path: path, Err: err}
	}

	b.logger.Debug("flushed event buffer",
		zap.String("path", path),
		zap.Int("events", b.count),
		zap.Int("bytes", len(b.stream)))

	b.Clear()
	return nil
}

// LoadFromDisk replaces the buffer contents with a file written by
// FlushToDisk. The stream is not parsed until Events is called.
func (b *DeferredBuffer) LoadFromDisk(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &PersistError{Op: "load", Path: path, Err: err}
	}

	var header fileHeader
	rest, err := decMode.UnmarshalFirst(data, &header)
	if err != nil {
		return &PersistError{Op: "load", Path: path, Err: decodeErrorf("header: %v", err)}
	}
	if header.Format != fileFormatTag {
		return &PersistError{Op: "load", Path: path, Err: decodeErrorf("header: unknown format %q", header.Format)}
	}
	if header.Version != fileFormatVersion {
		return &PersistError{Op: "load", Path: path, Err: decodeErrorf("header: unsupported version %d", header.Version)}
	}

	var count countRecord
	rest, err = decMode.UnmarshalFirst(rest, &count)
	if err != nil {
		return &PersistError{Op: "load", Path: path, Err: decodeErrorf("event count: %v", err)}
	}
	if count.EventCount < 0 {
		return &PersistError{Op: "load", Path: path, Err: decodeErrorf("event count: negative value %d", count.EventCount)}
	}

	b.stream = rest
	b.count = count.EventCount
	b.dropped = 0
	b.invalidate()

	b.logger.Debug("loaded event buffer",
		zap.String("path", path),
		zap.Int("events", b.count),
		zap.Int("bytes", len(b.stream)))
	return nil
}
