package canvas

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// ErrCorruptLog marks a truncated trailing record found during replay.
// The valid prefix read before the corruption is still returned.
var ErrCorruptLog = errors.New("canvas: corrupt event log")

// EventLog is the durable append-only record stream. The file is
// exclusively owned by this process; no external writer may append
// concurrently. Appends preserve total order relative to each other.
type EventLog struct {
	path string

	fileMu sync.Mutex
	file   *os.File
}

// OpenEventLog opens (creating if absent) the log file for appending.
func OpenEventLog(path string) (*EventLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "open event log")
	}
	return &EventLog{path: path, file: file}, nil
}

// Append serializes the event to the fixed 23-byte wire format and
// writes it to the end of the stream. This is the durability point of a
// placement: the caller must treat a returned error as a failed
// placement, never as success.
func (l *EventLog) Append(ev PixelEvent) error {
	var rec [RecordSize]byte
	ev.EncodeRecord(rec[:])

	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.file == nil {
		return errors.New("event log closed")
	}
	if _, err := l.file.Write(rec[:]); err != nil {
		return errors.Wrap(err, "append event record")
	}
	return nil
}

// Replay reads the entire stream from offset 0, deserializing
// fixed-width records until end-of-stream. A trailing partial record
// (fewer than 23 bytes remaining) yields the valid prefix together with
// ErrCorruptLog so the caller can decide whether to continue.
//
// Replay is intended for startup, before appends are in flight.
func (l *EventLog) Replay() ([]PixelEvent, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, errors.Wrap(err, "read event log")
	}

	events := make([]PixelEvent, 0, len(data)/RecordSize)
	for off := 0; off+RecordSize <= len(data); off += RecordSize {
		events = append(events, DecodeRecord(data[off:off+RecordSize]))
	}

	if rem := len(data) % RecordSize; rem != 0 {
		return events, errors.Wrapf(ErrCorruptLog, "%d trailing bytes after %d records", rem, len(events))
	}
	return events, nil
}

// Close closes the underlying file. Further appends fail.
func (l *EventLog) Close() error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
