package canvas

import "encoding/binary"

const (
	// RecordSize is the fixed on-disk size of one PixelEvent:
	// x(2) + y(2) + color(3) + userId(8) + timestampMs(8), all big-endian.
	RecordSize = 23

	// BroadcastSize is the wire size of the live-update projection:
	// x(2) + y(2) + color(3), no user or timestamp.
	BroadcastSize = 7
)

// PixelEvent is one successful placement. Events are immutable once
// produced; their append order in the log is the canonical history.
type PixelEvent struct {
	X           uint16 `json:"x"`
	Y           uint16 `json:"y"`
	Color       uint32 `json:"color"` // Packed 24-bit RGB
	UserID      uint64 `json:"userId,string"`
	TimestampMs uint64 `json:"timestamp"`
}

// EncodeRecord writes the fixed 23-byte wire encoding into rec.
// rec must be at least RecordSize bytes.
func (ev PixelEvent) EncodeRecord(rec []byte) {
	binary.BigEndian.PutUint16(rec[0:2], ev.X)
	binary.BigEndian.PutUint16(rec[2:4], ev.Y)
	putUint24(rec[4:7], ev.Color)
	binary.BigEndian.PutUint64(rec[7:15], ev.UserID)
	binary.BigEndian.PutUint64(rec[15:23], ev.TimestampMs)
}

// DecodeRecord parses one fixed-width record.
// rec must be at least RecordSize bytes.
func DecodeRecord(rec []byte) PixelEvent {
	return PixelEvent{
		X:           binary.BigEndian.Uint16(rec[0:2]),
		Y:           binary.BigEndian.Uint16(rec[2:4]),
		Color:       uint24(rec[4:7]),
		UserID:      binary.BigEndian.Uint64(rec[7:15]),
		TimestampMs: binary.BigEndian.Uint64(rec[15:23]),
	}
}

// BroadcastRecord returns the 7-byte projection sent to live clients.
func (ev PixelEvent) BroadcastRecord() []byte {
	buf := make([]byte, BroadcastSize)
	binary.BigEndian.PutUint16(buf[0:2], ev.X)
	binary.BigEndian.PutUint16(buf[2:4], ev.Y)
	putUint24(buf[4:7], ev.Color)
	return buf
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
