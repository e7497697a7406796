package canvas

import (
	"bytes"
	"testing"
)

// TestEncodeRecordLayout tests the exact big-endian byte layout of a record
func TestEncodeRecordLayout(t *testing.T) {
	ev := PixelEvent{
		X:           0x0102,
		Y:           0x0304,
		Color:       0xaabbcc,
		UserID:      0x1122334455667788,
		TimestampMs: 0x0000018f11223344,
	}

	rec := make([]byte, RecordSize)
	ev.EncodeRecord(rec)

	want := []byte{
		0x01, 0x02, // x
		0x03, 0x04, // y
		0xaa, 0xbb, 0xcc, // color
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, // userId
		0x00, 0x00, 0x01, 0x8f, 0x11, 0x22, 0x33, 0x44, // timestampMs
	}
	if !bytes.Equal(rec, want) {
		t.Errorf("Record bytes should be %x, got %x", want, rec)
	}
}

// TestDecodeRecordRoundTrip tests that decode inverts encode
func TestDecodeRecordRoundTrip(t *testing.T) {
	ev := PixelEvent{
		X:           499,
		Y:           0,
		Color:       0xbe0039,
		UserID:      18446744073709551615, // max uint64 survives intact
		TimestampMs: 1756684800000,
	}

	rec := make([]byte, RecordSize)
	ev.EncodeRecord(rec)
	got := DecodeRecord(rec)

	if got != ev {
		t.Errorf("Round trip should preserve the event, got %+v want %+v", got, ev)
	}
}

// TestBroadcastRecord tests the 7-byte live-update projection
func TestBroadcastRecord(t *testing.T) {
	ev := PixelEvent{
		X:           0x00ff,
		Y:           0x0100,
		Color:       0x00a368,
		UserID:      42,
		TimestampMs: 1756684800000,
	}

	buf := ev.BroadcastRecord()
	if len(buf) != BroadcastSize {
		t.Fatalf("Broadcast record should be %d bytes, got %d", BroadcastSize, len(buf))
	}

	want := []byte{0x00, 0xff, 0x01, 0x00, 0x00, 0xa3, 0x68}
	if !bytes.Equal(buf, want) {
		t.Errorf("Broadcast bytes should be %x, got %x", want, buf)
	}
}

// TestUint24Bounds tests the 24-bit color packing helpers
func TestUint24Bounds(t *testing.T) {
	cases := []uint32{0x000000, 0xffffff, 0x800000, 0x0000ff}
	for _, c := range cases {
		var b [3]byte
		putUint24(b[:], c)
		if got := uint24(b[:]); got != c {
			t.Errorf("uint24 round trip of %06x should be stable, got %06x", c, got)
		}
	}
}
