package h3

import (
	"bytes"
	"testing"
)

func TestStreamHeaderRoundTrip(t *testing.T) {
	cases := []StreamHeader{
		{Type: STREAM_CONTROL},
		{Type: STREAM_QPACK_ENCODER},
		{Type: STREAM_QPACK_DECODER},
		{Type: STREAM_WEBTRANSPORT_UNI_STREAM, ID: 4},
		{Type: STREAM_WEBTRANSPORT_UNI_STREAM, ID: 1_000_000},
	}
	for _, sh := range cases {
		var buf bytes.Buffer
		if _, err := sh.Write(&buf); err != nil {
			t.Fatalf("Write(%+v): %v", sh, err)
		}

		var got StreamHeader
		if err := got.Read(&buf); err != nil {
			t.Fatalf("Read(%+v): %v", sh, err)
		}
		if got != sh {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, sh)
		}
	}
}

func TestStreamHeaderWriteUnknownType(t *testing.T) {
	var buf bytes.Buffer
	// Stream type 0x41 (a frame type, not a stream type) is unrecognized here.
	sh := StreamHeader{Type: 0x41}
	if _, err := sh.Write(&buf); err == nil {
		t.Fatalf("expected Write to reject an unknown stream type")
	}
}
