package h3

import "testing"

func TestErrorCodeRoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 29, 30, 31, 59, 60, 1000, 0xffffffff}
	for _, code := range cases {
		wire := ErrorToHTTP3(code)
		got, ok := ErrorFromHTTP3(wire)
		if !ok {
			t.Fatalf("ErrorFromHTTP3(%#x) (from code %d): ok=false", wire, code)
		}
		if got != code {
			t.Fatalf("round trip: code=%d wire=%#x got=%d", code, wire, got)
		}
	}
}

func TestErrorFromHTTP3RejectsBelowRange(t *testing.T) {
	if _, ok := ErrorFromHTTP3(firstErrorCode - 1); ok {
		t.Fatalf("expected ok=false below the reserved range")
	}
}

func TestErrorFromHTTP3RejectsGreaseSlot(t *testing.T) {
	// The 31st value of the first block (wire offset 30) is the grease slot:
	// never produced by ErrorToHTTP3, and must be rejected on decode.
	if _, ok := ErrorFromHTTP3(firstErrorCode + 30); ok {
		t.Fatalf("expected ok=false for the grease slot")
	}
}

func TestErrorToHTTP3StaysOutsideGreaseSlots(t *testing.T) {
	for code := uint32(0); code < 1000; code++ {
		wire := ErrorToHTTP3(code)
		if (wire-firstErrorCode)%0x1f == 0x1e {
			t.Fatalf("code %d mapped onto a grease slot: wire=%#x", code, wire)
		}
	}
}
