package h3

// Application-level WebTransport error codes (32-bit) travel over the wire
// inside the HTTP/3 reserved error-code space, per the
// draft-ietf-webtrans-http3 mapping. Every 30 contiguous application codes
// are mapped onto a 31-wide block of wire values; the last value in each
// block (value % 0x1f == 0x1e) is reserved for grease and never produced by
// ErrorToHTTP3, so it is rejected by ErrorFromHTTP3.
const firstErrorCode = 0x52e4a40fa8db

// ErrorToHTTP3 converts a 32-bit WebTransport application error code into
// the reserved HTTP/3 error-code space used on the wire for stream
// STOP_SENDING/RESET_STREAM codes and session close codes.
func ErrorToHTTP3(code uint32) uint64 {
	n := uint64(code)
	return firstErrorCode + n + n/0x1e
}

// ErrorFromHTTP3 converts a wire HTTP/3 error code back into a 32-bit
// WebTransport application error code. ok is false if the code falls outside
// the reserved range or lands on a reserved/greased slot within it.
func ErrorFromHTTP3(code uint64) (value uint32, ok bool) {
	if code < firstErrorCode {
		return 0, false
	}
	n := code - firstErrorCode
	if n%0x1f == 0x1e {
		return 0, false
	}
	v := n - n/0x1f
	if v > 0xffffffff {
		return 0, false
	}
	return uint32(v), true
}
