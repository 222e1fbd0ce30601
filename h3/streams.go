package h3

import (
	"bytes"
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// Stream types
const (
	STREAM_CONTROL                 = 0x00
	STREAM_PUSH                    = 0x01
	STREAM_QPACK_ENCODER           = 0x02
	STREAM_QPACK_DECODER           = 0x03
	STREAM_WEBTRANSPORT_UNI_STREAM = 0x54
)

// carriesID reports whether a uni stream of the given type carries a second
// varint after its type (the WebTransport session-id, or the push-id for a
// push stream). Control and QPACK streams are type-only.
func carriesID(t uint64) bool {
	return t == STREAM_PUSH || t == STREAM_WEBTRANSPORT_UNI_STREAM
}

func knownStreamType(t uint64) bool {
	switch t {
	case STREAM_CONTROL, STREAM_QPACK_ENCODER, STREAM_QPACK_DECODER, STREAM_PUSH, STREAM_WEBTRANSPORT_UNI_STREAM:
		return true
	default:
		return false
	}
}

// StreamHeader is the leading varint(s) on an HTTP/3 unidirectional stream:
// a stream type, and for STREAM_PUSH/STREAM_WEBTRANSPORT_UNI_STREAM, an ID
// (push-id or WebTransport session-id respectively).
type StreamHeader struct {
	Type uint64
	ID   uint64
}

// Read parses a StreamHeader off r. Unrecognized stream types return an
// error rather than a partially populated header, since the number of
// trailing bytes to skip for an unknown type is undefined.
func (s *StreamHeader) Read(r io.Reader) error {
	qr := quicvarint.NewReader(r)
	t, err := quicvarint.Read(qr)
	if err != nil {
		return err
	}
	if !knownStreamType(t) {
		return fmt.Errorf("h3: unknown stream type %#x", t)
	}
	s.Type = t
	if !carriesID(t) {
		return nil
	}
	id, err := quicvarint.Read(qr)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// Write serializes the StreamHeader to w.
func (s *StreamHeader) Write(w io.Writer) (int64, error) {
	if !knownStreamType(s.Type) {
		return 0, fmt.Errorf("h3: unknown stream type %#x", s.Type)
	}
	buf := &bytes.Buffer{}
	buf.Write(quicvarint.Append(nil, s.Type))
	if carriesID(s.Type) {
		buf.Write(quicvarint.Append(nil, s.ID))
	}
	return buf.WriteTo(w)
}
