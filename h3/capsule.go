package h3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// Capsule types carried on the CONNECT recv stream (HTTP Datagrams style).
const (
	// https://www.ietf.org/archive/id/draft-ietf-webtrans-http3.html (CLOSE_WEBTRANSPORT_SESSION)
	CapsuleTypeCloseWebTransportSession = 0x2843
)

// MaxCloseReason is the largest CLOSE_WEBTRANSPORT_SESSION reason this
// library will accept or emit, per the IETF draft's convention for capsule
// reason phrases.
const MaxCloseReason = 1024

// CapsuleKind classifies a decoded Capsule.
type CapsuleKind int

const (
	CapsuleClose CapsuleKind = iota
	CapsuleGrease
	CapsuleUnknown
)

// Capsule is a single frame read from the CONNECT stream after the
// handshake completes.
type Capsule struct {
	Kind CapsuleKind

	// Valid when Kind == CapsuleClose.
	Code   uint32
	Reason string

	// Valid when Kind == CapsuleGrease or CapsuleUnknown.
	Type    uint64
	Payload []byte
}

// isGreaseType reports whether typ belongs to the HTTP GREASE capsule
// family: 0x1f*N + 0x21 for N >= 0.
func isGreaseType(typ uint64) bool {
	if typ < 0x21 {
		return false
	}
	return (typ-0x21)%0x1f == 0
}

// ReadCapsule reads the next capsule from r.
func ReadCapsule(r io.Reader) (Capsule, error) {
	qr := quicvarint.NewReader(r)
	typ, err := quicvarint.Read(qr)
	if err != nil {
		return Capsule{}, err
	}
	length, err := quicvarint.Read(qr)
	if err != nil {
		return Capsule{}, err
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(qr, data); err != nil {
		return Capsule{}, err
	}

	switch {
	case typ == CapsuleTypeCloseWebTransportSession:
		if len(data) < 4 {
			return Capsule{}, fmt.Errorf("h3: short CLOSE_WEBTRANSPORT_SESSION capsule: %d bytes", len(data))
		}
		reason := data[4:]
		if len(reason) > MaxCloseReason {
			return Capsule{}, fmt.Errorf("h3: close reason too long: %d bytes", len(reason))
		}
		return Capsule{
			Kind:   CapsuleClose,
			Code:   binary.BigEndian.Uint32(data[:4]),
			Reason: string(reason),
		}, nil
	case isGreaseType(typ):
		return Capsule{Kind: CapsuleGrease, Type: typ, Payload: data}, nil
	default:
		return Capsule{Kind: CapsuleUnknown, Type: typ, Payload: data}, nil
	}
}

// WriteCloseCapsule writes a CLOSE_WEBTRANSPORT_SESSION capsule to w. The
// reason is silently truncated to MaxCloseReason bytes.
func WriteCloseCapsule(w io.Writer, code uint32, reason []byte) error {
	if len(reason) > MaxCloseReason {
		reason = reason[:MaxCloseReason]
	}
	data := make([]byte, 4+len(reason))
	binary.BigEndian.PutUint32(data[:4], code)
	copy(data[4:], reason)

	buf := &bytes.Buffer{}
	buf.Write(quicvarint.Append(nil, CapsuleTypeCloseWebTransportSession))
	buf.Write(quicvarint.Append(nil, uint64(len(data))))
	buf.Write(data)

	_, err := w.Write(buf.Bytes())
	return err
}
