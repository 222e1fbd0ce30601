// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Session module of webtransport package.

package webtransport

import (
	"context"
	"net/url"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/quicvarint"

	"github.com/teonet-go/webtransport-go/h3"
)

// Session is a single WebTransport session: exactly one per QUIC
// connection, whether that connection carries raw WebTransport framing or
// HTTP/3 WebTransport framing negotiated via extended CONNECT.
type Session struct {
	conn quic.Connection
	h3   *h3SessionState // nil in raw mode
}

// h3SessionState holds everything specific to framing WebTransport atop an
// HTTP/3 connection: the pre-built stream/datagram header prefixes, the
// control- and CONNECT-stream handles that must be kept alive for the life
// of the session, and the accept demultiplexer.
type h3SessionState struct {
	url      *url.URL
	protocol string

	sessionID      uint64
	headerUni      []byte
	headerBi       []byte
	headerDatagram []byte

	settings *settingsHandle
	connect  *connectHandle
	accept   *h3Accept
}

// newH3Session builds the Session and its h3SessionState once the SETTINGS
// and extended-CONNECT exchanges have both completed.
func newH3Session(conn quic.Connection, u *url.URL, protocol string, settings *settingsHandle, connect *connectHandle) *Session {
	sessionID := connect.sessionID()

	headerUni := quicvarint.Append(nil, h3.STREAM_WEBTRANSPORT_UNI_STREAM)
	headerUni = quicvarint.Append(headerUni, sessionID)

	headerBi := quicvarint.Append(nil, h3.FRAME_WEBTRANSPORT_STREAM)
	headerBi = quicvarint.Append(headerBi, sessionID)

	headerDatagram := quicvarint.Append(nil, sessionID)

	return &Session{
		conn: conn,
		h3: &h3SessionState{
			url:            u,
			protocol:       protocol,
			sessionID:      sessionID,
			headerUni:      headerUni,
			headerBi:       headerBi,
			headerDatagram: headerDatagram,
			settings:       settings,
			connect:        connect,
			accept:         newH3Accept(conn, sessionID),
		},
	}
}

// URL returns the URL the session was established against. It is nil for a
// raw-mode session.
func (s *Session) URL() *url.URL {
	if s.h3 == nil {
		return nil
	}
	return s.h3.url
}

// Protocol returns the negotiated subprotocol, or "" if none was
// negotiated, or this is a raw-mode session.
func (s *Session) Protocol() string {
	if s.h3 == nil {
		return ""
	}
	return s.h3.protocol
}

// Conn returns the underlying QUIC connection.
func (s *Session) Conn() quic.Connection { return s.conn }

// AcceptUni accepts an incoming (peer-initiated) unidirectional stream,
// blocking until one is available, ctx is done, or the session closes.
func (s *Session) AcceptUni(ctx context.Context) (*RecvStream, error) {
	if s.h3 == nil {
		stream, err := s.conn.AcceptUniStream(ctx)
		if err != nil {
			return nil, sessionErrorFromConn(err)
		}
		return &RecvStream{stream: stream}, nil
	}
	return s.h3.accept.acceptUni(ctx)
}

// AcceptBi accepts an incoming (peer-initiated) bidirectional stream,
// blocking until one is available, ctx is done, or the session closes.
func (s *Session) AcceptBi(ctx context.Context) (*SendStream, *RecvStream, error) {
	if s.h3 == nil {
		stream, err := s.conn.AcceptStream(ctx)
		if err != nil {
			return nil, nil, sessionErrorFromConn(err)
		}
		return &SendStream{stream: stream}, &RecvStream{stream: stream}, nil
	}
	return s.h3.accept.acceptBi(ctx)
}

// OpenUni opens an outgoing unidirectional stream. In H3 mode the
// WebTransport stream-type prefix is written at maximum priority before
// control returns to the caller, so application data can never queue
// ahead of it.
func (s *Session) OpenUni(ctx context.Context) (*SendStream, error) {
	stream, err := s.conn.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, sessionErrorFromConn(err)
	}
	if s.h3 != nil {
		if err := writeWithMaxPriority(stream, s.h3.headerUni); err != nil {
			stream.Close()
			return nil, writeErrorFromQUIC(err)
		}
	}
	return &SendStream{stream: stream}, nil
}

// OpenBi opens an outgoing bidirectional stream, with the same header
// priority discipline as OpenUni.
func (s *Session) OpenBi(ctx context.Context) (*SendStream, *RecvStream, error) {
	stream, err := s.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, nil, sessionErrorFromConn(err)
	}
	if s.h3 != nil {
		if err := writeWithMaxPriority(stream, s.h3.headerBi); err != nil {
			stream.Close()
			return nil, nil, writeErrorFromQUIC(err)
		}
	}
	return &SendStream{stream: stream}, &RecvStream{stream: stream}, nil
}

// Close closes the session, notifying the peer with code and reason. In
// H3 mode this sends a CLOSE_WEBTRANSPORT_SESSION capsule before tearing
// down the connection; in raw mode it closes the QUIC connection directly.
func (s *Session) Close(code uint32, reason string) error {
	if s.h3 == nil {
		return s.conn.CloseWithError(quic.ApplicationErrorCode(code), reason)
	}
	err := s.h3.connect.close(code, reason)
	s.conn.CloseWithError(0, "")
	return err
}

// Closed blocks until the session is closed by either side, returning the
// peer's close code/reason if it initiated the close.
func (s *Session) Closed(ctx context.Context) (code uint32, reason string, err error) {
	connCtx := s.conn.Context()
	if s.h3 == nil {
		select {
		case <-connCtx.Done():
			return 0, "", sessionErrorFromConn(context.Cause(connCtx))
		case <-ctx.Done():
			return 0, "", ctx.Err()
		}
	}
	select {
	case <-s.h3.connect.closed:
		return s.h3.connect.code, s.h3.connect.reason, nil
	case <-connCtx.Done():
		return 0, "", sessionErrorFromConn(context.Cause(connCtx))
	case <-ctx.Done():
		return 0, "", ctx.Err()
	}
}
