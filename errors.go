// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Error taxonomy for the webtransport package: one named error type per
// boundary, so that callers can match precisely the failure modes reachable
// at that boundary instead of a single catch-all error.

package webtransport

import (
	"errors"
	"fmt"

	"github.com/quic-go/quic-go"

	"github.com/teonet-go/webtransport-go/h3"
)

// Error is implemented by every error type this package returns, so generic
// code can introspect a failure without matching concrete variants.
type Error interface {
	error
	// SessionError returns the peer's close code/reason if this error
	// represents a session close, and ok=false otherwise.
	SessionError() (code uint32, reason string, ok bool)
	// StreamCode returns the application error code if this error
	// represents a peer STOP_SENDING/RESET_STREAM, and ok=false otherwise.
	StreamCode() (code uint32, ok bool)
}

// ClientError is returned by Client.ConnectQUIC and Client.ConnectH3.
type ClientError struct {
	// Op names the stage that failed: "connect" (dialing), "settings" or
	// "connect-h3". Bind, read and write failures are not reported under
	// separate stages; they surface under whichever of these was running.
	Op  string
	Err error
}

func (e *ClientError) Error() string { return fmt.Sprintf("webtransport: client %s: %v", e.Op, e.Err) }
func (e *ClientError) Unwrap() error { return e.Err }
func (e *ClientError) SessionError() (uint32, string, bool) { return 0, "", false }
func (e *ClientError) StreamCode() (uint32, bool) { return 0, false }

// ServerError is returned by Server.Accept and the H3Request/QuicRequest
// handshake methods.
type ServerError struct {
	// Op names the stage that failed: "accept", "settings" or
	// "connect-h3". Read and write failures are not reported under
	// separate stages; they surface under whichever of these was running.
	Op  string
	Err error
}

func (e *ServerError) Error() string { return fmt.Sprintf("webtransport: server %s: %v", e.Op, e.Err) }
func (e *ServerError) Unwrap() error { return e.Err }
func (e *ServerError) SessionError() (uint32, string, bool) { return 0, "", false }
func (e *ServerError) StreamCode() (uint32, bool) { return 0, false }

// SessionError is returned by Session's accept/open/datagram/closed methods.
type SessionError struct {
	// Exactly one of ConnErr, WTErr or DatagramErr is set.
	ConnErr      error
	WTErr        *WebTransportError
	DatagramErr  error
}

func (e *SessionError) Error() string {
	switch {
	case e.WTErr != nil:
		return fmt.Sprintf("webtransport: session: %v", e.WTErr)
	case e.DatagramErr != nil:
		return fmt.Sprintf("webtransport: session: send datagram: %v", e.DatagramErr)
	default:
		return fmt.Sprintf("webtransport: session: connection: %v", e.ConnErr)
	}
}

func (e *SessionError) Unwrap() error {
	switch {
	case e.WTErr != nil:
		return e.WTErr
	case e.DatagramErr != nil:
		return e.DatagramErr
	default:
		return e.ConnErr
	}
}

func (e *SessionError) SessionError() (uint32, string, bool) {
	if e.WTErr != nil {
		return e.WTErr.SessionError()
	}
	return 0, "", false
}

func (e *SessionError) StreamCode() (uint32, bool) { return 0, false }

func sessionErrorFromConn(err error) *SessionError { return &SessionError{ConnErr: err} }

func sessionErrorFromWT(err *WebTransportError) *SessionError { return &SessionError{WTErr: err} }

func sessionErrorFromDatagram(err error) *SessionError { return &SessionError{DatagramErr: err} }

// WebTransportErrorKind discriminates the cases of WebTransportError.
type WebTransportErrorKind int

const (
	// WTClosed means the peer closed the session with Code/Reason set.
	WTClosed WebTransportErrorKind = iota
	// WTUnknownSession means an incoming datagram carried a session-id
	// that did not match this session.
	WTUnknownSession
	// WTReadError wraps an underlying stream read failure.
	WTReadError
	// WTWriteError wraps an underlying stream write failure.
	WTWriteError
)

// WebTransportError is the error carried by SessionError.WTErr.
type WebTransportError struct {
	Kind WebTransportErrorKind
	// Code/Reason are valid when Kind == WTClosed.
	Code   uint32
	Reason string
	// Err is valid when Kind == WTReadError or WTWriteError.
	Err error
}

func (e *WebTransportError) Error() string {
	switch e.Kind {
	case WTClosed:
		return fmt.Sprintf("closed: code=%d reason=%s", e.Code, e.Reason)
	case WTUnknownSession:
		return "unknown session"
	case WTReadError:
		return fmt.Sprintf("read error: %v", e.Err)
	case WTWriteError:
		return fmt.Sprintf("write error: %v", e.Err)
	default:
		return "webtransport error"
	}
}

func (e *WebTransportError) Unwrap() error { return e.Err }

func (e *WebTransportError) SessionError() (uint32, string, bool) {
	if e.Kind == WTClosed {
		return e.Code, e.Reason, true
	}
	return 0, "", false
}

// ErrUnknownSession is returned (wrapped in WebTransportError/SessionError)
// when an incoming datagram's session-id does not match ours. Incoming
// streams with a foreign session-id are logged and dropped instead.
var ErrUnknownSession = errors.New("webtransport: unknown session")

// WriteError is returned by SendStream methods.
type WriteError struct {
	// Exactly one of Stopped/InvalidStopped/Session/Closed is set, in that
	// priority order: Stopped when the peer's STOP_SENDING code round-tripped
	// through the HTTP/3 mapping, InvalidStopped when it didn't.
	Stopped        uint32
	HasStopped     bool
	InvalidStopped uint64
	Session        *SessionError
	Closed         bool
}

func (e *WriteError) Error() string {
	switch {
	case e.HasStopped:
		return fmt.Sprintf("STOP_SENDING: %d", e.Stopped)
	case e.Session != nil:
		return fmt.Sprintf("session error: %v", e.Session)
	case e.Closed:
		return "stream closed"
	default:
		return fmt.Sprintf("invalid STOP_SENDING: %d", e.InvalidStopped)
	}
}

func (e *WriteError) Unwrap() error {
	if e.Session != nil {
		return e.Session
	}
	return nil
}

func (e *WriteError) SessionError() (uint32, string, bool) {
	if e.Session != nil {
		return e.Session.SessionError()
	}
	return 0, "", false
}

func (e *WriteError) StreamCode() (uint32, bool) {
	if e.HasStopped {
		return e.Stopped, true
	}
	return 0, false
}

// writeErrorFromQUIC translates an error returned by a quic.SendStream
// method into a WriteError, per the HTTP/3 reserved error-code mapping.
func writeErrorFromQUIC(err error) *WriteError {
	var streamErr *quic.StreamError
	if errors.As(err, &streamErr) {
		code, ok := h3.ErrorFromHTTP3(uint64(streamErr.ErrorCode))
		if ok {
			return &WriteError{Stopped: code, HasStopped: true}
		}
		return &WriteError{InvalidStopped: uint64(streamErr.ErrorCode)}
	}
	if errors.Is(err, quic.ErrConnectionClosed) {
		return &WriteError{Session: sessionErrorFromConn(err)}
	}
	return &WriteError{Closed: true}
}

// ReadError is returned by RecvStream methods.
type ReadError struct {
	Session     *SessionError
	Reset       uint32
	HasReset    bool
	InvalidReset uint64
	Closed      bool
}

func (e *ReadError) Error() string {
	switch {
	case e.HasReset:
		return fmt.Sprintf("RESET_STREAM: %d", e.Reset)
	case e.Session != nil:
		return fmt.Sprintf("session error: %v", e.Session)
	case e.Closed:
		return "stream already closed"
	default:
		return fmt.Sprintf("invalid RESET_STREAM: %d", e.InvalidReset)
	}
}

func (e *ReadError) Unwrap() error {
	if e.Session != nil {
		return e.Session
	}
	return nil
}

func (e *ReadError) SessionError() (uint32, string, bool) {
	if e.Session != nil {
		return e.Session.SessionError()
	}
	return 0, "", false
}

func (e *ReadError) StreamCode() (uint32, bool) {
	if e.HasReset {
		return e.Reset, true
	}
	return 0, false
}

func readErrorFromQUIC(err error) *ReadError {
	var streamErr *quic.StreamError
	if errors.As(err, &streamErr) {
		code, ok := h3.ErrorFromHTTP3(uint64(streamErr.ErrorCode))
		if ok {
			return &ReadError{Reset: code, HasReset: true}
		}
		return &ReadError{InvalidReset: uint64(streamErr.ErrorCode)}
	}
	if errors.Is(err, quic.ErrConnectionClosed) {
		return &ReadError{Session: sessionErrorFromConn(err)}
	}
	return &ReadError{Closed: true}
}

// ReadExactError is returned by RecvStream.ReadExact.
type ReadExactError struct {
	FinishedEarly int
	HasFinishedEarly bool
	Read          *ReadError
}

func (e *ReadExactError) Error() string {
	if e.HasFinishedEarly {
		return fmt.Sprintf("finished early: read %d bytes", e.FinishedEarly)
	}
	return fmt.Sprintf("read error: %v", e.Read)
}

func (e *ReadExactError) Unwrap() error {
	if e.Read != nil {
		return e.Read
	}
	return nil
}

func (e *ReadExactError) SessionError() (uint32, string, bool) {
	if e.Read != nil {
		return e.Read.SessionError()
	}
	return 0, "", false
}

func (e *ReadExactError) StreamCode() (uint32, bool) {
	if e.Read != nil {
		return e.Read.StreamCode()
	}
	return 0, false
}

// ReadToEndError is returned by RecvStream.ReadToEnd.
type ReadToEndError struct {
	TooLong bool
	Read    *ReadError
}

func (e *ReadToEndError) Error() string {
	if e.TooLong {
		return "too long"
	}
	return fmt.Sprintf("read error: %v", e.Read)
}

func (e *ReadToEndError) Unwrap() error {
	if e.Read != nil {
		return e.Read
	}
	return nil
}

func (e *ReadToEndError) SessionError() (uint32, string, bool) {
	if e.Read != nil {
		return e.Read.SessionError()
	}
	return 0, "", false
}

func (e *ReadToEndError) StreamCode() (uint32, bool) {
	if e.Read != nil {
		return e.Read.StreamCode()
	}
	return 0, false
}

// ClosedStream indicates the stream was already closed.
type ClosedStream struct{}

func (ClosedStream) Error() string { return "stream closed" }

// ErrWebtransportUnsupported is wrapped by the ClientError/ServerError
// returned from the SETTINGS exchange when the peer's SETTINGS frame does
// not advertise ENABLE_WEBTRANSPORT.
var ErrWebtransportUnsupported = errors.New("webtransport: peer does not support WebTransport")

// ProtocolMismatchError is returned when the extended CONNECT exchange does
// not produce a usable subprotocol agreement, or the server rejects the
// CONNECT outright.
type ProtocolMismatchError struct {
	// Status is the HTTP status the server returned, when non-zero.
	Status int
	// Protocol is the selected subprotocol that was not among those
	// offered, or "" when the client offered subprotocols and the server
	// selected none.
	Protocol string
}

func (e *ProtocolMismatchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("webtransport: CONNECT rejected: status %d", e.Status)
	}
	return fmt.Sprintf("webtransport: no subprotocol agreement (selected %q)", e.Protocol)
}

func (e *ProtocolMismatchError) SessionError() (uint32, string, bool) { return 0, "", false }
func (e *ProtocolMismatchError) StreamCode() (uint32, bool)           { return 0, false }
