// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Stream module of webtransport package: SendStream/RecvStream wrap a
// quic-go stream with the error taxonomy and, in H3 mode, the maximum-
// priority header-write discipline required before any application data.

package webtransport

import (
	"bytes"
	"errors"
	"io"

	"github.com/quic-go/quic-go"

	"github.com/teonet-go/webtransport-go/h3"
)

// streamPrioritizer is implemented by quic-go streams that support
// RFC 9218 extensible priorities. It is asserted for optionally, so this
// package keeps working against quic-go builds that don't expose it.
type streamPrioritizer interface {
	SetPriority(int)
}

const (
	streamPriorityMax     = int(^uint(0) >> 1) // math.MaxInt, without importing math for one constant
	streamPriorityDefault = 0
)

// writeWithMaxPriority writes header at maximum stream priority, then
// restores the default, so application data written afterwards can never
// queue ahead of the WebTransport stream-type prefix.
func writeWithMaxPriority(stream quic.SendStream, header []byte) error {
	if p, ok := stream.(streamPrioritizer); ok {
		p.SetPriority(streamPriorityMax)
		defer p.SetPriority(streamPriorityDefault)
	}
	_, err := stream.Write(header)
	return err
}

// SendStream is an outgoing WebTransport stream: either unidirectional, or
// the send half of a bidirectional stream.
type SendStream struct {
	stream  quic.SendStream
	lastErr *quic.StreamError
}

// Write writes p to the stream, translating quic-go errors into WriteError.
func (s *SendStream) Write(p []byte) (int, error) {
	n, err := s.stream.Write(p)
	if err != nil {
		s.captureErr(err)
		return n, writeErrorFromQUIC(err)
	}
	return n, nil
}

// WriteAll writes all of p, returning once every byte has been accepted or
// an error occurs.
func (s *SendStream) WriteAll(p []byte) error {
	_, err := io.Copy(writerFunc(s.Write), bytes.NewReader(p))
	return err
}

// writerFunc adapts a Write method value to io.Writer.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// SetPriority adjusts the stream's relative send priority, if the
// underlying transport supports it; it is a no-op otherwise.
func (s *SendStream) SetPriority(prio int) {
	if p, ok := s.stream.(streamPrioritizer); ok {
		p.SetPriority(prio)
	}
}

// Reset aborts the stream, signalling code to the peer as RESET_STREAM.
func (s *SendStream) Reset(code uint32) {
	s.stream.CancelWrite(quic.StreamErrorCode(h3.ErrorToHTTP3(code)))
}

// Finish closes the stream gracefully, signalling FIN to the peer.
func (s *SendStream) Finish() error {
	return s.stream.Close()
}

// Stopped reports whether the peer has sent STOP_SENDING, and if so, the
// application error code it carried. It returns (0, false) until such an
// error has actually been observed by a prior Write call, since quic-go
// surfaces STOP_SENDING only as the error returned from Write, not as a
// separately awaitable event.
func (s *SendStream) Stopped() (uint32, bool) {
	if s.lastErr == nil {
		return 0, false
	}
	return h3.ErrorFromHTTP3(uint64(s.lastErr.ErrorCode))
}

// ID returns the stream's QUIC stream ID.
func (s *SendStream) ID() uint64 { return uint64(s.stream.StreamID()) }

func (s *SendStream) captureErr(err error) {
	var se *quic.StreamError
	if errors.As(err, &se) {
		s.lastErr = se
	}
}

// RecvStream is an incoming WebTransport stream: either unidirectional, or
// the receive half of a bidirectional stream.
type RecvStream struct {
	stream  quic.ReceiveStream
	lastErr *quic.StreamError
}

// Read reads up to len(p) bytes, translating quic-go errors into
// ReadError. io.EOF is returned unwrapped so callers can use the usual
// Go read-loop idiom.
func (s *RecvStream) Read(p []byte) (int, error) {
	n, err := s.stream.Read(p)
	if err != nil && err != io.EOF {
		s.captureErr(err)
		return n, readErrorFromQUIC(err)
	}
	return n, err
}

// ReadExact reads exactly len(p) bytes, or returns a ReadExactError
// describing how far it got.
func (s *RecvStream) ReadExact(p []byte) error {
	n, err := io.ReadFull(s, p)
	if err == nil {
		return nil
	}
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return &ReadExactError{FinishedEarly: n, HasFinishedEarly: true}
	}
	var re *ReadError
	if errors.As(err, &re) {
		return &ReadExactError{Read: re}
	}
	return &ReadExactError{Read: &ReadError{Closed: true}}
}

// ReadToEnd reads until EOF, returning a ReadToEndError if more than limit
// bytes are seen first.
func (s *RecvStream) ReadToEnd(limit int) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := s.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if len(buf) > limit {
			return nil, &ReadToEndError{TooLong: true}
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			var re *ReadError
			if errors.As(err, &re) {
				return nil, &ReadToEndError{Read: re}
			}
			return nil, &ReadToEndError{Read: &ReadError{Closed: true}}
		}
	}
}

// Stop aborts reading, sending STOP_SENDING with code to the peer.
func (s *RecvStream) Stop(code uint32) {
	s.stream.CancelRead(quic.StreamErrorCode(h3.ErrorToHTTP3(code)))
}

// ReceivedReset reports whether the peer has reset the stream (RESET_STREAM),
// and if so, the application error code it carried.
func (s *RecvStream) ReceivedReset() (uint32, bool) {
	if s.lastErr == nil {
		return 0, false
	}
	return h3.ErrorFromHTTP3(uint64(s.lastErr.ErrorCode))
}

// ID returns the stream's QUIC stream ID.
func (s *RecvStream) ID() uint64 { return uint64(s.stream.StreamID()) }

func (s *RecvStream) captureErr(err error) {
	var se *quic.StreamError
	if errors.As(err, &se) {
		s.lastErr = se
	}
}
