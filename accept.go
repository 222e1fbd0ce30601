// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// H3 accept demultiplexer: classifies freshly accepted uni/bi streams by
// their leading stream-type/frame-type varint(s), handing WebTransport
// streams to the application and discarding everything else.

package webtransport

import (
	"bytes"
	"context"
	"log"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/quicvarint"

	"github.com/teonet-go/webtransport-go/h3"
)

// h3Accept owns two background loops (one per QUIC stream direction) plus
// one header-decode goroutine per freshly accepted stream. Decoded
// WebTransport streams are handed off on buffered channels; everything
// else is logged and dropped, matching the tolerant handling spec'd for
// QPACK encoder/decoder streams and unknown/greased types.
//
// Once the connection fails, that error is latched so that every current
// and future AcceptUni/AcceptBi call observes it, rather than only
// whichever call happened to be blocked at the moment of failure.
type h3Accept struct {
	conn      quic.Connection
	sessionID uint64

	readyUni chan *RecvStream
	readyBi  chan biStream

	mu      sync.Mutex
	connErr error
	done    chan struct{}
}

type biStream struct {
	send *SendStream
	recv *RecvStream
}

func newH3Accept(conn quic.Connection, sessionID uint64) *h3Accept {
	a := &h3Accept{
		conn:      conn,
		sessionID: sessionID,
		readyUni:  make(chan *RecvStream, 8),
		readyBi:   make(chan biStream, 8),
		done:      make(chan struct{}),
	}
	go a.runUni()
	go a.runBi()
	return a
}

// fail latches err as the connection-level failure, if none is recorded
// yet, and wakes every blocked and future Accept* call.
func (a *h3Accept) fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connErr == nil {
		a.connErr = err
		close(a.done)
	}
}

func (a *h3Accept) err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connErr
}

// runUni accepts every incoming unidirectional stream and spawns a
// decoder goroutine for each, so one slow or stalled peer stream never
// blocks classification of the others.
func (a *h3Accept) runUni() {
	for {
		stream, err := a.conn.AcceptUniStream(context.Background())
		if err != nil {
			a.fail(err)
			return
		}
		go a.classifyUni(stream)
	}
}

func (a *h3Accept) classifyUni(stream quic.ReceiveStream) {
	sh := h3.StreamHeader{}
	if err := sh.Read(stream); err != nil {
		log.Printf("webtransport: accept: decoding uni stream header: %v", err)
		return
	}
	switch sh.Type {
	case h3.STREAM_WEBTRANSPORT_UNI_STREAM:
		if sh.ID != a.sessionID {
			log.Printf("webtransport: accept: uni stream for unknown session %d", sh.ID)
			return
		}
		a.readyUni <- &RecvStream{stream: stream}
	case h3.STREAM_QPACK_ENCODER, h3.STREAM_QPACK_DECODER, h3.STREAM_CONTROL:
		// Held open for the life of the connection; there is nothing more
		// to read from it in this library's scope.
	default:
		log.Printf("webtransport: accept: ignoring uni stream type %#x", sh.Type)
	}
}

func (a *h3Accept) runBi() {
	for {
		stream, err := a.conn.AcceptStream(context.Background())
		if err != nil {
			a.fail(err)
			return
		}
		go a.classifyBi(stream)
	}
}

func (a *h3Accept) classifyBi(stream quic.Stream) {
	f := h3.Frame{}
	if err := f.Read(stream); err != nil {
		log.Printf("webtransport: accept: decoding bi stream header: %v", err)
		return
	}
	if f.Type != h3.FRAME_WEBTRANSPORT_STREAM {
		log.Printf("webtransport: accept: ignoring bi stream frame type %#x", f.Type)
		return
	}
	if f.SessionID != a.sessionID {
		log.Printf("webtransport: accept: bi stream for unknown session %d", f.SessionID)
		return
	}
	a.readyBi <- biStream{send: &SendStream{stream: stream}, recv: &RecvStream{stream: stream}}
}

func (a *h3Accept) acceptUni(ctx context.Context) (*RecvStream, error) {
	select {
	case s := <-a.readyUni:
		return s, nil
	case <-a.done:
		return nil, sessionErrorFromConn(a.err())
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *h3Accept) acceptBi(ctx context.Context) (*SendStream, *RecvStream, error) {
	select {
	case s := <-a.readyBi:
		return s.send, s.recv, nil
	case <-a.done:
		return nil, nil, sessionErrorFromConn(a.err())
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// receiveDatagram blocks for the next datagram on the connection. Since
// this library enforces one WebTransport session per QUIC connection,
// every datagram on the connection belongs to this session once its
// session-id prefix is verified and stripped.
func (a *h3Accept) receiveDatagram(ctx context.Context) ([]byte, error) {
	data, err := a.conn.ReceiveDatagram(ctx)
	if err != nil {
		return nil, sessionErrorFromConn(err)
	}
	r := bytes.NewReader(data)
	sid, err := quicvarint.Read(r)
	if err != nil {
		return nil, sessionErrorFromWT(&WebTransportError{Kind: WTReadError, Err: err})
	}
	if sid != a.sessionID {
		return nil, sessionErrorFromWT(&WebTransportError{Kind: WTUnknownSession, Err: ErrUnknownSession})
	}
	return data[quicvarint.Len(sid):], nil
}
