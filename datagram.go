// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Datagram module of webtransport package.

package webtransport

import (
	"context"

	"github.com/quic-go/quic-go"
)

// maxDatagramSizer is implemented by quic-go connections that expose the
// current path's datagram size budget. Asserted for optionally so this
// package keeps working against quic-go builds that don't expose it.
type maxDatagramSizer interface {
	MaxDatagramSize() quic.ByteCount
}

// fallbackMaxDatagramSize is used when the underlying connection doesn't
// expose MaxDatagramSize: the smallest payload any IPv6 path is guaranteed
// to carry without fragmentation, per RFC 9000 section 14.
const fallbackMaxDatagramSize = 1200

// SendDatagram sends an unreliable datagram associated with this session.
//
// Datagrams are unreliable: depending on network conditions, a sent
// datagram may never reach the peer. In H3 mode the datagram is prefixed
// with the session-id, per
// https://datatracker.ietf.org/doc/html/draft-ietf-webtrans-http3.
func (s *Session) SendDatagram(data []byte) error {
	if s.h3 == nil {
		if err := s.conn.SendDatagram(data); err != nil {
			return sessionErrorFromDatagram(err)
		}
		return nil
	}

	buf := make([]byte, 0, len(s.h3.headerDatagram)+len(data))
	buf = append(buf, s.h3.headerDatagram...)
	buf = append(buf, data...)
	if err := s.conn.SendDatagram(buf); err != nil {
		return sessionErrorFromDatagram(err)
	}
	return nil
}

// ReceiveDatagram blocks until a datagram addressed to this session
// arrives, ctx is done, or the session closes.
func (s *Session) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	if s.h3 == nil {
		data, err := s.conn.ReceiveDatagram(ctx)
		if err != nil {
			return nil, sessionErrorFromConn(err)
		}
		return data, nil
	}
	return s.h3.accept.receiveDatagram(ctx)
}

// MaxDatagramSize returns the largest payload SendDatagram can currently
// deliver without fragmentation, accounting for the WebTransport session
// prefix added in H3 mode.
func (s *Session) MaxDatagramSize() int {
	max := fallbackMaxDatagramSize
	if d, ok := s.conn.(maxDatagramSizer); ok {
		max = int(d.MaxDatagramSize())
	}
	if s.h3 == nil {
		return max
	}
	if n := max - len(s.h3.headerDatagram); n > 0 {
		return n
	}
	return 0
}
