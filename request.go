// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Incoming-request module of webtransport package: the handshake objects
// offered to the application before a Session exists.

package webtransport

import (
	"net/url"
	"slices"

	"github.com/quic-go/quic-go"

	"github.com/teonet-go/webtransport-go/h3"
)

// QuicRequest is a freshly accepted raw-QUIC connection (no HTTP/3
// framing), offered to the application before a Session is created.
type QuicRequest struct {
	conn quic.Connection
}

// Ok accepts the connection and returns a raw-mode Session.
func (r *QuicRequest) Ok() *Session {
	return &Session{conn: r.conn}
}

// Close rejects the connection with the given application error code.
func (r *QuicRequest) Close(code quic.ApplicationErrorCode, reason string) error {
	return r.conn.CloseWithError(code, reason)
}

// H3Request is a freshly received extended-CONNECT request, offered to the
// application before the session is accepted or rejected.
type H3Request struct {
	conn     quic.Connection
	stream   quic.Stream
	req      *h3.ConnectRequest
	settings *settingsHandle
}

// URL returns the request target of the extended CONNECT request.
func (r *H3Request) URL() *url.URL { return r.req.URL }

// Origin returns the claimed "origin" header, or "" if none was sent.
func (r *H3Request) Origin() string { return r.req.Origin }

// Protocols lists the subprotocols the client offered, in preference
// order. Empty if the client offered none.
func (r *H3Request) Protocols() []string { return r.req.Protocols }

// Ok accepts the session, optionally selecting one of the protocols
// Protocols offered. Pass "" to accept without a subprotocol. protocol must
// be a member of Protocols(), else it fails with ProtocolMismatchError
// without writing a response.
func (r *H3Request) Ok(protocol string) (*Session, error) {
	if protocol != "" && !slices.Contains(r.req.Protocols, protocol) {
		return nil, &ServerError{Op: "connect-h3", Err: &ProtocolMismatchError{Protocol: protocol}}
	}
	connect, err := respondConnect(r.stream, r.req, 200, protocol)
	if err != nil {
		return nil, &ServerError{Op: "connect-h3", Err: err}
	}
	return newH3Session(r.conn, r.req.URL, protocol, r.settings, connect), nil
}

// Close rejects the request with the given HTTP status code.
func (r *H3Request) Close(status int) error {
	_, err := respondConnect(r.stream, r.req, status, "")
	return err
}
