// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Server module of webtransport package.

package webtransport

import (
	"context"
	"net/url"
	"slices"

	"github.com/quic-go/quic-go"
)

// Server accepts WebTransport sessions, either over HTTP/3 extended
// CONNECT or directly over raw QUIC, depending on each connection's
// negotiated ALPN.
type Server struct {
	// ListenAddr sets an address to bind the server to, e.g. ":4433".
	ListenAddr string
	// TLSCert defines a path to, or byte array containing, a certificate
	// (CRT file).
	TLSCert CertFile
	// TLSKey defines a path to, or byte array containing, the
	// certificate's private key (KEY file).
	TLSKey CertFile
	// AllowedOrigins lists the origins allowed to establish an H3
	// session. A nil slice allows all origins.
	AllowedOrigins []string
	// RawALPNs lists additional ALPN protocol IDs accepted as raw-QUIC
	// connections alongside ALPNH3.
	RawALPNs []string
	// QuicConfig carries additional configuration for the QUIC listener.
	QuicConfig *QuicConfig
}

// ServerBuilder builds a Server.
type ServerBuilder struct {
	server Server
}

// NewServerBuilder starts building a Server bound to listenAddr and using
// the given certificate and key.
func NewServerBuilder(listenAddr string, cert, key CertFile) *ServerBuilder {
	return &ServerBuilder{server: Server{ListenAddr: listenAddr, TLSCert: cert, TLSKey: key}}
}

// WithAllowedOrigins restricts H3 sessions to the given origins.
func (b *ServerBuilder) WithAllowedOrigins(origins ...string) *ServerBuilder {
	b.server.AllowedOrigins = origins
	return b
}

// WithRawALPNs accepts the given additional ALPN protocol IDs as raw-QUIC
// connections.
func (b *ServerBuilder) WithRawALPNs(alpns ...string) *ServerBuilder {
	b.server.RawALPNs = alpns
	return b
}

// WithQuicConfig sets the QUIC listener configuration.
func (b *ServerBuilder) WithQuicConfig(cfg *QuicConfig) *ServerBuilder {
	b.server.QuicConfig = cfg
	return b
}

// Build returns the configured Server.
func (b *ServerBuilder) Build() *Server {
	s := b.server
	return &s
}

// Request is offered to the application for every freshly accepted
// connection, before a Session exists. Exactly one of Quic and H3 is set,
// depending on the connection's negotiated ALPN.
type Request struct {
	Quic *QuicRequest
	H3   *H3Request
}

// Listen binds ListenAddr and returns a listener whose connections are
// available from Accept. Cancel ctx to make the listener stop accepting
// and close.
func (s *Server) Listen(ctx context.Context) (*quic.Listener, error) {
	if s.QuicConfig == nil {
		s.QuicConfig = &QuicConfig{}
	}
	s.QuicConfig.EnableDatagrams = true

	tlsConfig, err := s.makeTLSConfig()
	if err != nil {
		return nil, err
	}
	tlsConfig.NextProtos = append([]string{ALPNH3}, s.RawALPNs...)

	listener, err := quic.ListenAddr(s.ListenAddr, tlsConfig, (*quic.Config)(s.QuicConfig))
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	return listener, nil
}

// Accept waits for and returns the next incoming Request: a QuicRequest
// for a connection negotiating anything other than ALPNH3, or an
// H3Request once the SETTINGS exchange has completed, the extended-CONNECT
// request has been read and origin validation has passed. The CONNECT
// response is written later, by H3Request.Ok or H3Request.Close.
func (s *Server) Accept(ctx context.Context, listener *quic.Listener) (*Request, error) {
	conn, err := listener.Accept(ctx)
	if err != nil {
		return nil, &ServerError{Op: "accept", Err: err}
	}

	if conn.ConnectionState().TLS.NegotiatedProtocol != ALPNH3 {
		return &Request{Quic: &QuicRequest{conn: conn}}, nil
	}

	settings, err := exchangeSettings(ctx, conn)
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, &ServerError{Op: "settings", Err: err}
	}

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, &ServerError{Op: "connect-h3", Err: err}
	}

	req, err := acceptConnect(stream)
	if err != nil {
		stream.Close()
		conn.CloseWithError(0, "")
		return nil, &ServerError{Op: "connect-h3", Err: err}
	}

	if !s.validateOrigin(req.Origin) {
		respondConnect(stream, req, 403, "")
		return nil, &ServerError{Op: "connect-h3", Err: &ProtocolMismatchError{Status: 403}}
	}

	return &Request{H3: &H3Request{conn: conn, stream: stream, req: req, settings: settings}}, nil
}

// validateOrigin checks an H3 CONNECT request's claimed origin against
// AllowedOrigins. A nil AllowedOrigins allows every origin, including one
// that was never sent.
func (s *Server) validateOrigin(origin string) bool {
	if s.AllowedOrigins == nil {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return slices.Contains(s.AllowedOrigins, u.Host)
}
