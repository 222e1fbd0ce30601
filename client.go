// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Client module of webtransport package.

package webtransport

import (
	"context"
	"crypto/tls"
	"net/url"

	"github.com/quic-go/quic-go"
)

// Client dials WebTransport sessions, either over HTTP/3 extended CONNECT
// or directly over raw QUIC.
type Client struct {
	tlsConfig  *tls.Config
	quicConfig *QuicConfig
}

// ClientBuilder builds a Client.
type ClientBuilder struct {
	client Client
}

// NewClientBuilder starts building a Client with an empty TLS config.
func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{client: Client{tlsConfig: &tls.Config{}}}
}

// WithTLSConfig sets the TLS config used to dial. Its NextProtos is
// overwritten per-call by ConnectQUIC/ConnectH3.
func (b *ClientBuilder) WithTLSConfig(cfg *tls.Config) *ClientBuilder {
	b.client.tlsConfig = cfg
	return b
}

// WithRootCert trusts rootCert (a PEM-encoded certificate, given as a file
// path or literal bytes) as the sole root for server verification, instead
// of the system trust store. Useful for dialing servers using self-signed
// certificates, e.g. in tests.
func (b *ClientBuilder) WithRootCert(rootCert CertFile) (*ClientBuilder, error) {
	cfg, err := makeClientTLSConfig(rootCert)
	if err != nil {
		return nil, err
	}
	b.client.tlsConfig = cfg
	return b, nil
}

// WithQuicConfig sets the QUIC dial configuration.
func (b *ClientBuilder) WithQuicConfig(cfg *QuicConfig) *ClientBuilder {
	b.client.quicConfig = cfg
	return b
}

// Build returns the configured Client.
func (b *ClientBuilder) Build() *Client {
	c := b.client
	return &c
}

// ConnectQUIC dials addr over raw QUIC (no HTTP/3 framing at all),
// negotiating alpn directly via TLS, and returns a raw-mode Session.
func (c *Client) ConnectQUIC(ctx context.Context, addr string, alpn string) (*Session, error) {
	tlsConfig := c.tlsConfig.Clone()
	tlsConfig.NextProtos = []string{alpn}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, (*quic.Config)(c.quicConfigOrDefault()))
	if err != nil {
		return nil, &ClientError{Op: "connect", Err: err}
	}
	return &Session{conn: conn}, nil
}

// ConnectH3 dials u.Host over HTTP/3 and establishes a WebTransport
// session via extended CONNECT to u, offering protocols as the acceptable
// subprotocols in preference order. It returns the session and whichever
// protocol (if any) the server selected.
func (c *Client) ConnectH3(ctx context.Context, u *url.URL, protocols ...string) (*Session, string, error) {
	tlsConfig := c.tlsConfig.Clone()
	tlsConfig.NextProtos = []string{ALPNH3}

	conn, err := quic.DialAddr(ctx, u.Host, tlsConfig, (*quic.Config)(c.quicConfigOrDefault()))
	if err != nil {
		return nil, "", &ClientError{Op: "connect", Err: err}
	}

	settings, err := exchangeSettings(ctx, conn)
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, "", &ClientError{Op: "settings", Err: err}
	}

	connect, err := openConnect(ctx, conn, u, protocols)
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, "", &ClientError{Op: "connect-h3", Err: err}
	}

	session := newH3Session(conn, u, connect.protocol, settings, connect)
	return session, connect.protocol, nil
}

func (c *Client) quicConfigOrDefault() *QuicConfig {
	cfg := c.quicConfig
	if cfg == nil {
		cfg = &QuicConfig{}
	}
	cfg.EnableDatagrams = true
	return cfg
}
