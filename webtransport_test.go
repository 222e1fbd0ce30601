// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webtransport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"net/url"
	"testing"
	"time"
)

// generateSelfSignedCert produces a loopback-only certificate/key pair for
// dialing a local test server.
func generateSelfSignedCert(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"webtransport-go test"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("marshalling key: %v", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func clientWithRootCert(t *testing.T, certPEM []byte) *Client {
	t.Helper()
	b, err := NewClientBuilder().WithRootCert(CertFile{Data: certPEM})
	if err != nil {
		t.Fatalf("WithRootCert: %v", err)
	}
	return b.Build()
}

// startTestServer binds server and runs handle on the single Request it
// accepts, on a background goroutine. Cancel the returned stop func to shut
// the listener down.
func startTestServer(t *testing.T, server *Server, handle func(*Request)) (addr string, stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	listener, err := server.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	go func() {
		req, err := server.Accept(ctx, listener)
		if err != nil {
			return
		}
		handle(req)
	}()

	return listener.Addr().String(), cancel
}

func TestH3SessionSmoke(t *testing.T) {
	certPEM, keyPEM := generateSelfSignedCert(t)
	server := NewServerBuilder("127.0.0.1:0", CertFile{Data: certPEM}, CertFile{Data: keyPEM}).Build()

	sessionEstablished := make(chan struct{})
	addr, stop := startTestServer(t, server, func(req *Request) {
		if req.H3 == nil {
			t.Errorf("expected an H3Request")
			return
		}
		if _, err := req.H3.Ok("chat.v1"); err != nil {
			t.Errorf("H3Request.Ok: %v", err)
			return
		}
		close(sessionEstablished)
	})
	defer stop()

	client := clientWithRootCert(t, certPEM)

	u, _ := url.Parse("https://" + addr + "/wt")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, protocol, err := client.ConnectH3(ctx, u, "chat.v1")
	if err != nil {
		t.Fatalf("ConnectH3: %v", err)
	}
	if protocol != "chat.v1" {
		t.Fatalf("got protocol %q, want chat.v1", protocol)
	}
	if session.URL().String() != u.String() {
		t.Fatalf("got URL %q, want %q", session.URL(), u)
	}

	select {
	case <-sessionEstablished:
	case <-ctx.Done():
		t.Fatalf("server never accepted the session: %v", ctx.Err())
	}
}

func TestSubprotocolMismatch(t *testing.T) {
	certPEM, keyPEM := generateSelfSignedCert(t)
	server := NewServerBuilder("127.0.0.1:0", CertFile{Data: certPEM}, CertFile{Data: keyPEM}).Build()

	addr, stop := startTestServer(t, server, func(req *Request) {
		if req.H3 == nil {
			return
		}
		// Accept without selecting any of the offered subprotocols.
		req.H3.Ok("")
	})
	defer stop()

	client := clientWithRootCert(t, certPEM)

	u, _ := url.Parse("https://" + addr + "/wt")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := client.ConnectH3(ctx, u, "chat.v1")
	if err == nil {
		t.Fatalf("expected an error when the server omits a required subprotocol")
	}
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("got %v (%T), want *ClientError", err, err)
	}
	var mismatch *ProtocolMismatchError
	if !errors.As(clientErr.Err, &mismatch) {
		t.Fatalf("got %v, want *ProtocolMismatchError", clientErr.Err)
	}
}

// TestSubprotocolMismatchUnofferedSelection exercises scenario 3 verbatim:
// the client offers ["a","b"]; the peer answers with protocol "c", which
// the client never offered. Both sides must observe
// ProtocolMismatchError{Protocol: "c"}.
func TestSubprotocolMismatchUnofferedSelection(t *testing.T) {
	certPEM, keyPEM := generateSelfSignedCert(t)
	server := NewServerBuilder("127.0.0.1:0", CertFile{Data: certPEM}, CertFile{Data: keyPEM}).Build()

	serverErrCh := make(chan error, 1)
	addr, stop := startTestServer(t, server, func(req *Request) {
		if req.H3 == nil {
			serverErrCh <- errors.New("expected an H3Request")
			return
		}
		// H3Request.Ok must reject a protocol outside Protocols() before
		// ever writing a response.
		if _, err := req.H3.Ok("c"); err == nil {
			serverErrCh <- errors.New("expected H3Request.Ok(\"c\") to reject an unoffered protocol")
			return
		} else {
			var mismatch *ProtocolMismatchError
			if !errors.As(err, &mismatch) || mismatch.Protocol != "c" {
				serverErrCh <- err
				return
			}
		}

		// Simulate a misbehaving peer that writes the wire response anyway,
		// so the client side of the check is exercised too.
		if _, err := respondConnect(req.H3.stream, req.H3.req, 200, "c"); err != nil {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	})
	defer stop()

	client := clientWithRootCert(t, certPEM)

	u, _ := url.Parse("https://" + addr + "/wt")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := client.ConnectH3(ctx, u, "a", "b")
	if err == nil {
		t.Fatalf("expected an error when the peer selects a protocol never offered")
	}
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("got %v (%T), want *ClientError", err, err)
	}
	var mismatch *ProtocolMismatchError
	if !errors.As(clientErr.Err, &mismatch) || mismatch.Protocol != "c" {
		t.Fatalf("got %v, want ProtocolMismatchError{Protocol: \"c\"}", clientErr.Err)
	}

	select {
	case serverErr := <-serverErrCh:
		if serverErr != nil {
			t.Fatalf("server handler: %v", serverErr)
		}
	case <-ctx.Done():
		t.Fatalf("server handler never completed: %v", ctx.Err())
	}
}

func TestRejectedConnectReturnsError(t *testing.T) {
	certPEM, keyPEM := generateSelfSignedCert(t)
	server := NewServerBuilder("127.0.0.1:0", CertFile{Data: certPEM}, CertFile{Data: keyPEM}).Build()

	addr, stop := startTestServer(t, server, func(req *Request) {
		if req.H3 == nil {
			return
		}
		req.H3.Close(403)
	})
	defer stop()

	client := clientWithRootCert(t, certPEM)

	u, _ := url.Parse("https://" + addr + "/wt")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := client.ConnectH3(ctx, u); err == nil {
		t.Fatalf("expected an error for a rejected CONNECT")
	}
}

func TestRawQUICSmoke(t *testing.T) {
	const alpn = "my-raw-proto"
	certPEM, keyPEM := generateSelfSignedCert(t)
	server := NewServerBuilder("127.0.0.1:0", CertFile{Data: certPEM}, CertFile{Data: keyPEM}).
		WithRawALPNs(alpn).
		Build()

	accepted := make(chan struct{})
	addr, stop := startTestServer(t, server, func(req *Request) {
		if req.Quic == nil {
			t.Errorf("expected a QuicRequest")
			return
		}
		req.Quic.Ok()
		close(accepted)
	})
	defer stop()

	client := clientWithRootCert(t, certPEM)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := client.ConnectQUIC(ctx, addr, alpn)
	if err != nil {
		t.Fatalf("ConnectQUIC: %v", err)
	}
	if session.URL() != nil {
		t.Fatalf("expected a nil URL for a raw-mode session")
	}
	if session.Protocol() != "" {
		t.Fatalf("expected no protocol for a raw-mode session")
	}

	select {
	case <-accepted:
	case <-ctx.Done():
		t.Fatalf("server never accepted the connection: %v", ctx.Err())
	}
}

func TestSessionCloseIsObservedByPeer(t *testing.T) {
	certPEM, keyPEM := generateSelfSignedCert(t)
	server := NewServerBuilder("127.0.0.1:0", CertFile{Data: certPEM}, CertFile{Data: keyPEM}).Build()

	serverClosed := make(chan struct{})
	addr, stop := startTestServer(t, server, func(req *Request) {
		if req.H3 == nil {
			return
		}
		session, err := req.H3.Ok("")
		if err != nil {
			t.Errorf("H3Request.Ok: %v", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		code, reason, err := session.Closed(ctx)
		if err != nil {
			t.Errorf("Closed: %v", err)
			return
		}
		if code != 7 || reason != "done" {
			t.Errorf("got code=%d reason=%q, want code=7 reason=%q", code, reason, "done")
		}
		close(serverClosed)
	})
	defer stop()

	client := clientWithRootCert(t, certPEM)

	u, _ := url.Parse("https://" + addr + "/wt")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, _, err := client.ConnectH3(ctx, u)
	if err != nil {
		t.Fatalf("ConnectH3: %v", err)
	}
	if err := session.Close(7, "done"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-serverClosed:
	case <-ctx.Done():
		t.Fatalf("server never observed the close: %v", ctx.Err())
	}
}
