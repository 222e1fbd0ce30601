// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// TLS configuration and CertFile type for webtransport package.
// This module provides a CertFile type and a function to generate a tls.Config
// from a pair of CertFile values representing a TLS certificate and key.

package webtransport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// A CertFile represents a TLS certificate or key, expressed either as a file
// path or file contents as a []byte.
type CertFile struct {
	Path string
	Data []byte
}

// Returns true if this CertFile references a file path.
func (c *CertFile) isFilePath() bool {
	return c.Path != ""
}

// makeTLSConfig generates a TLS configuration from the Server's TLS cert and
// key. The cert and key can be specified either as file paths or as byte
// slices. NextProtos is left unset; Listen fills it in with ALPNH3 plus any
// RawALPNs.
func (s *Server) makeTLSConfig() (*tls.Config, error) {
	var cert tls.Certificate
	var err error

	if s.TLSCert.isFilePath() && s.TLSKey.isFilePath() {
		// Load the cert and key from files.
		cert, err = tls.LoadX509KeyPair(s.TLSCert.Path, s.TLSKey.Path)
	} else {
		// Load the cert and key from byte slices.
		cert, err = tls.X509KeyPair(s.TLSCert.Data, s.TLSKey.Data)
	}
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
	}, nil
}

// makeClientTLSConfig builds a tls.Config for dialing a cert from
// CertFile. If both Path and Data are empty, the returned config has no
// RootCAs override and falls back to the system trust store.
func makeClientTLSConfig(rootCert CertFile) (*tls.Config, error) {
	if rootCert.Path == "" && rootCert.Data == nil {
		return &tls.Config{}, nil
	}

	pem := rootCert.Data
	if rootCert.isFilePath() {
		data, err := os.ReadFile(rootCert.Path)
		if err != nil {
			return nil, err
		}
		pem = data
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("webtransport: no certificates found in root cert")
	}
	return &tls.Config{RootCAs: pool}, nil
}
