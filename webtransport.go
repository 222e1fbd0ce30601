// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webtransport provides a WebTransport client and server
// implementation in Go, establishing sessions either over HTTP/3 extended
// CONNECT or directly over raw QUIC.
//
// This package depends on the [quic-go](https://github.com/quic-go/quic-go)
// package.
//
// This package is used in the Teonet project but has no other relation to
// Teonet and may be used in any other golang projects.
package webtransport

import (
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// ALPNH3 is the ALPN protocol ID negotiated for HTTP/3 WebTransport
// sessions, as used in the extended-CONNECT handshake (spec'd by
// draft-ietf-webtrans-http3 on top of draft-ietf-quic-http). Any other
// negotiated ALPN is treated as a raw-QUIC connection carrying no HTTP/3
// framing at all.
const ALPNH3 = http3.NextProtoH3

// QuicConfig is a wrapper for quic.Config, so callers configure QUIC
// transport parameters without this package inventing its own config
// surface.
type QuicConfig quic.Config
