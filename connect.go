// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Extended-CONNECT exchange module of webtransport package.

package webtransport

import (
	"context"
	"log"
	"net/url"
	"slices"

	"github.com/quic-go/quic-go"

	"github.com/teonet-go/webtransport-go/h3"
)

// connectHandle owns the extended-CONNECT bidirectional stream for the
// lifetime of an H3 session. A background goroutine drains
// CLOSE_WEBTRANSPORT_SESSION and grease capsules off it.
type connectHandle struct {
	stream   quic.Stream
	url      *url.URL
	protocol string

	closed chan struct{}
	code   uint32
	reason string
}

// openConnect issues the extended CONNECT request on a freshly opened
// bidirectional stream and waits for the server's response.
func openConnect(ctx context.Context, conn quic.Connection, u *url.URL, protocols []string) (*connectHandle, error) {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}

	req := &h3.ConnectRequest{URL: u, Protocols: protocols}
	if err := req.Write(stream); err != nil {
		stream.Close()
		return nil, err
	}

	resp, err := h3.ReadConnectResponse(stream)
	if err != nil {
		stream.Close()
		return nil, err
	}
	if resp.Status != 200 {
		stream.Close()
		return nil, &ProtocolMismatchError{Status: resp.Status}
	}
	if len(protocols) > 0 && resp.Protocol == "" {
		stream.Close()
		return nil, &ProtocolMismatchError{Protocol: ""}
	}
	if resp.Protocol != "" && !slices.Contains(protocols, resp.Protocol) {
		stream.Close()
		return nil, &ProtocolMismatchError{Protocol: resp.Protocol}
	}

	h := &connectHandle{stream: stream, url: u, protocol: resp.Protocol, closed: make(chan struct{})}
	go h.drain()
	return h, nil
}

// acceptConnect reads the extended CONNECT request off an accepted
// bidirectional stream, without yet responding to it.
func acceptConnect(stream quic.Stream) (*h3.ConnectRequest, error) {
	return h3.ReadConnectRequest(stream)
}

// respondConnect answers an accepted CONNECT request. On a 200 response it
// starts the capsule-drain background task and returns the resulting
// handle; on any other status it closes the stream and returns (nil, nil).
func respondConnect(stream quic.Stream, req *h3.ConnectRequest, status int, protocol string) (*connectHandle, error) {
	resp := &h3.ConnectResponse{Status: status, Protocol: protocol}
	if err := resp.Write(stream); err != nil {
		stream.Close()
		return nil, err
	}
	if status != 200 {
		stream.Close()
		return nil, nil
	}

	h := &connectHandle{stream: stream, url: req.URL, protocol: protocol, closed: make(chan struct{})}
	go h.drain()
	return h, nil
}

// sessionID is the WebTransport session identifier: the StreamID of the
// CONNECT bidirectional stream.
func (h *connectHandle) sessionID() uint64 {
	return uint64(h.stream.StreamID())
}

// drain reads capsules off the CONNECT stream until the peer sends
// CLOSE_WEBTRANSPORT_SESSION, the stream ends, or a capsule fails to
// decode. It records the close code/reason (if any) and closes h.closed
// exactly once. Pending decodes left running when the connection itself
// closes are silenced: the blocking h3.ReadCapsule call simply returns the
// connection error, which ends this goroutine the same way a clean close
// would.
func (h *connectHandle) drain() {
	defer close(h.closed)
	for {
		c, err := h3.ReadCapsule(h.stream)
		if err != nil {
			return
		}
		switch c.Kind {
		case h3.CapsuleClose:
			h.code = c.Code
			h.reason = c.Reason
			return
		case h3.CapsuleGrease:
			log.Printf("webtransport: connect: ignoring grease capsule type %#x", c.Type)
		case h3.CapsuleUnknown:
			log.Printf("webtransport: connect: ignoring unknown capsule type %#x", c.Type)
		}
	}
}

// close sends a CLOSE_WEBTRANSPORT_SESSION capsule and closes the stream.
func (h *connectHandle) close(code uint32, reason string) error {
	err := h3.WriteCloseCapsule(h.stream, code, []byte(reason))
	h.stream.Close()
	return err
}
