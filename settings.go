// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// SETTINGS exchange module of webtransport package.

package webtransport

import (
	"context"

	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"

	"github.com/teonet-go/webtransport-go/h3"
)

// settingsHandle keeps the control-stream halves open for the lifetime of
// the connection and records what the peer advertised.
type settingsHandle struct {
	send quic.SendStream
	recv quic.ReceiveStream
	peer h3.SettingsMap
}

// exchangeSettings opens the local control stream and accepts the peer's
// control stream concurrently, per draft-ietf-webtrans-http3's SETTINGS
// exchange. The first failure on either half cancels the other.
func exchangeSettings(ctx context.Context, conn quic.Connection) (*settingsHandle, error) {
	h := &settingsHandle{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		send, err := conn.OpenUniStreamSync(gctx)
		if err != nil {
			return err
		}
		h.send = send
		return h3.DefaultSettings().WriteControlStream(send)
	})
	g.Go(func() error {
		recv, err := conn.AcceptUniStream(gctx)
		if err != nil {
			return err
		}
		h.recv = recv
		settings, err := h3.ReadControlStream(recv)
		if err != nil {
			return err
		}
		h.peer = settings
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !h.peer.SupportsWebtransport() {
		return nil, ErrWebtransportUnsupported
	}
	return h, nil
}
