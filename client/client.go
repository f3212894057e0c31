/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package client is the public controller façade (§6): it owns the session
// manager, the state mirror, the storage lock manager and the file transfer
// engine, and exposes the request/response API applications use.
package client

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/micolous/necromancer/lock"
	"github.com/micolous/necromancer/necroerr"
	"github.com/micolous/necromancer/protocol"
	"github.com/micolous/necromancer/session"
	"github.com/micolous/necromancer/state"
	"github.com/micolous/necromancer/transfer"
)

// StillFrameSizer reports the byte size a still image must have to match
// the switcher's current video mode, used to validate uploads before any
// network traffic or lock is taken (§4.6 upload precondition, Scenario E).
// The video-mode atom catalogue itself is outside this library's
// representative atom set (§1 "Out of scope"); callers that need
// mode-aware validation supply this from their own capability tracking.
type StillFrameSizer func() (bytes int, ok bool)

// Client is the switcher controller façade. Construct with Connect, then
// call Run in its own goroutine before issuing commands.
type Client struct {
	mgr     *session.Manager
	mirror  *state.Mirror
	locks   *lock.Manager
	xfer    *transfer.Engine
	frameSz StillFrameSizer
}

// sessionSender adapts the active *session.Session to lock.Sender, so the
// lock manager can enqueue atoms without blocking on their acknowledgement
// (a lock/unlock request has no meaningful responder to wait on).
type sessionSender struct {
	c *Client
}

func (s sessionSender) SendAtom(a protocol.Atom) {
	if s.c.mgr == nil {
		return
	}
	cur := s.c.mgr.Current()
	if cur == nil {
		return // session is down; peer will observe this on reconnect
	}
	go func() {
		if err := cur.Send(context.Background(), []protocol.Atom{a}); err != nil {
			log.Warnf("sending lock atom: %v", err)
		}
	}()
}

// dispatcher implements session.EventHandler, fanning atoms out to the
// transfer engine, the lock manager and the state mirror in that order
// (§4.4's "extract transfer-layer atoms, forward the residual to the state
// mirror").
type dispatcher struct {
	c *Client
}

func (d dispatcher) HandleAtoms(atoms []protocol.Atom) {
	for _, a := range atoms {
		if d.c.xfer.HandleAtom(a) {
			continue
		}
		switch p := a.Payload.(type) {
		case *protocol.LockObtained:
			d.c.locks.HandleLockObtained(p.StoreID)
			continue
		case *protocol.MediaPoolLockStatus:
			d.c.locks.HandleLockStatus(p.StoreID, p.Locked)
			continue
		}
		d.c.mirror.HandleAtom(a)
	}
}

// Connect dials the switcher, completes the handshake and returns a Client
// whose session loop has not yet started; call Run to enter it.
//
// frameSz may be nil; if so, UploadStillImage skips the frame-size check.
func Connect(ctx context.Context, cfg session.Config, frameSz StillFrameSizer) (*Client, error) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine(), frameSz: frameSz}
	c.locks = lock.NewManager(sessionSender{c: c})
	c.mgr = session.NewManager(cfg, dispatcher{c: c})
	c.mgr.OnReconnect = c.mirror.Reset

	if err := c.mgr.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Run drives the connect/run/reconnect lifecycle until ctx is cancelled or
// a non-reconnectable error occurs. On every reconnect the state mirror is
// reset to default (§4.5).
func (c *Client) Run(ctx context.Context) error {
	return c.mgr.Run(ctx)
}

// State returns the current state snapshot (get_state).
func (c *Client) State() *state.State { return c.mirror.Get() }

// SubscribeState returns a channel of (snapshot, diff) updates
// (subscribe_state_updates).
func (c *Client) SubscribeState() <-chan state.Diff { return c.mirror.Subscribe() }

func (c *Client) send(ctx context.Context, p protocol.Payload) error {
	cur := c.mgr.Current()
	if cur == nil {
		return necroerr.New(necroerr.KindChannelUnavailable, "no active session")
	}
	return cur.Send(ctx, []protocol.Atom{protocol.NewAtom(p)})
}

// SetProgramInput requests a program input change on the given ME.
func (c *Client) SetProgramInput(ctx context.Context, me uint8, source protocol.VideoSource) error {
	return c.send(ctx, &protocol.SetProgramInput{ME: me, VideoSource: source})
}

// SetPreviewInput requests a preview input change on the given ME.
func (c *Client) SetPreviewInput(ctx context.Context, me uint8, source protocol.VideoSource) error {
	return c.send(ctx, &protocol.SetPreviewInput{ME: me, VideoSource: source})
}

// Cut swaps program and preview immediately on the given ME.
func (c *Client) Cut(ctx context.Context, me uint8) error {
	return c.send(ctx, &protocol.Cut{ME: me})
}

// Auto runs a transition swapping program and preview on the given ME.
func (c *Client) Auto(ctx context.Context, me uint8) error {
	return c.send(ctx, &protocol.Auto{ME: me})
}

// CutToBlack cuts the given ME's program output to (or from) black.
func (c *Client) CutToBlack(ctx context.Context, me uint8, black bool) error {
	return c.send(ctx, &protocol.CutToBlack{ME: me, Black: black})
}

// FadeToBlackAuto runs the fade-to-black transition on the given ME.
func (c *Client) FadeToBlackAuto(ctx context.Context, me uint8) error {
	return c.send(ctx, &protocol.FadeToBlackAuto{ME: me})
}

// SetColourGeneratorParams updates a colour generator's parameters; unset
// pointer fields are left unchanged on the switcher.
func (c *Client) SetColourGeneratorParams(ctx context.Context, p protocol.SetColourGeneratorParams) error {
	return c.send(ctx, &p)
}

// CaptureStill captures a still image from the current M/E program output
// into the media pool, gated on the switcher having reported still-capture
// support (§6 "gated on capability").
func (c *Client) CaptureStill(ctx context.Context) error {
	s := c.mirror.Get()
	if !s.MediaPlayerSupportsStillCapture {
		return necroerr.New(necroerr.KindFeatureUnavailable, "switcher does not support still image capture")
	}
	return c.send(ctx, &protocol.CaptureStill{})
}

// SetMediaPlayerSource assigns a media pool still or video clip as a media
// player's active source, validated against the switcher's reported media
// player capabilities (§6 "validated against reported capabilities").
func (c *Client) SetMediaPlayerSource(ctx context.Context, player uint8, kind protocol.MediaPlayerSourceKind, index uint8) error {
	s := c.mirror.Get()
	switch kind {
	case protocol.MediaPlayerSourceStill:
		if s.MediaPlayerStillCount == 0 {
			return necroerr.New(necroerr.KindFeatureUnavailable, "media player does not support still images")
		}
		if index >= s.MediaPlayerStillCount {
			return necroerr.Newf(necroerr.KindParameterOutOfRange, "still %d does not exist, switcher supports %d", index, s.MediaPlayerStillCount)
		}
	case protocol.MediaPlayerSourceClip:
		if s.MediaPlayerClipCount == 0 {
			return necroerr.New(necroerr.KindFeatureUnavailable, "media player does not support video clips")
		}
		if index >= s.MediaPlayerClipCount {
			return necroerr.Newf(necroerr.KindParameterOutOfRange, "clip %d does not exist, switcher supports %d", index, s.MediaPlayerClipCount)
		}
	default:
		return necroerr.Newf(necroerr.KindUnknownParameter, "unknown media player source kind %d", kind)
	}
	return c.send(ctx, &protocol.SetMediaPlayerSource{ID: player, Kind: kind, Index: index})
}

// SaveStartupSettings persists the switcher's current configuration as its
// power-on default.
func (c *Client) SaveStartupSettings(ctx context.Context) error {
	return c.send(ctx, &protocol.SaveStartupState{})
}

// ClearStartupSettings discards the saved power-on default.
func (c *Client) ClearStartupSettings(ctx context.Context) error {
	return c.send(ctx, &protocol.ClearStartupState{})
}

// RestoreStartupSettings re-applies the saved power-on default immediately.
func (c *Client) RestoreStartupSettings(ctx context.Context) error {
	return c.send(ctx, &protocol.RestoreStartupState{})
}

// AcquireStorageLock obtains (or joins) the shared lock for storeID and
// blocks until the peer confirms it is available.
func (c *Client) AcquireStorageLock(ctx context.Context, storeID uint16) (*lock.Handle, error) {
	h, err := c.locks.Acquire(storeID)
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() { done <- h.Available() }()
	select {
	case err := <-done:
		if err != nil {
			h.Release()
			return nil, err
		}
		return h, nil
	case <-ctx.Done():
		h.Release()
		return nil, ctx.Err()
	}
}

// StartFileDownload acquires the storage lock for storeID, then streams the
// asset at index from the switcher, releasing the lock when the transfer
// finishes, fails or ctx is cancelled.
func (c *Client) StartFileDownload(ctx context.Context, storeID uint16, index uint32, fileType protocol.FileType) (<-chan transfer.Chunk, error) {
	h, err := c.AcquireStorageLock(ctx, storeID)
	if err != nil {
		return nil, err
	}

	cur := c.mgr.Current()
	if cur == nil {
		h.Release()
		return nil, necroerr.New(necroerr.KindChannelUnavailable, "no active session")
	}
	sink, err := c.xfer.StartDownload(ctx, cur, storeID, index, fileType)
	if err != nil {
		h.Release()
		return nil, err
	}

	out := make(chan transfer.Chunk, cap(sink))
	go func() {
		defer close(out)
		defer h.Release()
		for chunk := range sink {
			out <- chunk
		}
	}()
	return out, nil
}

// UploadStillImage uploads an uncompressed still image to a media pool
// slot, acquiring the storage lock for the duration of the transfer. If a
// StillFrameSizer was supplied at Connect time, data's length is validated
// against the switcher's current video mode before any lock is taken or
// network traffic sent (§4.6 upload precondition, Scenario E).
func (c *Client) UploadStillImage(ctx context.Context, index uint32, name, description string, data []byte, isRLE bool) error {
	if c.frameSz != nil {
		if want, ok := c.frameSz(); ok && want != len(data) {
			return necroerr.Newf(necroerr.KindInvalidLength, "still image is %d bytes, current video mode expects %d", len(data), want)
		}
	}

	h, err := c.AcquireStorageLock(ctx, 0)
	if err != nil {
		return err
	}
	defer h.Release()

	cur := c.mgr.Current()
	if cur == nil {
		return necroerr.New(necroerr.KindChannelUnavailable, "no active session")
	}
	return c.xfer.RunUpload(ctx, cur, transfer.UploadRequest{
		StoreID: 0, Index: index, Type: protocol.FileTypeStillFrame,
		IsRLE: isRLE, Name: name, Description: description, Data: data,
	})
}

// Disconnect tears the session down, per §4.5.
func (c *Client) Disconnect() error {
	cur := c.mgr.Current()
	if cur == nil {
		return nil
	}
	return cur.Disconnect()
}
