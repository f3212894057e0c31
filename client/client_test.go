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

package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/micolous/necromancer/lock"
	"github.com/micolous/necromancer/necroerr"
	"github.com/micolous/necromancer/protocol"
	"github.com/micolous/necromancer/session"
	"github.com/micolous/necromancer/state"
	"github.com/micolous/necromancer/transfer"
)

// noopHandler discards atoms; used where a *session.Manager is only needed
// for its Current() nil-before-connect behaviour, never to run a session.
type noopHandler struct{}

func (noopHandler) HandleAtoms([]protocol.Atom) {}

// These tests exercise the dispatcher's fan-out logic and the façade's
// pre-network validation without a real session, since Client.Connect
// requires a live UDP peer.

type recordingSender struct {
	atoms []protocol.Atom
}

func (s *recordingSender) Send(_ context.Context, atoms []protocol.Atom) error {
	s.atoms = append(s.atoms, atoms...)
	return nil
}

func TestDispatcherRoutesTransferAtomsToEngine(t *testing.T) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine()}
	c.locks = lock.NewManager(sessionSender{c: c})
	d := dispatcher{c: c}

	s := &recordingSender{}
	sink, err := c.xfer.StartDownload(context.Background(), s, 0, 0, protocol.FileTypeStillFrame)
	require.NoError(t, err)
	setup := s.atoms[0].Payload.(*protocol.SetupFileUpload)

	d.HandleAtoms([]protocol.Atom{protocol.NewAtom(&protocol.TransferChunk{ID: setup.ID, Payload: []byte("x")})})
	d.HandleAtoms([]protocol.Atom{protocol.NewAtom(&protocol.TransferCompleted{ID: setup.ID})})

	chunk := <-sink
	require.Equal(t, []byte("x"), chunk.Payload)
}

func TestDispatcherRoutesLockAtomsToLockManager(t *testing.T) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine()}
	c.locks = lock.NewManager(sessionSender{c: c})
	d := dispatcher{c: c}

	h, err := c.locks.Acquire(0)
	require.NoError(t, err)

	d.HandleAtoms([]protocol.Atom{protocol.NewAtom(&protocol.LockObtained{StoreID: 0})})
	require.NoError(t, h.Available())
}

func TestDispatcherForwardsResidualAtomsToStateMirror(t *testing.T) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine()}
	c.locks = lock.NewManager(sessionSender{c: c})
	d := dispatcher{c: c}

	d.HandleAtoms([]protocol.Atom{protocol.NewAtom(&protocol.ProgramInput{ME: 0, VideoSource: protocol.VideoSourceInput1})})
	require.Equal(t, protocol.VideoSourceInput1, c.mirror.Get().ProgramInput[0])
}

func TestUploadStillImageRejectsWrongFrameSize(t *testing.T) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine(), frameSz: func() (int, bool) { return 1920 * 1080 * 4, true }}
	c.locks = lock.NewManager(sessionSender{c: c})
	c.mgr = nil // never reached: the size check runs before any session use

	err := c.UploadStillImage(nil, 0, "still", "", make([]byte, 1920*720*4), false)
	require.Error(t, err)
}

func TestCaptureStillRejectsWhenUnsupported(t *testing.T) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine()}
	c.mgr = nil // never reached: the capability check runs before any session use

	err := c.CaptureStill(context.Background())
	kind, ok := necroerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, necroerr.KindFeatureUnavailable, kind)
}

func TestCaptureStillAllowedWhenSupported(t *testing.T) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine()}
	c.mirror.HandleAtom(protocol.NewAtom(&protocol.MediaPlayerCapabilities{StillCount: 2, SupportsStillCapture: true}))
	c.mgr = session.NewManager(session.Config{}, noopHandler{})

	err := c.CaptureStill(context.Background())
	require.Error(t, err) // no active session, but the capability gate let it through
	kind, ok := necroerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, necroerr.KindChannelUnavailable, kind)
}

func TestSetMediaPlayerSourceRejectsWhenStillUnsupported(t *testing.T) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine()}
	c.mgr = nil

	err := c.SetMediaPlayerSource(context.Background(), 0, protocol.MediaPlayerSourceStill, 0)
	kind, ok := necroerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, necroerr.KindFeatureUnavailable, kind)
}

func TestSetMediaPlayerSourceRejectsOutOfRangeIndex(t *testing.T) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine()}
	c.mirror.HandleAtom(protocol.NewAtom(&protocol.MediaPlayerCapabilities{StillCount: 2, SupportsStillCapture: true}))
	c.mgr = nil

	err := c.SetMediaPlayerSource(context.Background(), 0, protocol.MediaPlayerSourceStill, 2)
	kind, ok := necroerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, necroerr.KindParameterOutOfRange, kind)
}

func TestSetMediaPlayerSourceRejectsUnknownKind(t *testing.T) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine()}
	c.mirror.HandleAtom(protocol.NewAtom(&protocol.MediaPlayerCapabilities{StillCount: 2, ClipCount: 2, SupportsStillCapture: true}))
	c.mgr = nil

	err := c.SetMediaPlayerSource(context.Background(), 0, protocol.MediaPlayerSourceKind(99), 0)
	kind, ok := necroerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, necroerr.KindUnknownParameter, kind)
}

func TestSetMediaPlayerSourceAllowedWhenClipInRange(t *testing.T) {
	c := &Client{mirror: state.New(), xfer: transfer.NewEngine()}
	c.mirror.HandleAtom(protocol.NewAtom(&protocol.MediaPlayerCapabilities{ClipCount: 2, SupportsStillCapture: false}))
	c.mgr = session.NewManager(session.Config{}, noopHandler{})

	err := c.SetMediaPlayerSource(context.Background(), 0, protocol.MediaPlayerSourceClip, 1)
	require.Error(t, err) // no active session, but the capability gate let it through
	kind, ok := necroerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, necroerr.KindChannelUnavailable, kind)
}
