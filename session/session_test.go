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

package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/micolous/necromancer/necroerr"
	"github.com/micolous/necromancer/protocol"
	"github.com/micolous/necromancer/transport"
)

type recordingHandler struct {
	atoms []protocol.Atom
}

func (h *recordingHandler) HandleAtoms(atoms []protocol.Atom) {
	h.atoms = append(h.atoms, atoms...)
}

func TestRandomSessionIDHighBitClear(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := randomSessionID()
		require.Zero(t, id&0x8000, "session id %#04x must not have the high bit set", id)
	}
}

func TestConfigValidateRequiresAddr(t *testing.T) {
	c := DefaultConfig()
	c.Port = 9910
	err := c.Validate()
	require.Error(t, err)
}

func TestConfigValidateRejectsBadPort(t *testing.T) {
	c := DefaultConfig()
	c.Addr = "192.0.2.1"
	c.Port = 0
	require.Error(t, c.Validate())

	c.Port = 70000
	require.Error(t, c.Validate())
}

func TestConfigValidateRejectsNonPositiveTimings(t *testing.T) {
	c := DefaultConfig()
	c.Addr = "192.0.2.1"
	c.Handshake = 0
	require.Error(t, c.Validate())

	c = DefaultConfig()
	c.Addr = "192.0.2.1"
	c.ReconnectDelay = 0
	require.Error(t, c.Validate())
}

func TestConfigValidatePropagatesAddrToTransport(t *testing.T) {
	c := DefaultConfig()
	c.Addr = "192.0.2.1"
	c.Port = 9910
	require.NoError(t, c.Validate())
	require.Equal(t, "192.0.2.1", c.Transport.Addr)
	require.Equal(t, 9910, c.Transport.Port)
}

func TestReadConfigBytesAppliesDefaults(t *testing.T) {
	c, err := ReadConfigBytes([]byte("addr: 192.0.2.1\n"))
	require.NoError(t, err)
	require.Equal(t, "192.0.2.1", c.Addr)
	require.Equal(t, 9910, c.Port)
}

func TestReadConfigBytesRejectsMalformedYAML(t *testing.T) {
	_, err := ReadConfigBytes([]byte("addr: [unterminated\n"))
	require.Error(t, err)
}

func newTestSession(handler EventHandler) *Session {
	sessionID := uint16(0x8002)
	return &Session{
		cfg:       DefaultConfig(),
		rel:       transport.NewReliability(transport.DefaultConfig(), sessionID, "test-peer"),
		handler:   handler,
		sessionID: sessionID,
		commandCh: make(chan command, 1),
		stopCh:    make(chan struct{}),
	}
}

func TestHandleInboundRejectsOutOfWindowFirmwareVersion(t *testing.T) {
	h := &recordingHandler{}
	s := newTestSession(h)

	atoms := []protocol.Atom{protocol.NewAtom(&protocol.Version{Major: 2, Minor: 29})}
	pkt := protocol.NewAtoms(0, s.sessionID, 0, 0, 1, atoms)
	raw, err := pkt.MarshalBinary()
	require.NoError(t, err)

	err = s.handleInbound(raw)
	require.Error(t, err)
	kind, ok := necroerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, necroerr.KindUnsupportedFirmwareVersion, kind)
	require.Empty(t, h.atoms, "an unsupported version must not reach the state mirror")
}

func TestHandleInboundAcceptsInWindowFirmwareVersion(t *testing.T) {
	h := &recordingHandler{}
	s := newTestSession(h)

	atoms := []protocol.Atom{protocol.NewAtom(&protocol.Version{Major: 2, Minor: 30})}
	pkt := protocol.NewAtoms(0, s.sessionID, 0, 0, 1, atoms)
	raw, err := pkt.MarshalBinary()
	require.NoError(t, err)

	require.NoError(t, s.handleInbound(raw))
	require.Len(t, h.atoms, 1)
}
