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

package lock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/micolous/necromancer/necroerr"
	"github.com/micolous/necromancer/protocol"
)

type fakeSender struct {
	sent []protocol.Atom
}

func (f *fakeSender) SendAtom(a protocol.Atom) { f.sent = append(f.sent, a) }

func (f *fakeSender) lockAtoms() []*protocol.MediaPoolLock {
	var out []*protocol.MediaPoolLock
	for _, a := range f.sent {
		if l, ok := a.Payload.(*protocol.MediaPoolLock); ok {
			out = append(out, l)
		}
	}
	return out
}

func TestAcquireRejectsStoreIDOutOfRange(t *testing.T) {
	s := &fakeSender{}
	m := NewManager(s)
	_, err := m.Acquire(64)
	require.Error(t, err)
	kind, ok := necroerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, necroerr.KindParameterOutOfRange, kind)
}

func TestAcquireSendsExactlyOneLockAtomForConcurrentHolders(t *testing.T) {
	s := &fakeSender{}
	m := NewManager(s)

	h1, err := m.Acquire(0)
	require.NoError(t, err)
	h2, err := m.Acquire(0)
	require.NoError(t, err)

	locks := s.lockAtoms()
	require.Len(t, locks, 1)
	require.True(t, locks[0].Lock)

	m.HandleLockObtained(0)
	require.NoError(t, h1.Available())
	require.NoError(t, h2.Available())

	h1.Release()
	require.Len(t, s.lockAtoms(), 1, "releasing a non-last holder must not enqueue an unlock")

	h2.Release()
	locks = s.lockAtoms()
	require.Len(t, locks, 2)
	require.False(t, locks[1].Lock)
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := &fakeSender{}
	m := NewManager(s)
	h, err := m.Acquire(1)
	require.NoError(t, err)
	m.HandleLockObtained(1)
	require.NoError(t, h.Available())

	h.Release()
	h.Release()
	require.Len(t, s.lockAtoms(), 2) // one lock, one unlock, not two unlocks
}

func TestHandleLockStatusRevokesUnexpectedly(t *testing.T) {
	s := &fakeSender{}
	m := NewManager(s)
	h, err := m.Acquire(2)
	require.NoError(t, err)

	m.HandleLockStatus(2, false)
	err = h.Available()
	require.Error(t, err)
	kind, ok := necroerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, necroerr.KindChannelUnavailable, kind)
}

func TestHandleLockStatusLockedIsIgnored(t *testing.T) {
	s := &fakeSender{}
	m := NewManager(s)
	h, err := m.Acquire(3)
	require.NoError(t, err)

	m.HandleLockStatus(3, true) // not a revocation, must not open the latch
	select {
	case <-h.entry.ready:
		t.Fatal("latch opened on a locked=true status")
	default:
	}

	m.HandleLockObtained(3)
	require.NoError(t, h.Available())
}

func TestNewAcquireAfterFullReleaseRequestsAgain(t *testing.T) {
	s := &fakeSender{}
	m := NewManager(s)
	h, err := m.Acquire(5)
	require.NoError(t, err)
	m.HandleLockObtained(5)
	require.NoError(t, h.Available())
	h.Release()

	h2, err := m.Acquire(5)
	require.NoError(t, err)
	m.HandleLockObtained(5)
	require.NoError(t, h2.Available())

	locks := s.lockAtoms()
	require.Len(t, locks, 3) // lock, unlock, lock
	require.True(t, locks[2].Lock)
}
