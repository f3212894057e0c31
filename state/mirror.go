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

package state

import (
	"sync"

	"github.com/micolous/necromancer/protocol"
)

// Mirror is the copy-on-write state cell: HandleAtom (called from the
// session task) commits new snapshots; Get and Subscribe are safe to call
// from any goroutine.
type Mirror struct {
	mu          sync.Mutex
	current     *State
	subscribers []chan Diff
}

// New creates a Mirror holding the default (all-zero) state.
func New() *Mirror {
	return &Mirror{current: defaultState()}
}

// Get returns the current snapshot.
func (m *Mirror) Get() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe returns a channel of state diffs with one slot of backpressure
// (§5): a subscriber that falls behind loses intermediate diffs, but always
// eventually sees the latest snapshot, since a full channel's pending diff
// is replaced rather than blocking the session task.
func (m *Mirror) Subscribe() <-chan Diff {
	ch := make(chan Diff, 1)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// Reset restores the default state, discarding everything the peer has
// reported so far (§4.5 "on reconnect the state mirror is reset to
// default"). It broadcasts a diff with every flag set.
func (m *Mirror) Reset() {
	m.mu.Lock()
	m.current = defaultState()
	snap := m.current
	m.broadcastLocked(Diff{Snapshot: snap, Changed: FlagFirmwareVersion | FlagInitialised | FlagProgramSource | FlagPreviewSource | FlagTallyBySource | FlagMediaPlayerCapabilities})
	m.mu.Unlock()
}

// HandleAtom applies a to the mirror if it is one of the representative
// event atoms this layer consumes, committing a new snapshot and
// broadcasting a diff. It reports whether a was consumed.
func (m *Mirror) HandleAtom(a protocol.Atom) bool {
	switch p := a.Payload.(type) {
	case *protocol.Version:
		m.update(FlagFirmwareVersion, func(s *State) {
			s.FirmwareMajor = p.Major
			s.FirmwareMinor = p.Minor
		})
		return true
	case *protocol.InitialisationComplete:
		m.update(FlagInitialised, func(s *State) {
			s.Initialised = true
		})
		return true
	case *protocol.ProgramInput:
		m.update(FlagProgramSource, func(s *State) {
			s.ProgramInput[p.ME] = p.VideoSource
		})
		return true
	case *protocol.PreviewInput:
		m.update(FlagPreviewSource, func(s *State) {
			s.PreviewInput[p.ME] = p.VideoSource
		})
		return true
	case *protocol.TalliedSources:
		m.update(FlagTallyBySource, func(s *State) {
			s.TallyBySource = make(map[protocol.VideoSource]protocol.TallyFlags, len(p.Entries))
			for _, e := range p.Entries {
				s.TallyBySource[e.VideoSource] = e.Flags
			}
		})
		return true
	case *protocol.MediaPlayerCapabilities:
		m.update(FlagMediaPlayerCapabilities, func(s *State) {
			s.MediaPlayerStillCount = p.StillCount
			s.MediaPlayerClipCount = p.ClipCount
			s.MediaPlayerSupportsStillCapture = p.SupportsStillCapture
		})
		return true
	default:
		return false
	}
}

func (m *Mirror) update(flag Flags, mutate func(*State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.current.clone()
	mutate(n)
	m.current = n
	m.broadcastLocked(Diff{Snapshot: n, Changed: flag})
}

// broadcastLocked sends d to every subscriber, replacing a stale pending
// diff rather than blocking when a subscriber's single slot is full.
func (m *Mirror) broadcastLocked(d Diff) {
	for _, ch := range m.subscribers {
		select {
		case ch <- d:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- d:
			default:
			}
		}
	}
}
