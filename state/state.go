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

// Package state mirrors the switcher's observable state locally (§5 "Shared
// resources"): a copy-on-write snapshot updated by the session's event
// stream, broadcast to subscribers as a diff bitmask alongside the new
// snapshot.
package state

import "github.com/micolous/necromancer/protocol"

// Flags is a bitmask of the state fields a single update touched.
type Flags uint32

const (
	FlagFirmwareVersion Flags = 1 << iota
	FlagInitialised
	FlagProgramSource
	FlagPreviewSource
	FlagTallyBySource
	FlagMediaPlayerCapabilities
)

// State is one immutable snapshot of the switcher's mirrored state. Callers
// must treat a returned *State as read-only: the mirror never mutates one
// in place, it builds a new one (copy-on-write).
type State struct {
	FirmwareMajor uint16
	FirmwareMinor uint16
	Initialised   bool
	ProgramInput  map[uint8]protocol.VideoSource
	PreviewInput  map[uint8]protocol.VideoSource
	TallyBySource map[protocol.VideoSource]protocol.TallyFlags

	MediaPlayerStillCount           uint8
	MediaPlayerClipCount            uint8
	MediaPlayerSupportsStillCapture bool
}

func defaultState() *State {
	return &State{
		ProgramInput:  make(map[uint8]protocol.VideoSource),
		PreviewInput:  make(map[uint8]protocol.VideoSource),
		TallyBySource: make(map[protocol.VideoSource]protocol.TallyFlags),
	}
}

func (s *State) clone() *State {
	n := &State{
		FirmwareMajor:                   s.FirmwareMajor,
		FirmwareMinor:                   s.FirmwareMinor,
		Initialised:                     s.Initialised,
		ProgramInput:                    make(map[uint8]protocol.VideoSource, len(s.ProgramInput)),
		PreviewInput:                    make(map[uint8]protocol.VideoSource, len(s.PreviewInput)),
		TallyBySource:                   make(map[protocol.VideoSource]protocol.TallyFlags, len(s.TallyBySource)),
		MediaPlayerStillCount:           s.MediaPlayerStillCount,
		MediaPlayerClipCount:            s.MediaPlayerClipCount,
		MediaPlayerSupportsStillCapture: s.MediaPlayerSupportsStillCapture,
	}
	for k, v := range s.ProgramInput {
		n.ProgramInput[k] = v
	}
	for k, v := range s.PreviewInput {
		n.PreviewInput[k] = v
	}
	for k, v := range s.TallyBySource {
		n.TallyBySource[k] = v
	}
	return n
}

// Diff is one broadcast update: the resulting snapshot and which fields it
// changed.
type Diff struct {
	Snapshot *State
	Changed  Flags
}
