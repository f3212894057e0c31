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

package protocol

import "github.com/micolous/necromancer/necroerr"

func init() {
	registerAtom("Capt", func() Payload { return &CaptureStill{} })
	registerAtom("_mpl", func() Payload { return &MediaPlayerCapabilities{} })
	registerAtom("MPSS", func() Payload { return &SetMediaPlayerSource{} })
}

// CaptureStill is the "Capt" command atom: capture a still image from the
// current M/E program output into the media pool.
type CaptureStill struct{}

func (a *CaptureStill) Magic() Magic { return magicOf("Capt") }

func (a *CaptureStill) MarshalBinaryTo(b []byte) (int, error) { return 0, nil }

func (a *CaptureStill) UnmarshalBinary(b []byte) error { return nil }

// MediaPlayerCapabilities is the "_mpl" atom reporting how many still and
// clip slots a media player supports, and whether still capture is
// available at all.
type MediaPlayerCapabilities struct {
	StillCount           uint8
	ClipCount            uint8
	SupportsStillCapture bool
}

func (a *MediaPlayerCapabilities) Magic() Magic { return magicOf("_mpl") }

func (a *MediaPlayerCapabilities) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.StillCount
	b[1] = a.ClipCount
	if a.SupportsStillCapture {
		b[2] = 1
	} else {
		b[2] = 0
	}
	b[3] = 0
	return 4, nil
}

func (a *MediaPlayerCapabilities) UnmarshalBinary(b []byte) error {
	if len(b) < 3 {
		return necroerr.New(necroerr.KindProtocol, "_mpl body too short")
	}
	a.StillCount = b[0]
	a.ClipCount = b[1]
	a.SupportsStillCapture = b[2] != 0
	return nil
}

// MediaPlayerSourceKind discriminates a media player's source between a
// media pool still and a video clip.
type MediaPlayerSourceKind uint8

// Known MediaPlayerSourceKind values.
const (
	MediaPlayerSourceStill MediaPlayerSourceKind = 1
	MediaPlayerSourceClip  MediaPlayerSourceKind = 2
)

// SetMediaPlayerSource is the "MPSS" command atom: assign a media pool
// still or a video clip as a media player's active source.
type SetMediaPlayerSource struct {
	ID    uint8
	Kind  MediaPlayerSourceKind
	Index uint8
}

func (a *SetMediaPlayerSource) Magic() Magic { return magicOf("MPSS") }

func (a *SetMediaPlayerSource) MarshalBinaryTo(b []byte) (int, error) {
	mask := uint8(0x01) // enable
	switch a.Kind {
	case MediaPlayerSourceStill:
		mask |= 0x02
	case MediaPlayerSourceClip:
		mask |= 0x04
	}
	b[0] = mask
	b[1] = a.ID
	b[2] = uint8(a.Kind)
	b[3] = a.Index
	b[4] = 0
	b[5], b[6], b[7] = 0, 0, 0
	return 8, nil
}

func (a *SetMediaPlayerSource) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return necroerr.New(necroerr.KindProtocol, "MPSS body too short")
	}
	a.ID = b[1]
	a.Kind = MediaPlayerSourceKind(b[2])
	a.Index = b[3]
	return nil
}
