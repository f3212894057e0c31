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

import (
	"encoding/binary"
	"fmt"

	"github.com/micolous/necromancer/necroerr"
)

func init() {
	registerAtom("TlSr", func() Payload { return &TalliedSources{} })
}

// VideoSource identifies a switchable video source on the wire. The
// numbering is the switcher's own, not sequential by category.
type VideoSource uint16

// A representative subset of VideoSource values; see §9's open question on
// Colour3-8 being extrapolated rather than observed.
const (
	VideoSourceBlack VideoSource = 0

	VideoSourceInput1 VideoSource = 1
	VideoSourceInput2 VideoSource = 2
	VideoSourceInput3 VideoSource = 3
	VideoSourceInput4 VideoSource = 4
	VideoSourceInput5 VideoSource = 5
	VideoSourceInput6 VideoSource = 6
	VideoSourceInput7 VideoSource = 7
	VideoSourceInput8 VideoSource = 8

	VideoSourceColourBars VideoSource = 1000

	VideoSourceColour1 VideoSource = 2001
	VideoSourceColour2 VideoSource = 2002
	VideoSourceColour3 VideoSource = 2003
	VideoSourceColour4 VideoSource = 2004
	VideoSourceColour5 VideoSource = 2005
	VideoSourceColour6 VideoSource = 2006
	VideoSourceColour7 VideoSource = 2007
	VideoSourceColour8 VideoSource = 2008

	VideoSourceMediaPlayer1    VideoSource = 3010
	VideoSourceMediaPlayer1Key VideoSource = 3011

	VideoSourceME1Prog VideoSource = 10010
	VideoSourceME1Prev VideoSource = 10011

	VideoSourceInput1Direct VideoSource = 11001

	VideoSourceAuxilary1 VideoSource = 8001
	VideoSourceAuxilary2 VideoSource = 8002
)

func (v VideoSource) String() string {
	switch v {
	case VideoSourceBlack:
		return "Black"
	case VideoSourceColourBars:
		return "ColourBars"
	case VideoSourceColour1, VideoSourceColour2, VideoSourceColour3, VideoSourceColour4,
		VideoSourceColour5, VideoSourceColour6, VideoSourceColour7, VideoSourceColour8:
		return fmt.Sprintf("Colour%d", int(v)-2000)
	case VideoSourceMediaPlayer1:
		return "MediaPlayer1"
	case VideoSourceMediaPlayer1Key:
		return "MediaPlayer1Key"
	case VideoSourceME1Prog:
		return "ME1Prog"
	case VideoSourceME1Prev:
		return "ME1Prev"
	case VideoSourceInput1Direct:
		return "Input1Direct"
	case VideoSourceAuxilary1:
		return "Auxilary1"
	case VideoSourceAuxilary2:
		return "Auxilary2"
	default:
		if v >= 1 && v <= 40 {
			return fmt.Sprintf("Input%d", v)
		}
		return fmt.Sprintf("VideoSource(%d)", uint16(v))
	}
}

func putVideoSource(b []byte, v VideoSource) { binary.BigEndian.PutUint16(b, uint16(v)) }
func getVideoSource(b []byte) VideoSource    { return VideoSource(binary.BigEndian.Uint16(b)) }

// TallyFlags packs the two tally booleans into one byte: bit 0 is program,
// bit 1 is preview, matching the wire order observed in TalliedSources
// entries.
type TallyFlags uint8

const (
	TallyProgram TallyFlags = 1 << 0
	TallyPreview TallyFlags = 1 << 1
)

// Program reports whether the source is currently on program.
func (f TallyFlags) Program() bool { return f&TallyProgram != 0 }

// Preview reports whether the source is currently on preview.
func (f TallyFlags) Preview() bool { return f&TallyPreview != 0 }

// NewTallyFlags builds a TallyFlags from its two component booleans.
func NewTallyFlags(program, preview bool) TallyFlags {
	var f TallyFlags
	if program {
		f |= TallyProgram
	}
	if preview {
		f |= TallyPreview
	}
	return f
}

// TallyBySourceEntry is one (source, flags) pair inside a TalliedSources
// atom.
type TallyBySourceEntry struct {
	VideoSource VideoSource
	Flags       TallyFlags
}

// TalliedSources is the "TlSr" atom: tally status for every known source,
// a trailing variable-length vector of fixed-width (3-byte) records (§4.2
// "trailing variable-length vectors").
type TalliedSources struct {
	Entries []TallyBySourceEntry
}

func (a *TalliedSources) Magic() Magic { return magicOf("TlSr") }

const tallyEntrySize = 3

func (a *TalliedSources) MarshalBinaryTo(b []byte) (int, error) {
	if len(a.Entries) > 0xffff {
		return 0, necroerr.New(necroerr.KindInvalidLength, "too many tally entries")
	}
	binary.BigEndian.PutUint16(b[0:], uint16(len(a.Entries)))
	pos := 2
	for _, e := range a.Entries {
		putVideoSource(b[pos:], e.VideoSource)
		b[pos+2] = byte(e.Flags)
		pos += tallyEntrySize
	}
	return pos, nil
}

func (a *TalliedSources) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return necroerr.New(necroerr.KindProtocol, "TlSr body too short")
	}
	count := int(binary.BigEndian.Uint16(b[0:]))
	pos := 2
	entries := make([]TallyBySourceEntry, 0, count)
	for i := 0; i < count; i++ {
		if pos+tallyEntrySize > len(b) {
			return necroerr.New(necroerr.KindProtocol, "TlSr entry runs off atom body")
		}
		entries = append(entries, TallyBySourceEntry{
			VideoSource: getVideoSource(b[pos:]),
			Flags:       TallyFlags(b[pos+2]),
		})
		pos += tallyEntrySize
	}
	a.Entries = entries
	return nil
}

// Get returns the tally flags for source, and whether an entry for it was
// present.
func (a *TalliedSources) Get(source VideoSource) (TallyFlags, bool) {
	for _, e := range a.Entries {
		if e.VideoSource == source {
			return e.Flags, true
		}
	}
	return 0, false
}
