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
	"github.com/micolous/necromancer/necroerr"
)

func init() {
	registerAtom("DCut", func() Payload { return &Cut{} })
	registerAtom("DAut", func() Payload { return &Auto{} })
	registerAtom("PrgI", func() Payload { return &ProgramInput{} })
	registerAtom("CPgI", func() Payload { return &SetProgramInput{} })
	registerAtom("PrvI", func() Payload { return &PreviewInput{} })
	registerAtom("CPvI", func() Payload { return &SetPreviewInput{} })
	registerAtom("FtbA", func() Payload { return &FadeToBlackAuto{} })
	registerAtom("FCut", func() Payload { return &CutToBlack{} })
}

// Cut is the "DCut" atom: swap program and preview immediately (Scenario B).
type Cut struct {
	ME uint8
}

func (a *Cut) Magic() Magic { return magicOf("DCut") }

func (a *Cut) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.ME
	b[1], b[2], b[3] = 0, 0, 0
	return 4, nil
}

func (a *Cut) UnmarshalBinary(b []byte) error {
	if len(b) < 1 {
		return necroerr.New(necroerr.KindProtocol, "DCut body too short")
	}
	a.ME = b[0]
	return nil
}

// Auto is the "DAut" atom: swap program and preview with a transition.
type Auto struct {
	ME uint8
}

func (a *Auto) Magic() Magic { return magicOf("DAut") }

func (a *Auto) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.ME
	b[1], b[2], b[3] = 0, 0, 0
	return 4, nil
}

func (a *Auto) UnmarshalBinary(b []byte) error {
	if len(b) < 1 {
		return necroerr.New(necroerr.KindProtocol, "DAut body too short")
	}
	a.ME = b[0]
	return nil
}

// ProgramInput is the "PrgI" event atom: the peer reports a program input
// change for an ME.
type ProgramInput struct {
	ME          uint8
	VideoSource VideoSource
}

func (a *ProgramInput) Magic() Magic { return magicOf("PrgI") }

func (a *ProgramInput) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.ME
	b[1] = 0
	putVideoSource(b[2:], a.VideoSource)
	return 4, nil
}

func (a *ProgramInput) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return necroerr.New(necroerr.KindProtocol, "PrgI body too short")
	}
	a.ME = b[0]
	a.VideoSource = getVideoSource(b[2:])
	return nil
}

// SetProgramInput is the "CPgI" command atom: the client requests a
// program input change for an ME.
type SetProgramInput struct {
	ME          uint8
	VideoSource VideoSource
}

func (a *SetProgramInput) Magic() Magic { return magicOf("CPgI") }

func (a *SetProgramInput) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.ME
	b[1] = 0
	putVideoSource(b[2:], a.VideoSource)
	return 4, nil
}

func (a *SetProgramInput) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return necroerr.New(necroerr.KindProtocol, "CPgI body too short")
	}
	a.ME = b[0]
	a.VideoSource = getVideoSource(b[2:])
	return nil
}

// PreviewInput is the "PrvI" event atom: the peer reports a preview input
// change for an ME.
type PreviewInput struct {
	ME               uint8
	VideoSource      VideoSource
	PreviewInputLive bool
}

func (a *PreviewInput) Magic() Magic { return magicOf("PrvI") }

func (a *PreviewInput) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.ME
	b[1] = 0
	putVideoSource(b[2:], a.VideoSource)
	if a.PreviewInputLive {
		b[4] = 1
	} else {
		b[4] = 0
	}
	b[5], b[6], b[7] = 0, 0, 0
	return 8, nil
}

func (a *PreviewInput) UnmarshalBinary(b []byte) error {
	if len(b) < 5 {
		return necroerr.New(necroerr.KindProtocol, "PrvI body too short")
	}
	a.ME = b[0]
	a.VideoSource = getVideoSource(b[2:])
	a.PreviewInputLive = b[4] != 0
	return nil
}

// SetPreviewInput is the "CPvI" command atom: the client requests a
// preview input change for an ME.
type SetPreviewInput struct {
	ME          uint8
	VideoSource VideoSource
}

func (a *SetPreviewInput) Magic() Magic { return magicOf("CPvI") }

func (a *SetPreviewInput) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.ME
	b[1] = 0
	putVideoSource(b[2:], a.VideoSource)
	return 4, nil
}

func (a *SetPreviewInput) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return necroerr.New(necroerr.KindProtocol, "CPvI body too short")
	}
	a.ME = b[0]
	a.VideoSource = getVideoSource(b[2:])
	return nil
}

// FadeToBlackAuto is the "FtbA" atom: transition to/from black over time.
type FadeToBlackAuto struct {
	ME uint8
}

func (a *FadeToBlackAuto) Magic() Magic { return magicOf("FtbA") }

func (a *FadeToBlackAuto) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.ME
	b[1], b[2], b[3] = 0, 0, 0
	return 4, nil
}

func (a *FadeToBlackAuto) UnmarshalBinary(b []byte) error {
	if len(b) < 1 {
		return necroerr.New(necroerr.KindProtocol, "FtbA body too short")
	}
	a.ME = b[0]
	return nil
}

// CutToBlack is the "FCut" atom: cut directly to/from black.
type CutToBlack struct {
	ME    uint8
	Black bool
}

func (a *CutToBlack) Magic() Magic { return magicOf("FCut") }

func (a *CutToBlack) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.ME
	if a.Black {
		b[1] = 1
	} else {
		b[1] = 0
	}
	b[2], b[3] = 0, 0
	return 4, nil
}

func (a *CutToBlack) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return necroerr.New(necroerr.KindProtocol, "FCut body too short")
	}
	a.ME = b[0]
	a.Black = b[1] != 0
	return nil
}
