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

	"github.com/micolous/necromancer/necroerr"
)

func init() {
	registerAtom("ColV", func() Payload { return &ColourGeneratorParams{} })
	registerAtom("CClV", func() Payload { return &SetColourGeneratorParams{} })
}

// ColourGeneratorParams is the "ColV" event atom: the peer reports the
// current HSL parameters of one colour generator.
type ColourGeneratorParams struct {
	ID         uint8
	Hue        uint16
	Saturation uint16
	Luminance  uint16
}

func (a *ColourGeneratorParams) Magic() Magic { return magicOf("ColV") }

func (a *ColourGeneratorParams) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.ID
	b[1] = 0
	binary.BigEndian.PutUint16(b[2:], a.Hue)
	binary.BigEndian.PutUint16(b[4:], a.Saturation)
	binary.BigEndian.PutUint16(b[6:], a.Luminance)
	return 8, nil
}

func (a *ColourGeneratorParams) UnmarshalBinary(b []byte) error {
	if len(b) < 8 {
		return necroerr.New(necroerr.KindProtocol, "ColV body too short")
	}
	a.ID = b[0]
	a.Hue = binary.BigEndian.Uint16(b[2:])
	a.Saturation = binary.BigEndian.Uint16(b[4:])
	a.Luminance = binary.BigEndian.Uint16(b[6:])
	return nil
}

// colourParamMask bits select which fields a SetColourGeneratorParams
// command actually carries (§4.2 "bitmask-gated optional fields").
const (
	colourParamMaskHue        uint8 = 1 << 0
	colourParamMaskSaturation uint8 = 1 << 1
	colourParamMaskLuminance  uint8 = 1 << 2
)

// SetColourGeneratorParams is the "CClV" command atom: change one or more
// of a colour generator's HSL parameters. Fields left unset are sent as
// zero with their mask bit clear, and must not be applied by the peer.
type SetColourGeneratorParams struct {
	ID uint8

	Hue        *uint16
	Saturation *uint16
	Luminance  *uint16
}

func (a *SetColourGeneratorParams) Magic() Magic { return magicOf("CClV") }

func (a *SetColourGeneratorParams) MarshalBinaryTo(b []byte) (int, error) {
	var mask uint8
	if a.Hue != nil {
		mask |= colourParamMaskHue
	}
	if a.Saturation != nil {
		mask |= colourParamMaskSaturation
	}
	if a.Luminance != nil {
		mask |= colourParamMaskLuminance
	}
	b[0] = mask
	b[1] = a.ID
	binary.BigEndian.PutUint16(b[2:], derefOr(a.Hue, 0))
	binary.BigEndian.PutUint16(b[4:], derefOr(a.Saturation, 0))
	binary.BigEndian.PutUint16(b[6:], derefOr(a.Luminance, 0))
	return 8, nil
}

func (a *SetColourGeneratorParams) UnmarshalBinary(b []byte) error {
	if len(b) < 8 {
		return necroerr.New(necroerr.KindProtocol, "CClV body too short")
	}
	mask := b[0]
	a.ID = b[1]
	a.Hue = nil
	a.Saturation = nil
	a.Luminance = nil
	if mask&colourParamMaskHue != 0 {
		v := binary.BigEndian.Uint16(b[2:])
		a.Hue = &v
	}
	if mask&colourParamMaskSaturation != 0 {
		v := binary.BigEndian.Uint16(b[4:])
		a.Saturation = &v
	}
	if mask&colourParamMaskLuminance != 0 {
		v := binary.BigEndian.Uint16(b[6:])
		a.Luminance = &v
	}
	return nil
}

func derefOr(p *uint16, def uint16) uint16 {
	if p == nil {
		return def
	}
	return *p
}
