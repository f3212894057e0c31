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
	registerAtom("_ver", func() Payload { return &Version{} })
	registerAtom("InCm", func() Payload { return &InitialisationComplete{} })
	registerAtom("TiRq", func() Payload { return &TimecodeRequest{} })
}

// Version is the "_ver" atom carrying the peer's protocol version. The
// only supported firmware window is major=2, minor in {30,31} (§6).
type Version struct {
	Major uint16
	Minor uint16
}

func (a *Version) Magic() Magic { return magicOf("_ver") }

func (a *Version) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.Major)
	binary.BigEndian.PutUint16(b[2:], a.Minor)
	return 4, nil
}

func (a *Version) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return necroerr.New(necroerr.KindProtocol, "_ver body too short")
	}
	a.Major = binary.BigEndian.Uint16(b[0:])
	a.Minor = binary.BigEndian.Uint16(b[2:])
	return nil
}

// CheckFirmware validates the version against the narrow window this
// library supports.
func (a *Version) CheckFirmware() error {
	if a.Major != 2 || a.Minor < 30 || a.Minor > 31 {
		return necroerr.Newf(necroerr.KindUnsupportedFirmwareVersion, "unsupported firmware version %d.%d", a.Major, a.Minor)
	}
	return nil
}

// InitialisationComplete is the "InCm" atom marking the end of the peer's
// initial state dump.
type InitialisationComplete struct {
	Unknown1 uint8
	Unknown2 uint8
}

func (a *InitialisationComplete) Magic() Magic { return magicOf("InCm") }

func (a *InitialisationComplete) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.Unknown1
	b[1] = a.Unknown2
	b[2], b[3] = 0, 0
	return 4, nil
}

func (a *InitialisationComplete) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return necroerr.New(necroerr.KindProtocol, "InCm body too short")
	}
	a.Unknown1 = b[0]
	a.Unknown2 = b[1]
	return nil
}

// TimecodeRequest is the "TiRq" atom: an empty-bodied liveness probe that
// asks the peer to emit its current timecode.
type TimecodeRequest struct{}

func (a *TimecodeRequest) Magic() Magic { return magicOf("TiRq") }

func (a *TimecodeRequest) MarshalBinaryTo(b []byte) (int, error) { return 0, nil }

func (a *TimecodeRequest) UnmarshalBinary(b []byte) error { return nil }

// cachedTimecodeRequest is the process-wide encoded form of the liveness
// probe atom: it has no identity beyond its encoding, so there is no need
// to re-encode it for every probe (§9 "Global state").
var cachedTimecodeRequest = func() []byte {
	a := NewAtom(&TimecodeRequest{})
	b, err := a.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}()

// TimecodeRequestBytes returns the cached, pre-encoded TimecodeRequest atom.
func TimecodeRequestBytes() []byte {
	return cachedTimecodeRequest
}
