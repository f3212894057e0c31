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
	"testing"

	"github.com/micolous/necromancer/necroerr"
	"github.com/stretchr/testify/require"
)

func TestVersionRoundTrip(t *testing.T) {
	want := &Version{Major: 2, Minor: 30}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*Version)
	require.Equal(t, *want, *got)
}

func TestCheckFirmwareAcceptsSupportedWindow(t *testing.T) {
	require.NoError(t, (&Version{Major: 2, Minor: 30}).CheckFirmware())
	require.NoError(t, (&Version{Major: 2, Minor: 31}).CheckFirmware())
}

func TestCheckFirmwareRejectsOutsideWindow(t *testing.T) {
	err := (&Version{Major: 2, Minor: 29}).CheckFirmware()
	require.Error(t, err)
	kind, ok := necroerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, necroerr.KindUnsupportedFirmwareVersion, kind)

	require.Error(t, (&Version{Major: 3, Minor: 30}).CheckFirmware())
}

func TestTimecodeRequestIsCached(t *testing.T) {
	b1 := TimecodeRequestBytes()
	b2 := TimecodeRequestBytes()
	require.Same(t, &b1[0], &b2[0])
	require.Equal(t, uint16(atomHeadSize), uint16(len(b1)))
}

func TestInitialisationCompleteRoundTrip(t *testing.T) {
	want := &InitialisationComplete{Unknown1: 1, Unknown2: 2}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*InitialisationComplete)
	require.Equal(t, *want, *got)
}
