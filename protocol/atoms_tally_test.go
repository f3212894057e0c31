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

	"github.com/stretchr/testify/require"
)

func TestTalliedSourcesRoundTrip(t *testing.T) {
	want := &TalliedSources{Entries: []TallyBySourceEntry{
		{VideoSource: VideoSourceInput1, Flags: NewTallyFlags(false, true)},
		{VideoSource: VideoSourceInput4, Flags: NewTallyFlags(true, false)},
		{VideoSource: VideoSourceColourBars, Flags: 0},
	}}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*TalliedSources)
	require.Equal(t, want.Entries, got.Entries)
}

func TestTalliedSourcesGet(t *testing.T) {
	ts := &TalliedSources{Entries: []TallyBySourceEntry{
		{VideoSource: VideoSourceInput1, Flags: NewTallyFlags(false, true)},
	}}
	flags, ok := ts.Get(VideoSourceInput1)
	require.True(t, ok)
	require.True(t, flags.Preview())
	require.False(t, flags.Program())

	_, ok = ts.Get(VideoSourceInput2)
	require.False(t, ok)
}

func TestTallyFlagsAccessors(t *testing.T) {
	f := NewTallyFlags(true, true)
	require.True(t, f.Program())
	require.True(t, f.Preview())
	require.Equal(t, TallyFlags(0x03), f)
}

func TestVideoSourceString(t *testing.T) {
	require.Equal(t, "Black", VideoSourceBlack.String())
	require.Equal(t, "Input1", VideoSourceInput1.String())
	require.Equal(t, "ColourBars", VideoSourceColourBars.String())
	require.Equal(t, "Colour1", VideoSourceColour1.String())
	require.Equal(t, "MediaPlayer1", VideoSourceMediaPlayer1.String())
}
