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

func TestCaptureStillRoundTrip(t *testing.T) {
	want := &CaptureStill{}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	_, ok := atoms[0].Payload.(*CaptureStill)
	require.True(t, ok)
}

func TestMediaPlayerCapabilitiesRoundTrip(t *testing.T) {
	want := &MediaPlayerCapabilities{StillCount: 20, ClipCount: 2, SupportsStillCapture: true}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*MediaPlayerCapabilities)
	require.Equal(t, *want, *got)
}

func TestMediaPlayerCapabilitiesNoStillSupport(t *testing.T) {
	want := &MediaPlayerCapabilities{StillCount: 20, ClipCount: 2, SupportsStillCapture: false}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*MediaPlayerCapabilities)
	require.False(t, got.SupportsStillCapture)
}

func TestSetMediaPlayerSourceRoundTrip(t *testing.T) {
	want := &SetMediaPlayerSource{ID: 1, Kind: MediaPlayerSourceClip, Index: 3}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*SetMediaPlayerSource)
	require.Equal(t, *want, *got)
}

func TestSetMediaPlayerSourceStillKind(t *testing.T) {
	want := &SetMediaPlayerSource{ID: 0, Kind: MediaPlayerSourceStill, Index: 5}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*SetMediaPlayerSource)
	require.Equal(t, MediaPlayerSourceStill, got.Kind)
	require.Equal(t, uint8(5), got.Index)
}
