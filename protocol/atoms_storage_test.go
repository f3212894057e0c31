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

func TestMediaPlayerFrameDescriptionAlignment(t *testing.T) {
	cases := []struct {
		name       string
		wantLength int
	}{
		{"A", 36},
		{"AB", 36},
		{"ABC", 36},
		{"ABCD", 36},
		{"ABCDE", 40},
	}
	for _, c := range cases {
		a := NewAtom(&MediaPlayerFrameDescription{StoreID: 0, Index: 0, IsValid: true, Name: c.name})
		b, err := a.MarshalBinary()
		require.NoError(t, err, c.name)
		require.Len(t, b, c.wantLength, "name %q", c.name)
		require.Equal(t, c.wantLength%4, 0)
	}
}

func TestMediaPlayerFrameDescriptionRoundTrip(t *testing.T) {
	want := &MediaPlayerFrameDescription{
		StoreID: 2,
		Index:   1,
		IsValid: true,
		Name:    "ABCDE",
	}
	want.MD5[0] = 0xaa
	a := NewAtom(want)
	b, err := a.MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	require.Len(t, atoms, 1)
	got, ok := atoms[0].Payload.(*MediaPlayerFrameDescription)
	require.True(t, ok)
	require.Equal(t, want.StoreID, got.StoreID)
	require.Equal(t, want.Index, got.Index)
	require.True(t, got.IsValid)
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, byte(0xaa), got.MD5[0])
}

func TestSetupFileUploadRoundTrip(t *testing.T) {
	want := &SetupFileUpload{ID: 1, StoreID: 0, Index: 0, Type: FileTypeStillFrame}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*SetupFileUpload)
	require.Equal(t, *want, *got)
}

func TestSetupFileDownloadRoundTripScenarioD(t *testing.T) {
	// Scenario D: 1080i50 uncompressed still is 1920*1080*4 bytes.
	const size = 1920 * 1080 * 4
	want := &SetupFileDownload{ID: 1, StoreID: 0, Index: 0, Size: size, Type: FileTypeStillFrame, IsRLE: true}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*SetupFileDownload)
	require.Equal(t, uint32(8294400), got.Size)
	require.True(t, got.IsRLE)
}

func TestFileTransferChunkParamsCoercesChunkSize(t *testing.T) {
	want := &FileTransferChunkParams{ID: 1, ChunkSize: 1024, ChunkCount: 10}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*FileTransferChunkParams)
	require.Equal(t, *want, *got)
}

func TestMaxTransferChunkPayloadIsEightByteAligned(t *testing.T) {
	require.Equal(t, 0, MaxTransferChunkPayload%8)
	require.Equal(t, MaxPayloadLength-atomHeadSize-4-((MaxPayloadLength-atomHeadSize-4)%8), MaxTransferChunkPayload)
}

func TestTransferChunkRejectsOverlongPayload(t *testing.T) {
	a := &TransferChunk{ID: 1, Payload: make([]byte, MaxTransferChunkPayload+1)}
	_, err := a.MarshalBinaryTo(make([]byte, MaxPayloadLength))
	require.Error(t, err)
}

func TestFinishFileDownloadRoundTrip(t *testing.T) {
	want := &FinishFileDownload{ID: 9, Name: "still.rgba", Description: "uploaded by client"}
	want.MD5[0] = 0xff
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*FinishFileDownload)
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.Description, got.Description)
	require.Equal(t, byte(0xff), got.MD5[0])
}

func TestMediaPoolLockRoundTrip(t *testing.T) {
	want := &MediaPoolLock{StoreID: 4, Lock: true}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*MediaPoolLock)
	require.Equal(t, *want, *got)
}

func TestMediaPoolLockStatusRoundTrip(t *testing.T) {
	want := &MediaPoolLockStatus{StoreID: 4, Locked: false}
	b, err := NewAtom(want).MarshalBinary()
	require.NoError(t, err)

	atoms, err := decodeAtoms(b)
	require.NoError(t, err)
	got := atoms[0].Payload.(*MediaPoolLockStatus)
	require.Equal(t, *want, *got)
}
