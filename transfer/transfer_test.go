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

package transfer

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/micolous/necromancer/protocol"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []protocol.Atom
}

func (f *fakeSender) Send(_ context.Context, atoms []protocol.Atom) error {
	f.mu.Lock()
	f.sent = append(f.sent, atoms...)
	f.mu.Unlock()
	return nil
}

func TestNextChunkSplitsOnPlainBoundary(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 40)
	chunk, pos := nextChunk(data, 0, 24)
	require.Len(t, chunk, 24)
	require.Equal(t, 24, pos)
}

func TestNextChunkPreservesRLETripletAcrossBoundary(t *testing.T) {
	// Effective chunk payload size M = 32. Fill M-8 = 24 bytes of plain
	// data, then the 8-byte RLE marker and its 8-byte count and value words.
	// Room remaining at the marker is exactly 8 bytes (< 24), so the chunk
	// must close before it.
	data := append(bytes.Repeat([]byte{0x01}, 24), bytes.Repeat([]byte{0xFE}, 8)...)
	data = append(data, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05) // count word
	data = append(data, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2A) // value word

	chunk, pos := nextChunk(data, 0, 32)
	require.Len(t, chunk, 24)
	require.Equal(t, 24, pos)

	next, _ := nextChunk(data, pos, 32)
	require.True(t, isRLEMarker(next[:8]))
}

func TestStartDownloadDeliversChunksInOrder(t *testing.T) {
	e := NewEngine()
	s := &fakeSender{}
	sink, err := e.StartDownload(context.Background(), s, 0, 0, protocol.FileTypeStillFrame)
	require.NoError(t, err)
	require.Len(t, s.sent, 1)
	setup, ok := s.sent[0].Payload.(*protocol.SetupFileUpload)
	require.True(t, ok)

	e.HandleAtom(protocol.NewAtom(&protocol.TransferChunk{ID: setup.ID, Payload: []byte("abc")}))
	e.HandleAtom(protocol.NewAtom(&protocol.TransferChunk{ID: setup.ID, Payload: []byte("def")}))
	e.HandleAtom(protocol.NewAtom(&protocol.TransferCompleted{ID: setup.ID}))

	c1 := <-sink
	require.NoError(t, c1.Err)
	require.Equal(t, []byte("abc"), c1.Payload)
	c2 := <-sink
	require.Equal(t, []byte("def"), c2.Payload)
	_, stillOpen := <-sink
	require.False(t, stillOpen)
}

func TestStartDownloadDeliversErrorAndCloses(t *testing.T) {
	e := NewEngine()
	s := &fakeSender{}
	sink, err := e.StartDownload(context.Background(), s, 0, 0, protocol.FileTypeStillFrame)
	require.NoError(t, err)
	setup := s.sent[0].Payload.(*protocol.SetupFileUpload)

	e.HandleAtom(protocol.NewAtom(&protocol.FileTransferError{ID: setup.ID, Code: 7}))
	c := <-sink
	require.Error(t, c.Err)
	_, stillOpen := <-sink
	require.False(t, stillOpen)
}

func TestHandleAtomIgnoresUnknownTransferID(t *testing.T) {
	e := NewEngine()
	// No registered transfer for id 42; must not panic.
	require.True(t, e.HandleAtom(protocol.NewAtom(&protocol.TransferChunk{ID: 42, Payload: []byte("x")})))
}

func TestRunUploadFullRoundTrip(t *testing.T) {
	e := NewEngine()
	s := &fakeSender{}
	data := bytes.Repeat([]byte{0x42}, 50)

	req := UploadRequest{StoreID: 0, Index: 0, Type: protocol.FileTypeStillFrame, Data: data, Name: "still"}

	done := make(chan error, 1)
	go func() { done <- e.RunUpload(context.Background(), s, req) }()

	// Find the setup atom to learn the transfer id, then drive the state
	// machine as the peer would.
	var id uint16
	for {
		s.mu.Lock()
		if len(s.sent) > 0 {
			if su, ok := s.sent[0].Payload.(*protocol.SetupFileDownload); ok {
				id = su.ID
				s.mu.Unlock()
				break
			}
		}
		s.mu.Unlock()
	}

	require.True(t, e.HandleAtom(protocol.NewAtom(&protocol.FileTransferChunkParams{ID: id, ChunkSize: 32, ChunkCount: 10})))
	require.True(t, e.HandleAtom(protocol.NewAtom(&protocol.TransferCompleted{ID: id})))

	require.NoError(t, <-done)

	var chunkBytes []byte
	var sawFinish bool
	for _, a := range s.sent {
		if c, ok := a.Payload.(*protocol.TransferChunk); ok {
			chunkBytes = append(chunkBytes, c.Payload...)
		}
		if _, ok := a.Payload.(*protocol.FinishFileDownload); ok {
			sawFinish = true
		}
	}
	require.Equal(t, data, chunkBytes)
	require.True(t, sawFinish)
}

func TestRunUploadPropagatesPeerError(t *testing.T) {
	e := NewEngine()
	s := &fakeSender{}
	data := bytes.Repeat([]byte{0x01}, 16)
	req := UploadRequest{StoreID: 0, Data: data}

	done := make(chan error, 1)
	go func() { done <- e.RunUpload(context.Background(), s, req) }()

	var id uint16
	for {
		s.mu.Lock()
		if len(s.sent) > 0 {
			if su, ok := s.sent[0].Payload.(*protocol.SetupFileDownload); ok {
				id = su.ID
				s.mu.Unlock()
				break
			}
		}
		s.mu.Unlock()
	}

	e.HandleAtom(protocol.NewAtom(&protocol.FileTransferError{ID: id, Code: 3}))
	err := <-done
	require.Error(t, err)
}
