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

// Package transfer implements the file-transfer sub-protocol (§4.6): the
// download (peer uploads to the client) and upload (client downloads... in
// the switcher's backwards naming, the client sends to the peer) state
// machines, RLE-boundary-preserving chunk splitting and burst pacing.
package transfer

import (
	"context"
	"crypto/md5"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/micolous/necromancer/necroerr"
	"github.com/micolous/necromancer/protocol"
)

// maxBurst is the number of chunk atoms the client keeps in flight at once,
// regardless of the peer's advertised chunk_count (§4.6 step 4).
const maxBurst = 24

// rleMarker is the 64-bit RLE escape constant; a chunk boundary must never
// split the (marker, count, value) triplet it introduces.
const rleMarker = 0xFEFEFEFEFEFEFEFE

// CommandSender sends atoms as one sequenced, acknowledged command and
// blocks until the peer acks it or ctx is cancelled. *session.Session
// satisfies this.
type CommandSender interface {
	Send(ctx context.Context, atoms []protocol.Atom) error
}

// Chunk is one delivered piece of a download's byte stream, or a terminal
// error.
type Chunk struct {
	Payload []byte
	Err     error
}

type download struct {
	storeID uint16
	sink    chan Chunk
	done    bool
}

type uploadParams struct {
	chunkSize  uint16
	chunkCount uint16
}

type upload struct {
	storeID  uint16
	paramsCh chan uploadParams
	resultCh chan error
}

// Engine tracks in-flight transfers, keyed by transfer id, for one session.
// It is safe for concurrent use: HandleAtom is called from the session's
// dispatch path, while StartDownload/RunUpload are called from application
// goroutines.
type Engine struct {
	mu        sync.Mutex
	downloads map[uint16]*download
	uploads   map[uint16]*upload
}

// NewEngine creates an empty transfer Engine.
func NewEngine() *Engine {
	return &Engine{
		downloads: make(map[uint16]*download),
		uploads:   make(map[uint16]*upload),
	}
}

func randomTransferID() uint16 {
	return uint16(rand.Intn(0x10000))
}

// HandleAtom inspects a, dispatches it if it belongs to an in-flight
// transfer, and reports whether it did so (the caller should forward
// unconsumed atoms on to the state mirror, per §4.4's "extract and dispatch
// embedded transfer-layer atoms" step).
func (e *Engine) HandleAtom(a protocol.Atom) bool {
	switch p := a.Payload.(type) {
	case *protocol.TransferChunk:
		e.deliverChunk(p.ID, p.Payload)
		return true
	case *protocol.TransferCompleted:
		e.completeDownload(p.ID)
		e.completeUpload(p.ID, nil)
		return true
	case *protocol.FileTransferError:
		e.failDownload(p.ID, necroerr.Transfer(p.Code))
		e.completeUpload(p.ID, necroerr.Transfer(p.Code))
		return true
	case *protocol.FileTransferChunkParams:
		e.deliverParams(p.ID, p.ChunkSize, p.ChunkCount)
		return true
	default:
		return false
	}
}

func (e *Engine) deliverChunk(id uint16, payload []byte) {
	e.mu.Lock()
	d, ok := e.downloads[id]
	e.mu.Unlock()
	if !ok || d.done {
		return // unknown id: record already torn down (§4.6 "state machines")
	}
	d.sink <- Chunk{Payload: append([]byte(nil), payload...)}
}

func (e *Engine) completeDownload(id uint16) {
	e.mu.Lock()
	d, ok := e.downloads[id]
	if ok {
		delete(e.downloads, id)
	}
	e.mu.Unlock()
	if !ok || d.done {
		return
	}
	close(d.sink)
}

func (e *Engine) failDownload(id uint16, err error) {
	e.mu.Lock()
	d, ok := e.downloads[id]
	if ok {
		delete(e.downloads, id)
	}
	e.mu.Unlock()
	if !ok || d.done {
		return
	}
	d.sink <- Chunk{Err: err}
	close(d.sink)
}

func (e *Engine) completeUpload(id uint16, err error) {
	e.mu.Lock()
	u, ok := e.uploads[id]
	if ok {
		delete(e.uploads, id)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	u.resultCh <- err
}

func (e *Engine) deliverParams(id uint16, size, count uint16) {
	e.mu.Lock()
	u, ok := e.uploads[id]
	e.mu.Unlock()
	if !ok {
		return // chunk-params after the last chunk was queued: ignored
	}
	select {
	case u.paramsCh <- uploadParams{chunkSize: size, chunkCount: count}:
	default:
	}
}

// StartDownload asks the peer to send the file at (storeID, index),
// registering a 128-deep sink channel for the delivered chunks (§4.6
// download step 1). The caller must already hold the storage lock for
// storeID and have awaited its availability.
func (e *Engine) StartDownload(ctx context.Context, sender CommandSender, storeID uint16, index uint32, fileType protocol.FileType) (<-chan Chunk, error) {
	id := randomTransferID()
	sink := make(chan Chunk, 128)

	e.mu.Lock()
	e.downloads[id] = &download{storeID: storeID, sink: sink}
	e.mu.Unlock()

	atom := protocol.NewAtom(&protocol.SetupFileUpload{ID: id, StoreID: storeID, Index: index, Type: fileType})
	if err := sender.Send(ctx, []protocol.Atom{atom}); err != nil {
		e.mu.Lock()
		delete(e.downloads, id)
		e.mu.Unlock()
		return nil, err
	}
	return sink, nil
}

// UploadRequest describes a still image (or other media pool asset) to push
// to the peer.
type UploadRequest struct {
	StoreID     uint16
	Index       uint32
	Type        protocol.FileType
	IsRLE       bool
	Name        string
	Description string
	Data        []byte
}

// RunUpload drives the full upload state machine (§4.6 upload steps 1-7):
// setup, chunk-params pump, RLE-boundary-preserving chunking, 24-chunk burst
// pacing, finish, and waiting for completion or error. The caller must
// already hold the storage lock for req.StoreID and have awaited its
// availability, and must have validated req.Data's length against the
// switcher's current video mode frame size (§4.6 upload precondition,
// Scenario E).
func (e *Engine) RunUpload(ctx context.Context, sender CommandSender, req UploadRequest) error {
	id := randomTransferID()
	sum := md5.Sum(req.Data)

	paramsCh := make(chan uploadParams, 1)
	resultCh := make(chan error, 1)
	e.mu.Lock()
	e.uploads[id] = &upload{storeID: req.StoreID, paramsCh: paramsCh, resultCh: resultCh}
	e.mu.Unlock()

	cleanup := func() {
		e.mu.Lock()
		delete(e.uploads, id)
		e.mu.Unlock()
	}

	setup := protocol.NewAtom(&protocol.SetupFileDownload{
		ID: id, StoreID: req.StoreID, Index: req.Index,
		Size: uint32(len(req.Data)), Type: req.Type, IsRLE: req.IsRLE,
	})
	if err := sender.Send(ctx, []protocol.Atom{setup}); err != nil {
		cleanup()
		return err
	}

	pos := 0
	for pos < len(req.Data) {
		var params uploadParams
		select {
		case params = <-paramsCh:
		case err := <-resultCh:
			cleanup()
			if err != nil {
				return err
			}
			return necroerr.New(necroerr.KindUnexpectedState, "peer completed transfer before all chunks were sent")
		case <-ctx.Done():
			cleanup()
			return ctx.Err()
		}

		effective := int(params.chunkSize)
		if effective > protocol.MaxTransferChunkPayload {
			effective = protocol.MaxTransferChunkPayload
		}
		effective &^= 0x7
		if effective < 24 {
			cleanup()
			return necroerr.Newf(necroerr.KindParameterOutOfRange, "effective chunk payload %d too small for an RLE escape triplet", effective)
		}

		var chunks [][]byte
		for i := uint16(0); i < params.chunkCount && pos < len(req.Data); i++ {
			chunk, next := nextChunk(req.Data, pos, effective)
			chunks = append(chunks, chunk)
			pos = next
		}

		if err := sendBurst(ctx, sender, id, chunks); err != nil {
			cleanup()
			return err
		}
	}

	finish := protocol.NewAtom(&protocol.FinishFileDownload{ID: id, Name: req.Name, Description: req.Description, MD5: sum})
	if err := sender.Send(ctx, []protocol.Atom{finish}); err != nil {
		cleanup()
		return err
	}

	select {
	case err := <-resultCh:
		return err
	case <-ctx.Done():
		cleanup()
		return ctx.Err()
	}
}

// sendBurst sends up to maxBurst chunks concurrently and waits for every
// one of them to be acknowledged before returning (§4.6 step 4).
func sendBurst(ctx context.Context, sender CommandSender, id uint16, chunks [][]byte) error {
	eg, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxBurst)
	for _, payload := range chunks {
		payload := payload
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			atom := protocol.NewAtom(&protocol.TransferChunk{ID: id, Payload: payload})
			return sender.Send(ctx, []protocol.Atom{atom})
		})
	}
	return eg.Wait()
}

// nextChunk builds one chunk of at most maxLen bytes starting at pos,
// breaking early rather than splitting an RLE escape marker across a chunk
// boundary when fewer than 24 bytes of room remain (§4.6 step 3, testable
// property 10).
func nextChunk(data []byte, pos, maxLen int) (chunk []byte, newPos int) {
	limit := maxLen
	if len(data)-pos < limit {
		limit = len(data) - pos
	}
	end := pos
	for end < pos+limit {
		wordEnd := end + 8
		if wordEnd > pos+limit {
			end = pos + limit
			break
		}
		if wordEnd <= len(data) && isRLEMarker(data[end:wordEnd]) {
			room := (pos + limit) - end
			if room < 24 {
				break
			}
		}
		end = wordEnd
	}
	return data[pos:end], end
}

func isRLEMarker(word []byte) bool {
	if len(word) != 8 {
		return false
	}
	for _, b := range word {
		if b != 0xFE {
			return false
		}
	}
	return true
}
