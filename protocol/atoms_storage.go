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
	registerAtom("FTSU", func() Payload { return &SetupFileUpload{} })
	registerAtom("FTSD", func() Payload { return &SetupFileDownload{} })
	registerAtom("FTCD", func() Payload { return &FileTransferChunkParams{} })
	registerAtom("FTDa", func() Payload { return &TransferChunk{} })
	registerAtom("FTUA", func() Payload { return &TransferAck{} })
	registerAtom("FTDC", func() Payload { return &TransferCompleted{} })
	registerAtom("FTDE", func() Payload { return &FileTransferError{} })
	registerAtom("FTFD", func() Payload { return &FinishFileDownload{} })
	registerAtom("MPfe", func() Payload { return &MediaPlayerFrameDescription{} })
	registerAtom("LOCK", func() Payload { return &MediaPoolLock{} })
	registerAtom("LKOB", func() Payload { return &LockObtained{} })
	registerAtom("LKST", func() Payload { return &MediaPoolLockStatus{} })
}

// FileType identifies the kind of media pool slot a transfer refers to.
type FileType uint8

// Known FileType values.
const (
	FileTypeStillFrame     FileType = 0x00
	FileTypeAudio          FileType = 0x01
	FileTypeMultiViewLabel FileType = 0x02
	FileTypeMacro          FileType = 0x03
)

// SetupFileUpload is the FTSU atom: sent by the client to ask the switcher
// to upload (send) a file to the client. Despite the name, this atom
// initiates a download in the session manager's terms (§4.6).
type SetupFileUpload struct {
	ID      uint16
	StoreID uint16
	Index   uint32
	Type    FileType
}

func (a *SetupFileUpload) Magic() Magic { return magicOf("FTSU") }

func (a *SetupFileUpload) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.ID)
	binary.BigEndian.PutUint16(b[2:], a.StoreID)
	binary.BigEndian.PutUint32(b[4:], a.Index)
	b[8] = byte(a.Type)
	b[9], b[10], b[11] = 0, 0, 0
	return 12, nil
}

func (a *SetupFileUpload) UnmarshalBinary(b []byte) error {
	if len(b) < 9 {
		return necroerr.New(necroerr.KindProtocol, "FTSU body too short")
	}
	a.ID = binary.BigEndian.Uint16(b[0:])
	a.StoreID = binary.BigEndian.Uint16(b[2:])
	a.Index = binary.BigEndian.Uint32(b[4:])
	a.Type = FileType(b[8])
	return nil
}

// FileTransferChunkParams is the FTCD atom: the peer's advertised chunking
// budget for the current transfer.
type FileTransferChunkParams struct {
	ID         uint16
	ChunkSize  uint16
	ChunkCount uint16
}

func (a *FileTransferChunkParams) Magic() Magic { return magicOf("FTCD") }

func (a *FileTransferChunkParams) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.ID)
	b[2], b[3] = 0, 0
	binary.BigEndian.PutUint32(b[4:], uint32(a.ChunkSize))
	binary.BigEndian.PutUint16(b[8:], a.ChunkCount)
	b[10], b[11] = 0, 0
	return 12, nil
}

func (a *FileTransferChunkParams) UnmarshalBinary(b []byte) error {
	if len(b) < 10 {
		return necroerr.New(necroerr.KindProtocol, "FTCD body too short")
	}
	a.ID = binary.BigEndian.Uint16(b[0:])
	size := binary.BigEndian.Uint32(b[4:])
	if size > 0xffff {
		return necroerr.Newf(necroerr.KindProtocol, "FTCD chunk_size %d overflows u16", size)
	}
	a.ChunkSize = uint16(size)
	a.ChunkCount = binary.BigEndian.Uint16(b[8:])
	return nil
}

// SetupFileDownload is the FTSD atom: sent by the client to ask the
// switcher to receive (download, in switcher terms) a file from the
// client. In the session manager's terms (§4.6) this initiates an upload.
type SetupFileDownload struct {
	ID      uint16
	StoreID uint16
	Index   uint32
	Size    uint32
	Type    FileType
	IsRLE   bool
}

func (a *SetupFileDownload) Magic() Magic { return magicOf("FTSD") }

func (a *SetupFileDownload) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.ID)
	binary.BigEndian.PutUint16(b[2:], a.StoreID)
	binary.BigEndian.PutUint32(b[4:], a.Index)
	binary.BigEndian.PutUint32(b[8:], a.Size)
	b[12] = byte(a.Type)
	if a.IsRLE {
		b[13] = 1
	} else {
		b[13] = 0
	}
	b[14], b[15] = 0, 0
	return 16, nil
}

func (a *SetupFileDownload) UnmarshalBinary(b []byte) error {
	if len(b) < 14 {
		return necroerr.New(necroerr.KindProtocol, "FTSD body too short")
	}
	a.ID = binary.BigEndian.Uint16(b[0:])
	a.StoreID = binary.BigEndian.Uint16(b[2:])
	a.Index = binary.BigEndian.Uint32(b[4:])
	a.Size = binary.BigEndian.Uint32(b[8:])
	a.Type = FileType(b[12])
	a.IsRLE = b[13] != 0
	return nil
}

// FinishFileDownload is the FTFD atom: sent by the client once it has
// finished streaming an upload, carrying the file's metadata.
type FinishFileDownload struct {
	ID          uint16
	Name        string
	Description string
	MD5         [16]byte
}

func (a *FinishFileDownload) Magic() Magic { return magicOf("FTFD") }

func (a *FinishFileDownload) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.ID)
	if err := encodeFixedString(b[2:66], a.Name, 64); err != nil {
		return 0, err
	}
	if err := encodeFixedString(b[66:194], a.Description, 128); err != nil {
		return 0, err
	}
	copy(b[194:210], a.MD5[:])
	b[210], b[211] = 0, 0
	return 212, nil
}

func (a *FinishFileDownload) UnmarshalBinary(b []byte) error {
	if len(b) < 210 {
		return necroerr.New(necroerr.KindProtocol, "FTFD body too short")
	}
	a.ID = binary.BigEndian.Uint16(b[0:])
	a.Name = decodeFixedString(b[2:66])
	a.Description = decodeFixedString(b[66:194])
	copy(a.MD5[:], b[194:210])
	return nil
}

// MaxTransferChunkPayload is the largest payload a single TransferChunk
// atom can carry, masked down to a multiple of 8 bytes (§4.6 step 2).
const MaxTransferChunkPayload = (MaxPayloadLength - atomHeadSize - 4) &^ 0x7

// TransferChunk is the FTDa atom: one chunk of a file transfer's byte
// stream, in either direction.
type TransferChunk struct {
	ID      uint16
	Payload []byte
}

func (a *TransferChunk) Magic() Magic { return magicOf("FTDa") }

func (a *TransferChunk) MarshalBinaryTo(b []byte) (int, error) {
	if len(a.Payload) > MaxTransferChunkPayload {
		return 0, necroerr.Newf(necroerr.KindInvalidLength, "transfer chunk payload %d exceeds max %d", len(a.Payload), MaxTransferChunkPayload)
	}
	binary.BigEndian.PutUint16(b[0:], a.ID)
	binary.BigEndian.PutUint16(b[2:], uint16(len(a.Payload)))
	n := copy(b[4:], a.Payload)
	return 4 + n, nil
}

func (a *TransferChunk) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return necroerr.New(necroerr.KindProtocol, "FTDa body too short")
	}
	a.ID = binary.BigEndian.Uint16(b[0:])
	length := int(binary.BigEndian.Uint16(b[2:]))
	if 4+length > len(b) {
		return necroerr.New(necroerr.KindProtocol, "FTDa declares more payload than present")
	}
	a.Payload = append([]byte(nil), b[4:4+length]...)
	return nil
}

// TransferAck is the FTUA atom: client acknowledgement of received
// TransferChunk atoms for a download.
type TransferAck struct {
	ID uint16
}

func (a *TransferAck) Magic() Magic { return magicOf("FTUA") }

func (a *TransferAck) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.ID)
	b[2], b[3] = 0, 0
	return 4, nil
}

func (a *TransferAck) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return necroerr.New(necroerr.KindProtocol, "FTUA body too short")
	}
	a.ID = binary.BigEndian.Uint16(b[0:])
	return nil
}

// TransferCompleted is the FTDC atom: the peer reports a transfer (either
// direction) finished successfully.
type TransferCompleted struct {
	ID      uint16
	Unknown uint16
}

func (a *TransferCompleted) Magic() Magic { return magicOf("FTDC") }

func (a *TransferCompleted) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.ID)
	binary.BigEndian.PutUint16(b[2:], a.Unknown)
	return 4, nil
}

func (a *TransferCompleted) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return necroerr.New(necroerr.KindProtocol, "FTDC body too short")
	}
	a.ID = binary.BigEndian.Uint16(b[0:])
	a.Unknown = binary.BigEndian.Uint16(b[2:])
	return nil
}

// FileTransferError is the FTDE atom: the peer reports a transfer failed
// with a numeric code.
type FileTransferError struct {
	ID   uint16
	Code uint8
}

func (a *FileTransferError) Magic() Magic { return magicOf("FTDE") }

func (a *FileTransferError) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.ID)
	b[2] = a.Code
	b[3] = 0
	return 4, nil
}

func (a *FileTransferError) UnmarshalBinary(b []byte) error {
	if len(b) < 3 {
		return necroerr.New(necroerr.KindProtocol, "FTDE body too short")
	}
	a.ID = binary.BigEndian.Uint16(b[0:])
	a.Code = b[2]
	return nil
}

// MediaPlayerFrameDescription is the MPfe atom: describes a still stored at
// a media pool slot. Its variable-length Name field is align_after(4) per
// §4.2, measured from the atom's header start (testable property 3).
type MediaPlayerFrameDescription struct {
	StoreID uint8
	Index   uint16
	IsValid bool
	MD5     [16]byte
	Name    string
}

func (a *MediaPlayerFrameDescription) Magic() Magic { return magicOf("MPfe") }

func (a *MediaPlayerFrameDescription) MarshalBinaryTo(b []byte) (int, error) {
	b[0] = a.StoreID
	b[1] = 0
	binary.BigEndian.PutUint16(b[2:], a.Index)
	if a.IsValid {
		b[4] = 1
	} else {
		b[4] = 0
	}
	b[5] = 0
	copy(b[6:22], a.MD5[:])
	binary.BigEndian.PutUint16(b[22:], uint16(len(a.Name)))
	n := copy(b[24:], a.Name)
	bodyLen := 24 + n
	pad := padTo(atomHeadSize+bodyLen, 4)
	for i := 0; i < pad; i++ {
		b[bodyLen+i] = 0
	}
	return bodyLen + pad, nil
}

func (a *MediaPlayerFrameDescription) UnmarshalBinary(b []byte) error {
	if len(b) < 24 {
		return necroerr.New(necroerr.KindProtocol, "MPfe body too short")
	}
	a.StoreID = b[0]
	a.Index = binary.BigEndian.Uint16(b[2:])
	a.IsValid = b[4] != 0
	copy(a.MD5[:], b[6:22])
	nameLen := int(binary.BigEndian.Uint16(b[22:]))
	if 24+nameLen > len(b) {
		return necroerr.New(necroerr.KindProtocol, "MPfe name length runs off atom body")
	}
	a.Name = decodeFixedString(b[24 : 24+nameLen])
	return nil
}

// MediaPoolLock is the LOCK atom: request or release a storage lock.
type MediaPoolLock struct {
	StoreID uint16
	Lock    bool
}

func (a *MediaPoolLock) Magic() Magic { return magicOf("LOCK") }

func (a *MediaPoolLock) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.StoreID)
	if a.Lock {
		b[2] = 1
	} else {
		b[2] = 0
	}
	b[3] = 0
	return 4, nil
}

func (a *MediaPoolLock) UnmarshalBinary(b []byte) error {
	if len(b) < 3 {
		return necroerr.New(necroerr.KindProtocol, "LOCK body too short")
	}
	a.StoreID = binary.BigEndian.Uint16(b[0:])
	a.Lock = b[2] != 0
	return nil
}

// LockObtained is the LKOB atom: the peer grants a previously requested
// storage lock.
type LockObtained struct {
	StoreID uint16
}

func (a *LockObtained) Magic() Magic { return magicOf("LKOB") }

func (a *LockObtained) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.StoreID)
	b[2], b[3] = 0, 0
	return 4, nil
}

func (a *LockObtained) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return necroerr.New(necroerr.KindProtocol, "LKOB body too short")
	}
	a.StoreID = binary.BigEndian.Uint16(b[0:])
	return nil
}

// MediaPoolLockStatus is the LKST atom: the peer reports a third-party
// lock/unlock of a store id.
type MediaPoolLockStatus struct {
	StoreID uint16
	Locked  bool
}

func (a *MediaPoolLockStatus) Magic() Magic { return magicOf("LKST") }

func (a *MediaPoolLockStatus) MarshalBinaryTo(b []byte) (int, error) {
	binary.BigEndian.PutUint16(b[0:], a.StoreID)
	if a.Locked {
		b[2] = 1
	} else {
		b[2] = 0
	}
	b[3] = 0
	return 4, nil
}

func (a *MediaPoolLockStatus) UnmarshalBinary(b []byte) error {
	if len(b) < 3 {
		return necroerr.New(necroerr.KindProtocol, "LKST body too short")
	}
	a.StoreID = binary.BigEndian.Uint16(b[0:])
	a.Locked = b[2] != 0
	return nil
}
