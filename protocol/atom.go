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
	"fmt"
	"strings"

	"github.com/micolous/necromancer/necroerr"
)

// atomHeadSize is the length of an atom's length field plus its 2 padding
// bytes plus its 4-byte magic.
const atomHeadSize = 8

// MinAtomLength is the smallest legal atom length (header only, no body).
const MinAtomLength = atomHeadSize

// Magic is a 4-byte ASCII tag identifying an atom variant.
type Magic [4]byte

func (m Magic) String() string {
	return string(m[:])
}

func magicOf(s string) Magic {
	var m Magic
	copy(m[:], s)
	return m
}

// Payload is implemented by every known atom body variant.
type Payload interface {
	// Magic returns the 4-byte tag identifying this variant on the wire.
	Magic() Magic
	// MarshalBinaryTo encodes the body (not the atom header) into b and
	// returns the number of bytes written.
	MarshalBinaryTo(b []byte) (int, error)
	// UnmarshalBinary decodes the body from exactly len(b) bytes, where
	// len(b) is the atom's declared length minus the header.
	UnmarshalBinary(b []byte) error
}

// Atom is one length-prefixed, magic-tagged record inside a packet's atom
// payload.
type Atom struct {
	Payload Payload
}

// NewAtom wraps a decoded Payload as an Atom.
func NewAtom(p Payload) Atom {
	return Atom{Payload: p}
}

// Unknown preserves an atom whose magic this decoder does not recognise, so
// a packet containing atoms newer than this library's catalogue still
// round-trips.
type Unknown struct {
	UnknownMagic Magic
	Body         []byte
}

// Magic implements Payload.
func (u *Unknown) Magic() Magic { return u.UnknownMagic }

// MarshalBinaryTo implements Payload.
func (u *Unknown) MarshalBinaryTo(b []byte) (int, error) {
	return copy(b, u.Body), nil
}

// UnmarshalBinary implements Payload.
func (u *Unknown) UnmarshalBinary(b []byte) error {
	u.Body = append([]byte(nil), b...)
	return nil
}

// MarshalBinaryTo encodes the atom (length-prefixed header plus body) into
// b and returns the number of bytes written, back-patching the length
// field once the body size is known.
func (a *Atom) MarshalBinaryTo(b []byte) (int, error) {
	m := a.Payload.Magic()
	copy(b[4:8], m[:])
	b[2] = 0
	b[3] = 0
	n, err := a.Payload.MarshalBinaryTo(b[atomHeadSize:])
	if err != nil {
		return 0, err
	}
	length := atomHeadSize + n
	if length > MaxPayloadLength {
		return 0, necroerr.Newf(necroerr.KindInvalidLength, "atom %s length %d exceeds max payload %d", m, length, MaxPayloadLength)
	}
	binary.BigEndian.PutUint16(b[0:], uint16(length))
	return length, nil
}

// MarshalBinary encodes the atom into a freshly allocated, precisely sized
// buffer.
func (a *Atom) MarshalBinary() ([]byte, error) {
	buf := make([]byte, MaxPayloadLength)
	n, err := a.MarshalBinaryTo(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// decodeAtoms decodes a sequence of atoms filling exactly b, the residual
// payload of a packet once the 12-byte header has been stripped.
func decodeAtoms(b []byte) ([]Atom, error) {
	var atoms []Atom
	pos := 0
	for pos < len(b) {
		if pos+atomHeadSize > len(b) {
			return atoms, necroerr.Newf(necroerr.KindProtocol, "atom header runs off end of packet at offset %d", pos)
		}
		length := int(binary.BigEndian.Uint16(b[pos:]))
		if length < MinAtomLength {
			return atoms, necroerr.Newf(necroerr.KindProtocol, "atom length %d below minimum %d", length, MinAtomLength)
		}
		if pos+length > len(b) {
			return atoms, necroerr.Newf(necroerr.KindProtocol, "atom declares length %d, only %d bytes remain", length, len(b)-pos)
		}
		var magic Magic
		copy(magic[:], b[pos+4:pos+8])
		body := b[pos+atomHeadSize : pos+length]

		payload, err := newPayload(magic)
		if err != nil {
			return atoms, err
		}
		if err := payload.UnmarshalBinary(body); err != nil {
			return atoms, fmt.Errorf("decoding atom %s: %w", magic, err)
		}
		atoms = append(atoms, Atom{Payload: payload})
		pos += length
	}
	return atoms, nil
}

// atomConstructors maps a magic to a zero-value constructor for its
// Payload. A table-driven dispatch per the catalogue strategy: growing the
// representative atom set is adding one line here and one file for the
// variant, not new design.
var atomConstructors = map[Magic]func() Payload{}

func registerAtom(magic string, ctor func() Payload) {
	atomConstructors[magicOf(magic)] = ctor
}

func newPayload(magic Magic) (Payload, error) {
	if ctor, ok := atomConstructors[magic]; ok {
		return ctor(), nil
	}
	return &Unknown{UnknownMagic: magic}, nil
}

// encodeFixedString and decodeFixedString handle a fixed-width, optionally
// null-terminated UTF-8 string field. Decoding stops at the first null byte; encoding zero-pads to width and
// rejects strings that don't fit.
func encodeFixedString(b []byte, s string, width int) error {
	if len(s) > width {
		return necroerr.Newf(necroerr.KindInvalidLength, "string %q exceeds field width %d", s, width)
	}
	n := copy(b[:width], s)
	for i := n; i < width; i++ {
		b[i] = 0
	}
	return nil
}

func decodeFixedString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// padTo returns the number of zero bytes needed to advance n up to the next
// multiple of align.
func padTo(n, align int) int {
	r := n % align
	if r == 0 {
		return 0
	}
	return align - r
}
