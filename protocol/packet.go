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

// Package protocol implements the ATEM switcher control-protocol wire
// codec: the 12-byte packet header and flags, and the atom (TLV) records
// carried in its payload.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/micolous/necromancer/necroerr"
)

// HeaderLength is the size, in bytes, of the fixed packet header.
const HeaderLength = 12

// MaxPacketLength is the largest packet the 11-bit length field can encode.
const MaxPacketLength = 0x7ff

// MaxPayloadLength is the most atom payload bytes a single packet can carry.
const MaxPayloadLength = MaxPacketLength - HeaderLength

// seqMask masks a sender/acked packet ID down to its 15 significant bits.
const seqMask = 0x7fff

// Flags packs the five boolean packet flags that share a 16-bit word with
// the packet length.
type Flags uint8

const (
	// FlagAck requests the peer acknowledge this packet.
	FlagAck Flags = 1 << iota
	// FlagControl marks the payload as a Control body rather than atoms.
	FlagControl
	// FlagRetransmission marks this send as a retry of a previously sent
	// packet with the same sender packet ID.
	FlagRetransmission
	// FlagHello is set on the initial handshake Connect packet.
	FlagHello
	// FlagResponse marks this packet as acknowledging AckedPacketID.
	FlagResponse
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// Control identifies the body of a control-flagged packet.
type Control uint8

// Control opcodes, per the handshake/disconnect state machine in §4.5.
const (
	ControlConnect        Control = 0x01
	ControlConnectAck     Control = 0x02
	ControlConnectNack    Control = 0x03
	ControlDisconnect     Control = 0x04
	ControlDisconnectAck  Control = 0x05
	controlBodyLength             = 8
	controlPacketLength            = HeaderLength + controlBodyLength
)

// ControlBody is the decoded body of a control packet. SessionID is only
// meaningful for ControlConnectAck.
type ControlBody struct {
	Op        Control
	SessionID uint16
}

// Packet is one framed unit exchanged over the UDP channel: the common
// header plus exactly one of a Control body, a sequence of Atoms, or an
// empty (pure ack/keepalive) payload.
type Packet struct {
	Flags          Flags
	SessionID      uint16
	AckedPacketID  uint16
	Unknown        uint16
	ClientPacketID uint16
	SenderPacketID uint16 // 15-bit, high bit always clear

	Control ControlBody
	Atoms   []Atom
}

// IsControl reports whether this packet carries a Control body.
func (p *Packet) IsControl() bool { return p.Flags.has(FlagControl) }

// IsAck reports whether the ack-requested flag is set.
func (p *Packet) IsAck() bool { return p.Flags.has(FlagAck) }

// IsResponse reports whether this packet acknowledges AckedPacketID.
func (p *Packet) IsResponse() bool { return p.Flags.has(FlagResponse) }

// NewControl builds an unsequenced control packet.
func NewControl(flags Flags, sessionID uint16, op Control, ackSessionID uint16) *Packet {
	return &Packet{
		Flags:     flags | FlagControl,
		SessionID: sessionID,
		Control:   ControlBody{Op: op, SessionID: ackSessionID},
	}
}

// NewAtoms builds a sequenced (or unsequenced, if senderPacketID == 0)
// atoms packet.
func NewAtoms(flags Flags, sessionID, ackedPacketID, clientPacketID, senderPacketID uint16, atoms []Atom) *Packet {
	return &Packet{
		Flags:          flags,
		SessionID:      sessionID,
		AckedPacketID:  ackedPacketID,
		ClientPacketID: clientPacketID,
		SenderPacketID: senderPacketID & seqMask,
		Atoms:          atoms,
	}
}

// MarshalBinary encodes the packet, back-patching the 11-bit length field
// once the payload size is known.
func (p *Packet) MarshalBinary() ([]byte, error) {
	b := make([]byte, MaxPacketLength)
	n, err := p.MarshalBinaryTo(b)
	if err != nil {
		return nil, err
	}
	return b[:n], nil
}

// MarshalBinaryTo encodes the packet into b, which must have room for the
// worst case packet size, and returns the number of bytes written.
func (p *Packet) MarshalBinaryTo(b []byte) (int, error) {
	pos := HeaderLength
	switch {
	case p.IsControl():
		b[pos] = byte(p.Control.Op)
		for i := 1; i < controlBodyLength; i++ {
			b[pos+i] = 0
		}
		if p.Control.Op == ControlConnectAck {
			binary.BigEndian.PutUint16(b[pos+2:], p.Control.SessionID)
		}
		pos += controlBodyLength
	default:
		for i := range p.Atoms {
			n, err := p.Atoms[i].MarshalBinaryTo(b[pos:])
			if err != nil {
				return 0, err
			}
			pos += n
		}
	}

	length := pos
	if length > MaxPacketLength {
		return 0, necroerr.Newf(necroerr.KindInvalidLength, "encoded packet length %d exceeds maximum %d", length, MaxPacketLength)
	}

	word := uint16(length&0x7ff) | uint16(p.Flags)<<11
	binary.BigEndian.PutUint16(b[0:], word)
	binary.BigEndian.PutUint16(b[2:], p.SessionID)
	binary.BigEndian.PutUint16(b[4:], p.AckedPacketID)
	binary.BigEndian.PutUint16(b[6:], p.Unknown)
	binary.BigEndian.PutUint16(b[8:], p.ClientPacketID)
	binary.BigEndian.PutUint16(b[10:], p.SenderPacketID&seqMask)
	return pos, nil
}

// UnmarshalBinary decodes a packet from b, which must hold exactly one
// framed packet (trailing bytes are ignored; there is no inter-packet
// framing at this layer, each UDP datagram is one packet).
func (p *Packet) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderLength {
		return necroerr.Newf(necroerr.KindProtocol, "packet shorter than header: %d bytes", len(b))
	}
	word := binary.BigEndian.Uint16(b[0:])
	length := int(word & 0x7ff)
	flags := Flags(word >> 11)

	if length < HeaderLength || length > MaxPacketLength {
		return necroerr.Newf(necroerr.KindProtocol, "malformed packet length %d", length)
	}
	if length > len(b) {
		return necroerr.Newf(necroerr.KindProtocol, "declared length %d exceeds %d received bytes", length, len(b))
	}

	p.Flags = flags
	p.SessionID = binary.BigEndian.Uint16(b[2:])
	p.AckedPacketID = binary.BigEndian.Uint16(b[4:])
	p.Unknown = binary.BigEndian.Uint16(b[6:])
	p.ClientPacketID = binary.BigEndian.Uint16(b[8:])
	p.SenderPacketID = binary.BigEndian.Uint16(b[10:]) & seqMask
	p.Atoms = nil
	p.Control = ControlBody{}

	body := b[HeaderLength:length]
	switch {
	case flags.has(FlagControl):
		if length != controlPacketLength {
			return necroerr.Newf(necroerr.KindProtocol, "control packet length %d, want %d", length, controlPacketLength)
		}
		op := Control(body[0])
		switch op {
		case ControlConnect, ControlConnectAck, ControlConnectNack, ControlDisconnect, ControlDisconnectAck:
		default:
			return necroerr.Newf(necroerr.KindProtocol, "unknown control opcode 0x%02x", body[0])
		}
		p.Control.Op = op
		if op == ControlConnectAck {
			p.Control.SessionID = binary.BigEndian.Uint16(body[2:])
		}
	case length == HeaderLength:
		// pure ack/keepalive, no payload
	default:
		atoms, err := decodeAtoms(body)
		if err != nil {
			return err
		}
		p.Atoms = atoms
	}
	return nil
}

func (p *Packet) String() string {
	if p.IsControl() {
		return fmt.Sprintf("Packet{control=%v session=%#04x}", p.Control.Op, p.SessionID)
	}
	return fmt.Sprintf("Packet{session=%#04x seq=%#04x acked=%#04x atoms=%d}", p.SessionID, p.SenderPacketID, p.AckedPacketID, len(p.Atoms))
}

func (c Control) String() string {
	switch c {
	case ControlConnect:
		return "Connect"
	case ControlConnectAck:
		return "ConnectAck"
	case ControlConnectNack:
		return "ConnectNack"
	case ControlDisconnect:
		return "Disconnect"
	case ControlDisconnectAck:
		return "DisconnectAck"
	default:
		return fmt.Sprintf("Control(%#02x)", uint8(c))
	}
}

// NextSeq advances a 15-bit sequence number, wrapping 0x7fff to 0.
func NextSeq(seq uint16) uint16 {
	seq = (seq + 1) & seqMask
	return seq
}

// SeqLess reports whether a precedes b in 15-bit wraparound sequence space,
// using a signed-difference comparison over the half-space window.
func SeqLess(a, b uint16) bool {
	diff := (b - a) & seqMask
	return diff != 0 && diff < (seqMask+1)/2
}

// SeqLessEq reports whether a precedes or equals b in 15-bit sequence space.
func SeqLessEq(a, b uint16) bool {
	return a == b || SeqLess(a, b)
}
