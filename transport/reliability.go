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

package transport

import (
	"time"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"

	"github.com/micolous/necromancer/necroerr"
	"github.com/micolous/necromancer/protocol"
)

// outstanding is a sent packet awaiting acknowledgement (§3 "Outstanding
// packet").
type outstanding struct {
	senderPacketID uint16
	encoded        []byte
	retriesLeft    int
	lastSent       time.Time
	done           chan error
}

// Delivery is one in-order packet's atoms, ready for the session manager to
// dispatch to the state mirror and transfer/lock engines.
type Delivery struct {
	SenderPacketID uint16
	Atoms          []protocol.Atom
	AckRequested   bool
}

// Reliability implements the sequencing, retransmit and reorder rules of
// §4.4. It is not safe for concurrent use: per the single-cooperative-task
// scheduling model, exactly one goroutine (the session task) must own a
// Reliability instance. Its only thread-safe surface is none — callers
// serialize access themselves, same as the teacher's single-owner session
// loop.
type Reliability struct {
	cfg       Config
	sessionID uint16
	peer      string

	nextSenderID   uint16
	nextExpectedRx uint16

	outstanding []*outstanding
	reorder     map[uint16]*protocol.Packet
	lastForward time.Time

	initialised bool
}

// NewReliability creates a Reliability bound to sessionID, the value
// assigned during the handshake (already OR'd with 0x8000).
func NewReliability(cfg Config, sessionID uint16, peer string) *Reliability {
	return &Reliability{
		cfg:            cfg,
		sessionID:      sessionID,
		peer:           peer,
		nextSenderID:   1,
		nextExpectedRx: 1,
		reorder:        make(map[uint16]*protocol.Packet),
		lastForward:    time.Now(),
	}
}

func (r *Reliability) logSent(p *protocol.Packet) {
	log.Debugf(color.GreenString("[%s] client -> %s", r.peer, p))
}

func (r *Reliability) logReceive(p *protocol.Packet) {
	log.Debugf(color.BlueString("[%s] peer -> %s", r.peer, p))
}

// PrepareSend allocates a sender-packet-id, frames atoms with ack-requested
// set, and enqueues an outstanding entry awaiting the peer's ack. It
// returns the encoded bytes to send and a channel that receives the
// command's eventual outcome (nil on success).
func (r *Reliability) PrepareSend(atoms []protocol.Atom) ([]byte, chan error, error) {
	id := r.nextSenderID
	r.nextSenderID = protocol.NextSeq(r.nextSenderID)
	if r.nextSenderID == 0 {
		r.nextSenderID = 1 // id 0 is reserved for "no new sequenced data"
	}

	p := protocol.NewAtoms(protocol.FlagAck, r.sessionID, 0, 0, id, atoms)
	b, err := p.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	r.logSent(p)

	// Pre-set the retransmission flag on the stored copy so a resend needs
	// no further mutation.
	retransmit := protocol.NewAtoms(protocol.FlagAck|protocol.FlagRetransmission, r.sessionID, 0, 0, id, atoms)
	retransmitBytes, err := retransmit.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}

	done := make(chan error, 1)
	r.enqueueOutstanding(&outstanding{
		senderPacketID: id,
		encoded:        retransmitBytes,
		retriesLeft:    r.cfg.RetransmitRetries,
		lastSent:       time.Now(),
		done:           done,
	})
	return b, done, nil
}

func (r *Reliability) enqueueOutstanding(o *outstanding) {
	if len(r.outstanding) >= r.cfg.OutstandingMax {
		log.Warnf("[%s] outstanding ack queue full at %d entries, clearing (peer appears stalled)", r.peer, len(r.outstanding))
		for _, old := range r.outstanding {
			old.done <- necroerr.New(necroerr.KindTimeout, "outstanding queue overflow, peer presumed stalled")
		}
		r.outstanding = nil
	}
	r.outstanding = append(r.outstanding, o)
}

// HandleAck resolves every outstanding entry with id <= ackedID in the
// wrap-aware sense, searching only within a window below ackedID (§4.4
// "Peer acknowledgements").
func (r *Reliability) HandleAck(ackedID uint16) {
	if ackedID == 0 {
		return
	}
	remaining := r.outstanding[:0]
	for _, o := range r.outstanding {
		if o.senderPacketID == ackedID || isWithinAckWindow(o.senderPacketID, ackedID, r.cfg.AckAllocationWindow) {
			o.done <- nil
		} else {
			remaining = append(remaining, o)
		}
	}
	r.outstanding = remaining
}

// isWithinAckWindow reports whether id is <= acked, searching back at most
// window slots to stay correct across the 15-bit wraparound boundary.
func isWithinAckWindow(id, acked uint16, window int) bool {
	if id == acked {
		return true
	}
	for i := 1; i <= window; i++ {
		if protocol.NextSeq(id) == acked {
			return protocol.SeqLessEq(id, acked)
		}
		id = protocol.NextSeq(id)
	}
	return false
}

// Retransmit runs one tick of the 500ms retransmit timer: every outstanding
// entry whose last send was cfg.RetransmitInterval or more ago is either
// resent (decrementing its retry budget) or, if exhausted, failed with
// Timeout and dropped. It returns the encoded bytes of every packet that
// needs resending this tick.
func (r *Reliability) Retransmit(now time.Time) [][]byte {
	var resends [][]byte
	remaining := r.outstanding[:0]
	for _, o := range r.outstanding {
		if now.Sub(o.lastSent) < r.cfg.RetransmitInterval {
			remaining = append(remaining, o)
			continue
		}
		if o.retriesLeft <= 0 {
			o.done <- necroerr.New(necroerr.KindTimeout, "retransmit retries exhausted")
			continue
		}
		o.retriesLeft--
		o.lastSent = now
		resends = append(resends, o.encoded)
		remaining = append(remaining, o)
	}
	r.outstanding = remaining
	return resends
}

// errPeerDisconnect is returned by Receive when the peer sent a control
// Disconnect; the caller must reply with an unsequenced DisconnectAck and
// tear the session down.
var errPeerDisconnect = necroerr.New(necroerr.KindDisconnected, "peer sent Disconnect")

// Receive processes one inbound packet already matched to this session
// (mismatched session ids are the caller's responsibility to filter, so
// they can be logged with the full packet for diagnosis). It returns zero
// or more in-order Deliveries ready for dispatch, and an ack packet to
// send back per delivered ack-requested packet.
func (r *Reliability) Receive(p *protocol.Packet) ([]Delivery, [][]byte, error) {
	r.logReceive(p)

	if p.IsControl() && p.Control.Op == protocol.ControlDisconnect {
		return nil, nil, errPeerDisconnect
	}

	if p.IsResponse() {
		r.HandleAck(p.AckedPacketID)
	}

	if p.SenderPacketID == 0 && len(p.Atoms) == 0 {
		return nil, nil, nil // pure ack, nothing more to do
	}

	if p.SenderPacketID == 0 {
		// id 0 is reserved for acks that also piggyback atoms (§3, §4.4);
		// it is not part of the ordered sequence, so dispatch immediately
		// rather than running it through the reorder buffer.
		return []Delivery{{Atoms: p.Atoms, AckRequested: p.IsAck()}}, nil, nil
	}

	if protocol.SeqLess(p.SenderPacketID, r.nextExpectedRx) {
		// Already delivered: the switcher retransmits because its prior
		// packet went un-acked, so the duplicate must still be acked
		// (§3 "duplicates are discarded but still acknowledged", §8
		// property 8), just not delivered or dispatched again.
		if !p.IsAck() {
			return nil, nil, nil
		}
		ackPkt := protocol.NewAtoms(protocol.FlagResponse, r.sessionID, p.SenderPacketID, 0, 0, nil)
		b, err := ackPkt.MarshalBinary()
		if err != nil {
			return nil, nil, err
		}
		return nil, [][]byte{b}, nil
	}

	r.reorder[p.SenderPacketID] = p

	var deliveries []Delivery
	var acks [][]byte
	for {
		next, ok := r.reorder[r.nextExpectedRx]
		if !ok {
			break
		}
		delete(r.reorder, r.nextExpectedRx)
		deliveries = append(deliveries, Delivery{
			SenderPacketID: next.SenderPacketID,
			Atoms:          next.Atoms,
			AckRequested:   next.IsAck(),
		})
		if next.IsAck() {
			ackPkt := protocol.NewAtoms(protocol.FlagResponse, r.sessionID, next.SenderPacketID, 0, 0, nil)
			b, err := ackPkt.MarshalBinary()
			if err != nil {
				return deliveries, acks, err
			}
			acks = append(acks, b)
		}
		r.nextExpectedRx = protocol.NextSeq(r.nextExpectedRx)
		r.lastForward = time.Now()
	}

	// Reorder buffer health (§4.4): a gap that persists past either bound
	// means loss too severe to recover by buffering.
	if len(r.reorder) > 0 && (len(r.reorder) > r.cfg.ReorderMaxEntries || time.Since(r.lastForward) > r.cfg.ReorderMaxAge) {
		return deliveries, acks, necroerr.New(necroerr.KindTimeout, "reorder buffer exceeded health limits")
	}
	return deliveries, acks, nil
}

// MarkInitialised records that the InitialisationComplete marker has been
// observed.
func (r *Reliability) MarkInitialised() { r.initialised = true }

// Initialised reports whether the peer's initial state dump has completed.
func (r *Reliability) Initialised() bool { return r.initialised }

// OutstandingCount reports how many sent packets are awaiting acknowledgement.
func (r *Reliability) OutstandingCount() int { return len(r.outstanding) }
