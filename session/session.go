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

package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/micolous/necromancer/necroerr"
	"github.com/micolous/necromancer/protocol"
	"github.com/micolous/necromancer/transport"
)

// command is one application request queued on the command channel, per
// the single-owner scheduling model (§5): only the session task mutates
// transport state, so commands are message-passed in.
type command struct {
	atoms []protocol.Atom
	done  chan error
}

// EventHandler receives residual atoms for in-order dispatch to the state
// mirror, and inline transfer/lock atoms for the file transfer and storage
// lock engines. Implementations must not block for long: the session task
// is the only caller.
type EventHandler interface {
	HandleAtoms(atoms []protocol.Atom)
}

// Session is one end-to-end connection to a switcher (§3 "Session").
type Session struct {
	cfg     Config
	channel *transport.Channel
	rel     *transport.Reliability
	handler EventHandler

	sessionID uint16

	commandCh chan command
	stopCh    chan struct{}
}

// Connect performs the handshake (§4.5) and returns a Session whose main
// loop has not yet started; call Run to enter it.
func Connect(ctx context.Context, cfg Config, handler EventHandler) (*Session, error) {
	ch, err := transport.Dial(cfg.Addr, cfg.Port)
	if err != nil {
		return nil, err
	}

	initialID := randomSessionID()
	connect := protocol.NewControl(protocol.FlagHello, initialID, protocol.ControlConnect, 0)
	connect.ClientPacketID = HandshakeClientPacketID
	b, err := connect.MarshalBinary()
	if err != nil {
		ch.Close()
		return nil, err
	}
	log.Debugf(color.GreenString("[%s] client -> %s", cfg.Addr, connect))
	if err := ch.Send(b); err != nil {
		ch.Close()
		return nil, err
	}

	deadline := time.Now().Add(cfg.Handshake)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			ch.Close()
			return nil, necroerr.New(necroerr.KindTimeout, "handshake timed out")
		}
		raw, err := recvWithin(ch, remaining)
		if err != nil {
			ch.Close()
			return nil, err
		}
		var p protocol.Packet
		if err := p.UnmarshalBinary(raw); err != nil {
			log.Debugf("discarding malformed handshake reply: %v", err)
			continue
		}
		if p.SessionID != initialID {
			log.Debugf("discarding handshake reply for session %#04x, want %#04x", p.SessionID, initialID)
			continue
		}
		if !p.IsControl() {
			log.Debugf("discarding non-control handshake reply")
			continue
		}
		switch p.Control.Op {
		case protocol.ControlConnectAck:
			sessionID := p.Control.SessionID | 0x8000
			s := &Session{
				cfg:       cfg,
				channel:   ch,
				rel:       transport.NewReliability(cfg.Transport, sessionID, cfg.Addr),
				handler:   handler,
				sessionID: sessionID,
				commandCh: make(chan command, 16),
				stopCh:    make(chan struct{}),
			}
			if err := s.ackHandshake(); err != nil {
				ch.Close()
				return nil, err
			}
			return s, nil
		case protocol.ControlConnectNack:
			ch.Close()
			return nil, necroerr.New(necroerr.KindMixerOverloaded, "peer sent ConnectNack")
		default:
			ch.Close()
			return nil, necroerr.Newf(necroerr.KindUnexpectedState, "unexpected control opcode %v during handshake", p.Control.Op)
		}
	}
}

// ackHandshake sends the unsequenced is-response packet that triggers the
// peer's full state dump (§4.5).
func (s *Session) ackHandshake() error {
	ack := protocol.NewAtoms(protocol.FlagResponse, s.sessionID, 0, PostHandshakeClientPacketID, 0, nil)
	b, err := ack.MarshalBinary()
	if err != nil {
		return err
	}
	return s.channel.Send(b)
}

func randomSessionID() uint16 {
	return uint16(rand.Intn(0x8000)) // high bit clear, per §4.5
}

// recvWithin reads one datagram, giving up after timeout. Channel's Recv is
// otherwise blocking, so this relies on a background goroutine racing
// against a timer; it is only used on the handshake's hot path, never in
// the main loop, which uses a real select over channels instead.
func recvWithin(ch *transport.Channel, timeout time.Duration) ([]byte, error) {
	type result struct {
		b   []byte
		err error
	}
	out := make(chan result, 1)
	go func() {
		b, err := ch.Recv()
		out <- result{b, err}
	}()
	select {
	case r := <-out:
		return r.b, r.err
	case <-time.After(timeout):
		return nil, necroerr.New(necroerr.KindTimeout, "timed out waiting for peer")
	}
}

// SessionID returns the session id assigned during the handshake (with the
// high bit set).
func (s *Session) SessionID() uint16 { return s.sessionID }

// Send enqueues atoms as one sequenced, ack-requested command and blocks
// until the peer acknowledges it, the retransmit budget is exhausted, or
// ctx is cancelled.
func (s *Session) Send(ctx context.Context, atoms []protocol.Atom) error {
	done := make(chan error, 1)
	select {
	case s.commandCh <- command{atoms: atoms, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopCh:
		return necroerr.New(necroerr.KindChannelUnavailable, "session has terminated")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the session task's main loop: the sole owner of the reliability
// transport's state (§5). It returns when the connection terminates,
// fatally or otherwise (e.g. peer Disconnect, reorder timeout, retransmit
// exhaustion of the liveness probe).
func (s *Session) Run(ctx context.Context) error {
	defer close(s.stopCh)

	eg, ctx := errgroup.WithContext(ctx)
	inbound := make(chan []byte, 16)
	abort := make(chan error, 1)

	eg.Go(func() error {
		for {
			b, err := s.channel.Recv()
			if err != nil {
				return err
			}
			select {
			case inbound <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	eg.Go(func() error {
		ticker := time.NewTicker(s.cfg.Transport.RetransmitInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case raw := <-inbound:
				if err := s.handleInbound(raw); err != nil {
					return err
				}

			case cmd := <-s.commandCh:
				b, done, err := s.rel.PrepareSend(cmd.atoms)
				if err != nil {
					cmd.done <- err
					continue
				}
				if err := s.channel.Send(b); err != nil {
					cmd.done <- err
					continue
				}
				go func() {
					select {
					case err := <-done:
						cmd.done <- err
					case <-ctx.Done():
					}
				}()

			case err := <-abort:
				return err

			case now := <-ticker.C:
				for _, resend := range s.rel.Retransmit(now) {
					if err := s.channel.Send(resend); err != nil {
						return err
					}
				}
				if s.rel.Initialised() {
					b, done, err := s.rel.PrepareSend([]protocol.Atom{protocol.NewAtom(&protocol.TimecodeRequest{})})
					if err != nil {
						return err
					}
					if err := s.channel.Send(b); err != nil {
						return err
					}
					go func() {
						select {
						case err := <-done:
							if err != nil {
								abort <- fmt.Errorf("liveness probe failed: %w", err)
							}
						case <-ctx.Done():
						}
					}()
				}
			}
		}
	})

	return eg.Wait()
}

func (s *Session) handleInbound(raw []byte) error {
	var p protocol.Packet
	if err := p.UnmarshalBinary(raw); err != nil {
		return fmt.Errorf("decoding inbound packet: %w", err)
	}
	if p.SessionID != s.sessionID {
		log.Debugf("discarding packet for session %#04x, want %#04x", p.SessionID, s.sessionID)
		return nil
	}

	deliveries, acks, err := s.rel.Receive(&p)
	if err != nil {
		if kind, ok := necroerr.KindOf(err); ok && kind == necroerr.KindDisconnected {
			return s.sendDisconnectAck()
		}
		return err
	}
	for _, b := range acks {
		if err := s.channel.Send(b); err != nil {
			return err
		}
	}
	for _, d := range deliveries {
		for _, a := range d.Atoms {
			switch p := a.Payload.(type) {
			case *protocol.InitialisationComplete:
				s.rel.MarkInitialised()
			case *protocol.Version:
				// §6: out-of-window firmware aborts the session outright
				// rather than running degraded against an unverified peer.
				if err := p.CheckFirmware(); err != nil {
					return err
				}
			}
		}
		s.handler.HandleAtoms(d.Atoms)
	}
	return nil
}

func (s *Session) sendDisconnectAck() error {
	ack := protocol.NewControl(0, s.sessionID, protocol.ControlDisconnectAck, 0)
	b, err := ack.MarshalBinary()
	if err != nil {
		return err
	}
	if err := s.channel.Send(b); err != nil {
		return err
	}
	return necroerr.New(necroerr.KindDisconnected, "peer sent Disconnect")
}

// Disconnect sends an unsequenced control Disconnect over a blocking raw
// socket (§4.5, §9 "Async surface"): the caller may be tearing down the
// async runtime, so this deliberately bypasses it.
func (s *Session) Disconnect() error {
	raw, err := s.channel.TakeRaw(time.Second)
	if err != nil {
		return err
	}
	defer raw.Close()

	pkt := protocol.NewControl(0, s.sessionID, protocol.ControlDisconnect, 0)
	b, err := pkt.MarshalBinary()
	if err != nil {
		return err
	}
	return raw.Send(b)
}
