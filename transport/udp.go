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
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/micolous/necromancer/necroerr"
	"github.com/micolous/necromancer/protocol"
)

// UDPConn describes what functionality we expect from the UDP socket. The
// only implementation is the *net.UDPConn-backed udpConn that Dial creates.
type UDPConn interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	Write(b []byte) (int, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	Close() error
	SyscallConn() (interface{ Control(f func(fd uintptr)) error }, error)
}

type udpConn struct {
	*net.UDPConn
}

func (c *udpConn) SyscallConn() (interface{ Control(f func(fd uintptr)) error }, error) {
	return c.UDPConn.SyscallConn()
}

// Channel binds to an ephemeral local port and connects to a single peer, so
// subsequent sends need no address argument (§4.3).
type Channel struct {
	conn UDPConn
	peer *net.UDPAddr
}

// Dial opens a UDP channel to addr:port.
func Dial(addr string, port int) (*Channel, error) {
	peer, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return nil, necroerr.Wrap(necroerr.KindIO, "resolving peer address", err)
	}
	conn, err := net.DialUDP("udp", nil, peer)
	if err != nil {
		return nil, necroerr.Wrap(necroerr.KindIO, "dialing udp", err)
	}
	return &Channel{conn: &udpConn{conn}, peer: peer}, nil
}

// Send writes b to the connected peer.
func (c *Channel) Send(b []byte) error {
	_, err := c.conn.Write(b)
	if err != nil {
		return necroerr.Wrap(necroerr.KindIO, "sending packet", err)
	}
	return nil
}

// Recv reads one datagram into a buffer sized for the largest legal packet.
func (c *Channel) Recv() ([]byte, error) {
	buf := make([]byte, protocol.MaxPacketLength)
	n, _, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, necroerr.Wrap(necroerr.KindIO, "receiving packet", err)
	}
	return buf[:n], nil
}

// Close releases the underlying socket.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// TakeRaw duplicates the connection's raw file descriptor, sets a send
// timeout (SO_SNDTIMEO) on the duplicate, and hands back a BlockingSocket
// usable for the synchronous disconnect path (§4.5, §9 "Async surface"): the
// async runtime may already be tearing down when the session destructor
// fires, so this one escape hatch talks to the kernel directly via unix
// syscalls rather than through net.Conn's async-oriented API. No receive
// timeout is set, and the non-blocking flag is not cleared: the duplicate
// shares the original socket's file status flags, which the Go runtime
// keeps non-blocking.
func (c *Channel) TakeRaw(timeout time.Duration) (*BlockingSocket, error) {
	rc, err := c.conn.SyscallConn()
	if err != nil {
		return nil, necroerr.Wrap(necroerr.KindIO, "obtaining syscall conn", err)
	}
	var fd int
	var ctrlErr error
	if err := rc.Control(func(f uintptr) {
		dup, err := unix.Dup(int(f))
		if err != nil {
			ctrlErr = err
			return
		}
		fd = dup
	}); err != nil {
		return nil, necroerr.Wrap(necroerr.KindIO, "dup'ing socket fd", err)
	}
	if ctrlErr != nil {
		return nil, necroerr.Wrap(necroerr.KindIO, "dup'ing socket fd", ctrlErr)
	}

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, necroerr.Wrap(necroerr.KindIO, "setting send timeout", err)
	}
	return &BlockingSocket{fd: fd}, nil
}

// BlockingSocket is a raw duplicate of a Channel's socket fd, written to
// synchronously and used only during shutdown.
type BlockingSocket struct {
	fd int
}

// Send performs a direct write(2) on the duplicated fd. Because the fd keeps
// its non-blocking flag, a full send buffer makes the write fail at once
// rather than wait out the timeout configured in TakeRaw.
func (b *BlockingSocket) Send(buf []byte) error {
	_, err := unix.Write(b.fd, buf)
	if err != nil {
		return necroerr.Wrap(necroerr.KindIO, "blocking disconnect send", err)
	}
	return nil
}

// Close releases the duplicated fd. It does not affect the original
// Channel's socket.
func (b *BlockingSocket) Close() error {
	return unix.Close(b.fd)
}
