package muxd

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devlinkio/devlink/proto"
)

// DefaultDaemonAddr is where devlinkd listens on a default install.
const DefaultDaemonAddr = "/var/run/devlinkd.sock"

const dialTimeout = 10 * time.Second

// Channel is a single connection to devlinkd used to drive one connect
// handshake. Packet sends and receives are asynchronous: each operation runs
// on its own goroutine and reports through a completion callback, so the
// caller decides how long it is willing to wait. Once the handshake is done
// the Channel is converted into the raw byte stream with IntoStream and must
// not be used for packets afterwards.
type Channel struct {
	conn net.Conn

	mu       sync.Mutex
	consumed bool
}

// Open dials the daemon and returns a fresh Channel. Addresses containing a
// path separator are dialed as unix sockets, anything else as tcp.
func Open(addr string) (*Channel, error) {
	conn, err := dialDaemon(addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing devlinkd at %s: %w", addr, err)
	}
	return &Channel{conn: conn}, nil
}

func dialDaemon(addr string, timeout time.Duration) (net.Conn, error) {
	network := "tcp"
	if strings.ContainsRune(addr, '/') {
		network = "unix"
	}
	return net.DialTimeout(network, addr, timeout)
}

// SendPacket encodes and writes the packet asynchronously, invoking complete
// exactly once with the write outcome.
func (c *Channel) SendPacket(p *proto.Packet, complete func(error)) {
	go func() {
		if err := c.checkUsable(); err != nil {
			complete(err)
			return
		}
		complete(proto.WritePacket(c.conn, p))
	}()
}

// ReceivePacket reads one packet asynchronously, invoking complete exactly
// once with either the packet or a read error.
func (c *Channel) ReceivePacket(complete func(*proto.Packet, error)) {
	go func() {
		if err := c.checkUsable(); err != nil {
			complete(nil, err)
			return
		}
		p, err := proto.ReadPacket(c.conn)
		complete(p, err)
	}()
}

// IntoStream consumes the Channel and hands the underlying connection to the
// caller. After the daemon has acknowledged a connect request the connection
// carries the device's byte stream, not protocol frames.
func (c *Channel) IntoStream() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumed = true
	return c.conn
}

// Close tears down a Channel that will not be converted into a stream.
// Closing a consumed Channel is a no-op: the stream owner closes it.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed {
		log.Debugf("not closing channel to %s, ownership moved to the stream", c.conn.RemoteAddr())
		return nil
	}
	return c.conn.Close()
}

func (c *Channel) checkUsable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed {
		return fmt.Errorf("channel has been converted into a stream")
	}
	return nil
}
