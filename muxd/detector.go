package muxd

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/devlinkio/devlink/proto"
	"github.com/devlinkio/devlink/version"
)

var subscribeTimeout = 5 * time.Second

// Detector owns the subscription to the devlinkd broadcast feed. It holds a
// dedicated daemon connection: after the listen handshake the daemon turns
// the connection into a one-way stream of attach/detach broadcasts, so it
// cannot be shared with connect traffic.
type Detector struct {
	addr string

	mu        sync.Mutex
	conn      net.Conn
	cancelled bool
}

// NewDetector creates a Detector for the daemon at addr. No I/O happens
// until Subscribe.
func NewDetector(addr string) *Detector {
	return &Detector{addr: addr}
}

// Subscribe dials the daemon, performs the listen handshake and starts
// delivering every broadcast packet to handler. Returns whether the
// subscribe attempt succeeded. A delivery failure after a successful
// subscribe is reported once as handler(nil, err), after which the feed
// stops; the Detector does not reconnect.
func (d *Detector) Subscribe(handler func(*proto.Packet, error)) bool {
	conn, err := d.dial()
	if err != nil {
		log.Errorf("failed subscribing to the devlinkd broadcast feed: %v", err)
		return false
	}

	if err := d.listenHandshake(conn); err != nil {
		log.Errorf("devlinkd rejected the listen request: %v", err)
		if err := conn.Close(); err != nil {
			log.Warnf("error closing connection to devlinkd: %v", err)
		}
		return false
	}

	d.mu.Lock()
	d.conn = conn
	d.cancelled = false
	d.mu.Unlock()

	go d.readLoop(conn, handler)

	log.Infof("subscribed to the devlinkd broadcast feed at %s", d.addr)
	return true
}

// Cancel stops the broadcast feed and closes the daemon connection.
// Idempotent; safe to call concurrently with packet delivery.
func (d *Detector) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelled || d.conn == nil {
		return
	}
	d.cancelled = true
	if err := d.conn.Close(); err != nil {
		log.Warnf("error closing the broadcast feed connection: %v", err)
	}
}

// dial connects to the daemon, retrying briefly with exponential backoff so
// a daemon that is just starting up does not fail the one-shot subscribe.
func (d *Detector) dial() (net.Conn, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 100 * time.Millisecond
	exp.MaxInterval = time.Second
	exp.MaxElapsedTime = subscribeTimeout

	var conn net.Conn
	err := backoff.Retry(func() error {
		var err error
		conn, err = dialDaemon(d.addr, subscribeTimeout)
		if err != nil {
			log.Debugf("dialing devlinkd at %s: %v", d.addr, err)
		}
		return err
	}, exp)
	if err != nil {
		return nil, fmt.Errorf("dialing devlinkd at %s: %w", d.addr, err)
	}
	return conn, nil
}

func (d *Detector) listenHandshake(conn net.Conn) error {
	deadline := time.Now().Add(subscribeTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("setting handshake deadline: %w", err)
	}
	defer func() {
		if err := conn.SetDeadline(time.Time{}); err != nil {
			log.Warnf("error clearing handshake deadline: %v", err)
		}
	}()

	listen := proto.BuildListenPacket(uuid.New().String(), version.DevlinkVersion())
	if err := proto.WritePacket(conn, listen); err != nil {
		return fmt.Errorf("sending listen request: %w", err)
	}

	reply, err := proto.ReadPacket(conn)
	if err != nil {
		return fmt.Errorf("reading listen reply: %w", err)
	}
	res, err := reply.DecodeResult()
	if err != nil {
		return err
	}
	if res.Status != proto.StatusOK {
		return fmt.Errorf("listen request failed with status %d", res.Status)
	}
	return nil
}

func (d *Detector) readLoop(conn net.Conn, handler func(*proto.Packet, error)) {
	for {
		p, err := proto.ReadPacket(conn)
		if err != nil {
			d.mu.Lock()
			cancelled := d.cancelled
			d.mu.Unlock()
			if cancelled {
				log.Debugf("broadcast feed cancelled, stopping delivery")
				return
			}
			handler(nil, fmt.Errorf("reading from the broadcast feed: %w", err))
			return
		}
		handler(p, nil)
	}
}
