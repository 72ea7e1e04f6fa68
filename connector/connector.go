package connector

import (
	"net"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devlinkio/devlink/proto"
)

var (
	// DefaultDiscoveryGracePeriod is how long the first connected-devices
	// query waits after activating the broadcast feed, giving the daemon
	// time to report devices that were already attached.
	DefaultDiscoveryGracePeriod = 2 * time.Second
	// DefaultConnectTimeout bounds each phase of the connect handshake.
	DefaultConnectTimeout = 5 * time.Second
)

// Detector is the broadcast feed subscription the Connector activates
// lazily. Subscribe must deliver packets asynchronously, never from inside
// the Subscribe call itself.
type Detector interface {
	Subscribe(handler func(*proto.Packet, error)) bool
	Cancel()
}

// PacketChannel is one daemon connection driven through the two-phase
// connect handshake. Satisfied by *muxd.Channel.
type PacketChannel interface {
	SendPacket(p *proto.Packet, complete func(error))
	ReceivePacket(complete func(*proto.Packet, error))
	IntoStream() net.Conn
	Close() error
}

// Config configures a Connector. Zero durations fall back to the defaults.
type Config struct {
	Detector    Detector
	OpenChannel func() (PacketChannel, error)
	// Dispatcher receives attach/detach notifications. Optional; a fresh
	// one is created when nil.
	Dispatcher *Dispatcher

	DiscoveryGracePeriod time.Duration
	ConnectTimeout       time.Duration
}

// Connector keeps a live registry of attached devices fed by the daemon's
// broadcast stream and opens byte streams to device ports on demand. All
// registry and listening state is guarded by a single mutex so broadcast
// deliveries, queries and connect attempts always observe fully applied
// updates.
type Connector struct {
	detector    Detector
	openChannel func() (PacketChannel, error)
	dispatcher  *Dispatcher

	gracePeriod    time.Duration
	connectTimeout time.Duration

	mux sync.Mutex
	// serial -> session device ID
	devices map[string]int
	// outcome of the one-shot subscription attempt, nil until attempted.
	// Never reset: a feed that breaks after activation is cancelled, not
	// resubscribed.
	listenResult *bool
}

// New creates a Connector. One Connector per process is the intended use;
// the registry it builds up is only as complete as the broadcast feed it
// has been subscribed to.
func New(config Config) *Connector {
	if config.DiscoveryGracePeriod == 0 {
		config.DiscoveryGracePeriod = DefaultDiscoveryGracePeriod
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.Dispatcher == nil {
		config.Dispatcher = NewDispatcher()
	}
	return &Connector{
		detector:       config.Detector,
		openChannel:    config.OpenChannel,
		dispatcher:     config.Dispatcher,
		gracePeriod:    config.DiscoveryGracePeriod,
		connectTimeout: config.ConnectTimeout,
		devices:        make(map[string]int),
	}
}

// Dispatcher exposes the notification registry so callers can observe
// attach/detach events.
func (c *Connector) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// ensureListening subscribes to the broadcast feed on first use. The
// attempt happens exactly once per Connector; its outcome is cached and
// handed to every subsequent or racing caller. activated reports whether
// this call performed the successful subscribe, i.e. whether devices may
// still be in flight.
func (c *Connector) ensureListening() (ok bool, activated bool) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.listenResult != nil {
		return *c.listenResult, false
	}

	ok = c.detector.Subscribe(c.handleBroadcast)
	c.listenResult = &ok
	if !ok {
		log.Errorf("could not activate the device broadcast feed, the device registry will stay empty")
	}
	return ok, ok
}

// ConnectedDevices returns the serials of all currently attached devices.
// The first call activates the broadcast feed and waits the discovery grace
// period so devices attached before the subscription get reported; any
// later call returns the current registry immediately. Never fails: an
// empty result means no devices, not an error.
func (c *Connector) ConnectedDevices() []string {
	if _, activated := c.ensureListening(); activated {
		time.Sleep(c.gracePeriod)
	}

	c.mux.Lock()
	defer c.mux.Unlock()
	serials := make([]string, 0, len(c.devices))
	for serial := range c.devices {
		serials = append(serials, serial)
	}
	sort.Strings(serials)
	return serials
}

// ConnectToDevice opens a byte stream to the given port of an attached
// device. A serial that is not in the registry fails fast with
// DeviceNotFoundError before any daemon I/O. Each handshake phase is
// bounded by the connect timeout; timeouts and failures surface as
// distinct errors. On success the caller owns the returned stream.
func (c *Connector) ConnectToDevice(serial string, port uint16) (net.Conn, error) {
	// may trigger lazy activation plus the discovery grace period
	c.ConnectedDevices()

	c.mux.Lock()
	deviceID, attached := c.devices[serial]
	c.mux.Unlock()
	if !attached {
		return nil, NewDeviceNotFoundError(serial)
	}

	channel, err := c.openChannel()
	if err != nil {
		return nil, NewChannelError(err)
	}

	log.Debugf("connecting to device %s (id %d) port %d", serial, deviceID, port)

	sendDone := make(chan error, 1)
	channel.SendPacket(proto.BuildConnectPacket(deviceID, port), func(err error) {
		sendDone <- err
	})
	select {
	case err := <-sendDone:
		if err != nil {
			c.closeChannel(channel)
			return nil, &SendFailedError{Err: err}
		}
	case <-time.After(c.connectTimeout):
		c.closeChannel(channel)
		return nil, &SendTimeoutError{Timeout: c.connectTimeout}
	}

	type receiveOutcome struct {
		packet *proto.Packet
		err    error
	}
	receiveDone := make(chan receiveOutcome, 1)
	channel.ReceivePacket(func(p *proto.Packet, err error) {
		receiveDone <- receiveOutcome{packet: p, err: err}
	})
	var reply *proto.Packet
	select {
	case outcome := <-receiveDone:
		if outcome.err != nil {
			c.closeChannel(channel)
			return nil, &ReceiveFailedError{Err: outcome.err}
		}
		reply = outcome.packet
	case <-time.After(c.connectTimeout):
		c.closeChannel(channel)
		return nil, &ReceiveTimeoutError{Timeout: c.connectTimeout}
	}

	result, err := reply.DecodeResult()
	if err != nil {
		c.closeChannel(channel)
		return nil, &ReceiveFailedError{Err: err}
	}
	if result.Status != proto.StatusOK {
		c.closeChannel(channel)
		return nil, &ConnectRefusedError{Serial: serial, Status: result.Status}
	}

	log.Infof("opened a stream to device %s port %d", serial, port)
	return channel.IntoStream(), nil
}

func (c *Connector) closeChannel(channel PacketChannel) {
	if err := channel.Close(); err != nil {
		log.Warnf("error closing the connect channel: %v", err)
	}
}

// handleBroadcast is the broadcast feed handler. Registry mutation happens
// under the mutex; the matching notification is published right after the
// mutation, from the feed's delivery goroutine, so observers see events in
// daemon order.
func (c *Connector) handleBroadcast(p *proto.Packet, err error) {
	if err != nil {
		log.Errorf("the device broadcast feed broke, cancelling it: %v", err)
		c.detector.Cancel()
		return
	}

	switch p.Type {
	case proto.MessageTypeDeviceAttached:
		attached, err := p.DecodeAttached()
		if err != nil {
			log.Warnf("discarding a malformed attach broadcast: %v", err)
			return
		}
		c.mux.Lock()
		c.devices[attached.Serial] = attached.DeviceID
		c.mux.Unlock()
		log.Debugf("device %s attached with id %d", attached.Serial, attached.DeviceID)
		c.dispatcher.NotifyAttached(attached.Serial, attached.DeviceID)
	case proto.MessageTypeDeviceDetached:
		detached, err := p.DecodeDetached()
		if err != nil {
			log.Warnf("discarding a malformed detach broadcast: %v", err)
			return
		}
		c.mux.Lock()
		// remove every serial mapped to this id, stale duplicates included
		for serial, id := range c.devices {
			if id == detached.DeviceID {
				delete(c.devices, serial)
			}
		}
		c.mux.Unlock()
		log.Debugf("device with id %d detached", detached.DeviceID)
		c.dispatcher.NotifyDetached(detached.DeviceID)
	default:
		log.Warnf("ignoring an unrecognized broadcast message %s", p.Type)
	}
}
