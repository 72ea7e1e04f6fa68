package proto

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
)

// ProtocolVersion is the devlinkd wire protocol version this client speaks.
const ProtocolVersion = 1

// MaxPayloadSize limits the payload of a single frame. The daemon never
// produces frames anywhere near this size; anything larger indicates a
// corrupted stream.
const MaxPayloadSize = 1 << 20

const headerSize = 16

// MessageType identifies the kind of a devlinkd packet.
type MessageType uint32

const (
	MessageTypeResult MessageType = iota
	MessageTypeConnect
	MessageTypeListen
	MessageTypeDeviceAttached
	MessageTypeDeviceDetached
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeResult:
		return "Result"
	case MessageTypeConnect:
		return "Connect"
	case MessageTypeListen:
		return "Listen"
	case MessageTypeDeviceAttached:
		return "DeviceAttached"
	case MessageTypeDeviceDetached:
		return "DeviceDetached"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(t))
	}
}

// Result statuses returned by the daemon.
const (
	StatusOK                = 0
	StatusBadRequest        = 1
	StatusBadDevice         = 2
	StatusConnectionRefused = 3
	StatusBadVersion        = 6
)

// Packet is a single devlinkd protocol message: a fixed header plus a JSON
// payload. On the wire it is framed as a 16-byte little-endian header
// (total length, protocol version, message type, tag) followed by the
// payload bytes.
type Packet struct {
	Type    MessageType
	Tag     uint32
	Payload json.RawMessage
}

// ResultPayload is the payload of a MessageTypeResult packet.
type ResultPayload struct {
	Status int `json:"status"`
}

// ConnectPayload asks the daemon to open a TCP-like stream to a port on an
// attached device. The port travels in network byte order, a daemon
// convention kept for compatibility with its other clients.
type ConnectPayload struct {
	DeviceID int    `json:"device_id"`
	Port     uint16 `json:"port"`
}

// ListenPayload subscribes the sending connection to the broadcast feed.
type ListenPayload struct {
	ClientID      string `json:"client_id"`
	ClientVersion string `json:"client_version"`
}

// AttachedPayload is broadcast when a device appears.
type AttachedPayload struct {
	DeviceID int    `json:"device_id"`
	Serial   string `json:"serial"`
}

// DetachedPayload is broadcast when a device disappears. The daemon only
// knows the session-scoped device ID at detach time, not the serial.
type DetachedPayload struct {
	DeviceID int `json:"device_id"`
}

var tagCounter atomic.Uint32

func nextTag() uint32 {
	return tagCounter.Add(1)
}

func newPacket(t MessageType, payload interface{}) *Packet {
	raw, err := json.Marshal(payload)
	if err != nil {
		// all payload types marshal unconditionally
		panic(fmt.Sprintf("marshaling %s payload: %v", t, err))
	}
	return &Packet{Type: t, Tag: nextTag(), Payload: raw}
}

// BuildConnectPacket builds a connect request for the given device and port.
func BuildConnectPacket(deviceID int, port uint16) *Packet {
	return newPacket(MessageTypeConnect, &ConnectPayload{
		DeviceID: deviceID,
		Port:     swapPort(port),
	})
}

// BuildListenPacket builds a broadcast-feed subscription request.
func BuildListenPacket(clientID string, clientVersion string) *Packet {
	return newPacket(MessageTypeListen, &ListenPayload{
		ClientID:      clientID,
		ClientVersion: clientVersion,
	})
}

// BuildResultPacket builds a result reply with the given status, echoing the
// tag of the packet it answers. Used by the daemon side and by tests.
func BuildResultPacket(tag uint32, status int) *Packet {
	raw, _ := json.Marshal(&ResultPayload{Status: status})
	return &Packet{Type: MessageTypeResult, Tag: tag, Payload: raw}
}

// BuildAttachedPacket builds a device-attached broadcast. Used by the daemon
// side and by tests.
func BuildAttachedPacket(deviceID int, serial string) *Packet {
	return newPacket(MessageTypeDeviceAttached, &AttachedPayload{DeviceID: deviceID, Serial: serial})
}

// BuildDetachedPacket builds a device-detached broadcast. Used by the daemon
// side and by tests.
func BuildDetachedPacket(deviceID int) *Packet {
	return newPacket(MessageTypeDeviceDetached, &DetachedPayload{DeviceID: deviceID})
}

func swapPort(port uint16) uint16 {
	return port<<8 | port>>8
}

// DecodeResult decodes the packet payload as a ResultPayload.
func (p *Packet) DecodeResult() (*ResultPayload, error) {
	if p.Type != MessageTypeResult {
		return nil, fmt.Errorf("packet is %s, not %s", p.Type, MessageTypeResult)
	}
	var res ResultPayload
	if err := json.Unmarshal(p.Payload, &res); err != nil {
		return nil, fmt.Errorf("decoding result payload: %w", err)
	}
	return &res, nil
}

// DecodeAttached decodes the packet payload as an AttachedPayload.
func (p *Packet) DecodeAttached() (*AttachedPayload, error) {
	if p.Type != MessageTypeDeviceAttached {
		return nil, fmt.Errorf("packet is %s, not %s", p.Type, MessageTypeDeviceAttached)
	}
	var att AttachedPayload
	if err := json.Unmarshal(p.Payload, &att); err != nil {
		return nil, fmt.Errorf("decoding attached payload: %w", err)
	}
	return &att, nil
}

// DecodeDetached decodes the packet payload as a DetachedPayload.
func (p *Packet) DecodeDetached() (*DetachedPayload, error) {
	if p.Type != MessageTypeDeviceDetached {
		return nil, fmt.Errorf("packet is %s, not %s", p.Type, MessageTypeDeviceDetached)
	}
	var det DetachedPayload
	if err := json.Unmarshal(p.Payload, &det); err != nil {
		return nil, fmt.Errorf("decoding detached payload: %w", err)
	}
	return &det, nil
}

// WritePacket frames and writes a single packet.
func WritePacket(w io.Writer, p *Packet) error {
	if len(p.Payload) > MaxPayloadSize {
		return fmt.Errorf("payload of %d bytes exceeds the %d byte limit", len(p.Payload), MaxPayloadSize)
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(headerSize+len(p.Payload)))
	binary.LittleEndian.PutUint32(header[4:8], ProtocolVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(p.Type))
	binary.LittleEndian.PutUint32(header[12:16], p.Tag)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing packet header: %w", err)
	}
	if _, err := w.Write(p.Payload); err != nil {
		return fmt.Errorf("writing packet payload: %w", err)
	}
	return nil
}

// ReadPacket reads and decodes a single framed packet.
func ReadPacket(r io.Reader) (*Packet, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading packet header: %w", err)
	}

	length := binary.LittleEndian.Uint32(header[0:4])
	version := binary.LittleEndian.Uint32(header[4:8])

	if version != ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version %d", version)
	}
	if length < headerSize || length-headerSize > MaxPayloadSize {
		return nil, fmt.Errorf("invalid frame length %d", length)
	}

	payload := make([]byte, length-headerSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading packet payload: %w", err)
	}

	return &Packet{
		Type:    MessageType(binary.LittleEndian.Uint32(header[8:12])),
		Tag:     binary.LittleEndian.Uint32(header[12:16]),
		Payload: payload,
	}, nil
}
