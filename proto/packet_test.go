package proto

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	sent := BuildAttachedPacket(7, "S1")

	var buf bytes.Buffer
	err := WritePacket(&buf, sent)
	require.NoError(t, err)

	got, err := ReadPacket(&buf)
	require.NoError(t, err)

	assert.Equal(t, MessageTypeDeviceAttached, got.Type)
	assert.Equal(t, sent.Tag, got.Tag)

	att, err := got.DecodeAttached()
	require.NoError(t, err)
	assert.Equal(t, 7, att.DeviceID)
	assert.Equal(t, "S1", att.Serial)
}

func TestBuildConnectPacketSwapsPort(t *testing.T) {
	p := BuildConnectPacket(3, 80)

	var payload ConnectPayload
	require.NoError(t, json.Unmarshal(p.Payload, &payload))
	assert.Equal(t, 3, payload.DeviceID)
	// 80 in network byte order
	assert.Equal(t, uint16(80<<8), payload.Port)
}

func TestTagsAreUnique(t *testing.T) {
	a := BuildConnectPacket(1, 80)
	b := BuildConnectPacket(1, 80)
	assert.NotEqual(t, a.Tag, b.Tag)
}

func TestReadPacketRejectsBadVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePacket(&buf, BuildDetachedPacket(1)))

	raw := buf.Bytes()
	binary.LittleEndian.PutUint32(raw[4:8], 99)

	_, err := ReadPacket(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestReadPacketRejectsOversizedFrame(t *testing.T) {
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], headerSize+MaxPayloadSize+1)
	binary.LittleEndian.PutUint32(header[4:8], ProtocolVersion)

	_, err := ReadPacket(bytes.NewReader(header))
	assert.Error(t, err)
}

func TestMessageTypeString(t *testing.T) {
	tables := []struct {
		name string
		typ  MessageType
		want string
	}{
		{"Result", MessageTypeResult, "Result"},
		{"Connect", MessageTypeConnect, "Connect"},
		{"Listen", MessageTypeListen, "Listen"},
		{"DeviceAttached", MessageTypeDeviceAttached, "DeviceAttached"},
		{"DeviceDetached", MessageTypeDeviceDetached, "DeviceDetached"},
		{"Unknown", MessageType(42), "Unknown(42)"},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			assert.Equal(t, table.want, table.typ.String())
		})
	}
}

func TestDecodeTypeMismatch(t *testing.T) {
	p := BuildDetachedPacket(4)

	_, err := p.DecodeAttached()
	assert.Error(t, err)

	det, err := p.DecodeDetached()
	require.NoError(t, err)
	assert.Equal(t, 4, det.DeviceID)
}
