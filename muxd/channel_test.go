package muxd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlinkio/devlink/proto"
)

func pipeChannel() (*Channel, net.Conn) {
	local, remote := net.Pipe()
	return &Channel{conn: local}, remote
}

func TestChannelSendPacket(t *testing.T) {
	channel, remote := pipeChannel()
	defer channel.Close()
	defer remote.Close()

	done := make(chan error, 1)
	channel.SendPacket(proto.BuildConnectPacket(7, 80), func(err error) {
		done <- err
	})

	got, err := proto.ReadPacket(remote)
	require.NoError(t, err)
	assert.Equal(t, proto.MessageTypeConnect, got.Type)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("send completion never fired")
	}
}

func TestChannelReceivePacket(t *testing.T) {
	channel, remote := pipeChannel()
	defer channel.Close()
	defer remote.Close()

	type outcome struct {
		packet *proto.Packet
		err    error
	}
	done := make(chan outcome, 1)
	channel.ReceivePacket(func(p *proto.Packet, err error) {
		done <- outcome{packet: p, err: err}
	})

	require.NoError(t, proto.WritePacket(remote, proto.BuildResultPacket(1, proto.StatusOK)))

	select {
	case got := <-done:
		require.NoError(t, got.err)
		res, err := got.packet.DecodeResult()
		require.NoError(t, err)
		assert.Equal(t, proto.StatusOK, res.Status)
	case <-time.After(time.Second):
		t.Fatal("receive completion never fired")
	}
}

func TestChannelReceiveReportsBrokenConnection(t *testing.T) {
	channel, remote := pipeChannel()
	defer channel.Close()

	done := make(chan error, 1)
	channel.ReceivePacket(func(p *proto.Packet, err error) {
		done <- err
	})
	remote.Close()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("receive completion never fired")
	}
}

func TestChannelIntoStreamConsumesIt(t *testing.T) {
	channel, remote := pipeChannel()
	defer remote.Close()

	stream := channel.IntoStream()
	require.NotNil(t, stream)
	defer stream.Close()

	// the packet API is dead after conversion
	done := make(chan error, 1)
	channel.SendPacket(proto.BuildConnectPacket(7, 80), func(err error) {
		done <- err
	})
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("send completion never fired")
	}

	// Close must not touch the stream the caller now owns
	require.NoError(t, channel.Close())
	go func() {
		_, _ = stream.Write([]byte("ping"))
	}()
	buf := make([]byte, 4)
	_, err := remote.Read(buf)
	assert.NoError(t, err, "the raw stream must stay open")
}
