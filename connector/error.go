package connector

import (
	"fmt"
	"time"
)

// DeviceNotFoundError indicates the requested serial is not in the registry
// of currently attached devices. Returned before any daemon I/O happens.
type DeviceNotFoundError struct {
	Serial string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("device %s is not connected", e.Serial)
}

// NewDeviceNotFoundError creates a new DeviceNotFoundError error
func NewDeviceNotFoundError(serial string) error {
	return &DeviceNotFoundError{Serial: serial}
}

// ChannelError indicates a channel to the daemon could not be opened.
type ChannelError struct {
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("opening a channel to the daemon: %v", e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// NewChannelError creates a new ChannelError error
func NewChannelError(err error) error {
	return &ChannelError{Err: err}
}

// SendFailedError indicates the connect request could not be written.
type SendFailedError struct {
	Err error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("sending the connect request: %v", e.Err)
}

func (e *SendFailedError) Unwrap() error {
	return e.Err
}

// SendTimeoutError indicates the send phase of the handshake did not
// complete within the connect timeout.
type SendTimeoutError struct {
	Timeout time.Duration
}

func (e *SendTimeoutError) Error() string {
	return fmt.Sprintf("sending the connect request timed out after %s", e.Timeout)
}

// ReceiveFailedError indicates the daemon's reply could not be read.
type ReceiveFailedError struct {
	Err error
}

func (e *ReceiveFailedError) Error() string {
	return fmt.Sprintf("receiving the connect reply: %v", e.Err)
}

func (e *ReceiveFailedError) Unwrap() error {
	return e.Err
}

// ReceiveTimeoutError indicates the receive phase of the handshake did not
// complete within the connect timeout.
type ReceiveTimeoutError struct {
	Timeout time.Duration
}

func (e *ReceiveTimeoutError) Error() string {
	return fmt.Sprintf("receiving the connect reply timed out after %s", e.Timeout)
}

// ConnectRefusedError indicates the daemon answered the connect request with
// a non-OK status, e.g. nothing listens on the requested device port.
type ConnectRefusedError struct {
	Serial string
	Status int
}

func (e *ConnectRefusedError) Error() string {
	return fmt.Sprintf("daemon refused the connection to device %s with status %d", e.Serial, e.Status)
}
