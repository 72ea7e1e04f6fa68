package connector

import (
	"sync"
)

// DeviceListener receives device lifecycle notifications. Detach carries
// only the session device ID because the daemon does not repeat the serial
// in detach broadcasts.
type DeviceListener struct {
	OnAttached func(serial string, deviceID int)
	OnDetached func(deviceID int)
}

// Dispatcher fans device lifecycle notifications out to registered
// listeners. Replaces ambient process-wide broadcast with an explicit
// observer registry.
type Dispatcher struct {
	listeners map[*DeviceListener]struct{}
	mu        sync.Mutex
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		listeners: make(map[*DeviceListener]struct{}),
	}
}

// AddListener registers a listener.
func (d *Dispatcher) AddListener(listener *DeviceListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[listener] = struct{}{}
}

// RemoveListener unregisters a listener.
func (d *Dispatcher) RemoveListener(listener *DeviceListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners, listener)
}

// NotifyAttached tells every listener a device appeared.
func (d *Dispatcher) NotifyAttached(serial string, deviceID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for listener := range d.listeners {
		if listener.OnAttached != nil {
			listener.OnAttached(serial, deviceID)
		}
	}
}

// NotifyDetached tells every listener a device disappeared.
func (d *Dispatcher) NotifyDetached(deviceID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for listener := range d.listeners {
		if listener.OnDetached != nil {
			listener.OnDetached(deviceID)
		}
	}
}
