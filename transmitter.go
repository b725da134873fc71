package mediamux

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/mediamux/interfaces"
	"github.com/opd-ai/mediamux/limits"
	"github.com/opd-ai/mediamux/transport"
	"github.com/sirupsen/logrus"
)

// Well-known component ids.
const (
	ComponentRTP  = 1
	ComponentRTCP = 2

	// DefaultComponents is the component count of an RTP session with RTCP.
	DefaultComponents = ComponentRTCP
)

// ErrTransmitterClosed indicates an operation on a closed transmitter.
var ErrTransmitterClosed = errors.New("transmitter closed")

// Transmitter owns the UDP ports of one media session. Callers ask it for a port
// per component, share ports with every other caller asking for the same address
// and port, and hand them back when done.
//
// It is safe for concurrent use.
type Transmitter struct {
	// mu serializes type-of-service changes and Close.
	mu     sync.Mutex
	tos    atomic.Int32
	closed atomic.Bool

	// lifecycle is held shared by GetPort for its whole duration and exclusively
	// by Close, so a port still being bound is counted before the transmitter closes.
	lifecycle sync.RWMutex

	components int
	registries []*transport.PortRegistry // index component-1
	fanIns     []*transport.FanIn
	fanOuts    []*transport.FanOut
}

// NewTransmitter creates a transmitter with the given configuration. Ports are
// bound with a default SocketBinder.
func NewTransmitter(config *interfaces.TransmitterConfig) (*Transmitter, error) {
	return NewTransmitterWithBinder(config, transport.NewSocketBinder())
}

// NewTransmitterWithBinder creates a transmitter whose ports are bound by binder.
func NewTransmitterWithBinder(config *interfaces.TransmitterConfig, binder *transport.SocketBinder) (*Transmitter, error) {
	if config == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewTransmitter",
			"error":    "config cannot be nil",
		}).Error("Invalid transmitter configuration")
		return nil, &transport.OpError{Op: "new transmitter", Err: fmt.Errorf("%w: config cannot be nil", transport.ErrInvalidArguments)}
	}
	if config.Components < 1 {
		return nil, &transport.OpError{Op: "new transmitter", Err: fmt.Errorf("%w: need at least one component, got %d", transport.ErrInvalidArguments, config.Components)}
	}
	if err := limits.ValidateTypeOfService(config.TypeOfService); err != nil {
		return nil, &transport.OpError{Op: "new transmitter", Err: fmt.Errorf("%w: %w", transport.ErrInvalidArguments, err)}
	}
	if binder == nil {
		binder = transport.NewSocketBinder()
	}

	t := &Transmitter{
		components: config.Components,
		registries: make([]*transport.PortRegistry, config.Components),
		fanIns:     make([]*transport.FanIn, config.Components),
		fanOuts:    make([]*transport.FanOut, config.Components),
	}
	t.tos.Store(int32(config.TypeOfService))

	for i := 0; i < config.Components; i++ {
		component := i + 1
		t.fanIns[i] = transport.NewFanIn(component)
		t.fanOuts[i] = transport.NewFanOut(component)

		paths := []transport.DataPath{t.fanIns[i], t.fanOuts[i]}
		if config.Pipeline != nil {
			paths = append(paths, interfaces.PipelineAdapter{Pipeline: config.Pipeline, Component: component})
		}

		t.registries[i] = transport.NewPortRegistry(transport.RegistryConfig{
			Component:      component,
			Binder:         binder,
			TypeOfService:  t.TypeOfService,
			DataPaths:      paths,
			ReadBufferSize: config.ReadBufferSize,
			DoTimestamp:    config.DoTimestamp,
		})
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewTransmitter",
		"components":   config.Components,
		"tos":          config.TypeOfService,
		"do_timestamp": config.DoTimestamp,
		"pipeline":     config.Pipeline != nil,
	}).Info("Transmitter created")

	return t, nil
}

// Components returns the number of components; valid ids are 1..Components().
func (t *Transmitter) Components() int {
	return t.components
}

// GetPort returns a reference to the port for component bound at address (""
// for any IPv4 address) and port, or at the first free port above it of the
// same parity. Callers asking for the same (component, address, port) share
// one socket. Every returned handle must be given back with PutPort.
func (t *Transmitter) GetPort(component int, address string, port int) (*transport.PortHandle, error) {
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()

	if t.closed.Load() {
		return nil, &transport.OpError{Op: "get port", Err: ErrTransmitterClosed}
	}

	registry, err := t.registry(component)
	if err != nil {
		return nil, &transport.OpError{Op: "get port", Err: err}
	}

	return registry.Acquire(address, port)
}

// PutPort gives back a handle obtained from GetPort. The port's socket is closed
// when its last holder puts it back. Putting a handle back twice panics.
func (t *Transmitter) PutPort(h *transport.PortHandle) {
	if h == nil || h.Port == nil {
		panic("mediamux: putting back nil port handle")
	}
	registry, err := t.registry(h.Component())
	if err != nil {
		panic(fmt.Sprintf("mediamux: putting back port of unknown component %d", h.Component()))
	}
	registry.Release(h)
}

// TypeOfService returns the marking applied to new and existing sockets.
func (t *Transmitter) TypeOfService() int {
	return int(t.tos.Load())
}

// SetTypeOfService changes the IPv4 TOS / IPv6 traffic class of every open
// socket and of every socket opened afterwards. Failing to mark an individual
// socket is logged and otherwise ignored.
//
// This walks every port of every component under the transmitter lock, and each
// component's registry lock in turn; it is meant to be called rarely.
func (t *Transmitter) SetTypeOfService(tos int) error {
	if err := limits.ValidateTypeOfService(tos); err != nil {
		return &transport.OpError{Op: "set type of service", Err: fmt.Errorf("%w: %w", transport.ErrInvalidArguments, err)}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(t.tos.Load()) == tos {
		return nil
	}
	t.tos.Store(int32(tos))

	for _, registry := range t.registries {
		registry.ApplyTypeOfService(tos)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "SetTypeOfService",
		"tos":        tos,
		"open_ports": t.OpenPorts(),
	}).Info("Type of service updated")

	return nil
}

// FanIn returns the receive merge point of component.
func (t *Transmitter) FanIn(component int) (*transport.FanIn, error) {
	if _, err := t.registry(component); err != nil {
		return nil, err
	}
	return t.fanIns[component-1], nil
}

// FanOut returns the send duplication point of component.
func (t *Transmitter) FanOut(component int) (*transport.FanOut, error) {
	if _, err := t.registry(component); err != nil {
		return nil, err
	}
	return t.fanOuts[component-1], nil
}

// OpenPorts returns the number of live ports across all components.
func (t *Transmitter) OpenPorts() int {
	var n int
	for _, registry := range t.registries {
		n += registry.Len()
	}
	return n
}

// Close ends the session. Every port must have been put back first; closing a
// transmitter that still has live ports panics. Close waits for GetPort calls
// already in progress, and those ports count as live.
func (t *Transmitter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	if t.closed.Load() {
		return nil
	}
	if open := t.OpenPorts(); open > 0 {
		panic(fmt.Sprintf("mediamux: closing transmitter with %d ports still held", open))
	}
	t.closed.Store(true)

	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Info("Transmitter closed")

	return nil
}

func (t *Transmitter) registry(component int) (*transport.PortRegistry, error) {
	if component < 1 || component > t.components {
		return nil, fmt.Errorf("%w: component %d not in [1, %d]", transport.ErrInvalidArguments, component, t.components)
	}
	return t.registries[component-1], nil
}
