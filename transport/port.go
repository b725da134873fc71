package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/opd-ai/mediamux/limits"
	"github.com/sirupsen/logrus"
)

// Datagram is one packet read from a port's socket. Data is a private copy shared
// by every consumer of the same datagram and must be treated as read-only.
type Datagram struct {
	Component  int
	LocalPort  int
	From       netip.AddrPort
	Data       []byte
	Class      PacketClass
	ReceivedAt time.Time // zero unless the transmitter timestamps arrivals
}

// ReceiveHandler consumes datagrams. It runs on the port's read goroutine.
type ReceiveHandler func(d *Datagram)

// ReceiveToken identifies a connected receive callback.
type ReceiveToken uint64

var receiveTokens atomic.Uint64

// PortKey is the request a port was created for. Ports are shared between all
// callers asking for the same key within a component.
type PortKey struct {
	Address string // "" means the IPv4 wildcard
	Port    int    // requested, not necessarily bound
}

func (k PortKey) String() string {
	addr := k.Address
	if addr == "" {
		addr = "ANY"
	}
	return fmt.Sprintf("%s:%d", addr, k.Port)
}

// Port is one bound UDP socket shared by every holder of the same PortKey. The
// socket belongs to the port and is closed only by the owning PortRegistry once
// the last holder has released it.
type Port struct {
	component   int
	key         PortKey
	conn        *net.UDPConn
	boundPort   int
	known       *KnownAddressTracker
	readBuffer  int
	doTimestamp bool

	// refs is guarded by the owning registry's mutex.
	refs int

	tos atomic.Int32

	mu           sync.RWMutex
	receive      ReceiveHandler
	receiveToken ReceiveToken
	inbound      ReceiveHandler
	destAdded    func(netip.AddrPort)
	destinations map[netip.AddrPort]int

	started  atomic.Bool
	closed   atomic.Bool
	quit     chan struct{}
	loopDone chan struct{}
}

type portConfig struct {
	component   int
	key         PortKey
	conn        *net.UDPConn
	boundPort   int
	tos         int
	readBuffer  int
	doTimestamp bool
}

func newPort(cfg portConfig) *Port {
	if cfg.readBuffer <= 0 {
		cfg.readBuffer = limits.DefaultReadBuffer
	}
	p := &Port{
		component:    cfg.component,
		key:          cfg.key,
		conn:         cfg.conn,
		boundPort:    cfg.boundPort,
		known:        NewKnownAddressTracker(),
		readBuffer:   cfg.readBuffer,
		doTimestamp:  cfg.doTimestamp,
		destinations: make(map[netip.AddrPort]int),
		quit:         make(chan struct{}),
		loopDone:     make(chan struct{}),
	}
	p.tos.Store(int32(cfg.tos))
	return p
}

// Component returns the component the port was created for.
func (p *Port) Component() int {
	return p.component
}

// Key returns the request the port was created for.
func (p *Port) Key() PortKey {
	return p.key
}

// BoundPort returns the port actually bound, which may be above the requested one.
func (p *Port) BoundPort() int {
	return p.boundPort
}

// LocalAddr returns the socket's local address.
func (p *Port) LocalAddr() net.Addr {
	return p.conn.LocalAddr()
}

// KnownAddresses returns the tracker of remote addresses known on this port.
func (p *Port) KnownAddresses() *KnownAddressTracker {
	return p.known
}

// TypeOfService returns the marking most recently applied to the socket.
func (p *Port) TypeOfService() int {
	return int(p.tos.Load())
}

// SocketTypeOfService reads the marking back from the socket itself.
func (p *Port) SocketTypeOfService() (int, error) {
	return readTypeOfService(p.conn)
}

// ConnectReceive installs cb as the port's receive callback. Only one callback may
// be connected at a time; a second call fails with ErrReceiveConnected.
func (p *Port) ConnectReceive(cb ReceiveHandler) (ReceiveToken, error) {
	if cb == nil {
		return 0, newOpError("connect receive", p.key.String(), ErrInvalidArguments, errors.New("nil callback"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.receive != nil {
		return 0, newOpError("connect receive", p.key.String(), ErrReceiveConnected, nil)
	}

	p.receive = cb
	p.receiveToken = ReceiveToken(receiveTokens.Add(1))
	return p.receiveToken, nil
}

// DisconnectReceive removes the callback connected under token. Passing a token
// that is not currently connected panics.
func (p *Port) DisconnectReceive(token ReceiveToken) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.receive == nil || token != p.receiveToken {
		panic(fmt.Sprintf("mediamux: disconnecting unknown receive token %d on port %d", token, p.boundPort))
	}
	p.receive = nil
	p.receiveToken = 0
}

// AddDestination adds addr to the set every Broadcast is sent to. Destinations
// are counted: adding one twice needs two removals.
func (p *Port) AddDestination(addr netip.AddrPort) error {
	if !addr.IsValid() {
		return newOpError("add destination", addr.String(), ErrInvalidArguments, nil)
	}

	p.mu.Lock()
	p.destinations[addr]++
	hook := p.destAdded
	p.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "AddDestination",
		"component":   p.component,
		"local_port":  p.boundPort,
		"destination": addr.String(),
	}).Debug("Added destination")

	if hook != nil {
		hook(addr)
	}
	return nil
}

// RemoveDestination undoes one AddDestination of addr.
func (p *Port) RemoveDestination(addr netip.AddrPort) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.destinations[addr]
	if !ok {
		return newOpError("remove destination", addr.String(), ErrUnknownDestination, nil)
	}
	if n <= 1 {
		delete(p.destinations, addr)
	} else {
		p.destinations[addr] = n - 1
	}
	return nil
}

// Destinations returns a snapshot of the current fan-out destinations.
func (p *Port) Destinations() []netip.AddrPort {
	p.mu.RLock()
	defer p.mu.RUnlock()

	dests := make([]netip.AddrPort, 0, len(p.destinations))
	for addr := range p.destinations {
		dests = append(dests, addr)
	}
	return dests
}

// SendTo sends buf to addr regardless of the destination set. It is meant for
// connectivity probes.
func (p *Port) SendTo(buf []byte, addr netip.AddrPort) error {
	if err := limits.ValidateDatagram(buf); err != nil {
		return newOpError("send", addr.String(), ErrInvalidArguments, err)
	}
	if !addr.IsValid() {
		return newOpError("send", addr.String(), ErrInvalidArguments, nil)
	}
	if p.closed.Load() {
		return newOpError("send", addr.String(), ErrPortClosed, nil)
	}

	if _, err := p.conn.WriteToUDPAddrPort(buf, addr); err != nil {
		return &OpError{Op: "send", Addr: addr.String(), Err: err}
	}
	return nil
}

// Broadcast sends buf to every destination. Failures do not stop the fan-out;
// they are collected and returned together.
func (p *Port) Broadcast(buf []byte) error {
	var merr *multierror.Error
	for _, addr := range p.Destinations() {
		if err := p.SendTo(buf, addr); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

func (p *Port) setInbound(h ReceiveHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbound = h
}

func (p *Port) setDestinationHook(h func(netip.AddrPort)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destAdded = h
}

func (p *Port) applyTypeOfService(tos int) {
	if err := setTypeOfService(p.conn, tos); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "applyTypeOfService",
			"component":  p.component,
			"local_port": p.boundPort,
			"tos":        tos,
			"error":      err.Error(),
		}).Warn("Could not set socket type of service")
	}
	p.tos.Store(int32(tos))
}

// start launches the read goroutine. It is called once, after the port has been
// published in its registry.
func (p *Port) start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.readLoop()
}

// close closes the socket. The read goroutine exits on its own; close does not
// wait for it so that a receive callback may release the port it runs on.
func (p *Port) close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.quit)
	if err := p.conn.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "close",
			"component":  p.component,
			"local_port": p.boundPort,
			"error":      err.Error(),
		}).Error("Error closing port socket")
	}
	if !p.started.Load() {
		close(p.loopDone)
	}
	p.known.Clear()
}

// Bounds of the pause between consecutive failed reads.
const (
	readRetryInitial = 5 * time.Millisecond
	readRetryMax     = time.Second
)

// newReadBackoff paces a read loop that keeps failing. It never gives up; the loop
// only ends when the socket is closed.
func newReadBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = readRetryInitial
	b.MaxInterval = readRetryMax
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (p *Port) readLoop() {
	defer close(p.loopDone)

	buffer := make([]byte, p.readBuffer)
	retry := newReadBackoff()
	for {
		n, _, flags, from, err := p.conn.ReadMsgUDPAddrPort(buffer, nil)
		if err != nil {
			if p.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			wait := retry.NextBackOff()
			logrus.WithFields(logrus.Fields{
				"function":   "readLoop",
				"component":  p.component,
				"local_port": p.boundPort,
				"retry_in":   wait.String(),
				"error":      err.Error(),
			}).Error("Error reading from port socket")

			select {
			case <-p.quit:
				return
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		if flags&syscall.MSG_TRUNC != 0 {
			logrus.WithFields(logrus.Fields{
				"function":    "readLoop",
				"component":   p.component,
				"local_port":  p.boundPort,
				"from":        from.String(),
				"read_buffer": p.readBuffer,
			}).Warn("Dropping datagram larger than the read buffer")
			continue
		}

		p.dispatch(buffer[:n], from)
	}
}

func (p *Port) dispatch(data []byte, from netip.AddrPort) {
	d := &Datagram{
		Component: p.component,
		LocalPort: p.boundPort,
		From:      netip.AddrPortFrom(from.Addr().Unmap(), from.Port()),
		Data:      append([]byte(nil), data...),
		Class:     Classify(data),
	}
	if p.doTimestamp {
		d.ReceivedAt = time.Now()
	}

	p.mu.RLock()
	inbound, receive := p.inbound, p.receive
	p.mu.RUnlock()

	if inbound != nil {
		inbound(d)
	}
	if receive != nil {
		receive(d)
	}
}

// PortHandle is one holder's reference to a shared Port. Every handle returned by
// PortRegistry.Acquire must be released exactly once.
type PortHandle struct {
	*Port
	registry *PortRegistry
	released atomic.Bool
}

// Release gives the handle's reference back to its registry.
func (h *PortHandle) Release() {
	h.registry.Release(h)
}
