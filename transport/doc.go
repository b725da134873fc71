// Package transport implements the UDP socket layer of mediamux: binding,
// sharing, and tearing down the ports of a media session, and moving datagrams
// between those ports and the rest of the application.
//
// # Architecture
//
// Each component of a session (RTP, RTCP, ...) has its own PortRegistry. The
// registry hands out PortHandles: references to a Port shared by every caller
// that asked for the same (address, port) pair.
//
//	registry := NewPortRegistry(RegistryConfig{
//	    Component: 1,
//	    DataPaths: []DataPath{NewFanIn(1), NewFanOut(1)},
//	})
//
//	h, err := registry.Acquire("", 5004)
//	if err != nil {
//	    return err
//	}
//	defer h.Release()
//
// Sockets are bound by a SocketBinder outside the registry lock. When two
// callers race to create the same port, both bind, the first to publish wins
// and the other's socket is closed before it joins the winner.
//
// # Binding
//
// SocketBinder.Bind steps through startPort, startPort+2, ... up to 65535 so
// that an RTP port keeps its parity. Running out of ports yields ErrNetwork; an
// address that does not exist on this host (EADDRNOTAVAIL) fails at once with
// ErrConstruction. Port 0 asks the kernel for any free port.
//
// Only IP literals are accepted as bind addresses:
//
//	conn, port, err := NewSocketBinder().Bind("::1", 0, 0xb8)
//
// # Data Paths
//
// A DataPath is attached to every port when it is created and detached, in
// reverse order, when it is destroyed. FanIn merges the receive side of all
// ports of a component and lets subscribers filter by PacketClass:
//
//	in.Subscribe(ClassRTCP, func(d *Datagram) {
//	    pkts, err := rtcp.Unmarshal(d.Data)
//	    ...
//	})
//
// FanOut duplicates every written buffer to all destinations of all ports and
// raises a KeyUnitRequest whenever a destination is added.
//
// Classify sorts datagrams into STUN, DTLS, RTP and RTCP following the
// demultiplexing rules of RFC 7983 and RFC 5761.
//
// # Known Addresses
//
// KnownAddressTracker records which holders know a given remote address and
// tells a UniquenessNotifier when its address stops, or starts again, being
// known by it alone.
//
// # Error Handling
//
// Operational failures are returned as *OpError values wrapping one of the
// sentinel errors, so callers can test them with errors.Is:
//
//	if errors.Is(err, ErrNetwork) {
//	    // pick another base port
//	}
//
// Misuse of the reference counting contract (releasing twice, removing an
// address that was never added, disconnecting an unknown receive token) panics.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Receive callbacks and FanIn
// subscribers run on the port's read goroutine and may release the port they
// run on.
package transport
