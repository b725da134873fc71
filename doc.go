// Package mediamux multiplexes the UDP traffic of real-time media sessions.
//
// A media session has several components (RTP = 1, its RTCP channel = 2, ...)
// and each component needs a UDP port. Many streams of the same session usually
// want the very same port, so a Transmitter shares one socket between every
// caller asking for the same (component, address, port) and closes it when the
// last of them is done.
//
// # Getting Started
//
// Build a transmitter from the factory (defaults plus MEDIAMUX_* environment
// overrides) or from an explicit configuration:
//
//	t, err := mediamux.NewTransmitter(&interfaces.TransmitterConfig{
//	    Components:  mediamux.DefaultComponents,
//	    DoTimestamp: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	rtp, err := t.GetPort(mediamux.ComponentRTP, "", 5004)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.PutPort(rtp)
//
// If 5004 is taken the port is bound at 5006, 5008, ... instead; BoundPort
// reports where it ended up.
//
// # Data Paths
//
// Every component has a receive merge point (FanIn) fed by all of its ports and
// a send duplication point (FanOut) that writes to every destination of every
// port:
//
//	in, _ := t.FanIn(mediamux.ComponentRTP)
//	in.Subscribe(transport.ClassRTP, func(d *transport.Datagram) {
//	    jitterBuffer.Push(d.Data, d.ReceivedAt)
//	})
//
//	rtp.AddDestination(netip.MustParseAddrPort("198.51.100.4:5004"))
//	out, _ := t.FanOut(mediamux.ComponentRTP)
//	out.Write(packet)
//
// Individual ports also accept one receive callback (ConnectReceive) and
// one-shot sends outside the destination set (SendTo), which connectivity
// checks use.
//
// # Known Addresses
//
// Each port tracks the remote candidate addresses its holders know about.
// KnownAddresses().Add reports whether an address is new, and notifies the
// previous sole holder when it stops being unique, which is how two components
// that reflexively discovered the same public endpoint are detected.
//
// # Quality of Service
//
// SetTypeOfService marks every open socket and every socket opened later with
// the given IPv4 TOS byte or IPv6 traffic class. Failing to mark a socket is
// logged, not returned.
//
// # Contract Violations
//
// Putting a port back twice, removing a known address that was never added and
// closing a transmitter whose ports are still held are programming errors and
// panic.
package mediamux
