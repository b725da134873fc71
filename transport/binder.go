package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"github.com/opd-ai/mediamux/limits"
	"github.com/sirupsen/logrus"
)

// ListenFunc opens a UDP socket bound to laddr. net.ListenUDP satisfies it.
type ListenFunc func(network string, laddr *net.UDPAddr) (*net.UDPConn, error)

// SocketBinder binds UDP sockets for ports, stepping to the next port of the same
// parity whenever the requested one is taken.
type SocketBinder struct {
	listen  ListenFunc
	maxPort int
}

// NewSocketBinder creates a binder that opens real sockets with net.ListenUDP.
func NewSocketBinder() *SocketBinder {
	return NewSocketBinderWithListener(net.ListenUDP)
}

// NewSocketBinderWithListener creates a binder that opens sockets through listen.
// A nil listen falls back to net.ListenUDP.
func NewSocketBinderWithListener(listen ListenFunc) *SocketBinder {
	if listen == nil {
		listen = net.ListenUDP
	}
	return &SocketBinder{
		listen:  listen,
		maxPort: limits.MaxPort,
	}
}

// Bind opens a UDP socket on address, starting at startPort and retrying at
// startPort+2, startPort+4, ... until a bind succeeds. An empty address binds the
// IPv4 wildcard. A startPort of 0 lets the OS pick a port and is attempted once.
//
// On success the socket carries the requested type of service (best effort) and
// the returned int is the port actually bound. Errors wrap ErrInvalidArguments for
// a malformed address or port, ErrNetwork when no port up to 65535 could be bound,
// and ErrConstruction for any other socket failure.
func (b *SocketBinder) Bind(address string, startPort, tos int) (*net.UDPConn, int, error) {
	ip, network, err := resolveBindAddress(address)
	if err != nil {
		return nil, 0, newOpError("bind", address, ErrInvalidArguments, err)
	}
	if err := limits.ValidatePort(startPort); err != nil {
		return nil, 0, newOpError("bind", address, ErrInvalidArguments, err)
	}

	conn, err := b.bindFrom(ip, network, startPort)
	if err != nil {
		return nil, 0, err
	}

	boundPort := conn.LocalAddr().(*net.UDPAddr).Port

	if err := setTypeOfService(conn, tos); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Bind",
			"port":     boundPort,
			"tos":      tos,
			"error":    err.Error(),
		}).Warn("Could not set socket type of service")
	}

	logrus.WithFields(logrus.Fields{
		"function":       "Bind",
		"address":        ip.String(),
		"requested_port": startPort,
		"bound_port":     boundPort,
	}).Debug("Bound UDP socket")

	return conn, boundPort, nil
}

// bindFrom runs the port stepping loop.
func (b *SocketBinder) bindFrom(ip netip.Addr, network string, startPort int) (*net.UDPConn, error) {
	port := startPort
	for {
		laddr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, uint16(port)))
		conn, err := b.listen(network, laddr)
		if err == nil {
			return conn, nil
		}

		if startPort == 0 || errors.Is(err, syscall.EADDRNOTAVAIL) {
			return nil, newOpError("bind", laddr.String(), ErrConstruction, err)
		}

		logrus.WithFields(logrus.Fields{
			"function": "bindFrom",
			"port":     port,
			"error":    err.Error(),
		}).Info("Could not bind port, trying next")

		port += limits.PortStep
		if port > b.maxPort {
			return nil, newOpError("bind", ip.String(), ErrNetwork,
				fmt.Errorf("no free port in [%d, %d]: %w", startPort, b.maxPort, err))
		}
	}
}

// resolveBindAddress maps the requested address to a local IP and socket network.
// Only IP literals are accepted; hostnames are rejected rather than resolved.
func resolveBindAddress(address string) (netip.Addr, string, error) {
	if address == "" {
		return netip.IPv4Unspecified(), "udp4", nil
	}

	ip, err := netip.ParseAddr(address)
	if err != nil {
		return netip.Addr{}, "", fmt.Errorf("invalid IP address %q: %w", address, err)
	}

	ip = ip.Unmap()
	if ip.Is4() {
		return ip, "udp4", nil
	}
	return ip, "udp6", nil
}
