package transport

import (
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// isIPv6Socket reports whether conn is bound to an IPv6 (non-mapped) local address.
func isIPv6Socket(conn *net.UDPConn) bool {
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return false
	}
	return addr.IP.To4() == nil
}

// setTypeOfService marks outgoing traffic of conn with tos: the TOS byte on IPv4
// sockets, the traffic class on IPv6 sockets.
func setTypeOfService(conn *net.UDPConn, tos int) error {
	if isIPv6Socket(conn) {
		return ipv6.NewPacketConn(conn).SetTrafficClass(tos)
	}
	return ipv4.NewPacketConn(conn).SetTOS(tos)
}

// readTypeOfService returns the marking currently configured on conn.
func readTypeOfService(conn *net.UDPConn) (int, error) {
	if isIPv6Socket(conn) {
		return ipv6.NewPacketConn(conn).TrafficClass()
	}
	return ipv4.NewPacketConn(conn).TOS()
}
