// Package limits provides centralized size and range constants for the media
// transport layer, with validation functions used by every component that accepts
// them from callers.
//
// # Datagram Sizes
//
//   - MaxDatagramSize (65507 bytes): the largest UDP payload an IPv4 datagram can carry.
//     Outbound sends larger than this are rejected before reaching the socket.
//
//   - DefaultReadBuffer (= MaxDatagramSize): the per-port receive buffer when the
//     transmitter configuration does not name one. Datagrams longer than a smaller
//     configured buffer are dropped, never delivered cut short.
//
// # Ports
//
// MinPort/MaxPort bound requested ports, and PortStep is the distance between bind
// attempts when a requested port is busy. Keeping retries on the same parity keeps
// RTP on even ports and RTCP on the odd port above it.
//
// # Type of Service
//
// The TOS byte (IPv4) and traffic class (IPv6) are both eight bits wide:
//
//	if err := limits.ValidateTypeOfService(tos); err != nil {
//	    // ErrTypeOfServiceOutOfRange
//	}
package limits
