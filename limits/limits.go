// Package limits provides centralized datagram, port and traffic-class bounds for the
// media transport layer. This ensures consistent validation across the binder, the
// ports and the transmitter.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxDatagramSize is the largest UDP payload that fits an IPv4 datagram (65535 bytes
	// minus the 8 byte UDP header and the 20 byte IPv4 header).
	MaxDatagramSize = 65507

	// DefaultReadBuffer is the receive buffer used per port when none is configured.
	// It holds any datagram, so nothing is truncated unless a smaller buffer is asked for.
	DefaultReadBuffer = MaxDatagramSize

	// MinPort is the lowest port a caller may request; 0 asks the OS for an ephemeral port.
	MinPort = 0

	// MaxPort is the highest valid UDP port.
	MaxPort = 65535

	// PortStep is the distance between bind attempts. RTP and RTCP conventionally use
	// an even/odd pair of adjacent ports, so retries stay on the same parity.
	PortStep = 2

	// MinTypeOfService and MaxTypeOfService bound the IPv4 TOS byte / IPv6 traffic class.
	MinTypeOfService = 0
	MaxTypeOfService = 255
)

var (
	// ErrDatagramEmpty indicates an empty datagram was provided
	ErrDatagramEmpty = errors.New("empty datagram")

	// ErrDatagramTooLarge indicates a datagram exceeds the maximum UDP payload
	ErrDatagramTooLarge = errors.New("datagram too large")

	// ErrPortOutOfRange indicates a port outside [MinPort, MaxPort]
	ErrPortOutOfRange = errors.New("port out of range")

	// ErrTypeOfServiceOutOfRange indicates a TOS value outside one byte
	ErrTypeOfServiceOutOfRange = errors.New("type of service out of range")
)

// ValidateDatagramSize validates a datagram against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateDatagramSize(datagram []byte, maxSize int) error {
	if len(datagram) == 0 {
		return ErrDatagramEmpty
	}
	if len(datagram) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrDatagramTooLarge, len(datagram), maxSize)
	}
	return nil
}

// ValidateDatagram validates a datagram against MaxDatagramSize.
func ValidateDatagram(datagram []byte) error {
	return ValidateDatagramSize(datagram, MaxDatagramSize)
}

// ValidatePort checks that port lies in [MinPort, MaxPort].
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrPortOutOfRange, port, MinPort, MaxPort)
	}
	return nil
}

// ValidateTypeOfService checks that tos fits in the IPv4 TOS / IPv6 traffic class byte.
func ValidateTypeOfService(tos int) error {
	if tos < MinTypeOfService || tos > MaxTypeOfService {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrTypeOfServiceOutOfRange, tos, MinTypeOfService, MaxTypeOfService)
	}
	return nil
}
