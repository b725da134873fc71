package transport

import (
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/stun"
)

// PacketClass identifies what kind of traffic a datagram carries. Classes are bit
// flags so that FanIn subscriptions can select several at once.
type PacketClass uint8

const (
	// ClassUnknown is any datagram none of the other classes recognise.
	ClassUnknown PacketClass = 1 << iota
	// ClassSTUN is a STUN message (connectivity checks, keepalives).
	ClassSTUN
	// ClassDTLS is a DTLS record (DTLS-SRTP key exchange).
	ClassDTLS
	// ClassRTP is an RTP media packet.
	ClassRTP
	// ClassRTCP is an RTCP control packet.
	ClassRTCP

	// ClassAny matches every datagram.
	ClassAny = ClassUnknown | ClassSTUN | ClassDTLS | ClassRTP | ClassRTCP
)

// String returns a short name for a single class.
func (c PacketClass) String() string {
	switch c {
	case ClassUnknown:
		return "unknown"
	case ClassSTUN:
		return "stun"
	case ClassDTLS:
		return "dtls"
	case ClassRTP:
		return "rtp"
	case ClassRTCP:
		return "rtcp"
	case ClassAny:
		return "any"
	default:
		return "mixed"
	}
}

// Matches reports whether c is selected by the filter mask.
func (c PacketClass) Matches(filter PacketClass) bool {
	return c&filter != 0
}

// Classify inspects the first bytes of a datagram the way RFC 7983 demultiplexes a
// shared media port, and RFC 5761 separates RTP from RTCP. The payload is not
// modified.
func Classify(b []byte) PacketClass {
	if len(b) == 0 {
		return ClassUnknown
	}

	switch first := b[0]; {
	case first <= 3:
		if stun.IsMessage(b) {
			return ClassSTUN
		}
		return ClassUnknown
	case first >= 20 && first <= 63:
		return ClassDTLS
	case first >= 128 && first <= 191:
		return classifyRTPFamily(b)
	default:
		return ClassUnknown
	}
}

func classifyRTPFamily(b []byte) PacketClass {
	if len(b) >= 2 && b[1] >= 192 && b[1] <= 223 {
		var h rtcp.Header
		if err := h.Unmarshal(b); err == nil {
			return ClassRTCP
		}
		return ClassUnknown
	}

	var h rtp.Header
	if _, err := h.Unmarshal(b); err != nil || h.Version != 2 {
		return ClassUnknown
	}
	return ClassRTP
}
