package transport

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/stun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRTP(t *testing.T) []byte {
	t.Helper()
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SequenceNumber: 4242,
			Timestamp:      960,
			SSRC:           0xdecafbad,
		},
		Payload: []byte{0x01, 0x02, 0x03},
	}
	raw, err := pkt.Marshal()
	require.NoError(t, err)
	return raw
}

func buildRTCP(t *testing.T) []byte {
	t.Helper()
	raw, err := rtcp.Marshal([]rtcp.Packet{&rtcp.PictureLossIndication{SenderSSRC: 1, MediaSSRC: 2}})
	require.NoError(t, err)
	return raw
}

func buildSTUN(t *testing.T) []byte {
	t.Helper()
	msg, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	require.NoError(t, err)
	return msg.Raw
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want PacketClass
	}{
		{name: "empty", data: nil, want: ClassUnknown},
		{name: "rtp", data: buildRTP(t), want: ClassRTP},
		{name: "rtcp", data: buildRTCP(t), want: ClassRTCP},
		{name: "stun binding request", data: buildSTUN(t), want: ClassSTUN},
		{name: "dtls handshake record", data: []byte{22, 0xfe, 0xfd, 0, 0}, want: ClassDTLS},
		{name: "low byte without stun cookie", data: []byte{0, 1, 0, 0, 1, 2, 3, 4}, want: ClassUnknown},
		{name: "truncated rtp", data: []byte{0x80, 0x60}, want: ClassUnknown},
		{name: "plain text", data: []byte("hello"), want: ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.data))
		})
	}
}

func TestPacketClass_Matches(t *testing.T) {
	assert.True(t, ClassRTP.Matches(ClassAny))
	assert.True(t, ClassRTCP.Matches(ClassRTP|ClassRTCP))
	assert.False(t, ClassSTUN.Matches(ClassRTP|ClassRTCP))
	assert.Equal(t, "rtcp", ClassRTCP.String())
	assert.Equal(t, "mixed", (ClassRTP | ClassRTCP).String())
}
