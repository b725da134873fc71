package transport

import (
	"errors"
	"net"
	"net/netip"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

// newPeer opens a loopback socket standing in for a remote media endpoint.
func newPeer(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func peerAddr(conn *net.UDPConn) netip.AddrPort {
	return conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func portAddr(p *Port) netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(p.BoundPort()))
}

// readWithin reads one datagram from conn or fails the test.
func readWithin(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return buf[:n]
}

// expectNothing asserts that conn receives nothing for a short while.
func expectNothing(t *testing.T, conn *net.UDPConn) {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadFromUDP(buf)
	var netErr net.Error
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "expected timeout, got %v", err)
}

// waitDatagram waits for one datagram on ch.
func waitDatagram(t *testing.T, ch <-chan *Datagram) *Datagram {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for datagram")
		return nil
	}
}

// isOpen reports whether the socket has not been closed yet.
func isOpen(conn *net.UDPConn) bool {
	return conn.SetWriteDeadline(time.Time{}) == nil
}

// trackingListener opens real loopback sockets and remembers every one of them.
type trackingListener struct {
	mu    sync.Mutex
	conns []*net.UDPConn
	delay time.Duration
}

func (l *trackingListener) listen(network string, laddr *net.UDPAddr) (*net.UDPConn, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.conns = append(l.conns, conn)
	l.mu.Unlock()
	return conn, nil
}

func (l *trackingListener) openCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var open int
	for _, c := range l.conns {
		if isOpen(c) {
			open++
		}
	}
	return open
}

func (l *trackingListener) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// recordingPath is a DataPath that records attach/detach order and can fail.
type recordingPath struct {
	name    string
	mu      sync.Mutex
	log     *[]string
	fail    error
	current map[*Port]bool
}

func newRecordingPath(name string, log *[]string) *recordingPath {
	return &recordingPath{name: name, log: log, current: make(map[*Port]bool)}
}

func (r *recordingPath) AttachPort(p *Port) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		*r.log = append(*r.log, "fail "+r.name)
		return r.fail
	}
	*r.log = append(*r.log, "attach "+r.name)
	r.current[p] = true
	return nil
}

func (r *recordingPath) DetachPort(p *Port) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.log = append(*r.log, "detach "+r.name)
	delete(r.current, p)
}

func (r *recordingPath) attached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.current)
}

// newTestRegistry builds a registry for component 1 with its own fan-in/fan-out.
func newTestRegistry(t *testing.T) (*PortRegistry, *FanIn, *FanOut) {
	t.Helper()
	in, out := NewFanIn(1), NewFanOut(1)
	reg := NewPortRegistry(RegistryConfig{
		Component:   1,
		DataPaths:   []DataPath{in, out},
		DoTimestamp: true,
	})
	return reg, in, out
}

func timeoutChan() <-chan time.Time {
	return time.After(testTimeout)
}

var errAddrInUse = syscall.EADDRINUSE
