package interfaces

import "github.com/opd-ai/mediamux/transport"

// IPipeline is the external media pipeline a transmitter links its ports into.
// Every port is linked once it is attached to its component's fan-in and fan-out,
// and unlinked before those are detached.
type IPipeline interface {
	// LinkPort connects port to the pipeline for component. A returned error
	// aborts creation of the port.
	LinkPort(component int, port *transport.Port) error

	// UnlinkPort disconnects a port previously linked with LinkPort
	UnlinkPort(component int, port *transport.Port)
}

// TransmitterConfig holds configuration for a transmitter
type TransmitterConfig struct {
	// Components is the number of components (RTP = 1, RTCP = 2, ...)
	Components int

	// TypeOfService is the initial IPv4 TOS / IPv6 traffic class for every socket
	TypeOfService int

	// ReadBufferSize is the per-port receive buffer in bytes
	ReadBufferSize int

	// DoTimestamp stamps received datagrams with their arrival time
	DoTimestamp bool

	// Pipeline is an optional external collaborator linked to every port
	Pipeline IPipeline
}

// PipelineAdapter turns an IPipeline into the per-component data path the
// transport layer attaches ports to.
type PipelineAdapter struct {
	Pipeline  IPipeline
	Component int
}

// AttachPort implements transport.DataPath.
func (a PipelineAdapter) AttachPort(p *transport.Port) error {
	return a.Pipeline.LinkPort(a.Component, p)
}

// DetachPort implements transport.DataPath.
func (a PipelineAdapter) DetachPort(p *transport.Port) {
	a.Pipeline.UnlinkPort(a.Component, p)
}
