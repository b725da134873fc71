// Package interfaces defines the contracts between the media transmitter and the
// collaborators around it.
//
// [IPipeline] is implemented by whatever moves media in and out of the ports: a
// jitter buffer, a depayloader, an SFU forwarding table. The transmitter links
// every port it creates into the pipeline after attaching it to the component's
// fan-in and fan-out:
//
//	type forwarder struct{ ... }
//
//	func (f *forwarder) LinkPort(component int, port *transport.Port) error {
//	    _, err := port.ConnectReceive(f.onDatagram)
//	    return err
//	}
//
// A failing LinkPort aborts port creation: the transmitter unwinds the fan-in and
// fan-out attachments, closes the socket and reports transport.ErrConstruction.
//
// [TransmitterConfig] carries the transmitter settings. Use the factory package to
// build one from defaults and MEDIAMUX_* environment variables.
package interfaces
