package transport

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/opd-ai/mediamux/limits"
	"github.com/sirupsen/logrus"
)

// KeyUnitRequest asks the producer feeding a component to emit a fresh key frame,
// because a new destination has started receiving it.
type KeyUnitRequest struct {
	Component   int
	LocalPort   int
	Destination netip.AddrPort
}

// FanOut is the send duplication point of one component: a buffer written to it
// goes out of every attached port to each of that port's destinations.
type FanOut struct {
	component int

	mu        sync.RWMutex
	ports     map[*Port]struct{}
	onKeyUnit func(KeyUnitRequest)
}

// NewFanOut creates the send duplication point for component.
func NewFanOut(component int) *FanOut {
	return &FanOut{
		component: component,
		ports:     make(map[*Port]struct{}),
	}
}

// AttachPort implements DataPath.
func (f *FanOut) AttachPort(p *Port) error {
	if p.Component() != f.component {
		return fmt.Errorf("port of component %d attached to fan-out of component %d", p.Component(), f.component)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.ports[p]; ok {
		return fmt.Errorf("port %d already attached to fan-out", p.BoundPort())
	}
	f.ports[p] = struct{}{}
	p.setDestinationHook(func(dest netip.AddrPort) {
		f.requestKeyUnit(p, dest)
	})
	return nil
}

// DetachPort implements DataPath.
func (f *FanOut) DetachPort(p *Port) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.ports[p]; !ok {
		return
	}
	delete(f.ports, p)
	p.setDestinationHook(nil)
}

// OnKeyUnitRequest sets the handler told about new destinations. nil disables it.
func (f *FanOut) OnKeyUnitRequest(h func(KeyUnitRequest)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onKeyUnit = h
}

// Ports returns how many ports are currently attached.
func (f *FanOut) Ports() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ports)
}

// Write duplicates buf to every destination of every attached port. All sends are
// attempted; the failures are returned together.
func (f *FanOut) Write(buf []byte) error {
	if err := limits.ValidateDatagram(buf); err != nil {
		return newOpError("fan-out write", "", ErrInvalidArguments, err)
	}

	f.mu.RLock()
	ports := make([]*Port, 0, len(f.ports))
	for p := range f.ports {
		ports = append(ports, p)
	}
	f.mu.RUnlock()

	var merr *multierror.Error
	for _, p := range ports {
		if err := p.Broadcast(buf); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "FanOut.Write",
			"component": f.component,
			"failures":  merr.Len(),
		}).Debug("Fan-out write had failures")
		return err
	}
	return nil
}

func (f *FanOut) requestKeyUnit(p *Port, dest netip.AddrPort) {
	f.mu.RLock()
	h := f.onKeyUnit
	f.mu.RUnlock()

	if h == nil {
		return
	}
	h(KeyUnitRequest{Component: f.component, LocalPort: p.BoundPort(), Destination: dest})
}
