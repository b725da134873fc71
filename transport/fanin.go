package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// SubscriptionID identifies a FanIn subscriber.
type SubscriptionID uint64

type subscription struct {
	filter  PacketClass
	handler ReceiveHandler
}

// FanIn is the receive merge point of one component: every port of the component
// feeds it, and each datagram is handed to every subscriber whose filter matches.
// Handlers run on the reading port's goroutine and should return quickly.
type FanIn struct {
	component int

	mu     sync.RWMutex
	ports  map[*Port]struct{}
	subs   map[SubscriptionID]subscription
	nextID SubscriptionID

	received atomic.Uint64
}

// NewFanIn creates the receive merge point for component.
func NewFanIn(component int) *FanIn {
	return &FanIn{
		component: component,
		ports:     make(map[*Port]struct{}),
		subs:      make(map[SubscriptionID]subscription),
	}
}

// AttachPort implements DataPath.
func (f *FanIn) AttachPort(p *Port) error {
	if p.Component() != f.component {
		return fmt.Errorf("port of component %d attached to fan-in of component %d", p.Component(), f.component)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.ports[p]; ok {
		return fmt.Errorf("port %d already attached to fan-in", p.BoundPort())
	}
	f.ports[p] = struct{}{}
	p.setInbound(f.deliver)
	return nil
}

// DetachPort implements DataPath.
func (f *FanIn) DetachPort(p *Port) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.ports[p]; !ok {
		return
	}
	delete(f.ports, p)
	p.setInbound(nil)
}

// Subscribe registers handler for datagrams whose class matches filter.
func (f *FanIn) Subscribe(filter PacketClass, handler ReceiveHandler) SubscriptionID {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.subs[f.nextID] = subscription{filter: filter, handler: handler}
	return f.nextID
}

// Unsubscribe removes a subscriber and reports whether it existed.
func (f *FanIn) Unsubscribe(id SubscriptionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[id]; !ok {
		return false
	}
	delete(f.subs, id)
	return true
}

// Ports returns how many ports are currently attached.
func (f *FanIn) Ports() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ports)
}

// Received returns how many datagrams the fan-in has merged so far.
func (f *FanIn) Received() uint64 {
	return f.received.Load()
}

func (f *FanIn) deliver(d *Datagram) {
	f.received.Add(1)

	f.mu.RLock()
	handlers := make([]ReceiveHandler, 0, len(f.subs))
	for _, s := range f.subs {
		if d.Class.Matches(s.filter) {
			handlers = append(handlers, s.handler)
		}
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		h(d)
	}
}
