package transport

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// DataPath is a send or receive surface every port of a component links into
// when it is created and unlinks from when it is destroyed.
type DataPath interface {
	AttachPort(p *Port) error
	DetachPort(p *Port)
}

// RegistryConfig configures a PortRegistry.
type RegistryConfig struct {
	Component      int
	Binder         *SocketBinder
	TypeOfService  func() int // current marking, read at bind time and again at insert
	DataPaths      []DataPath // attached in order, detached in reverse
	ReadBufferSize int
	DoTimestamp    bool
}

// PortRegistry holds the live ports of one component and hands out shared
// references to them. At most one live port exists per PortKey.
//
// The registry lock only guards the port map. Sockets are bound and attached
// outside of it; when two callers race to create the same key, the loser's port
// is torn down and it joins the winner's.
type PortRegistry struct {
	mu    sync.Mutex
	ports map[PortKey]*Port

	component   int
	binder      *SocketBinder
	tos         func() int
	paths       []DataPath
	readBuffer  int
	doTimestamp bool
}

// NewPortRegistry creates an empty registry.
func NewPortRegistry(cfg RegistryConfig) *PortRegistry {
	if cfg.Binder == nil {
		cfg.Binder = NewSocketBinder()
	}
	if cfg.TypeOfService == nil {
		cfg.TypeOfService = func() int { return 0 }
	}
	return &PortRegistry{
		ports:       make(map[PortKey]*Port),
		component:   cfg.Component,
		binder:      cfg.Binder,
		tos:         cfg.TypeOfService,
		paths:       cfg.DataPaths,
		readBuffer:  cfg.ReadBufferSize,
		doTimestamp: cfg.DoTimestamp,
	}
}

// Component returns the component id the registry serves.
func (r *PortRegistry) Component() int {
	return r.component
}

// Acquire returns a reference to the port for (address, port), creating and
// binding it if no holder has one yet.
func (r *PortRegistry) Acquire(address string, port int) (*PortHandle, error) {
	key := PortKey{Address: address, Port: port}

	r.mu.Lock()
	if existing := r.lookupLocked(key); existing != nil {
		r.mu.Unlock()
		return r.newHandle(existing), nil
	}
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Acquire",
		"component": r.component,
		"request":   key.String(),
	}).Debug("Creating new port")

	tos := r.tos()
	created, err := r.build(key, tos)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing := r.lookupLocked(key); existing != nil {
		r.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":  "Acquire",
			"component": r.component,
			"request":   key.String(),
		}).Debug("Port created concurrently, discarding ours")
		r.destroy(created)
		return r.newHandle(existing), nil
	}
	if current := r.tos(); current != tos {
		created.applyTypeOfService(current)
	}
	created.refs = 1
	r.ports[key] = created
	r.mu.Unlock()

	created.start()

	logrus.WithFields(logrus.Fields{
		"function":   "Acquire",
		"component":  r.component,
		"request":    key.String(),
		"bound_port": created.BoundPort(),
	}).Info("Port created")

	return r.newHandle(created), nil
}

// Release drops h's reference. The last release removes the port from the
// registry, detaches it from every data path and closes its socket.
// Releasing a handle twice, or one from another registry, panics.
func (r *PortRegistry) Release(h *PortHandle) {
	if h == nil || h.Port == nil {
		panic("mediamux: releasing nil port handle")
	}
	if h.registry != r {
		panic(fmt.Sprintf("mediamux: releasing port %d in a registry that does not own it", h.boundPort))
	}
	if !h.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("mediamux: port %d released twice by the same holder", h.boundPort))
	}

	p := h.Port

	r.mu.Lock()
	if r.ports[p.key] != p {
		r.mu.Unlock()
		panic(fmt.Sprintf("mediamux: releasing port %d which is not held", p.boundPort))
	}
	p.refs--
	if p.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.ports, p.key)
	r.mu.Unlock()

	r.destroy(p)

	logrus.WithFields(logrus.Fields{
		"function":   "Release",
		"component":  r.component,
		"request":    p.key.String(),
		"bound_port": p.boundPort,
	}).Info("Port destroyed")
}

// Refcount returns how many holders currently reference p, 0 if it is not live.
func (r *PortRegistry) Refcount(p *Port) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ports[p.key] != p {
		return 0
	}
	return p.refs
}

// Len returns the number of live ports.
func (r *PortRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ports)
}

// Ports returns a snapshot of the live ports.
func (r *PortRegistry) Ports() []*Port {
	r.mu.Lock()
	defer r.mu.Unlock()

	ports := make([]*Port, 0, len(r.ports))
	for _, p := range r.ports {
		ports = append(ports, p)
	}
	return ports
}

// ApplyTypeOfService marks every live socket with tos. The registry lock is held
// throughout, so Acquire and Release on this component wait for it.
func (r *PortRegistry) ApplyTypeOfService(tos int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.ports {
		p.applyTypeOfService(tos)
	}
}

func (r *PortRegistry) lookupLocked(key PortKey) *Port {
	p, ok := r.ports[key]
	if !ok {
		return nil
	}
	p.refs++
	return p
}

func (r *PortRegistry) newHandle(p *Port) *PortHandle {
	return &PortHandle{Port: p, registry: r}
}

// build binds a socket for key and attaches it to every data path, unwinding
// whatever was done if a step fails.
func (r *PortRegistry) build(key PortKey, tos int) (*Port, error) {
	conn, boundPort, err := r.binder.Bind(key.Address, key.Port, tos)
	if err != nil {
		return nil, err
	}

	p := newPort(portConfig{
		component:   r.component,
		key:         key,
		conn:        conn,
		boundPort:   boundPort,
		tos:         tos,
		readBuffer:  r.readBuffer,
		doTimestamp: r.doTimestamp,
	})

	for i, path := range r.paths {
		if err := path.AttachPort(p); err != nil {
			for j := i - 1; j >= 0; j-- {
				r.paths[j].DetachPort(p)
			}
			p.close()

			logrus.WithFields(logrus.Fields{
				"function":  "build",
				"component": r.component,
				"request":   key.String(),
				"error":     err.Error(),
			}).Error("Failed to attach port data path")

			return nil, newOpError("attach", key.String(), ErrConstruction, err)
		}
	}

	return p, nil
}

func (r *PortRegistry) destroy(p *Port) {
	for i := len(r.paths) - 1; i >= 0; i-- {
		r.paths[i].DetachPort(p)
	}
	p.close()
}
