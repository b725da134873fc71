package transport

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/sirupsen/logrus"
)

// UniquenessNotifier is told when an address it registered with a
// KnownAddressTracker stops or starts being held by a single entry.
//
// Notifiers are compared with ==, so implementations should be pointer types.
// NotifyUniqueness runs with the tracker lock held and must not call back into
// the same tracker.
type UniquenessNotifier interface {
	NotifyUniqueness(addr netip.AddrPort, unique bool)
}

// UniquenessEvent is a uniqueness change delivered by a ChannelNotifier.
type UniquenessEvent struct {
	Address netip.AddrPort
	Unique  bool
}

// ChannelNotifier is a UniquenessNotifier that forwards every change as a
// UniquenessEvent on a buffered channel. The consumer must keep draining Events
// or tracker operations on the same port will block.
type ChannelNotifier struct {
	events chan UniquenessEvent
}

// NewChannelNotifier creates a notifier whose channel holds up to buffer events.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelNotifier{events: make(chan UniquenessEvent, buffer)}
}

// NotifyUniqueness implements UniquenessNotifier.
func (n *ChannelNotifier) NotifyUniqueness(addr netip.AddrPort, unique bool) {
	n.events <- UniquenessEvent{Address: addr, Unique: unique}
}

// Events returns the channel uniqueness changes are delivered on.
func (n *ChannelNotifier) Events() <-chan UniquenessEvent {
	return n.events
}

type knownAddress struct {
	addr   netip.AddrPort
	notify UniquenessNotifier
}

// KnownAddressTracker records which remote addresses the holders of a port have
// been told about, so that two candidates resolving to the same endpoint can be
// detected. An address is unique while exactly one entry holds it.
//
// Only the transitions between one and two holders are announced: the sole
// holder hears unique=false when a second entry arrives and unique=true when it
// is alone again. Groups of three or more shrinking to two are not announced.
type KnownAddressTracker struct {
	mu      sync.Mutex
	entries []knownAddress
}

// NewKnownAddressTracker creates an empty tracker.
func NewKnownAddressTracker() *KnownAddressTracker {
	return &KnownAddressTracker{}
}

// Add records addr for notify and reports whether no other entry held addr.
// When exactly one entry already held it, that entry's notifier is told it is no
// longer unique. Adding the same (addr, notify) pair twice panics.
func (k *KnownAddressTracker) Add(addr netip.AddrPort, notify UniquenessNotifier) bool {
	if notify == nil {
		panic("mediamux: known address added with nil notifier")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	var count int
	var prev *knownAddress
	for i := range k.entries {
		ka := &k.entries[i]
		if ka.addr != addr {
			continue
		}
		if ka.notify == notify {
			panic(fmt.Sprintf("mediamux: known address %s added twice for the same notifier", addr))
		}
		count++
		prev = ka
	}

	if count == 1 {
		prev.notify.NotifyUniqueness(prev.addr, false)
	}

	k.entries = append(k.entries, knownAddress{addr: addr, notify: notify})

	logrus.WithFields(logrus.Fields{
		"function": "KnownAddressTracker.Add",
		"address":  addr.String(),
		"holders":  count + 1,
	}).Debug("Added known address")

	return count == 0
}

// Remove drops the entry previously added for (addr, notify). If exactly one
// other entry still holds addr, its notifier is told it is unique again.
// Removing an entry that was never added panics.
func (k *KnownAddressTracker) Remove(addr netip.AddrPort, notify UniquenessNotifier) {
	k.mu.Lock()
	defer k.mu.Unlock()

	removeIdx := -1
	var count int
	var prev *knownAddress
	for i := range k.entries {
		ka := &k.entries[i]
		if ka.addr != addr {
			continue
		}
		if ka.notify == notify {
			removeIdx = i
			continue
		}
		count++
		prev = ka
	}

	if removeIdx == -1 {
		panic(fmt.Sprintf("mediamux: removing unknown known address %s", addr))
	}

	if count == 1 {
		prev.notify.NotifyUniqueness(prev.addr, true)
	}

	k.entries = append(k.entries[:removeIdx], k.entries[removeIdx+1:]...)

	logrus.WithFields(logrus.Fields{
		"function": "KnownAddressTracker.Remove",
		"address":  addr.String(),
		"holders":  count,
	}).Debug("Removed known address")
}

// Count returns how many entries currently hold addr.
func (k *KnownAddressTracker) Count(addr netip.AddrPort) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	var count int
	for _, ka := range k.entries {
		if ka.addr == addr {
			count++
		}
	}
	return count
}

// IsUnique reports whether exactly one entry holds addr.
func (k *KnownAddressTracker) IsUnique(addr netip.AddrPort) bool {
	return k.Count(addr) == 1
}

// Len returns the total number of entries.
func (k *KnownAddressTracker) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Clear drops every entry without notifying anyone. Ports call it on teardown.
func (k *KnownAddressTracker) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries = nil
}
