package midi

import (
	"sort"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-beatgen/debug"
)

// Receiver accepts encoded MIDI messages. Timestamp is in microseconds; -1
// means send immediately.
type Receiver interface {
	Send(msg gomidi.Message, timestamp int64) error
	Close() error
}

// Device is an output that has to be opened before it hands out a Receiver
type Device interface {
	Open() error
	IsOpen() bool
	Close() error
	Receiver() (Receiver, error)
}

// PortDevice adapts a driver output port
type PortDevice struct {
	Port drivers.Out
}

// Open opens the underlying port if needed
func (d PortDevice) Open() error {
	if d.Port == nil {
		return fault.New("no port")
	}
	if d.Port.IsOpen() {
		return nil
	}
	if err := d.Port.Open(); err != nil {
		return fault.Wrap(err, fmsg.With("open "+d.Port.String()))
	}
	return nil
}

// IsOpen reports whether the port is open
func (d PortDevice) IsOpen() bool {
	return d.Port != nil && d.Port.IsOpen()
}

// Close closes the underlying port if it is open
func (d PortDevice) Close() error {
	if !d.IsOpen() {
		return nil
	}
	return d.Port.Close()
}

// Receiver returns a sender bound to the port
func (d PortDevice) Receiver() (Receiver, error) {
	send, err := gomidi.SendTo(d.Port)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("send to "+d.Port.String()))
	}
	return &portReceiver{port: d.Port, send: send}, nil
}

type portReceiver struct {
	port drivers.Out
	send func(gomidi.Message) error
}

// Send ignores the timestamp; scheduling happens before the message gets here
func (r *portReceiver) Send(msg gomidi.Message, _ int64) error {
	return r.send(msg)
}

func (r *portReceiver) Close() error {
	return r.port.Close()
}

// ReceiverManager caches one open Receiver per device name
type ReceiverManager struct {
	mu        sync.RWMutex
	receivers map[string]Receiver
}

// NewReceiverManager creates an empty cache
func NewReceiverManager() *ReceiverManager {
	return &ReceiverManager{receivers: make(map[string]Receiver)}
}

// GetOrCreateReceiver returns the cached receiver for name, opening dev on a
// miss. It returns nil when dev is nil or cannot be opened; nothing is cached
// in that case.
func (rm *ReceiverManager) GetOrCreateReceiver(name string, dev Device) Receiver {
	rm.mu.RLock()
	if r, ok := rm.receivers[name]; ok {
		rm.mu.RUnlock()
		return r
	}
	rm.mu.RUnlock()

	if dev == nil {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	// Double-check after acquiring write lock
	if r, ok := rm.receivers[name]; ok {
		return r
	}

	opened := false
	if !dev.IsOpen() {
		if err := dev.Open(); err != nil {
			debug.Log("midi", "open %q failed: %v", name, err)
			return nil
		}
		opened = true
	}
	r, err := dev.Receiver()
	if err != nil || r == nil {
		debug.Log("midi", "receiver for %q failed: %v", name, err)
		if opened {
			if err := dev.Close(); err != nil {
				debug.Log("midi", "close %q: %v", name, err)
			}
		}
		return nil
	}
	rm.receivers[name] = r
	debug.Log("midi", "opened receiver %q", name)
	return r
}

// Get returns the cached receiver or nil
func (rm *ReceiverManager) Get(name string) Receiver {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.receivers[name]
}

// CloseReceiver closes and forgets the receiver for name, if any
func (rm *ReceiverManager) CloseReceiver(name string) {
	rm.mu.Lock()
	r, ok := rm.receivers[name]
	delete(rm.receivers, name)
	rm.mu.Unlock()

	if ok {
		if err := r.Close(); err != nil {
			debug.Log("midi", "close %q: %v", name, err)
		}
	}
}

// ClearAllReceivers closes every cached receiver and empties the cache
func (rm *ReceiverManager) ClearAllReceivers() {
	rm.mu.Lock()
	old := rm.receivers
	rm.receivers = make(map[string]Receiver)
	rm.mu.Unlock()

	for name, r := range old {
		if err := r.Close(); err != nil {
			debug.Log("midi", "close %q: %v", name, err)
		}
	}
}

// Names returns the cached device names, sorted
func (rm *ReceiverManager) Names() []string {
	rm.mu.RLock()
	names := make([]string, 0, len(rm.receivers))
	for name := range rm.receivers {
		names = append(names, name)
	}
	rm.mu.RUnlock()
	sort.Strings(names)
	return names
}

// AllNotesOff sends CC 123 on all 16 channels of every cached receiver
func (rm *ReceiverManager) AllNotesOff() {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for name, r := range rm.receivers {
		for ch := uint8(0); ch < NumChannels; ch++ {
			msg := Event{Type: CC, Channel: ch, Note: CCAllNotesOff}.Message()
			if err := r.Send(msg, -1); err != nil {
				debug.Log("midi", "all notes off %q ch=%d: %v", name, ch+1, err)
				break
			}
		}
	}
}
