package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-beatgen/debug"
)

// ScanTimeout bounds a port listing. CoreMIDI can hang.
const ScanTimeout = 3 * time.Second

// KindTimeout tags errors from a driver that did not answer
const KindTimeout ftag.Kind = "TIMEOUT"

// ErrScanTimeout is returned when the driver does not answer in time
var ErrScanTimeout = fault.New("midi port scan timed out", ftag.With(KindTimeout))

// ScanOutPorts lists output ports, giving up after timeout
func ScanOutPorts(timeout time.Duration) ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case outs := <-ch:
		return outs, nil
	case <-time.After(timeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, ErrScanTimeout
	}
}

// ListOutPorts returns the output port names
func ListOutPorts(timeout time.Duration) ([]string, error) {
	outs, err := ScanOutPorts(timeout)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names, nil
}

// FindOutPort returns the first output whose name contains name, case
// insensitive. An exact match wins over a partial one.
func FindOutPort(name string) (drivers.Out, error) {
	outs, err := ScanOutPorts(ScanTimeout)
	if err != nil {
		return nil, err
	}
	if out := matchPort(outs, name); out != nil {
		return out, nil
	}
	return nil, fault.New("port not found: "+name,
		ftag.With(ftag.NotFound),
		fmsg.WithDesc("port not found", "No MIDI output named "+name+". Run the ports command to list outputs."))
}

func matchPort(outs []drivers.Out, name string) drivers.Out {
	for _, out := range outs {
		if out.String() == name {
			return out
		}
	}
	lower := strings.ToLower(name)
	for _, out := range outs {
		if strings.Contains(strings.ToLower(out.String()), lower) {
			return out
		}
	}
	return nil
}

// DeviceEvent is emitted when an output port appears or goes away
type DeviceEvent struct {
	Type DeviceEventType
	Name string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager watches output ports for hot-plug and drops cached receivers
// whose port disappeared
type DeviceManager struct {
	receivers *ReceiverManager
	list      func() ([]string, error)

	mu       sync.RWMutex
	present  map[string]bool
	events   chan DeviceEvent
	pollRate time.Duration
}

// NewDeviceManager creates a watcher over the system output ports
func NewDeviceManager(receivers *ReceiverManager) *DeviceManager {
	return &DeviceManager{
		receivers: receivers,
		list:      func() ([]string, error) { return ListOutPorts(ScanTimeout) },
		present:   make(map[string]bool),
		events:    make(chan DeviceEvent, 16),
		pollRate:  time.Second,
	}
}

// Events returns a channel of connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Ports returns the names seen on the last scan
func (dm *DeviceManager) Ports() []string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	names := make([]string, 0, len(dm.present))
	for name := range dm.present {
		names = append(names, name)
	}
	return names
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	names, err := dm.list()
	if err != nil {
		// Driver hung - skip this scan
		debug.Log("midi", "scan: %v", err)
		return
	}

	seen := make(map[string]bool, len(names))
	var added, removed []string

	dm.mu.Lock()
	for _, name := range names {
		seen[name] = true
		if !dm.present[name] {
			added = append(added, name)
		}
	}
	for name := range dm.present {
		if !seen[name] {
			removed = append(removed, name)
		}
	}
	dm.present = seen
	dm.mu.Unlock()

	for _, name := range removed {
		if dm.receivers != nil {
			dm.receivers.CloseReceiver(name)
		}
		debug.Log("midi", "port gone: %s", name)
		dm.emit(DeviceEvent{Type: DeviceDisconnected, Name: name})
	}
	for _, name := range added {
		debug.Log("midi", "port found: %s", name)
		dm.emit(DeviceEvent{Type: DeviceConnected, Name: name})
	}
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
	}
}
