package sequencer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go-beatgen/bus"
	"go-beatgen/debug"
	"go-beatgen/midi"
	"go-beatgen/transport"
)

// StepUpdate tells a UI which step a sequencer moved to
type StepUpdate struct {
	Sequencer int
	Drum      bool
	Lane      int
	Old, New  int
}

// DeviceFunc opens the device behind a port name, or returns nil
type DeviceFunc func(port string) midi.Device

// PortDeviceFunc looks ports up among the system MIDI outputs
func PortDeviceFunc(port string) midi.Device {
	out, err := midi.FindOutPort(port)
	if err != nil {
		debug.Log("midi", "find %q: %v", port, err)
		return nil
	}
	return midi.PortDevice{Port: out}
}

// ManagerOptions configures a Manager. Nil services are created.
type ManagerOptions struct {
	Timing    *bus.TimingBus
	Commands  *bus.CommandBus
	Channels  *midi.ChannelManager
	Receivers *midi.ReceiverManager
	Clock     *transport.Clock
	Open      DeviceFunc
	Port      string // default output port
	Seed      int64
	// UpdateBuffer sizes the Updates channel; full buffers drop updates
	UpdateBuffer int
}

// retryOpen is how long a port that failed to open is left alone
const retryOpen = 2 * time.Second

// Manager wires sequencers to the shared buses, channels and receivers and
// turns their note events into MIDI
type Manager struct {
	timing    *bus.TimingBus
	commands  *bus.CommandBus
	channels  *midi.ChannelManager
	receivers *midi.ReceiverManager
	clock     *transport.Clock
	open      DeviceFunc

	// Multi-port MIDI output
	defaultPort string
	failed      map[string]time.Time
	failedMu    sync.Mutex

	mu      sync.RWMutex
	rng     *rand.Rand
	melodic []*Sequencer
	drums   []*DrumSequencer
	nextID  int

	// Notify TUI of updates
	updates chan StepUpdate
	sub     *bus.Subscription
}

// NewManager creates a manager and subscribes it to the command bus for the
// panic command
func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		timing:      opts.Timing,
		commands:    opts.Commands,
		channels:    opts.Channels,
		receivers:   opts.Receivers,
		clock:       opts.Clock,
		open:        opts.Open,
		defaultPort: opts.Port,
		failed:      make(map[string]time.Time),
		rng:         NewRand(opts.Seed),
	}
	if m.timing == nil {
		m.timing = bus.NewTimingBus()
	}
	if m.commands == nil {
		m.commands = bus.NewCommandBus()
	}
	if m.channels == nil {
		m.channels = midi.NewChannelManager(midi.DefaultDrumChannel)
	}
	if m.receivers == nil {
		m.receivers = midi.NewReceiverManager()
	}
	if m.clock == nil {
		m.clock = transport.New(m.timing, DefaultBPM, 4, 16)
	}
	if m.open == nil {
		m.open = PortDeviceFunc
	}
	buf := opts.UpdateBuffer
	if buf <= 0 {
		buf = 64
	}
	m.updates = make(chan StepUpdate, buf)

	m.sub = m.commands.Subscribe(func(c bus.Command) {
		if _, ok := c.(bus.AllNotesOff); ok {
			m.Panic()
		}
	})
	return m
}

func (m *Manager) Timing() *bus.TimingBus           { return m.timing }
func (m *Manager) Commands() *bus.CommandBus        { return m.commands }
func (m *Manager) Channels() *midi.ChannelManager   { return m.channels }
func (m *Manager) Receivers() *midi.ReceiverManager { return m.receivers }
func (m *Manager) Clock() *transport.Clock          { return m.clock }

// Updates delivers step moves of every sequencer. Slow readers miss updates;
// playback never waits for them.
func (m *Manager) Updates() <-chan StepUpdate {
	return m.updates
}

// SetDefaultPort sets the default MIDI output port name
func (m *Manager) SetDefaultPort(portName string) {
	m.mu.Lock()
	m.defaultPort = portName
	m.mu.Unlock()
}

func (m *Manager) DefaultPort() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultPort
}

// FollowDevice adopts a newly connected port when no default port is set.
// Sequencers follow the default on their next note. It reports whether the
// default changed. A port that goes away stays the default so it is picked
// up again when it returns.
func (m *Manager) FollowDevice(ev midi.DeviceEvent) bool {
	if ev.Type != midi.DeviceConnected {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.defaultPort != "" {
		return false
	}
	m.defaultPort = ev.Name
	debug.Log("mgr", "default port %q", m.defaultPort)
	return true
}

// AddMelodic creates a melodic sequencer on the next free channel. data and
// gen may be nil for defaults.
func (m *Manager) AddMelodic(data *SequenceData, gen Generator) (*Sequencer, error) {
	ch, err := m.channels.GetNextAvailableMelodicChannel()
	if err != nil {
		debug.Log("mgr", "add melodic: %v", err)
		return nil, err
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	rng := rand.New(rand.NewSource(m.rng.Int63()))
	m.mu.Unlock()

	s := New(Options{
		ID:        id,
		Timing:    m.timing,
		Commands:  m.commands,
		Notes:     m.noteOutput(),
		Steps:     func(old, new int) { m.pushUpdate(StepUpdate{Sequencer: id, Old: old, New: new}) },
		Rand:      rng,
		Generator: gen,
		Channel:   ch,
		Data:      data,
	})

	m.mu.Lock()
	m.melodic = append(m.melodic, s)
	m.mu.Unlock()
	debug.Log("mgr", "added %s on channel %d", s.Name(), ch+1)
	return s, nil
}

// AddDrum creates a drum sequencer on the drum channel
func (m *Manager) AddDrum(kit string) *DrumSequencer {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	rng := rand.New(rand.NewSource(m.rng.Int63()))
	m.mu.Unlock()

	s := NewDrum(DrumOptions{
		ID:         id,
		Timing:     m.timing,
		Commands:   m.commands,
		Notes:      m.noteOutput(),
		Steps:      func(lane, old, new int) { m.pushUpdate(StepUpdate{Sequencer: id, Drum: true, Lane: lane, Old: old, New: new}) },
		Rand:       rng,
		Kit:        kit,
		Channel:    m.channels.DrumChannel(),
		Generators: DefaultDrumGenerators(rng),
	})

	m.mu.Lock()
	m.drums = append(m.drums, s)
	m.mu.Unlock()
	debug.Log("mgr", "added %s kit %s", s.Name(), s.Kit().Name)
	return s
}

// Remove closes a sequencer and frees its channel
func (m *Manager) Remove(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.melodic {
		if s.ID() == id {
			s.Stop()
			s.Close()
			m.channels.ReleaseChannel(s.Channel())
			m.melodic = append(m.melodic[:i], m.melodic[i+1:]...)
			return true
		}
	}
	for i, s := range m.drums {
		if s.ID() == id {
			s.Stop()
			s.Close()
			m.drums = append(m.drums[:i], m.drums[i+1:]...)
			return true
		}
	}
	return false
}

// Melodic returns the melodic sequencers in creation order
func (m *Manager) Melodic() []*Sequencer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Sequencer, len(m.melodic))
	copy(out, m.melodic)
	return out
}

// Drums returns the drum sequencers in creation order
func (m *Manager) Drums() []*DrumSequencer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*DrumSequencer, len(m.drums))
	copy(out, m.drums)
	return out
}

// Start rewinds every sequencer and the clock and starts playback
func (m *Manager) Start(ctx context.Context) {
	m.clock.Stop()
	m.clock.Rewind()
	for _, s := range m.Melodic() {
		s.Reset()
		s.Start()
	}
	for _, s := range m.Drums() {
		s.Reset()
		s.Start()
	}
	m.clock.Start(ctx)
}

// Stop halts the clock and all sequencers. Pending note-offs still fire.
func (m *Manager) Stop() {
	m.clock.Stop()
	for _, s := range m.Melodic() {
		s.Stop()
	}
	for _, s := range m.Drums() {
		s.Stop()
	}
}

func (m *Manager) Playing() bool {
	return m.clock.Running()
}

// SetTempo sets the BPM
func (m *Manager) SetTempo(bpm float64) {
	m.clock.SetTempo(bpm)
}

func (m *Manager) Tempo() float64 {
	return m.clock.Tempo()
}

// RegenerateAll runs every generator once
func (m *Manager) RegenerateAll() {
	for _, s := range m.Melodic() {
		if err := s.Regenerate(); err != nil {
			debug.Log("mgr", "%s regenerate: %v", s.Name(), err)
		}
	}
	for _, s := range m.Drums() {
		if err := s.Regenerate(); err != nil {
			debug.Log("mgr", "%s regenerate: %v", s.Name(), err)
		}
	}
}

// SaveAll stores every sequencer's pattern as sequenceID
func (m *Manager) SaveAll(store Store, sequenceID int) error {
	for _, s := range m.Melodic() {
		if err := s.SaveSequence(store, sequenceID); err != nil {
			return err
		}
	}
	for _, s := range m.Drums() {
		if err := s.SaveSequence(store, sequenceID); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll loads sequenceID into every sequencer. Sequencers without a stored
// pattern fall back to defaults; the first error is returned.
func (m *Manager) LoadAll(store Store, sequenceID int) error {
	var firstErr error
	for _, s := range m.Melodic() {
		if err := s.LoadSequence(store, sequenceID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, s := range m.Drums() {
		if err := s.LoadSequence(store, sequenceID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Panic sends all-notes-off on every open receiver
func (m *Manager) Panic() {
	debug.Log("mgr", "panic: all notes off")
	m.receivers.AllNotesOff()
}

// Close stops playback, closes every sequencer and receiver and releases
// their channels
func (m *Manager) Close() {
	m.Stop()
	m.sub.Unsubscribe()

	m.mu.Lock()
	for _, s := range m.melodic {
		s.Close()
	}
	for _, s := range m.drums {
		s.Close()
	}
	m.melodic, m.drums = nil, nil
	m.channels.ReleaseAll()
	m.mu.Unlock()

	m.receivers.AllNotesOff()
	m.receivers.ClearAllReceivers()
}

func (m *Manager) pushUpdate(u StepUpdate) {
	bus.TrySend(m.updates, u)
}

// receiver returns the receiver for port, opening it lazily. Ports that
// failed recently are skipped so a missing device costs no scan per note.
func (m *Manager) receiver(port string) midi.Receiver {
	if port == "" {
		return nil
	}
	if r := m.receivers.Get(port); r != nil {
		return r
	}

	m.failedMu.Lock()
	if at, ok := m.failed[port]; ok && time.Since(at) < retryOpen {
		m.failedMu.Unlock()
		return nil
	}
	m.failedMu.Unlock()

	r := m.receivers.GetOrCreateReceiver(port, m.open(port))
	if r == nil {
		m.failedMu.Lock()
		m.failed[port] = time.Now()
		m.failedMu.Unlock()
	}
	return r
}

// noteOutput returns the NoteFunc that plays events on the default port as
// it is when each note fires. Note-on and note-off are scheduled with timers
// so the timing goroutine never sleeps.
func (m *Manager) noteOutput() NoteFunc {
	return func(ev NoteEvent) {
		port := m.DefaultPort()
		r := m.receiver(port)
		if r == nil {
			return
		}
		on := midi.Event{Type: midi.NoteOn, Channel: uint8(ev.Channel), Note: uint8(ev.Note), Velocity: uint8(ev.Velocity)}
		off := midi.Event{Type: midi.NoteOff, Channel: uint8(ev.Channel), Note: uint8(ev.Note)}

		send := func(e midi.Event) {
			if err := r.Send(e.Message(), -1); err != nil {
				debug.Log("dispatch", "%s port=%s: %v", e, port, err)
			}
		}

		play := func() { send(on) }
		if ev.Duration <= 0 {
			// zero gate: a trigger, on and off back to back
			play = func() {
				send(on)
				send(off)
			}
		} else {
			time.AfterFunc(ev.Delay+ev.Duration, func() { send(off) })
		}
		if ev.Delay <= 0 {
			play()
		} else {
			time.AfterFunc(ev.Delay, play)
		}
		debug.LogEvery(32, "dispatch", "seq=%d step=%d %s", ev.Sequencer, ev.Step, on)
	}
}
