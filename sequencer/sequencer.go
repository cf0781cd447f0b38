package sequencer

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go-beatgen/bus"
	"go-beatgen/debug"
)

// NoteEvent is a note the sequencer wants played. Delay is measured from the
// pulse that triggered it; Duration is how long to hold it.
type NoteEvent struct {
	Sequencer int
	Step      int
	Note      int
	Velocity  int
	Channel   int // zero-based
	Delay     time.Duration
	Duration  time.Duration
}

// NoteFunc receives triggered notes on the timing goroutine; it must not block
type NoteFunc func(NoteEvent)

// StepFunc is told about every cursor move, played or not
type StepFunc func(old, new int)

// NopNotes discards notes
func NopNotes(NoteEvent) {}

// NopSteps discards step updates
func NopSteps(int, int) {}

// Options configures a Sequencer. Zero values get defaults.
type Options struct {
	ID        int
	Name      string // used as the command sender
	Timing    *bus.TimingBus
	Commands  *bus.CommandBus
	Notes     NoteFunc
	Steps     StepFunc
	Rand      *rand.Rand
	Generator Generator
	Channel   int
	Data      *SequenceData
}

// Sequencer is a melodic step sequencer clocked by the TimingBus. It has no
// goroutine of its own: the pulse handler runs on the transport goroutine.
type Sequencer struct {
	id       int
	name     string
	timing   *bus.TimingBus
	commands *bus.CommandBus
	notes    NoteFunc
	steps    StepFunc
	channel  int

	pat pattern

	// playback state, guarded by mu
	mu      sync.Mutex
	rng     *rand.Rand
	head    playhead
	playing bool
	bar     int64
	tilt    int

	subs []*bus.Subscription
}

// New creates a sequencer and subscribes it to the buses in opts
func New(opts Options) *Sequencer {
	s := &Sequencer{
		id:       opts.ID,
		name:     opts.Name,
		timing:   opts.Timing,
		commands: opts.Commands,
		notes:    opts.Notes,
		steps:    opts.Steps,
		channel:  opts.Channel,
		rng:      opts.Rand,
	}
	if s.name == "" {
		s.name = fmt.Sprintf("seq%d", s.id)
	}
	if s.notes == nil {
		s.notes = NopNotes
	}
	if s.steps == nil {
		s.steps = NopSteps
	}
	if s.rng == nil {
		s.rng = NewRand(0)
	}

	data := NewSequenceData()
	if opts.Data != nil {
		data = *opts.Data
	}
	s.pat.init(data)

	gen := opts.Generator
	if gen == nil {
		gen = NewRandomGenerator(rand.New(rand.NewSource(s.rng.Int63())), 2, 50)
	}
	s.pat.setGenerator(gen)

	s.head.reset()
	s.bar = -1

	if s.timing != nil {
		s.subs = append(s.subs, s.timing.Subscribe(s.onPulse))
	}
	if s.commands != nil {
		s.subs = append(s.subs, s.commands.Subscribe(s.onCommand))
	}
	return s
}

func (s *Sequencer) ID() int        { return s.id }
func (s *Sequencer) Name() string   { return s.name }
func (s *Sequencer) Channel() int   { return s.channel }
func (s *Sequencer) String() string { return s.name }

// Close unsubscribes from the buses
func (s *Sequencer) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

// Start enables triggering. Starting twice is harmless.
func (s *Sequencer) Start() {
	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()
}

// Stop suppresses future triggers; notes already scheduled still end
func (s *Sequencer) Stop() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

func (s *Sequencer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Reset puts the cursor back on step 0 and forgets the current bar
func (s *Sequencer) Reset() {
	s.mu.Lock()
	s.head.reset()
	s.bar = -1
	s.tilt = 0
	s.mu.Unlock()
}

func (s *Sequencer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head.cursor
}

func (s *Sequencer) CurrentTilt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tilt
}

func (s *Sequencer) CurrentBar() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bar
}

// Snapshot returns a copy of the current pattern
func (s *Sequencer) Snapshot() SequenceData {
	return *s.pat.load()
}

func (s *Sequencer) onPulse(p bus.Pulse) {
	d := s.pat.load()

	s.mu.Lock()
	if p.Bar != s.bar {
		s.bar = p.Bar
		s.tilt = d.Tilt[mod(int(p.Bar), TiltPositions)]
	}
	if !s.playing || p.Tick%int64(d.Division) != 0 {
		s.mu.Unlock()
		return
	}

	s.head.fold(d.Length())
	old := s.head.cursor
	st := d.Steps[old]

	var ev *NoteEvent
	if st.Active && s.rng.Intn(100) < st.Probability {
		delay, dur := NoteTiming(st, old, d, p.BPM)
		ev = &NoteEvent{
			Sequencer: s.id,
			Step:      old,
			Note:      EffectiveNote(st, d, s.tilt),
			Velocity:  st.Velocity,
			Channel:   s.channel,
			Delay:     delay,
			Duration:  dur,
		}
	}

	next, cycle := s.head.advance(d, s.rng)
	if cycle && !d.Looping {
		s.playing = false
	}
	s.mu.Unlock()

	if ev != nil {
		s.notes(*ev)
	}
	s.steps(old, next)

	if cycle && d.LatchEnabled {
		if err := s.Regenerate(); err != nil {
			debug.Log("seq", "%s latch: %v", s.name, err)
		}
	}
}

func (s *Sequencer) onCommand(c bus.Command) {
	if c.Sender() == s.name {
		return
	}
	switch c := c.(type) {
	case bus.ScaleChanged:
		if !bus.Targets(c.Sequencer, s.id) {
			return
		}
		scale, err := ParseScale(c.Scale)
		if err != nil {
			debug.Log("seq", "%s: %v", s.name, err)
			return
		}
		s.update(func(d *SequenceData) {
			d.Scale = scale
			d.RootNote = c.Root
		})
	case bus.TiltChanged:
		if bus.Targets(c.Sequencer, s.id) {
			s.SetTilt(c.Bar, c.Value)
		}
	case bus.ParamChanged:
		if bus.Targets(c.Sequencer, s.id) {
			s.Update(func(d *SequenceData) { applyParam(d, c.Param, c.Value) })
		}
	case bus.LatchChanged:
		if bus.Targets(c.Sequencer, s.id) {
			s.SetLatch(c.Enabled)
		}
	case bus.PatternUpdated, bus.SequenceLoaded, bus.SequenceSaved, bus.AllNotesOff:
		// notifications for other listeners
	}
}

func applyParam(d *SequenceData, p bus.Param, v int) {
	switch p {
	case bus.ParamPatternLength:
		d.SetPatternLength(v)
	case bus.ParamDirection:
		d.Direction = Direction(clamp(v, int(Forward), int(Random)))
	case bus.ParamDivision:
		d.SetDivision(Division(v))
	case bus.ParamLooping:
		d.Looping = v != 0
	case bus.ParamSwingEnabled:
		d.SwingEnabled = v != 0
	case bus.ParamSwingPercent:
		d.SwingPercent = clamp(v, MinSwing, MaxSwing)
	case bus.ParamOctaveShift:
		d.SetOctaveShift(v)
	case bus.ParamQuantize:
		d.QuantizeEnabled = v != 0
	}
}

func (s *Sequencer) publish(c bus.Command) {
	if s.commands != nil {
		s.commands.Publish(c)
	}
}

// update edits the pattern without announcing it
func (s *Sequencer) update(fn func(d *SequenceData)) bool {
	return s.pat.update(fn)
}

// Update edits the pattern copy-on-write and publishes PatternUpdated when
// something changed. Safe from any goroutine.
func (s *Sequencer) Update(fn func(d *SequenceData)) {
	if s.update(fn) {
		s.publish(bus.PatternUpdated{From: bus.From(s.name), Sequencer: s.id})
	}
}

// SetStep replaces step i
func (s *Sequencer) SetStep(i int, st Step) {
	s.Update(func(d *SequenceData) { d.SetStep(i, st) })
}

// ToggleStep flips step i on or off
func (s *Sequencer) ToggleStep(i int) {
	if i < 0 || i >= MaxSteps {
		return
	}
	s.Update(func(d *SequenceData) { d.Steps[i].Active = !d.Steps[i].Active })
}

func (s *Sequencer) SetPatternLength(n int) {
	s.Update(func(d *SequenceData) { d.SetPatternLength(n) })
}

func (s *Sequencer) SetDirection(dir Direction) {
	s.Update(func(d *SequenceData) { d.Direction = dir })
}

func (s *Sequencer) SetDivision(div Division) {
	s.Update(func(d *SequenceData) { d.SetDivision(div) })
}

func (s *Sequencer) SetLooping(on bool) {
	s.Update(func(d *SequenceData) { d.Looping = on })
}

func (s *Sequencer) SetSwing(enabled bool, percent int) {
	s.Update(func(d *SequenceData) { d.SetSwing(enabled, percent) })
}

func (s *Sequencer) SetOctaveShift(n int) {
	s.Update(func(d *SequenceData) { d.SetOctaveShift(n) })
}

func (s *Sequencer) SetQuantize(on bool) {
	s.Update(func(d *SequenceData) { d.QuantizeEnabled = on })
}

// SetScale changes scale and root and announces it with ScaleChanged
func (s *Sequencer) SetScale(scale ScaleType, root int) {
	changed := s.update(func(d *SequenceData) {
		d.Scale = scale
		d.RootNote = root
	})
	if !changed {
		return
	}
	d := s.pat.load()
	s.publish(bus.ScaleChanged{From: bus.From(s.name), Sequencer: s.id, Scale: d.Scale.String(), Root: d.RootNote})
}

// SetTilt writes tilt entry i. It sounds at once only when i is the bar
// position playing now; other entries wait for their bar.
func (s *Sequencer) SetTilt(i, v int) {
	s.Update(func(d *SequenceData) { d.SetTilt(i, v) })

	d := s.pat.load()
	pos := mod(i, TiltPositions)
	s.mu.Lock()
	if s.bar >= 0 && mod(int(s.bar), TiltPositions) == pos {
		s.tilt = d.Tilt[pos]
	}
	s.mu.Unlock()
}

func (s *Sequencer) SetLatch(on bool) {
	s.Update(func(d *SequenceData) { d.LatchEnabled = on })
}

// SetGenerator replaces the generator used by Regenerate and latch
func (s *Sequencer) SetGenerator(g Generator) {
	s.pat.setGenerator(g)
}

func (s *Sequencer) Generator() Generator {
	return s.pat.generator()
}

// Regenerate runs the generator now
func (s *Sequencer) Regenerate() error {
	if err := s.pat.regenerate(); err != nil {
		return err
	}
	s.publish(bus.PatternUpdated{From: bus.From(s.name), Sequencer: s.id})
	return nil
}

// Generate applies g once without making it the sequencer's generator
func (s *Sequencer) Generate(g Generator) error {
	var genErr error
	s.Update(func(d *SequenceData) {
		next, err := Apply(*d, g)
		if err != nil {
			genErr = err
			return
		}
		*d = next
	})
	return genErr
}

// LoadSequence replaces the pattern with one from the store. On failure the
// pattern falls back to defaults and nothing is published.
func (s *Sequencer) LoadSequence(store Store, sequenceID int) error {
	d, err := store.Load(s.id, sequenceID)
	if err != nil {
		debug.Log("seq", "%s load %d: %v", s.name, sequenceID, err)
		s.pat.replace(NewSequenceData())
		return err
	}
	s.pat.replace(d)
	s.publish(bus.SequenceLoaded{From: bus.From(s.name), Sequencer: s.id, Sequence: sequenceID})
	return nil
}

// SaveSequence writes the current pattern to the store
func (s *Sequencer) SaveSequence(store Store, sequenceID int) error {
	if err := store.Save(s.id, sequenceID, s.Snapshot()); err != nil {
		return err
	}
	s.publish(bus.SequenceSaved{From: bus.From(s.name), Sequencer: s.id, Sequence: sequenceID})
	return nil
}
