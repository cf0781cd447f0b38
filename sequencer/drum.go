package sequencer

import (
	"fmt"
	"math/rand"
	"sync"

	"go-beatgen/bus"
	"go-beatgen/debug"
)

// DrumLanes is one lane per kit slot
const DrumLanes = 16

// LaneStepFunc is told about every cursor move of every lane
type LaneStepFunc func(lane, old, new int)

// NopLaneSteps discards lane step updates
func NopLaneSteps(int, int, int) {}

// DrumOptions configures a DrumSequencer. Zero values get defaults.
type DrumOptions struct {
	ID         int
	Name       string
	Timing     *bus.TimingBus
	Commands   *bus.CommandBus
	Notes      NoteFunc
	Steps      LaneStepFunc
	Rand       *rand.Rand
	Kit        string
	Channel    int
	Generators [DrumLanes]Generator // nil lanes keep their pattern on latch
}

type drumLane struct {
	pat  pattern
	head playhead
	done bool // finished its single pass
}

// DrumSequencer plays 16 lanes, each with its own pattern, length and
// direction, so lanes drift against each other. Notes come from the kit;
// tilt, octave shift and quantize do not apply.
type DrumSequencer struct {
	id       int
	name     string
	timing   *bus.TimingBus
	commands *bus.CommandBus
	notes    NoteFunc
	steps    LaneStepFunc
	channel  int

	kitMu sync.RWMutex
	kit   DrumKit

	lanes [DrumLanes]drumLane

	// playback state, guarded by mu (lane playheads included)
	mu      sync.Mutex
	rng     *rand.Rand
	playing bool

	subs []*bus.Subscription
}

// NewDrum creates a drum sequencer subscribed to the buses in opts
func NewDrum(opts DrumOptions) *DrumSequencer {
	s := &DrumSequencer{
		id:       opts.ID,
		name:     opts.Name,
		timing:   opts.Timing,
		commands: opts.Commands,
		notes:    opts.Notes,
		steps:    opts.Steps,
		channel:  opts.Channel,
		rng:      opts.Rand,
		kit:      GetKit(opts.Kit),
	}
	if s.name == "" {
		s.name = fmt.Sprintf("drum%d", s.id)
	}
	if s.notes == nil {
		s.notes = NopNotes
	}
	if s.steps == nil {
		s.steps = NopLaneSteps
	}
	if s.rng == nil {
		s.rng = NewRand(0)
	}

	for i := range s.lanes {
		s.lanes[i].pat.init(NewSequenceData())
		s.lanes[i].pat.setGenerator(opts.Generators[i])
		s.lanes[i].head.reset()
	}

	if s.timing != nil {
		s.subs = append(s.subs, s.timing.Subscribe(s.onPulse))
	}
	if s.commands != nil {
		s.subs = append(s.subs, s.commands.Subscribe(s.onCommand))
	}
	return s
}

// DefaultDrumGenerators gives kick, snare and hats euclidean grooves and the
// remaining lanes sparse random hits
func DefaultDrumGenerators(rng *rand.Rand) [DrumLanes]Generator {
	var gens [DrumLanes]Generator
	gens[0] = &EuclideanGenerator{Steps: 16, Hits: 4}
	gens[1] = &EuclideanGenerator{Steps: 16, Hits: 2, Rotation: 4}
	gens[2] = &EuclideanGenerator{Steps: 16, Hits: 8, Rotation: 1}
	gens[3] = &EuclideanGenerator{Steps: 16, Hits: 1, Rotation: 14}
	for i := 4; i < DrumLanes; i++ {
		gens[i] = NewRandomGenerator(rand.New(rand.NewSource(rng.Int63())), 1, 6)
	}
	return gens
}

func (s *DrumSequencer) ID() int        { return s.id }
func (s *DrumSequencer) Name() string   { return s.name }
func (s *DrumSequencer) Channel() int   { return s.channel }
func (s *DrumSequencer) String() string { return s.name }

func (s *DrumSequencer) Kit() DrumKit {
	s.kitMu.RLock()
	defer s.kitMu.RUnlock()
	return s.kit
}

// SetKit switches the lane note mapping
func (s *DrumSequencer) SetKit(name string) {
	s.kitMu.Lock()
	s.kit = GetKit(name)
	s.kitMu.Unlock()
}

func (s *DrumSequencer) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

func (s *DrumSequencer) Start() {
	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()
}

func (s *DrumSequencer) Stop() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

func (s *DrumSequencer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Reset rewinds every lane
func (s *DrumSequencer) Reset() {
	s.mu.Lock()
	for i := range s.lanes {
		s.lanes[i].head.reset()
		s.lanes[i].done = false
	}
	s.mu.Unlock()
}

// Cursor returns the cursor of one lane
func (s *DrumSequencer) Cursor(lane int) int {
	if lane < 0 || lane >= DrumLanes {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lanes[lane].head.cursor
}

// Lane returns a copy of one lane's pattern
func (s *DrumSequencer) Lane(lane int) SequenceData {
	return *s.lanes[clamp(lane, 0, DrumLanes-1)].pat.load()
}

// MasterLength is the longest lane length
func (s *DrumSequencer) MasterLength() int {
	longest := 1
	for i := range s.lanes {
		if n := s.lanes[i].pat.load().Length(); n > longest {
			longest = n
		}
	}
	return longest
}

func (s *DrumSequencer) onPulse(p bus.Pulse) {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	kit := s.Kit()

	type move struct{ lane, old, next int }
	var (
		events  []NoteEvent
		moves   []move
		latched []int
	)
	done := 0
	for i := range s.lanes {
		ln := &s.lanes[i]
		d := ln.pat.load()
		if ln.done {
			done++
			continue
		}
		if p.Tick%int64(d.Division) != 0 {
			continue
		}

		ln.head.fold(d.Length())
		old := ln.head.cursor
		st := d.Steps[old]
		if st.Active && s.rng.Intn(100) < st.Probability {
			delay, dur := NoteTiming(st, old, d, p.BPM)
			events = append(events, NoteEvent{
				Sequencer: s.id,
				Step:      old,
				Note:      int(kit.Notes[i]),
				Velocity:  st.Velocity,
				Channel:   s.channel,
				Delay:     delay,
				Duration:  dur,
			})
		}

		next, cycle := ln.head.advance(d, s.rng)
		moves = append(moves, move{i, old, next})
		if cycle && !d.Looping {
			ln.done = true
			done++
		}
		if cycle && d.LatchEnabled {
			latched = append(latched, i)
		}
	}
	// Non-looping lanes stop the machine once every lane has finished
	if done == DrumLanes {
		s.playing = false
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.notes(ev)
	}
	for _, m := range moves {
		s.steps(m.lane, m.old, m.next)
	}
	for _, lane := range latched {
		if err := s.RegenerateLane(lane); err != nil && err != ErrNoGenerator {
			debug.Log("drum", "%s lane %d latch: %v", s.name, lane, err)
		}
	}
}

func (s *DrumSequencer) onCommand(c bus.Command) {
	if c.Sender() == s.name {
		return
	}
	switch c := c.(type) {
	case bus.ParamChanged:
		if bus.Targets(c.Sequencer, s.id) {
			for i := range s.lanes {
				s.UpdateLane(i, func(d *SequenceData) { applyParam(d, c.Param, c.Value) })
			}
		}
	case bus.LatchChanged:
		if bus.Targets(c.Sequencer, s.id) {
			s.SetLatch(c.Enabled)
		}
	case bus.ScaleChanged, bus.TiltChanged:
		// pitch transforms do not apply to drums
	case bus.PatternUpdated, bus.SequenceLoaded, bus.SequenceSaved, bus.AllNotesOff:
	}
}

func (s *DrumSequencer) publish(c bus.Command) {
	if s.commands != nil {
		s.commands.Publish(c)
	}
}

// UpdateLane edits one lane copy-on-write
func (s *DrumSequencer) UpdateLane(lane int, fn func(d *SequenceData)) {
	if lane < 0 || lane >= DrumLanes {
		return
	}
	if s.lanes[lane].pat.update(fn) {
		s.publish(bus.PatternUpdated{From: bus.From(s.name), Sequencer: s.id, Lane: lane})
	}
}

// ToggleStep flips one step of one lane
func (s *DrumSequencer) ToggleStep(lane, i int) {
	if i < 0 || i >= MaxSteps {
		return
	}
	s.UpdateLane(lane, func(d *SequenceData) { d.Steps[i].Active = !d.Steps[i].Active })
}

// SetLatch toggles latch on every lane
func (s *DrumSequencer) SetLatch(on bool) {
	for i := range s.lanes {
		s.UpdateLane(i, func(d *SequenceData) { d.LatchEnabled = on })
	}
}

func (s *DrumSequencer) SetLaneGenerator(lane int, g Generator) {
	if lane < 0 || lane >= DrumLanes {
		return
	}
	s.lanes[lane].pat.setGenerator(g)
}

// RegenerateLane runs one lane's generator now
func (s *DrumSequencer) RegenerateLane(lane int) error {
	if lane < 0 || lane >= DrumLanes {
		return fmt.Errorf("lane %d out of range", lane)
	}
	if err := s.lanes[lane].pat.regenerate(); err != nil {
		return err
	}
	s.publish(bus.PatternUpdated{From: bus.From(s.name), Sequencer: s.id, Lane: lane})
	return nil
}

// Regenerate runs every lane that has a generator
func (s *DrumSequencer) Regenerate() error {
	for i := range s.lanes {
		if err := s.RegenerateLane(i); err != nil && err != ErrNoGenerator {
			return err
		}
	}
	return nil
}

// Lanes are stored as separate sequences: sequence*DrumLanes + lane
func laneKey(sequenceID, lane int) int {
	return sequenceID*DrumLanes + lane
}

// LoadSequence loads all lanes of a stored drum pattern. Lanes that fail to
// load fall back to empty patterns.
func (s *DrumSequencer) LoadSequence(store Store, sequenceID int) error {
	var firstErr error
	for i := range s.lanes {
		d, err := store.Load(s.id, laneKey(sequenceID, i))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			d = NewSequenceData()
		}
		s.lanes[i].pat.replace(d)
	}
	if firstErr != nil {
		debug.Log("drum", "%s load %d: %v", s.name, sequenceID, firstErr)
		return firstErr
	}
	s.publish(bus.SequenceLoaded{From: bus.From(s.name), Sequencer: s.id, Sequence: sequenceID})
	return nil
}

// SaveSequence stores every lane
func (s *DrumSequencer) SaveSequence(store Store, sequenceID int) error {
	for i := range s.lanes {
		if err := store.Save(s.id, laneKey(sequenceID, i), s.Lane(i)); err != nil {
			return err
		}
	}
	s.publish(bus.SequenceSaved{From: bus.From(s.name), Sequencer: s.id, Sequence: sequenceID})
	return nil
}
