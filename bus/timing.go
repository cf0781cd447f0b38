package bus

// PPQ is the number of pulses per quarter note the transport emits
const PPQ = 24

// Pulse is one transport tick. Counters are zero-based and absolute since the
// transport started.
type Pulse struct {
	Tick int64
	Beat int64
	Bar  int64
	Part int64
	BPM  float64
}

// TimingBus carries transport pulses
type TimingBus = Bus[Pulse]

// NewTimingBus creates the bus the transport publishes on
func NewTimingBus() *TimingBus {
	return New[Pulse]("timing")
}

// PulseAt derives the beat/bar/part counters for an absolute tick
func PulseAt(tick int64, bpm float64, beatsPerBar, barsPerPart int) Pulse {
	if beatsPerBar < 1 {
		beatsPerBar = 4
	}
	if barsPerPart < 1 {
		barsPerPart = 16
	}
	beat := tick / PPQ
	bar := beat / int64(beatsPerBar)
	return Pulse{
		Tick: tick,
		Beat: beat,
		Bar:  bar,
		Part: bar / int64(barsPerPart),
		BPM:  bpm,
	}
}
