package bus

// AllSequencers addresses a command to every sequencer
const AllSequencers = -1

// Command is the closed set of domain notifications carried by the
// CommandBus. Consumers switch on the concrete type.
type Command interface {
	Sender() string
	command()
}

// From identifies who published a command
type From string

func (f From) Sender() string { return string(f) }
func (From) command()          {}

type (
	// PatternUpdated is published after a sequencer swaps in new pattern
	// content (edit, generator, latch)
	PatternUpdated struct {
		From
		Sequencer int
		Lane      int // drum lane, 0 for melodic sequencers
	}

	// SequenceLoaded is published after a pattern was read from the store
	SequenceLoaded struct {
		From
		Sequencer int
		Sequence  int
	}

	// SequenceSaved is published after a pattern was written to the store
	SequenceSaved struct {
		From
		Sequencer int
		Sequence  int
	}

	// ScaleChanged asks sequencers to switch scale and root
	ScaleChanged struct {
		From
		Sequencer int
		Scale     string
		Root      int
	}

	// TiltChanged sets one harmonic tilt entry
	TiltChanged struct {
		From
		Sequencer int
		Bar       int
		Value     int
	}

	// ParamChanged sets one sequence-level parameter
	ParamChanged struct {
		From
		Sequencer int
		Param     Param
		Value     int
	}

	// LatchChanged toggles latch regeneration
	LatchChanged struct {
		From
		Sequencer int
		Enabled   bool
	}

	// AllNotesOff is the panic button
	AllNotesOff struct {
		From
	}
)

// Param names a sequence-level parameter for ParamChanged
type Param int

const (
	ParamPatternLength Param = iota
	ParamDirection
	ParamDivision
	ParamLooping
	ParamSwingEnabled
	ParamSwingPercent
	ParamOctaveShift
	ParamQuantize
)

var paramNames = []string{
	"length", "direction", "division", "looping",
	"swing", "swingPercent", "octave", "quantize",
}

func (p Param) String() string {
	if p < 0 || int(p) >= len(paramNames) {
		return "unknown"
	}
	return paramNames[p]
}

// CommandBus carries domain commands
type CommandBus = Bus[Command]

// NewCommandBus creates the bus for domain commands
func NewCommandBus() *CommandBus {
	return New[Command]("command")
}

// Targets reports whether a command addressed to target applies to id
func Targets(target, id int) bool {
	return target == AllSequencers || target == id
}
