package sequencer

// Pattern capacity and step field bounds
const (
	MaxSteps    = 64
	MaxNudge    = 50 // milliseconds either way
	DefaultNote = 60
)

// Step is one pattern slot
type Step struct {
	Index       int  `json:"index" yaml:"index"`
	Active      bool `json:"active" yaml:"active"`
	Note        int  `json:"note" yaml:"note"`               // 0-127
	Velocity    int  `json:"velocity" yaml:"velocity"`       // 0-127
	Gate        int  `json:"gate" yaml:"gate"`               // percent of the step held
	Probability int  `json:"probability" yaml:"probability"` // percent chance to fire
	Nudge       int  `json:"nudge" yaml:"nudge"`             // ms, +/- MaxNudge
}

// NewStep returns an inactive step with default values
func NewStep(index int) Step {
	return Step{
		Index:       index,
		Note:        DefaultNote,
		Velocity:    100,
		Gate:        50,
		Probability: 100,
	}
}

func (s *Step) SetNote(n int)        { s.Note = clamp(n, 0, 127) }
func (s *Step) SetVelocity(v int)    { s.Velocity = clamp(v, 0, 127) }
func (s *Step) SetGate(g int)        { s.Gate = clamp(g, 0, 100) }
func (s *Step) SetProbability(p int) { s.Probability = clamp(p, 0, 100) }
func (s *Step) SetNudge(ms int)      { s.Nudge = clamp(ms, -MaxNudge, MaxNudge) }

// Clamp forces every bounded field into range
func (s *Step) Clamp() {
	s.SetNote(s.Note)
	s.SetVelocity(s.Velocity)
	s.SetGate(s.Gate)
	s.SetProbability(s.Probability)
	s.SetNudge(s.Nudge)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mod is always non-negative
func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}
